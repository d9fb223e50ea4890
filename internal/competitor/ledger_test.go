package competitor

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/david/tender-intel/internal/models"
	"github.com/google/uuid"
)

var testNow = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

type fakeStore struct {
	profiles map[string]*models.CompetitorProfile
	bids     map[uuid.UUID][]models.CompetitorBid

	// staleReads makes the next N lookups miss, mimicking two workers both
	// reading before either insert lands.
	staleReads int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		profiles: make(map[string]*models.CompetitorProfile),
		bids:     make(map[uuid.UUID][]models.CompetitorBid),
	}
}

func (f *fakeStore) GetCompetitorByNormalizedName(_ context.Context, normalized string) (*models.CompetitorProfile, error) {
	if f.staleReads > 0 {
		f.staleReads--
		return nil, nil
	}
	p, ok := f.profiles[normalized]
	if !ok {
		return nil, nil
	}
	copied := *p
	return &copied, nil
}

// SaveCompetitorProfile mirrors the store's normalized-name conflict
// handling: the existing row keeps its id and the canonical id is written
// back into p.ID.
func (f *fakeStore) SaveCompetitorProfile(_ context.Context, p *models.CompetitorProfile) error {
	if existing, ok := f.profiles[p.NormalizedName]; ok {
		p.ID = existing.ID
	}
	copied := *p
	f.profiles[p.NormalizedName] = &copied
	return nil
}

// AppendCompetitorBid enforces the bid's foreign key to a stored profile.
func (f *fakeStore) AppendCompetitorBid(_ context.Context, bid models.CompetitorBid) error {
	for _, p := range f.profiles {
		if p.ID == bid.CompetitorID {
			f.bids[bid.CompetitorID] = append(f.bids[bid.CompetitorID], bid)
			return nil
		}
	}
	return fmt.Errorf("bid references unknown competitor %s", bid.CompetitorID)
}

func (f *fakeStore) ListCompetitorBids(_ context.Context, competitorID uuid.UUID) ([]models.CompetitorBid, error) {
	return f.bids[competitorID], nil
}

func seedHistory(t *testing.T, ledger *Ledger, store *fakeStore, supplier string, wins, losses int) *models.CompetitorProfile {
	t.Helper()
	ctx := context.Background()
	awarded := testNow.AddDate(0, -2, 0)
	for i := 0; i < wins; i++ {
		tender := models.Tender{
			ID:              uuid.New(),
			AwardedSupplier: supplier,
			AwardAmount:     800_000,
			AwardedAt:       &awarded,
		}
		if _, err := ledger.RecordAward(ctx, tender, testNow); err != nil {
			t.Fatal(err)
		}
	}
	for i := 0; i < losses; i++ {
		tender := models.Tender{ID: uuid.New()}
		if _, err := ledger.RecordLoss(ctx, supplier, tender, 750_000, testNow); err != nil {
			t.Fatal(err)
		}
	}
	return store.profiles[NormalizeName(supplier)]
}

func TestRecordAward_WinRateAndTier(t *testing.T) {
	store := newFakeStore()
	ledger := NewLedger(store)

	profile := seedHistory(t, ledger, store, "Apex Manpower Services Ltd", 7, 3)
	if profile.TotalBids != 10 || profile.ContractsWon != 7 {
		t.Fatalf("expected 7/10 history, got %d/%d", profile.ContractsWon, profile.TotalBids)
	}
	if profile.WinRate != 0.7 {
		t.Fatalf("expected win rate 0.7, got %f", profile.WinRate)
	}
	if profile.Tier != TierCompetitive {
		t.Fatalf("expected competitive tier, got %s", profile.Tier)
	}
	if profile.AvgContractValue != 800_000 {
		t.Fatalf("expected avg award among wins only, got %f", profile.AvgContractValue)
	}

	// An eleventh bid, lost, pulls the rate to 7/11 and the score moves down
	// through the win-rate term alone.
	before := profile.ThreatScore
	tender := models.Tender{ID: uuid.New()}
	if _, err := ledger.RecordLoss(context.Background(), "Apex Manpower Services Ltd", tender, 700_000, testNow); err != nil {
		t.Fatal(err)
	}
	profile = store.profiles[NormalizeName("Apex Manpower Services Ltd")]
	if profile.WinRate <= 0.63 || profile.WinRate >= 0.64 {
		t.Fatalf("expected win rate near 7/11, got %f", profile.WinRate)
	}
	if profile.ThreatScore >= before {
		t.Fatalf("expected threat score to drop from %d, got %d", before, profile.ThreatScore)
	}
	if profile.Tier != TierModerate {
		t.Fatalf("expected moderate tier after rate drop, got %s", profile.Tier)
	}
}

func TestRecordAward_NormalizedNameDedup(t *testing.T) {
	store := newFakeStore()
	ledger := NewLedger(store)

	seedHistory(t, ledger, store, "Apex Manpower Services Ltd.", 1, 0)
	seedHistory(t, ledger, store, "APEX MANPOWER SERVICES LIMITED", 1, 0)

	if len(store.profiles) != 1 {
		t.Fatalf("expected one merged profile, got %d", len(store.profiles))
	}
	profile := store.profiles[NormalizeName("Apex Manpower Services Ltd")]
	if profile.ContractsWon != 2 {
		t.Fatalf("expected both wins on one profile, got %d", profile.ContractsWon)
	}
}

func TestRecordAward_FirstWinFlag(t *testing.T) {
	store := newFakeStore()
	ledger := NewLedger(store)
	ctx := context.Background()
	awarded := testNow.AddDate(0, 0, -1)

	tender := models.Tender{ID: uuid.New(), AwardedSupplier: "Newcomer Services Co", AwardAmount: 200_000, AwardedAt: &awarded}
	result, err := ledger.RecordAward(ctx, tender, testNow)
	if err != nil {
		t.Fatal(err)
	}
	if !result.FirstWin {
		t.Fatal("expected first win to be flagged")
	}

	tender2 := models.Tender{ID: uuid.New(), AwardedSupplier: "Newcomer Services Co", AwardAmount: 300_000, AwardedAt: &awarded}
	result, err = ledger.RecordAward(ctx, tender2, testNow)
	if err != nil {
		t.Fatal(err)
	}
	if result.FirstWin {
		t.Fatal("second win flagged as first")
	}
}

func TestRecordAward_RacingCreatesShareOneRow(t *testing.T) {
	store := newFakeStore()
	// Both awards read before either profile insert lands, so each caller
	// builds a fresh profile with its own id for the same supplier.
	store.staleReads = 2
	ledger := NewLedger(store)
	ctx := context.Background()
	awarded := testNow.AddDate(0, 0, -1)

	for _, id := range []uuid.UUID{uuid.New(), uuid.New()} {
		tender := models.Tender{ID: id, AwardedSupplier: "Fresh Entrant Services Inc", AwardAmount: 400_000, AwardedAt: &awarded}
		if _, err := ledger.RecordAward(ctx, tender, testNow); err != nil {
			t.Fatalf("RecordAward: %v", err)
		}
	}

	if len(store.profiles) != 1 {
		t.Fatalf("expected one profile, got %d", len(store.profiles))
	}
	profile := store.profiles[NormalizeName("Fresh Entrant Services Inc")]
	if got := len(store.bids[profile.ID]); got != 2 {
		t.Fatalf("expected both bids under the canonical id, got %d", got)
	}
	if profile.ContractsWon != 2 {
		t.Fatalf("expected both wins recorded, got %d", profile.ContractsWon)
	}
}

func TestRecompute_Idempotent(t *testing.T) {
	store := newFakeStore()
	ledger := NewLedger(store)

	profile := seedHistory(t, ledger, store, "Steadfast Staffing LLC", 4, 2)
	first := *profile

	for i := 0; i < 3; i++ {
		if err := ledger.Recompute(context.Background(), profile, testNow); err != nil {
			t.Fatal(err)
		}
	}
	again := store.profiles[profile.NormalizedName]
	if again.ThreatScore != first.ThreatScore || again.WinRate != first.WinRate ||
		again.AvgContractValue != first.AvgContractValue || again.Tier != first.Tier {
		t.Fatalf("recompute not idempotent: %+v vs %+v", first, *again)
	}
}

func TestThreatScore_TermCapsAndClamp(t *testing.T) {
	lastWin := testNow.AddDate(0, 0, -10)
	stats := bidStats{
		TotalBids:        40,
		Wins:             40,
		WinRate:          1.0,
		TotalValueWon:    400_000_000,
		AvgContractValue: 10_000_000,
		LastWinAt:        &lastWin,
	}
	if got := threatScore(stats, testNow); got != 100 {
		t.Fatalf("expected every term at cap to clamp at 100, got %d", got)
	}
	if got := threatScore(bidStats{}, testNow); got != 0 {
		t.Fatalf("expected empty history to score 0, got %d", got)
	}
}

func TestThreatLevel_StepFunction(t *testing.T) {
	cases := []struct {
		score int
		want  string
	}{
		{85, ThreatCritical}, {80, ThreatCritical},
		{79, ThreatHigh}, {60, ThreatHigh},
		{59, ThreatMedium}, {40, ThreatMedium},
		{39, ThreatLow}, {20, ThreatLow},
		{19, ThreatMinimal}, {0, ThreatMinimal},
	}
	for _, tc := range cases {
		if got := threatLevelFor(tc.score); got != tc.want {
			t.Errorf("score %d: expected %s, got %s", tc.score, tc.want, got)
		}
	}
}

func TestRecencyPoints_DecayByMonths(t *testing.T) {
	recent := testNow.AddDate(0, -1, 0)
	stale := testNow.AddDate(0, -20, 0)
	if got := recencyPoints(&recent, testNow); got != 14 {
		t.Fatalf("expected 14 points one month out, got %f", got)
	}
	if got := recencyPoints(&stale, testNow); got != 0 {
		t.Fatalf("expected decay to zero, got %f", got)
	}
	if got := recencyPoints(nil, testNow); got != 0 {
		t.Fatalf("expected zero without a win, got %f", got)
	}
}

func TestNormalizeName(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Apex Manpower Services Ltd.", "apex manpower services"},
		{"APEX MANPOWER SERVICES LIMITED", "apex manpower services"},
		{"  Steadfast   Staffing, LLC ", "steadfast staffing"},
		{"Orion Facility Co", "orion facility"},
		{"plain name", "plain name"},
	}
	for _, tc := range cases {
		if got := NormalizeName(tc.in); got != tc.want {
			t.Errorf("NormalizeName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestRankLikely_PriorWinsAndValueBand(t *testing.T) {
	incumbent := models.CompetitorProfile{
		ID: uuid.New(), NormalizedName: "incumbent services",
		ContractsWon: 5, AvgContractValue: 1_000_000,
	}
	outOfBand := models.CompetitorProfile{
		ID: uuid.New(), NormalizedName: "giant integrator",
		ContractsWon: 10, AvgContractValue: 50_000_000,
	}
	neverWon := models.CompetitorProfile{
		ID: uuid.New(), NormalizedName: "paper bidder",
	}
	tender := models.Tender{ID: uuid.New(), EstimatedValue: 1_000_000}

	ranked := RankLikely(tender,
		[]models.CompetitorProfile{outOfBand, incumbent, neverWon},
		map[uuid.UUID]int{incumbent.ID: 4},
	)
	if len(ranked) != 1 {
		t.Fatalf("expected only the in-band incumbent, got %d entries", len(ranked))
	}
	if ranked[0].Profile.ID != incumbent.ID {
		t.Fatalf("expected incumbent first, got %s", ranked[0].Profile.NormalizedName)
	}
	if ranked[0].Likelihood != 1.0 {
		t.Fatalf("expected saturated likelihood, got %f", ranked[0].Likelihood)
	}
}

func TestValueBandScore_Edges(t *testing.T) {
	if got := valueBandScore(1_000_000, 1_000_000); got != 1.0 {
		t.Fatalf("exact match should score 1.0, got %f", got)
	}
	if got := valueBandScore(400_000, 1_000_000); got != 0 {
		t.Fatalf("below half band should score 0, got %f", got)
	}
	if got := valueBandScore(2_500_000, 1_000_000); got != 0 {
		t.Fatalf("above double band should score 0, got %f", got)
	}
	mid := valueBandScore(1_500_000, 1_000_000)
	if mid <= 0 || mid >= 1 {
		t.Fatalf("in-band mismatch should be partial, got %f", mid)
	}
}
