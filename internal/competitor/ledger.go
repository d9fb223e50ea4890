package competitor

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/david/tender-intel/internal/models"
	"github.com/google/uuid"
)

// Threat score term caps and thresholds. Each term is capped so no single
// factor dominates the 0-100 score.
const (
	winRateMaxPoints      = 25.0
	valueTierMaxPoints    = 20.0
	contractsMaxPoints    = 20.0
	pointsPerContract     = 2.0
	recencyMaxPoints      = 15.0
	totalValueMaxPoints   = 10.0
	reliabilityMaxPoints  = 10.0
	reliabilityHalfPoints = 5.0

	reliabilityMinWins    = 5
	reliabilityMinRate    = 0.5
	reliabilitySomeWins   = 3

	scoreMax = 100

	threatCriticalMin = 80
	threatHighMin     = 60
	threatMediumMin   = 40
	threatLowMin      = 20
)

// Pricing-aggressiveness tiers from recent win rate.
const (
	TierCompetitive = "competitive"
	TierModerate    = "moderate"
	TierPremium     = "premium"

	tierCompetitiveMinRate = 0.7
	tierPremiumMaxRate     = 0.3
)

const (
	ThreatCritical = "critical"
	ThreatHigh     = "high"
	ThreatMedium   = "medium"
	ThreatLow      = "low"
	ThreatMinimal  = "minimal"
)

// Average-contract-value bands for the value-tier term.
var valueTiers = []struct {
	Min    float64
	Points float64
}{
	{5_000_000, 20},
	{1_000_000, 15},
	{500_000, 10},
	{100_000, 5},
	{0, 2},
}

// Cumulative-value bands for the total-value term.
var totalValueTiers = []struct {
	Min    float64
	Points float64
}{
	{20_000_000, 10},
	{5_000_000, 7},
	{1_000_000, 4},
	{0, 1},
}

var legalSuffixes = []string{
	"private limited", "pvt ltd", "pte ltd", "limited", "ltd", "llc",
	"llp", "inc", "corp", "corporation", "co", "company", "gmbh", "sa",
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9 ]+`)
var multiSpace = regexp.MustCompile(`\s+`)

// NormalizeName folds a supplier name to its dedup key: lowercase, punctuation
// stripped, legal suffixes removed, whitespace collapsed. "Apex Manpower
// Services Ltd." and "APEX MANPOWER SERVICES LIMITED" map to the same key.
func NormalizeName(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	n = nonAlnum.ReplaceAllString(n, " ")
	n = multiSpace.ReplaceAllString(n, " ")
	n = strings.TrimSpace(n)
	for _, suffix := range legalSuffixes {
		if strings.HasSuffix(n, " "+suffix) {
			n = strings.TrimSpace(strings.TrimSuffix(n, " "+suffix))
			break
		}
	}
	return n
}

// Store is the persistence surface the ledger needs. Implemented by db.Store;
// tests supply an in-memory fake.
type Store interface {
	// GetCompetitorByNormalizedName returns nil (no error) when unknown.
	GetCompetitorByNormalizedName(ctx context.Context, normalized string) (*models.CompetitorProfile, error)
	// SaveCompetitorProfile upserts by normalized name. When the name already
	// has a row, the canonical row id must be written back into p.ID so that
	// concurrent get-or-create never appends bids under a phantom id.
	SaveCompetitorProfile(ctx context.Context, p *models.CompetitorProfile) error
	AppendCompetitorBid(ctx context.Context, bid models.CompetitorBid) error
	ListCompetitorBids(ctx context.Context, competitorID uuid.UUID) ([]models.CompetitorBid, error)
}

// Ledger maintains per-supplier profiles derived from append-only bid
// history.
type Ledger struct {
	store Store
}

func NewLedger(store Store) *Ledger {
	return &Ledger{store: store}
}

// AwardResult reports what recording an award changed.
type AwardResult struct {
	Profile  *models.CompetitorProfile
	FirstWin bool
}

// RecordAward appends the winning bid for the tender's awarded supplier and
// recomputes that supplier's profile. Reports whether this was the
// competitor's first recorded win, which feeds the new-entrant alert.
func (l *Ledger) RecordAward(ctx context.Context, t models.Tender, now time.Time) (AwardResult, error) {
	if t.AwardedSupplier == "" || t.AwardedAt == nil {
		return AwardResult{}, fmt.Errorf("tender %s has no award to record", t.ID)
	}

	profile, err := l.getOrCreateProfile(ctx, t.AwardedSupplier, now)
	if err != nil {
		return AwardResult{}, err
	}
	firstWin := profile.ContractsWon == 0

	amount := t.AwardAmount
	if amount == 0 {
		amount = t.EstimatedValue
	}
	bid := models.CompetitorBid{
		ID:           uuid.New(),
		CompetitorID: profile.ID,
		TenderID:     t.ID,
		BidAmount:    amount,
		Won:          true,
		AwardAmount:  amount,
		BidAt:        t.ClosingAt,
		AwardedAt:    t.AwardedAt,
		CreatedAt:    now,
	}
	if err := l.store.AppendCompetitorBid(ctx, bid); err != nil {
		return AwardResult{}, fmt.Errorf("append bid: %w", err)
	}

	if err := l.Recompute(ctx, profile, now); err != nil {
		return AwardResult{}, err
	}
	return AwardResult{Profile: profile, FirstWin: firstWin}, nil
}

// RecordLoss appends a losing bid for a named participant and recomputes its
// profile. Used when a source publishes the full participant list.
func (l *Ledger) RecordLoss(ctx context.Context, supplier string, t models.Tender, bidAmount float64, now time.Time) (*models.CompetitorProfile, error) {
	profile, err := l.getOrCreateProfile(ctx, supplier, now)
	if err != nil {
		return nil, err
	}
	bid := models.CompetitorBid{
		ID:           uuid.New(),
		CompetitorID: profile.ID,
		TenderID:     t.ID,
		BidAmount:    bidAmount,
		Won:          false,
		BidAt:        t.ClosingAt,
		CreatedAt:    now,
	}
	if err := l.store.AppendCompetitorBid(ctx, bid); err != nil {
		return nil, fmt.Errorf("append bid: %w", err)
	}
	if err := l.Recompute(ctx, profile, now); err != nil {
		return nil, err
	}
	return profile, nil
}

func (l *Ledger) getOrCreateProfile(ctx context.Context, name string, now time.Time) (*models.CompetitorProfile, error) {
	normalized := NormalizeName(name)
	profile, err := l.store.GetCompetitorByNormalizedName(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("load competitor %q: %w", normalized, err)
	}
	if profile != nil {
		return profile, nil
	}
	profile = &models.CompetitorProfile{
		ID:             uuid.New(),
		Name:           strings.TrimSpace(name),
		NormalizedName: normalized,
		Tier:           TierModerate,
		ThreatLevel:    ThreatMinimal,
		CreatedAt:      now,
	}
	if err := l.store.SaveCompetitorProfile(ctx, profile); err != nil {
		return nil, fmt.Errorf("create competitor %q: %w", normalized, err)
	}
	return profile, nil
}

// Recompute rebuilds every derived field of the profile from the full bid
// history and persists the result. Deterministic for a fixed history and
// clock, so re-running it is harmless.
func (l *Ledger) Recompute(ctx context.Context, profile *models.CompetitorProfile, now time.Time) error {
	bids, err := l.store.ListCompetitorBids(ctx, profile.ID)
	if err != nil {
		return fmt.Errorf("list bids for %s: %w", profile.NormalizedName, err)
	}

	stats := computeStats(bids)
	profile.TotalBids = stats.TotalBids
	profile.ContractsWon = stats.Wins
	profile.TotalValueWon = stats.TotalValueWon
	profile.AvgContractValue = stats.AvgContractValue
	profile.WinRate = stats.WinRate
	profile.LastWinAt = stats.LastWinAt
	profile.Tier = classifyTier(stats.WinRate)
	profile.ThreatScore = threatScore(stats, now)
	profile.ThreatLevel = threatLevelFor(profile.ThreatScore)
	profile.LastAnalyzedAt = now

	if err := l.store.SaveCompetitorProfile(ctx, profile); err != nil {
		return fmt.Errorf("save competitor %s: %w", profile.NormalizedName, err)
	}
	return nil
}

type bidStats struct {
	TotalBids        int
	Wins             int
	WinRate          float64
	TotalValueWon    float64
	AvgContractValue float64
	LastWinAt        *time.Time
}

func computeStats(bids []models.CompetitorBid) bidStats {
	var stats bidStats
	stats.TotalBids = len(bids)
	for _, bid := range bids {
		if !bid.Won {
			continue
		}
		stats.Wins++
		stats.TotalValueWon += bid.AwardAmount
		when := bid.AwardedAt
		if when == nil {
			when = bid.BidAt
		}
		if when != nil && (stats.LastWinAt == nil || when.After(*stats.LastWinAt)) {
			at := *when
			stats.LastWinAt = &at
		}
	}
	if stats.TotalBids > 0 {
		stats.WinRate = float64(stats.Wins) / float64(stats.TotalBids)
	}
	if stats.Wins > 0 {
		stats.AvgContractValue = stats.TotalValueWon / float64(stats.Wins)
	}
	return stats
}

func classifyTier(winRate float64) string {
	switch {
	case winRate >= tierCompetitiveMinRate:
		return TierCompetitive
	case winRate < tierPremiumMaxRate:
		return TierPremium
	default:
		return TierModerate
	}
}

// threatScore is a weighted sum of capped terms, clamped to [0,100].
func threatScore(stats bidStats, now time.Time) int {
	if stats.TotalBids == 0 {
		return 0
	}

	score := stats.WinRate * winRateMaxPoints
	score += bandPoints(valueTiers, stats.AvgContractValue)
	score += math.Min(contractsMaxPoints, float64(stats.Wins)*pointsPerContract)
	score += recencyPoints(stats.LastWinAt, now)
	score += bandPoints(totalValueTiers, stats.TotalValueWon)
	score += reliabilityPoints(stats)

	clamped := int(math.Round(score))
	if clamped < 0 {
		clamped = 0
	}
	if clamped > scoreMax {
		clamped = scoreMax
	}
	return clamped
}

func bandPoints(tiers []struct {
	Min    float64
	Points float64
}, value float64) float64 {
	if value <= 0 {
		return 0
	}
	for _, tier := range tiers {
		if value >= tier.Min {
			return tier.Points
		}
	}
	return 0
}

// recencyPoints decays one point per month since the last win.
func recencyPoints(lastWin *time.Time, now time.Time) float64 {
	if lastWin == nil {
		return 0
	}
	months := monthsBetween(*lastWin, now)
	points := recencyMaxPoints - float64(months)
	if points < 0 {
		return 0
	}
	return points
}

// reliabilityPoints rewards a sustained delivery record: full points for a
// seasoned winner, half for an emerging one.
func reliabilityPoints(stats bidStats) float64 {
	switch {
	case stats.Wins >= reliabilityMinWins && stats.WinRate >= reliabilityMinRate:
		return reliabilityMaxPoints
	case stats.Wins >= reliabilitySomeWins:
		return reliabilityHalfPoints
	default:
		return 0
	}
}

func threatLevelFor(score int) string {
	switch {
	case score >= threatCriticalMin:
		return ThreatCritical
	case score >= threatHighMin:
		return ThreatHigh
	case score >= threatMediumMin:
		return ThreatMedium
	case score >= threatLowMin:
		return ThreatLow
	default:
		return ThreatMinimal
	}
}

func monthsBetween(from, to time.Time) int {
	if to.Before(from) {
		return 0
	}
	months := (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month())
	if to.Day() < from.Day() {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}
