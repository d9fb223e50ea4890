package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/david/tender-intel/internal/models"
	"github.com/google/uuid"
)

type fakeStore struct {
	states   map[uuid.UUID]*models.LifecycleState
	dates    map[string]models.CriticalDate // keyed tenderID+dateType
	renewals map[uuid.UUID]models.RenewalOpportunity
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		states:   make(map[uuid.UUID]*models.LifecycleState),
		dates:    make(map[string]models.CriticalDate),
		renewals: make(map[uuid.UUID]models.RenewalOpportunity),
	}
}

func (f *fakeStore) GetLifecycleState(_ context.Context, tenderID uuid.UUID) (*models.LifecycleState, error) {
	state, ok := f.states[tenderID]
	if !ok {
		return nil, nil
	}
	copied := *state
	return &copied, nil
}

func (f *fakeStore) SaveLifecycleState(_ context.Context, state *models.LifecycleState) error {
	copied := *state
	f.states[state.TenderID] = &copied
	return nil
}

func (f *fakeStore) UpsertCriticalDate(_ context.Context, cd models.CriticalDate) error {
	key := cd.TenderID.String() + "/" + cd.DateType
	if existing, ok := f.dates[key]; ok {
		cd.AlertSent = existing.AlertSent
		cd.ID = existing.ID
	}
	f.dates[key] = cd
	return nil
}

func (f *fakeStore) CreateRenewalOpportunity(_ context.Context, r models.RenewalOpportunity) (bool, error) {
	if _, ok := f.renewals[r.TenderID]; ok {
		return false, nil
	}
	f.renewals[r.TenderID] = r
	return true, nil
}

func TestEngineSync_InitializesStateAndDates(t *testing.T) {
	store := newFakeStore()
	engine := NewEngine(store)
	tender := models.Tender{
		ID:        uuid.New(),
		ClosingAt: tp(testNow.AddDate(0, 0, 10)),
	}

	result, err := engine.Sync(context.Background(), tender, testNow)
	if err != nil {
		t.Fatal(err)
	}
	if result.Stage != StageClarification || !result.Advanced {
		t.Fatalf("expected initialized clarification state, got %+v", result)
	}

	state := store.states[tender.ID]
	if state == nil {
		t.Fatal("expected state persisted")
	}
	if state.ExpectedNextStage != string(StageSubmission) {
		t.Fatalf("expected next stage submission, got %s", state.ExpectedNextStage)
	}
	if len(store.dates) != 7 {
		t.Fatalf("expected 7 critical dates, got %d", len(store.dates))
	}
}

func TestEngineSync_NeverRegresses(t *testing.T) {
	store := newFakeStore()
	engine := NewEngine(store)
	tender := models.Tender{
		ID:        uuid.New(),
		AwardedAt: tp(testNow.AddDate(0, 0, -40)),
	}

	if _, err := engine.Sync(context.Background(), tender, testNow); err != nil {
		t.Fatal(err)
	}
	if got := Stage(store.states[tender.ID].Stage); got != StageActive {
		t.Fatalf("expected active, got %s", got)
	}

	// Stale re-scan without the award fields must not rewind the state.
	stale := models.Tender{ID: tender.ID, ClosingAt: tp(testNow.AddDate(0, 0, 5))}
	result, err := engine.Sync(context.Background(), stale, testNow)
	if err != nil {
		t.Fatal(err)
	}
	if result.Advanced {
		t.Fatal("expected no advancement on stale data")
	}
	if got := Stage(store.states[tender.ID].Stage); got != StageActive {
		t.Fatalf("state regressed to %s", got)
	}
}

func TestEngineSync_JumpsForwardOnLateAwardData(t *testing.T) {
	store := newFakeStore()
	engine := NewEngine(store)
	id := uuid.New()

	early := models.Tender{ID: id, ClosingAt: tp(testNow.AddDate(0, 0, 20))}
	if _, err := engine.Sync(context.Background(), early, testNow); err != nil {
		t.Fatal(err)
	}
	if got := Stage(store.states[id].Stage); got != StageClarification {
		t.Fatalf("expected clarification, got %s", got)
	}

	// Award appears on a later scan: the state jumps straight past closed and
	// evaluation, and the bypassed stages still have their dates on record.
	later := testNow.AddDate(0, 2, 0)
	awarded := models.Tender{ID: id, AwardedAt: tp(testNow.AddDate(0, 0, -2))}
	result, err := engine.Sync(context.Background(), awarded, later)
	if err != nil {
		t.Fatal(err)
	}
	if !result.Advanced {
		t.Fatal("expected advancement")
	}
	if got := Stage(store.states[id].Stage); got.Order() < StageAwarded.Order() {
		t.Fatalf("expected jump to awarded or later, got %s", got)
	}
	for _, dateType := range []string{DateSubmissionDeadline, DateEvaluationComplete} {
		if _, ok := store.dates[id.String()+"/"+dateType]; !ok {
			t.Fatalf("bypassed stage date %s missing", dateType)
		}
	}
}

func TestEngineSync_RenewalCreatedExactlyOnce(t *testing.T) {
	store := newFakeStore()
	engine := NewEngine(store)
	award := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := award.AddDate(0, 2, 0)
	tender := models.Tender{
		ID:              uuid.New(),
		AwardedAt:       &award,
		AwardedSupplier: "Apex Manpower Services Ltd",
		Analysis:        &models.Analysis{EstimatedMonths: 12, RenewalProbability: 0.75},
	}

	result, err := engine.Sync(context.Background(), tender, now)
	if err != nil {
		t.Fatal(err)
	}
	if !result.RenewalCreated {
		t.Fatal("expected renewal opportunity created")
	}

	renewal := store.renewals[tender.ID]
	if !renewal.ContractEndAt.Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected contract end 2025-01-01, got %s", renewal.ContractEndAt)
	}
	if !renewal.RenewalNotificationAt.Equal(time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected renewal notification 2024-07-01, got %s", renewal.RenewalNotificationAt)
	}
	if renewal.IncumbentSupplier != "Apex Manpower Services Ltd" {
		t.Fatalf("unexpected incumbent %q", renewal.IncumbentSupplier)
	}
	if renewal.RenewalProbability != 0.75 {
		t.Fatalf("expected renewal probability from analysis, got %f", renewal.RenewalProbability)
	}

	// Processing the active transition again must not create a second row.
	result, err = engine.Sync(context.Background(), tender, now.AddDate(0, 0, 1))
	if err != nil {
		t.Fatal(err)
	}
	if result.RenewalCreated {
		t.Fatal("expected renewal creation to be exactly-once")
	}
	if len(store.renewals) != 1 {
		t.Fatalf("expected 1 renewal, got %d", len(store.renewals))
	}
}

func TestEngineSync_PreservesAlertSentOnReprojection(t *testing.T) {
	store := newFakeStore()
	engine := NewEngine(store)
	tender := models.Tender{ID: uuid.New(), ClosingAt: tp(testNow.AddDate(0, 0, 6))}

	if _, err := engine.Sync(context.Background(), tender, testNow); err != nil {
		t.Fatal(err)
	}
	key := tender.ID.String() + "/" + DateSubmissionDeadline
	cd := store.dates[key]
	cd.AlertSent = true
	store.dates[key] = cd

	if _, err := engine.Sync(context.Background(), tender, testNow.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}
	if !store.dates[key].AlertSent {
		t.Fatal("alert_sent flag lost on re-projection")
	}
}
