package alert

import (
	"context"
	"testing"
	"time"

	"github.com/david/tender-intel/internal/competitor"
	"github.com/david/tender-intel/internal/models"
	"github.com/google/uuid"
)

var testNow = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

type fakeStore struct {
	alerts []models.CompetitiveAlert
}

func (f *fakeStore) HasOpenAlert(_ context.Context, alertType string, competitorID, tenderID *uuid.UUID) (bool, error) {
	for _, a := range f.alerts {
		if a.Acknowledged || a.AlertType != alertType {
			continue
		}
		if uuidPtrEqual(a.CompetitorID, competitorID) && uuidPtrEqual(a.TenderID, tenderID) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) CreateAlert(_ context.Context, a models.CompetitiveAlert) error {
	f.alerts = append(f.alerts, a)
	return nil
}

func uuidPtrEqual(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func TestNewCompetitorWin_DedupOnOpenAlert(t *testing.T) {
	store := &fakeStore{}
	gen := NewGenerator(store)
	profile := &models.CompetitorProfile{ID: uuid.New(), Name: "Newcomer Services"}
	tender := models.Tender{ID: uuid.New(), Title: "Data entry operators"}

	created, err := gen.NewCompetitorWin(context.Background(), profile, tender, testNow)
	if err != nil {
		t.Fatal(err)
	}
	if !created {
		t.Fatal("expected first alert created")
	}

	created, err = gen.NewCompetitorWin(context.Background(), profile, tender, testNow.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if created || len(store.alerts) != 1 {
		t.Fatalf("expected dedup on open alert, got %d alerts", len(store.alerts))
	}

	// Acknowledging the alert reopens the triple for a new one.
	store.alerts[0].Acknowledged = true
	created, err = gen.NewCompetitorWin(context.Background(), profile, tender, testNow.Add(2*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if !created {
		t.Fatal("expected new alert after acknowledgement")
	}
}

func TestThreatOnTender_BelowThresholdsSkipped(t *testing.T) {
	store := &fakeStore{}
	gen := NewGenerator(store)
	tender := models.Tender{ID: uuid.New(), Title: "Security guard deployment"}

	weak := competitor.LikelyCompetitor{
		Profile:    models.CompetitorProfile{ID: uuid.New(), Name: "Small Shop", ThreatScore: 30},
		Likelihood: 0.9,
	}
	if created, _ := gen.ThreatOnTender(context.Background(), weak, tender, testNow); created {
		t.Fatal("low-threat competitor should not alert")
	}

	unlikely := competitor.LikelyCompetitor{
		Profile:    models.CompetitorProfile{ID: uuid.New(), Name: "Big Shop", ThreatScore: 85},
		Likelihood: 0.2,
	}
	if created, _ := gen.ThreatOnTender(context.Background(), unlikely, tender, testNow); created {
		t.Fatal("low-likelihood competitor should not alert")
	}

	strong := competitor.LikelyCompetitor{
		Profile:    models.CompetitorProfile{ID: uuid.New(), Name: "Apex Manpower", ThreatScore: 85},
		Likelihood: 0.8,
		PriorWins:  3,
	}
	created, err := gen.ThreatOnTender(context.Background(), strong, tender, testNow)
	if err != nil {
		t.Fatal(err)
	}
	if !created {
		t.Fatal("expected alert for high-threat likely competitor")
	}
	if store.alerts[0].Priority != "high" {
		t.Fatalf("expected high priority, got %s", store.alerts[0].Priority)
	}
}

func TestTenderThresholds_ScoreAndValue(t *testing.T) {
	store := &fakeStore{}
	gen := NewGenerator(store)
	tender := models.Tender{
		ID:             uuid.New(),
		Title:          "Nationwide data entry services",
		AgencyName:     "Ministry of Health",
		EstimatedValue: 2_500_000,
		Currency:       "EUR",
		Analysis:       &models.Analysis{IntelligenceScore: 86, AlertPriority: "urgent"},
	}

	created, err := gen.TenderThresholds(context.Background(), tender, testNow)
	if err != nil {
		t.Fatal(err)
	}
	if created != 2 {
		t.Fatalf("expected score and value alerts, got %d", created)
	}

	// Re-running the same tender creates nothing new.
	created, err = gen.TenderThresholds(context.Background(), tender, testNow.Add(time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if created != 0 || len(store.alerts) != 2 {
		t.Fatalf("expected dedup, got %d new and %d total", created, len(store.alerts))
	}

	modest := models.Tender{
		ID:             uuid.New(),
		Title:          "Reception cover",
		EstimatedValue: 40_000,
		Analysis:       &models.Analysis{IntelligenceScore: 35, AlertPriority: "low"},
	}
	created, err = gen.TenderThresholds(context.Background(), modest, testNow)
	if err != nil {
		t.Fatal(err)
	}
	if created != 0 {
		t.Fatalf("expected no alerts below thresholds, got %d", created)
	}
}

func TestCreate_FillsActionTemplate(t *testing.T) {
	store := &fakeStore{}
	gen := NewGenerator(store)
	profile := &models.CompetitorProfile{ID: uuid.New(), Name: "Newcomer"}
	tender := models.Tender{ID: uuid.New(), Title: "Event staffing"}

	if _, err := gen.NewCompetitorWin(context.Background(), profile, tender, testNow); err != nil {
		t.Fatal(err)
	}
	actions := store.alerts[0].Actions
	if len(actions) == 0 {
		t.Fatal("expected recommended actions from the type template")
	}
	if actions[0] != actionTemplates[TypeNewCompetitorWin][0] {
		t.Fatalf("unexpected action %q", actions[0])
	}
}
