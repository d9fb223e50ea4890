package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/david/tender-intel/internal/competitor"
	"github.com/david/tender-intel/internal/models"
	"github.com/google/uuid"
)

// Alert types. Each has a fixed action template.
const (
	TypeNewCompetitorWin = "new_competitor_win"
	TypeThreatOnTender   = "threat_on_tender"
	TypeHighValueTender  = "high_value_tender"
	TypeHighScoreTender  = "high_score_tender"
)

// Trigger thresholds.
const (
	highScoreMin   = 80
	highValueMin   = 1_000_000.0
	threatLevelMin = 60 // competitor threat score for a tender-level alert
	likelihoodMin  = 0.5
)

// Fixed recommended-action templates, keyed by alert type. Static text, not
// generated.
var actionTemplates = map[string][]string{
	TypeNewCompetitorWin: {
		"Add the company to the watch list",
		"Pull its award history from public records",
		"Review our pricing in the affected category",
	},
	TypeThreatOnTender: {
		"Review the incumbent's past pricing on similar contracts",
		"Flag the bid for senior review before submission",
		"Prepare a differentiation summary for the proposal",
	},
	TypeHighValueTender: {
		"Assign a bid manager before the clarification deadline",
		"Start partner and subcontractor outreach",
		"Request the full tender dossier",
	},
	TypeHighScoreTender: {
		"Prioritize this tender in the current bid pipeline",
		"Verify manpower and mobilization capacity for the stated scale",
		"Schedule a go/no-go decision this week",
	},
}

// Store is the persistence surface the generator needs.
type Store interface {
	// HasOpenAlert reports whether an unacknowledged alert already exists for
	// the (type, competitor, tender) triple. Nil IDs match rows with nil IDs.
	HasOpenAlert(ctx context.Context, alertType string, competitorID, tenderID *uuid.UUID) (bool, error)
	CreateAlert(ctx context.Context, a models.CompetitiveAlert) error
}

// Generator turns ledger and analyzer outcomes into deduplicated alert rows.
type Generator struct {
	store Store
}

func NewGenerator(store Store) *Generator {
	return &Generator{store: store}
}

// NewCompetitorWin raises an alert the first time a supplier appears as a
// winner.
func (g *Generator) NewCompetitorWin(ctx context.Context, profile *models.CompetitorProfile, t models.Tender, now time.Time) (bool, error) {
	return g.create(ctx, models.CompetitiveAlert{
		AlertType:    TypeNewCompetitorWin,
		CompetitorID: &profile.ID,
		TenderID:     &t.ID,
		Priority:     "medium",
		Title:        fmt.Sprintf("New market entrant: %s", profile.Name),
		Description:  fmt.Sprintf("%s won its first recorded contract (%s).", profile.Name, t.Title),
		CreatedAt:    now,
	})
}

// ThreatOnTender raises an alert when a high-threat competitor is likely on
// an open tender.
func (g *Generator) ThreatOnTender(ctx context.Context, likely competitor.LikelyCompetitor, t models.Tender, now time.Time) (bool, error) {
	if likely.Likelihood < likelihoodMin || likely.Profile.ThreatScore < threatLevelMin {
		return false, nil
	}
	return g.create(ctx, models.CompetitiveAlert{
		AlertType:    TypeThreatOnTender,
		CompetitorID: &likely.Profile.ID,
		TenderID:     &t.ID,
		Priority:     "high",
		Title:        fmt.Sprintf("%s likely bidding on %s", likely.Profile.Name, t.Title),
		Description: fmt.Sprintf("%s (threat %d, %d prior wins in this segment) fits this tender's value band.",
			likely.Profile.Name, likely.Profile.ThreatScore, likely.PriorWins),
		CreatedAt: now,
	})
}

// TenderThresholds raises score and value alerts for a freshly analyzed
// tender. Returns the number of alerts created.
func (g *Generator) TenderThresholds(ctx context.Context, t models.Tender, now time.Time) (int, error) {
	created := 0
	if t.Analysis != nil && t.Analysis.IntelligenceScore >= highScoreMin {
		ok, err := g.create(ctx, models.CompetitiveAlert{
			AlertType:   TypeHighScoreTender,
			TenderID:    &t.ID,
			Priority:    t.Analysis.AlertPriority,
			Title:       fmt.Sprintf("High-score opportunity: %s", t.Title),
			Description: fmt.Sprintf("Intelligence score %d for %s.", t.Analysis.IntelligenceScore, t.AgencyName),
			CreatedAt:   now,
		})
		if err != nil {
			return created, err
		}
		if ok {
			created++
		}
	}
	if t.EstimatedValue >= highValueMin {
		ok, err := g.create(ctx, models.CompetitiveAlert{
			AlertType:   TypeHighValueTender,
			TenderID:    &t.ID,
			Priority:    "high",
			Title:       fmt.Sprintf("High-value tender: %s", t.Title),
			Description: fmt.Sprintf("Estimated value %.0f %s.", t.EstimatedValue, t.Currency),
			CreatedAt:   now,
		})
		if err != nil {
			return created, err
		}
		if ok {
			created++
		}
	}
	return created, nil
}

// create applies the dedup rule and fills in the type's action template.
// Reports whether a row was written.
func (g *Generator) create(ctx context.Context, a models.CompetitiveAlert) (bool, error) {
	open, err := g.store.HasOpenAlert(ctx, a.AlertType, a.CompetitorID, a.TenderID)
	if err != nil {
		return false, fmt.Errorf("check open alert: %w", err)
	}
	if open {
		return false, nil
	}
	a.ID = uuid.New()
	a.Actions = actionTemplates[a.AlertType]
	if err := g.store.CreateAlert(ctx, a); err != nil {
		return false, fmt.Errorf("create alert: %w", err)
	}
	return true, nil
}
