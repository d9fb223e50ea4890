package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/david/tender-intel/internal/models"
	"github.com/google/uuid"
)

// Store is the persistence surface the engine needs. Implemented by db.Store;
// tests supply an in-memory fake.
type Store interface {
	// GetLifecycleState returns nil (no error) when the tender has no state yet.
	GetLifecycleState(ctx context.Context, tenderID uuid.UUID) (*models.LifecycleState, error)
	SaveLifecycleState(ctx context.Context, state *models.LifecycleState) error
	// UpsertCriticalDate is keyed by (tender_id, date_type) and must preserve
	// an already-set alert_sent flag.
	UpsertCriticalDate(ctx context.Context, cd models.CriticalDate) error
	// CreateRenewalOpportunity reports false when one already exists for the
	// tender, making creation exactly-once under reprocessing.
	CreateRenewalOpportunity(ctx context.Context, r models.RenewalOpportunity) (bool, error)
}

// Engine owns the per-tender stage state machine and its projected dates.
type Engine struct {
	store Store
}

func NewEngine(store Store) *Engine {
	return &Engine{store: store}
}

// SyncResult describes what one engine pass changed.
type SyncResult struct {
	Stage          Stage
	Advanced       bool
	PreviousStage  Stage
	RenewalCreated bool
}

// Sync initializes or advances the tender's lifecycle state, refreshes its
// critical dates from the current projection, and creates the renewal
// opportunity when the tender first reaches active service. Advancement is
// forward-only: out-of-order data jumps straight to the inferred stage, while
// stale data can never regress a state.
func (e *Engine) Sync(ctx context.Context, t models.Tender, now time.Time) (SyncResult, error) {
	now = now.UTC()
	inferred := InferStage(t, now)

	state, err := e.store.GetLifecycleState(ctx, t.ID)
	if err != nil {
		return SyncResult{}, fmt.Errorf("load lifecycle state: %w", err)
	}

	result := SyncResult{Stage: inferred}
	if state == nil {
		state = &models.LifecycleState{
			ID:             uuid.New(),
			TenderID:       t.ID,
			Stage:          string(inferred),
			StageEnteredAt: now,
		}
		result.Advanced = true
	} else {
		current := Stage(state.Stage)
		result.PreviousStage = current
		if inferred.Order() > current.Order() {
			state.Stage = string(inferred)
			state.StageEnteredAt = now
			result.Advanced = true
		} else {
			result.Stage = current
		}
	}

	timeline := ProjectTimeline(t, now)
	stage := Stage(state.Stage)

	state.ExpectedNextStage = string(stage.Next())
	if next := expectedDateForNextStage(stage, timeline); next != nil {
		state.ExpectedNextAt = next
	} else {
		state.ExpectedNextAt = nil
	}
	state.UpdatedAt = now

	if err := e.store.SaveLifecycleState(ctx, state); err != nil {
		return SyncResult{}, fmt.Errorf("save lifecycle state: %w", err)
	}

	for _, pd := range timeline {
		cd := models.CriticalDate{
			ID:          uuid.New(),
			StateID:     state.ID,
			TenderID:    t.ID,
			DateType:    pd.Type,
			ScheduledAt: pd.At,
			Priority:    pd.Priority,
			DaysNotice:  pd.DaysNotice,
			Description: pd.Description,
			Impact:      pd.Impact,
		}
		if pd.Observed {
			actual := pd.At
			cd.ActualAt = &actual
		}
		if err := e.store.UpsertCriticalDate(ctx, cd); err != nil {
			return SyncResult{}, fmt.Errorf("upsert critical date %s: %w", pd.Type, err)
		}
	}

	if stage.Order() >= StageActive.Order() && t.AwardedAt != nil {
		created, err := e.createRenewalOpportunity(ctx, t)
		if err != nil {
			return SyncResult{}, err
		}
		result.RenewalCreated = created
	}

	return result, nil
}

func (e *Engine) createRenewalOpportunity(ctx context.Context, t models.Tender) (bool, error) {
	start := t.AwardedAt.UTC().AddDate(0, 0, mobilizationAfterAwardDays)
	end := contractEndFor(t)
	renewalProbability := 0.5
	if t.Analysis != nil && t.Analysis.RenewalProbability > 0 {
		renewalProbability = t.Analysis.RenewalProbability
	}

	created, err := e.store.CreateRenewalOpportunity(ctx, models.RenewalOpportunity{
		ID:                    uuid.New(),
		TenderID:              t.ID,
		ContractStartAt:       start,
		ContractEndAt:         end,
		IncumbentSupplier:     t.AwardedSupplier,
		RenewalProbability:    renewalProbability,
		RenewalNotificationAt: end.AddDate(0, -renewalNoticeMonthsBeforeEnd, 0),
		Status:                "monitoring",
	})
	if err != nil {
		return false, fmt.Errorf("create renewal opportunity: %w", err)
	}
	return created, nil
}

// expectedDateForNextStage maps the stage the tender is about to enter onto
// the projected date that marks that entry.
func expectedDateForNextStage(current Stage, timeline []ProjectedDate) *time.Time {
	var wantType string
	switch current.Next() {
	case StageClarification:
		wantType = DateClarificationDeadline
	case StageSubmission, StageClosed:
		wantType = DateSubmissionDeadline
	case StageEvaluation:
		wantType = DateEvaluationComplete
	case StageAwarded:
		wantType = DateAwardExpected
	case StageMobilization, StageActive:
		wantType = DateServiceCommencement
	case StageRenewalNotice:
		wantType = DateRenewalNotification
	case StageCompletion:
		wantType = DateContractEnd
	default:
		return nil
	}
	for _, pd := range timeline {
		if pd.Type == wantType {
			at := pd.At
			return &at
		}
	}
	return nil
}
