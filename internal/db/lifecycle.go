package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/david/tender-intel/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// GetLifecycleState returns nil with no error when the tender has no state
// yet.
func (s *Store) GetLifecycleState(ctx context.Context, tenderID uuid.UUID) (*models.LifecycleState, error) {
	var state models.LifecycleState
	err := s.pool.QueryRow(ctx, `
		SELECT id, tender_id, stage, stage_entered_at, expected_next_stage, expected_next_at, updated_at
		FROM lifecycle_states
		WHERE tender_id = $1
	`, tenderID).Scan(
		&state.ID, &state.TenderID, &state.Stage, &state.StageEnteredAt,
		&state.ExpectedNextStage, &state.ExpectedNextAt, &state.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get lifecycle state: %w", err)
	}
	return &state, nil
}

func (s *Store) SaveLifecycleState(ctx context.Context, state *models.LifecycleState) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO lifecycle_states (id, tender_id, stage, stage_entered_at, expected_next_stage, expected_next_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (tender_id) DO UPDATE SET
			stage = EXCLUDED.stage,
			stage_entered_at = EXCLUDED.stage_entered_at,
			expected_next_stage = EXCLUDED.expected_next_stage,
			expected_next_at = EXCLUDED.expected_next_at,
			updated_at = EXCLUDED.updated_at
	`, state.ID, state.TenderID, state.Stage, state.StageEnteredAt,
		state.ExpectedNextStage, state.ExpectedNextAt, state.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save lifecycle state: %w", err)
	}
	return nil
}

// UpsertCriticalDate is keyed by (tender_id, date_type). Re-projection
// refreshes the schedule but never clears an alert_sent flag or an observed
// actual date.
func (s *Store) UpsertCriticalDate(ctx context.Context, cd models.CriticalDate) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO critical_dates (
			id, state_id, tender_id, date_type, scheduled_at, actual_at,
			alert_sent, priority, days_notice, description, impact
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (tender_id, date_type) DO UPDATE SET
			scheduled_at = EXCLUDED.scheduled_at,
			actual_at = COALESCE(EXCLUDED.actual_at, critical_dates.actual_at),
			alert_sent = critical_dates.alert_sent OR EXCLUDED.alert_sent,
			priority = EXCLUDED.priority,
			days_notice = EXCLUDED.days_notice,
			description = EXCLUDED.description,
			impact = EXCLUDED.impact
	`, cd.ID, cd.StateID, cd.TenderID, cd.DateType, cd.ScheduledAt, cd.ActualAt,
		cd.AlertSent, cd.Priority, cd.DaysNotice, cd.Description, cd.Impact)
	if err != nil {
		return fmt.Errorf("upsert critical date: %w", err)
	}
	return nil
}

// CreateRenewalOpportunity inserts at most one row per tender. Reports false
// when the row already existed, which keeps creation exactly-once across
// repeated lifecycle passes.
func (s *Store) CreateRenewalOpportunity(ctx context.Context, r models.RenewalOpportunity) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO renewal_opportunities (
			id, tender_id, contract_start_at, contract_end_at, incumbent_supplier,
			renewal_probability, renewal_notification_at, renewal_tender_at, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (tender_id) DO NOTHING
	`, r.ID, r.TenderID, r.ContractStartAt, r.ContractEndAt, r.IncumbentSupplier,
		r.RenewalProbability, r.RenewalNotificationAt, r.RenewalTenderAt, r.Status)
	if err != nil {
		return false, fmt.Errorf("create renewal opportunity: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// UpcomingCriticalDates lists unalerted dates scheduled within the next N
// days, nearest first.
func (s *Store) UpcomingCriticalDates(ctx context.Context, days int) ([]models.CriticalDate, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, state_id, tender_id, date_type, scheduled_at, actual_at,
			alert_sent, priority, days_notice, description, impact
		FROM critical_dates
		WHERE scheduled_at >= NOW() AND scheduled_at <= NOW() + ($1 * INTERVAL '1 day')
		ORDER BY scheduled_at ASC
	`, days)
	if err != nil {
		return nil, fmt.Errorf("list critical dates: %w", err)
	}
	defer rows.Close()

	var dates []models.CriticalDate
	for rows.Next() {
		var cd models.CriticalDate
		if err := rows.Scan(
			&cd.ID, &cd.StateID, &cd.TenderID, &cd.DateType, &cd.ScheduledAt, &cd.ActualAt,
			&cd.AlertSent, &cd.Priority, &cd.DaysNotice, &cd.Description, &cd.Impact,
		); err != nil {
			return nil, fmt.Errorf("scan critical date: %w", err)
		}
		dates = append(dates, cd)
	}
	return dates, rows.Err()
}

// MarkAlertSent flags one critical date as alerted.
func (s *Store) MarkAlertSent(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx, "UPDATE critical_dates SET alert_sent = TRUE WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("mark alert sent: %w", err)
	}
	return nil
}

// ListRenewals returns renewal opportunities whose contract ends within the
// next N months.
func (s *Store) ListRenewals(ctx context.Context, months int) ([]models.RenewalOpportunity, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, tender_id, contract_start_at, contract_end_at, incumbent_supplier,
			renewal_probability, renewal_notification_at, renewal_tender_at, status, created_at
		FROM renewal_opportunities
		WHERE contract_end_at <= NOW() + ($1 * INTERVAL '1 month')
		  AND status != 'decided'
		ORDER BY contract_end_at ASC
	`, months)
	if err != nil {
		return nil, fmt.Errorf("list renewals: %w", err)
	}
	defer rows.Close()

	var renewals []models.RenewalOpportunity
	for rows.Next() {
		var r models.RenewalOpportunity
		if err := rows.Scan(
			&r.ID, &r.TenderID, &r.ContractStartAt, &r.ContractEndAt, &r.IncumbentSupplier,
			&r.RenewalProbability, &r.RenewalNotificationAt, &r.RenewalTenderAt, &r.Status, &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan renewal: %w", err)
		}
		renewals = append(renewals, r)
	}
	return renewals, rows.Err()
}

// UpdateRenewalStatus advances a renewal opportunity through
// monitoring -> notified -> tender_live -> decided.
func (s *Store) UpdateRenewalStatus(ctx context.Context, id uuid.UUID, status string, tenderAt *time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE renewal_opportunities
		SET status = $2, renewal_tender_at = COALESCE($3, renewal_tender_at)
		WHERE id = $1
	`, id, status, tenderAt)
	if err != nil {
		return fmt.Errorf("update renewal status: %w", err)
	}
	return nil
}
