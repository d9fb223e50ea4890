package db

import (
	"context"
	"fmt"
	"time"

	"github.com/david/tender-intel/internal/models"
	"github.com/google/uuid"
)

// HasOpenAlert reports whether an unacknowledged alert exists for the
// (type, competitor, tender) triple. Nil ids match rows where the column is
// null.
func (s *Store) HasOpenAlert(ctx context.Context, alertType string, competitorID, tenderID *uuid.UUID) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM competitive_alerts
			WHERE alert_type = $1
			  AND competitor_id IS NOT DISTINCT FROM $2
			  AND tender_id IS NOT DISTINCT FROM $3
			  AND acknowledged = FALSE
		)
	`, alertType, competitorID, tenderID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check open alert: %w", err)
	}
	return exists, nil
}

func (s *Store) CreateAlert(ctx context.Context, a models.CompetitiveAlert) error {
	actions := a.Actions
	if actions == nil {
		actions = []string{}
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO competitive_alerts (
			id, alert_type, competitor_id, tender_id, priority,
			title, description, actions, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, a.ID, a.AlertType, a.CompetitorID, a.TenderID, a.Priority,
		a.Title, a.Description, actions, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("create alert: %w", err)
	}
	return nil
}

// ListOpenAlerts returns unacknowledged alerts, newest first.
func (s *Store) ListOpenAlerts(ctx context.Context, limit int) ([]models.CompetitiveAlert, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, alert_type, competitor_id, tender_id, priority,
			title, description, actions, acknowledged, acknowledged_at, created_at
		FROM competitive_alerts
		WHERE acknowledged = FALSE
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	var alerts []models.CompetitiveAlert
	for rows.Next() {
		var a models.CompetitiveAlert
		if err := rows.Scan(
			&a.ID, &a.AlertType, &a.CompetitorID, &a.TenderID, &a.Priority,
			&a.Title, &a.Description, &a.Actions, &a.Acknowledged, &a.AcknowledgedAt, &a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// AcknowledgeAlert closes one alert, reopening its triple for future
// generation.
func (s *Store) AcknowledgeAlert(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE competitive_alerts
		SET acknowledged = TRUE, acknowledged_at = $2
		WHERE id = $1 AND acknowledged = FALSE
	`, id, at)
	if err != nil {
		return fmt.Errorf("acknowledge alert: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("alert %s not found or already acknowledged", id)
	}
	return nil
}
