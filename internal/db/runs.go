package db

import (
	"context"
	"fmt"
	"time"

	"github.com/david/tender-intel/internal/models"
)

// CreateRun records the start of one orchestrator pass.
func (s *Store) CreateRun(ctx context.Context, runID string, startedAt time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO scan_runs (run_id, status, started_at) VALUES ($1, 'running', $2)
	`, runID, startedAt)
	if err != nil {
		return fmt.Errorf("create run %s: %w", runID, err)
	}
	return nil
}

// CompleteRun finalizes a run with its counts. Status is "completed" or
// "failed".
func (s *Store) CompleteRun(ctx context.Context, run models.ScanRun) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE scan_runs
		SET status = $2, items_found = $3, items_saved = $4, errors = $5,
			completed_at = $6, details = $7::jsonb
		WHERE run_id = $1
	`, run.RunID, run.Status, run.ItemsFound, run.ItemsSaved, run.Errors,
		run.CompletedAt, nilIfEmpty(run.Details))
	if err != nil {
		return fmt.Errorf("complete run %s: %w", run.RunID, err)
	}
	return nil
}

// ListRuns returns recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]models.ScanRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, `
		SELECT run_id, status, items_found, items_saved, errors, started_at, completed_at, COALESCE(details::text, '')
		FROM scan_runs
		ORDER BY started_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []models.ScanRun
	for rows.Next() {
		var r models.ScanRun
		if err := rows.Scan(
			&r.RunID, &r.Status, &r.ItemsFound, &r.ItemsSaved, &r.Errors,
			&r.StartedAt, &r.CompletedAt, &r.Details,
		); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
