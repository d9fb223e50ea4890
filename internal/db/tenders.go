package db

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/david/tender-intel/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

type ListParams struct {
	Query       string
	Source      string
	Status      string // "tracked" (default), "completed", "withdrawn", or "all"
	Stage       string // lifecycle stage, e.g. "submission"
	MinScore    int
	MinValue    float64
	AgencyName  []string
	ServiceType []string
	ClosingDays int // only tenders closing within N days
	AwardedOnly bool
	Limit       int
	Offset      int
	SortBy      string // "score" (default), "closing", "value_desc", "newest"
}

type ListResult struct {
	Tenders []models.Tender `json:"tenders"`
	Total   int             `json:"total"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
}

// selectCols is the comprehensive column list for all tender queries.
const selectCols = `id, external_id, source_domain, title, description,
	agency_name, category_code, estimated_value, currency,
	published_at, closing_at, awarded_at, awarded_supplier, award_amount,
	source_url, raw_payload, status, match_confidence, match_reason,
	intelligence_score, service_type, estimated_manpower, estimated_months,
	win_probability, renewal_probability, competitive_factors, alert_priority,
	first_seen_run_id, created_at, updated_at`

func scanTender(scan func(dest ...interface{}) error) (models.Tender, error) {
	var t models.Tender
	var description, agencyName, categoryCode, currency *string
	var awardedSupplier, sourceURL, matchReason, serviceType, alertPriority *string
	var rawPayload []byte
	var analysis models.Analysis

	err := scan(
		&t.ID, &t.ExternalID, &t.SourceDomain, &t.Title, &description,
		&agencyName, &categoryCode, &t.EstimatedValue, &currency,
		&t.PublishedAt, &t.ClosingAt, &t.AwardedAt, &awardedSupplier, &t.AwardAmount,
		&sourceURL, &rawPayload, &t.Status, &t.MatchConfidence, &matchReason,
		&analysis.IntelligenceScore, &serviceType, &analysis.EstimatedManpower, &analysis.EstimatedMonths,
		&analysis.WinProbability, &analysis.RenewalProbability, &analysis.CompetitiveFactors, &alertPriority,
		&t.FirstSeenRunID, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return t, err
	}

	if description != nil {
		t.Description = *description
	}
	if agencyName != nil {
		t.AgencyName = *agencyName
	}
	if categoryCode != nil {
		t.CategoryCode = *categoryCode
	}
	if currency != nil {
		t.Currency = *currency
	}
	if awardedSupplier != nil {
		t.AwardedSupplier = *awardedSupplier
	}
	if sourceURL != nil {
		t.SourceURL = *sourceURL
	}
	if matchReason != nil {
		t.MatchReason = *matchReason
	}
	if serviceType != nil {
		analysis.ServiceType = *serviceType
	}
	if alertPriority != nil {
		analysis.AlertPriority = *alertPriority
	}
	if len(rawPayload) > 0 {
		_ = json.Unmarshal(rawPayload, &t.RawPayload)
	}
	t.Analysis = &analysis

	return t, nil
}

// UpsertTender writes one tender keyed by (source_domain, external_id).
// Re-ingesting the same notice merges fields: present values win, absent
// values keep what the row already holds, so a sparse later scrape never
// erases earlier data. Derived analysis columns are always overwritten.
func (s *Store) UpsertTender(ctx context.Context, t *models.Tender) error {
	analysis := t.Analysis
	if analysis == nil {
		analysis = &models.Analysis{}
	}
	payloadJSON, err := json.Marshal(t.RawPayload)
	if err != nil {
		return fmt.Errorf("marshal raw payload: %w", err)
	}
	factors := analysis.CompetitiveFactors
	if factors == nil {
		factors = []string{}
	}

	query := `
		INSERT INTO tenders (
			id, external_id, source_domain, title, description,
			agency_name, category_code, estimated_value, currency,
			published_at, closing_at, awarded_at, awarded_supplier, award_amount,
			source_url, raw_payload, status, match_confidence, match_reason,
			intelligence_score, service_type, estimated_manpower, estimated_months,
			win_probability, renewal_probability, competitive_factors, alert_priority,
			first_seen_run_id
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, $11, $12, $13, $14,
			$15, $16::jsonb, $17, $18, $19,
			$20, $21, $22, $23,
			$24, $25, $26, $27,
			$28
		)
		ON CONFLICT (source_domain, external_id) DO UPDATE SET
			updated_at = NOW(),
			title = EXCLUDED.title,
			description = COALESCE(NULLIF(EXCLUDED.description, ''), tenders.description),
			agency_name = COALESCE(NULLIF(EXCLUDED.agency_name, ''), tenders.agency_name),
			category_code = COALESCE(NULLIF(EXCLUDED.category_code, ''), tenders.category_code),
			estimated_value = COALESCE(NULLIF(EXCLUDED.estimated_value, 0), tenders.estimated_value),
			currency = COALESCE(NULLIF(EXCLUDED.currency, ''), tenders.currency),
			published_at = COALESCE(EXCLUDED.published_at, tenders.published_at),
			closing_at = COALESCE(EXCLUDED.closing_at, tenders.closing_at),
			awarded_at = COALESCE(EXCLUDED.awarded_at, tenders.awarded_at),
			awarded_supplier = COALESCE(NULLIF(EXCLUDED.awarded_supplier, ''), tenders.awarded_supplier),
			award_amount = COALESCE(NULLIF(EXCLUDED.award_amount, 0), tenders.award_amount),
			source_url = COALESCE(NULLIF(EXCLUDED.source_url, ''), tenders.source_url),
			raw_payload = COALESCE(EXCLUDED.raw_payload, tenders.raw_payload),
			status = EXCLUDED.status,
			match_confidence = EXCLUDED.match_confidence,
			match_reason = EXCLUDED.match_reason,
			intelligence_score = EXCLUDED.intelligence_score,
			service_type = EXCLUDED.service_type,
			estimated_manpower = EXCLUDED.estimated_manpower,
			estimated_months = EXCLUDED.estimated_months,
			win_probability = EXCLUDED.win_probability,
			renewal_probability = EXCLUDED.renewal_probability,
			competitive_factors = EXCLUDED.competitive_factors,
			alert_priority = EXCLUDED.alert_priority
		RETURNING id, created_at, updated_at
	`

	err = s.pool.QueryRow(ctx, query,
		t.ID, t.ExternalID, t.SourceDomain, t.Title, t.Description,
		t.AgencyName, t.CategoryCode, t.EstimatedValue, t.Currency,
		t.PublishedAt, t.ClosingAt, t.AwardedAt, t.AwardedSupplier, t.AwardAmount,
		t.SourceURL, payloadJSON, t.Status, t.MatchConfidence, t.MatchReason,
		analysis.IntelligenceScore, analysis.ServiceType, analysis.EstimatedManpower, analysis.EstimatedMonths,
		analysis.WinProbability, analysis.RenewalProbability, factors, analysis.AlertPriority,
		t.FirstSeenRunID,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert tender %s/%s: %w", t.SourceDomain, t.ExternalID, err)
	}
	return nil
}

func (s *Store) GetTender(ctx context.Context, id string) (*models.Tender, error) {
	sql := fmt.Sprintf(`
		SELECT %s
		FROM tenders
		WHERE id = $1
	`, selectCols)
	row := s.pool.QueryRow(ctx, sql, id)

	t, err := scanTender(row.Scan)
	if err != nil {
		return nil, fmt.Errorf("not found: %w", err)
	}

	return &t, nil
}

func (s *Store) GetTenderByExternalID(ctx context.Context, sourceDomain, externalID string) (*models.Tender, error) {
	sql := fmt.Sprintf(`
		SELECT %s
		FROM tenders
		WHERE source_domain = $1 AND external_id = $2
	`, selectCols)
	row := s.pool.QueryRow(ctx, sql, sourceDomain, externalID)

	t, err := scanTender(row.Scan)
	if err != nil {
		return nil, fmt.Errorf("not found: %w", err)
	}

	return &t, nil
}

func (s *Store) ListTenders(ctx context.Context, params ListParams) (*ListResult, error) {
	where, args := buildTenderWhere(params)
	argIdx := len(args) + 1

	var total int
	countSQL := "SELECT COUNT(*) FROM tenders " + where
	if err := s.pool.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count failed: %w", err)
	}

	selectSQL := fmt.Sprintf("SELECT %s FROM tenders %s", selectCols, where)
	switch params.SortBy {
	case "closing":
		selectSQL += " ORDER BY closing_at ASC NULLS LAST"
	case "value_desc":
		selectSQL += " ORDER BY estimated_value DESC NULLS LAST"
	case "newest":
		selectSQL += " ORDER BY published_at DESC NULLS LAST, created_at DESC"
	default: // "score"
		selectSQL += " ORDER BY intelligence_score DESC, updated_at DESC"
	}

	limit := params.Limit
	if limit <= 0 {
		limit = 50
	}
	selectSQL += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, limit, params.Offset)

	rows, err := s.pool.Query(ctx, selectSQL, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var tenders []models.Tender
	for rows.Next() {
		t, err := scanTender(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		tenders = append(tenders, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}
	if tenders == nil {
		tenders = []models.Tender{}
	}

	return &ListResult{
		Tenders: tenders,
		Total:   total,
		Limit:   limit,
		Offset:  params.Offset,
	}, nil
}

func buildTenderWhere(params ListParams) (string, []interface{}) {
	where := "WHERE 1=1"
	var args []interface{}
	argIdx := 1

	if params.Query != "" {
		where += fmt.Sprintf(" AND (title ILIKE '%%' || $%d || '%%' OR description ILIKE '%%' || $%d || '%%')", argIdx, argIdx)
		args = append(args, params.Query)
		argIdx++
	}
	if params.Source != "" {
		where += fmt.Sprintf(" AND source_domain = $%d", argIdx)
		args = append(args, params.Source)
		argIdx++
	}

	status := params.Status
	if status == "" {
		status = "tracked"
	}
	if status != "all" {
		where += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, status)
		argIdx++
	}

	if params.Stage != "" {
		where += fmt.Sprintf(" AND id IN (SELECT tender_id FROM lifecycle_states WHERE stage = $%d)", argIdx)
		args = append(args, params.Stage)
		argIdx++
	}
	if params.MinScore > 0 {
		where += fmt.Sprintf(" AND intelligence_score >= $%d", argIdx)
		args = append(args, params.MinScore)
		argIdx++
	}
	if params.MinValue > 0 {
		where += fmt.Sprintf(" AND estimated_value >= $%d", argIdx)
		args = append(args, params.MinValue)
		argIdx++
	}
	if len(params.AgencyName) > 0 {
		where += fmt.Sprintf(" AND agency_name = ANY($%d)", argIdx)
		args = append(args, sanitizeStringSlice(params.AgencyName))
		argIdx++
	}
	if len(params.ServiceType) > 0 {
		where += fmt.Sprintf(" AND service_type = ANY($%d)", argIdx)
		args = append(args, sanitizeStringSlice(params.ServiceType))
		argIdx++
	}
	if params.ClosingDays > 0 {
		where += fmt.Sprintf(" AND closing_at IS NOT NULL AND closing_at >= NOW() AND closing_at <= NOW() + ($%d * INTERVAL '1 day')", argIdx)
		args = append(args, params.ClosingDays)
		argIdx++
	}
	if params.AwardedOnly {
		where += " AND awarded_at IS NOT NULL"
	}

	return where, args
}

func sanitizeStringSlice(values []string) []string {
	if len(values) == 0 {
		return values
	}

	clean := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			clean = append(clean, trimmed)
		}
	}

	return clean
}

func (s *Store) GetStats(ctx context.Context) (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var total int
	s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM tenders").Scan(&total)
	stats["total"] = total

	var sources int
	s.pool.QueryRow(ctx, "SELECT COUNT(DISTINCT source_domain) FROM tenders").Scan(&sources)
	stats["sources"] = sources

	var highScore int
	s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM tenders WHERE intelligence_score >= 60").Scan(&highScore)
	stats["high_score"] = highScore

	var open int
	s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM tenders WHERE closing_at IS NOT NULL AND closing_at > NOW()").Scan(&open)
	stats["open"] = open

	var awarded int
	s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM tenders WHERE awarded_at IS NOT NULL").Scan(&awarded)
	stats["awarded"] = awarded

	stageCounts := map[string]int{}
	rows, err := s.pool.Query(ctx, "SELECT stage, COUNT(*) FROM lifecycle_states GROUP BY stage")
	if err == nil {
		defer rows.Close()
		for rows.Next() {
			var stage string
			var count int
			if scanErr := rows.Scan(&stage, &count); scanErr == nil {
				stageCounts[stage] = count
			}
		}
	}
	stats["stage_counts"] = stageCounts

	return stats, nil
}

// MarkCompleted flips tenders whose contract ended before the cutoff out of
// the tracked set.
func (s *Store) MarkCompleted(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE tenders SET status = 'completed', updated_at = NOW()
		WHERE status = 'tracked'
		  AND id IN (SELECT tender_id FROM lifecycle_states WHERE stage = 'completion')
		  AND updated_at < $1
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("mark completed: %w", err)
	}
	return tag.RowsAffected(), nil
}
