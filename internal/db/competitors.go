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

const competitorCols = `id, name, normalized_name, tier, threat_level,
	contracts_won, total_bids, total_value_won, avg_contract_value, win_rate,
	threat_score, last_win_at, last_analyzed_at, created_at`

func scanCompetitor(scan func(dest ...interface{}) error) (models.CompetitorProfile, error) {
	var p models.CompetitorProfile
	var lastAnalyzed *time.Time
	err := scan(
		&p.ID, &p.Name, &p.NormalizedName, &p.Tier, &p.ThreatLevel,
		&p.ContractsWon, &p.TotalBids, &p.TotalValueWon, &p.AvgContractValue, &p.WinRate,
		&p.ThreatScore, &p.LastWinAt, &lastAnalyzed, &p.CreatedAt,
	)
	if err != nil {
		return p, err
	}
	if lastAnalyzed != nil {
		p.LastAnalyzedAt = *lastAnalyzed
	}
	return p, nil
}

// GetCompetitorByNormalizedName returns nil with no error when the supplier
// is unknown.
func (s *Store) GetCompetitorByNormalizedName(ctx context.Context, normalized string) (*models.CompetitorProfile, error) {
	sql := fmt.Sprintf("SELECT %s FROM competitor_profiles WHERE normalized_name = $1", competitorCols)
	p, err := scanCompetitor(s.pool.QueryRow(ctx, sql, normalized).Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get competitor: %w", err)
	}
	return &p, nil
}

// SaveCompetitorProfile upserts the profile keyed by normalized_name. When a
// concurrent insert already claimed the name, the existing row keeps its id;
// the canonical id is written back into p.ID so bids always reference the
// stored row.
func (s *Store) SaveCompetitorProfile(ctx context.Context, p *models.CompetitorProfile) error {
	var lastAnalyzed interface{}
	if !p.LastAnalyzedAt.IsZero() {
		lastAnalyzed = p.LastAnalyzedAt
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO competitor_profiles (
			id, name, normalized_name, tier, threat_level,
			contracts_won, total_bids, total_value_won, avg_contract_value, win_rate,
			threat_score, last_win_at, last_analyzed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (normalized_name) DO UPDATE SET
			name = EXCLUDED.name,
			tier = EXCLUDED.tier,
			threat_level = EXCLUDED.threat_level,
			contracts_won = EXCLUDED.contracts_won,
			total_bids = EXCLUDED.total_bids,
			total_value_won = EXCLUDED.total_value_won,
			avg_contract_value = EXCLUDED.avg_contract_value,
			win_rate = EXCLUDED.win_rate,
			threat_score = EXCLUDED.threat_score,
			last_win_at = EXCLUDED.last_win_at,
			last_analyzed_at = EXCLUDED.last_analyzed_at
		RETURNING id
	`, p.ID, p.Name, p.NormalizedName, p.Tier, p.ThreatLevel,
		p.ContractsWon, p.TotalBids, p.TotalValueWon, p.AvgContractValue, p.WinRate,
		p.ThreatScore, p.LastWinAt, lastAnalyzed).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("save competitor %s: %w", p.NormalizedName, err)
	}
	return nil
}

// AppendCompetitorBid writes one bid outcome. Rows are never updated.
func (s *Store) AppendCompetitorBid(ctx context.Context, bid models.CompetitorBid) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO competitor_bids (
			id, competitor_id, tender_id, bid_amount, won, award_amount, bid_at, awarded_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, bid.ID, bid.CompetitorID, bid.TenderID, bid.BidAmount, bid.Won,
		bid.AwardAmount, bid.BidAt, bid.AwardedAt, bid.CreatedAt)
	if err != nil {
		return fmt.Errorf("append bid: %w", err)
	}
	return nil
}

func (s *Store) ListCompetitorBids(ctx context.Context, competitorID uuid.UUID) ([]models.CompetitorBid, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, competitor_id, tender_id, bid_amount, won, award_amount, bid_at, awarded_at, created_at
		FROM competitor_bids
		WHERE competitor_id = $1
		ORDER BY created_at ASC
	`, competitorID)
	if err != nil {
		return nil, fmt.Errorf("list bids: %w", err)
	}
	defer rows.Close()

	var bids []models.CompetitorBid
	for rows.Next() {
		var b models.CompetitorBid
		if err := rows.Scan(
			&b.ID, &b.CompetitorID, &b.TenderID, &b.BidAmount, &b.Won,
			&b.AwardAmount, &b.BidAt, &b.AwardedAt, &b.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan bid: %w", err)
		}
		bids = append(bids, b)
	}
	return bids, rows.Err()
}

// ListCompetitors returns profiles ordered by threat score.
func (s *Store) ListCompetitors(ctx context.Context, limit int) ([]models.CompetitorProfile, error) {
	if limit <= 0 {
		limit = 50
	}
	sql := fmt.Sprintf("SELECT %s FROM competitor_profiles ORDER BY threat_score DESC, normalized_name ASC LIMIT $1", competitorCols)
	rows, err := s.pool.Query(ctx, sql, limit)
	if err != nil {
		return nil, fmt.Errorf("list competitors: %w", err)
	}
	defer rows.Close()

	var profiles []models.CompetitorProfile
	for rows.Next() {
		p, err := scanCompetitor(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan competitor: %w", err)
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// CountPriorWins maps competitor id to the number of wins matching the given
// service type and agency. Feeds likely-competitor ranking for open tenders.
func (s *Store) CountPriorWins(ctx context.Context, serviceType, agencyName string) (map[uuid.UUID]int, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT b.competitor_id, COUNT(*)
		FROM competitor_bids b
		JOIN tenders t ON t.id = b.tender_id
		WHERE b.won = TRUE AND t.service_type = $1 AND t.agency_name = $2
		GROUP BY b.competitor_id
	`, serviceType, agencyName)
	if err != nil {
		return nil, fmt.Errorf("count prior wins: %w", err)
	}
	defer rows.Close()

	wins := make(map[uuid.UUID]int)
	for rows.Next() {
		var id uuid.UUID
		var count int
		if err := rows.Scan(&id, &count); err != nil {
			return nil, fmt.Errorf("scan prior wins: %w", err)
		}
		wins[id] = count
	}
	return wins, rows.Err()
}

// ThreatDistribution counts competitors per threat level for the
// intelligence report.
func (s *Store) ThreatDistribution(ctx context.Context) (map[string]int, error) {
	rows, err := s.pool.Query(ctx, "SELECT threat_level, COUNT(*) FROM competitor_profiles GROUP BY threat_level")
	if err != nil {
		return nil, fmt.Errorf("threat distribution: %w", err)
	}
	defer rows.Close()

	dist := make(map[string]int)
	for rows.Next() {
		var level string
		var count int
		if err := rows.Scan(&level, &count); err != nil {
			return nil, fmt.Errorf("scan distribution: %w", err)
		}
		dist[level] = count
	}
	return dist, rows.Err()
}
