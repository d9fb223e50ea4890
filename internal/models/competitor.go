package models

import (
	"time"

	"github.com/google/uuid"
)

// CompetitorProfile aggregates award outcomes for one supplier. Derived
// fields (win rate, averages, threat score) are always recomputed from the
// full bid history, never edited directly.
type CompetitorProfile struct {
	ID               uuid.UUID  `json:"id"`
	Name             string     `json:"name"`
	NormalizedName   string     `json:"normalized_name"`
	Tier             string     `json:"tier"`         // competitive, moderate, premium
	ThreatLevel      string     `json:"threat_level"` // minimal, low, medium, high, critical
	ContractsWon     int        `json:"contracts_won"`
	TotalBids        int        `json:"total_bids"`
	TotalValueWon    float64    `json:"total_value_won"`
	AvgContractValue float64    `json:"avg_contract_value"`
	WinRate          float64    `json:"win_rate"`
	ThreatScore      int        `json:"threat_score"` // 0-100
	LastWinAt        *time.Time `json:"last_win_at"`
	LastAnalyzedAt   time.Time  `json:"last_analyzed_at"`
	CreatedAt        time.Time  `json:"created_at"`
}

// CompetitorBid is an append-only record of one bid outcome. Corrections are
// appended, never edited in place.
type CompetitorBid struct {
	ID           uuid.UUID  `json:"id"`
	CompetitorID uuid.UUID  `json:"competitor_id"`
	TenderID     uuid.UUID  `json:"tender_id"`
	BidAmount    float64    `json:"bid_amount"`
	Won          bool       `json:"won"`
	AwardAmount  float64    `json:"award_amount"`
	BidAt        *time.Time `json:"bid_at"`
	AwardedAt    *time.Time `json:"awarded_at"`
	CreatedAt    time.Time  `json:"created_at"`
}

// CompetitiveAlert is an append-only notification row. At most one open
// (unacknowledged) alert exists per (type, competitor, tender) triple.
type CompetitiveAlert struct {
	ID             uuid.UUID  `json:"id"`
	AlertType      string     `json:"alert_type"`
	CompetitorID   *uuid.UUID `json:"competitor_id"`
	TenderID       *uuid.UUID `json:"tender_id"`
	Priority       string     `json:"priority"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Actions        []string   `json:"actions"`
	Acknowledged   bool       `json:"acknowledged"`
	AcknowledgedAt *time.Time `json:"acknowledged_at"`
	CreatedAt      time.Time  `json:"created_at"`
}
