package models

import (
	"time"

	"github.com/google/uuid"
)

// Tender is one external procurement notice. ExternalID is the stable
// identifier assigned by the issuing portal; repeated ingestion of the same
// ExternalID updates the existing row.
type Tender struct {
	ID              uuid.UUID              `json:"id"`
	ExternalID      string                 `json:"external_id"`
	Title           string                 `json:"title"`
	Description     string                 `json:"description"`
	AgencyName      string                 `json:"agency_name"`
	CategoryCode    string                 `json:"category_code"`
	EstimatedValue  float64                `json:"estimated_value"`
	Currency        string                 `json:"currency"`
	PublishedAt     *time.Time             `json:"published_at"`
	ClosingAt       *time.Time             `json:"closing_at"`
	AwardedAt       *time.Time             `json:"awarded_at"`
	AwardedSupplier string                 `json:"awarded_supplier"`
	AwardAmount     float64                `json:"award_amount"`
	SourceURL       string                 `json:"source_url"`
	SourceDomain    string                 `json:"source_domain"`
	RawPayload      map[string]interface{} `json:"raw_payload"`
	Status          string                 `json:"status"` // tracked, completed, withdrawn
	MatchConfidence float64                `json:"match_confidence"`
	MatchReason     string                 `json:"match_reason"`
	Analysis        *Analysis              `json:"analysis,omitempty"`
	FirstSeenRunID  *string                `json:"first_seen_run_id"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

// Analysis is the derived opportunity assessment, recomputed on every update
// of the underlying tender.
type Analysis struct {
	IntelligenceScore  int      `json:"intelligence_score"` // 0-100
	ServiceType        string   `json:"service_type"`
	EstimatedManpower  int      `json:"estimated_manpower"`
	EstimatedMonths    int      `json:"estimated_months"`
	WinProbability     float64  `json:"win_probability"`
	RenewalProbability float64  `json:"renewal_probability"`
	CompetitiveFactors []string `json:"competitive_factors"`
	AlertPriority      string   `json:"alert_priority"` // low, medium, high, urgent
}

// ScanRun records one orchestrator pass over the collector feed.
type ScanRun struct {
	RunID       string     `json:"run_id"`
	Status      string     `json:"status"` // running, completed, failed
	ItemsFound  int        `json:"items_found"`
	ItemsSaved  int        `json:"items_saved"`
	Errors      int        `json:"errors"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`
	Details     string     `json:"details"`
}
