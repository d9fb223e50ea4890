package models

import (
	"time"

	"github.com/google/uuid"
)

// LifecycleState tracks where a tender sits in its multi-year contractual
// lifecycle. Exactly one active state exists per tender.
type LifecycleState struct {
	ID                uuid.UUID  `json:"id"`
	TenderID          uuid.UUID  `json:"tender_id"`
	Stage             string     `json:"stage"`
	StageEnteredAt    time.Time  `json:"stage_entered_at"`
	ExpectedNextStage string     `json:"expected_next_stage"`
	ExpectedNextAt    *time.Time `json:"expected_next_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// CriticalDate is one projected or observed date significant to a tender's
// progress. AlertSent flips to true at most once and is never reset.
type CriticalDate struct {
	ID          uuid.UUID  `json:"id"`
	StateID     uuid.UUID  `json:"state_id"`
	TenderID    uuid.UUID  `json:"tender_id"`
	DateType    string     `json:"date_type"`
	ScheduledAt time.Time  `json:"scheduled_at"`
	ActualAt    *time.Time `json:"actual_at"`
	AlertSent   bool       `json:"alert_sent"`
	Priority    string     `json:"priority"`
	DaysNotice  int        `json:"days_notice"`
	Description string     `json:"description"`
	Impact      string     `json:"impact"`
}

// RenewalOpportunity is created once when a tender's lifecycle first reaches
// the active-service stage.
type RenewalOpportunity struct {
	ID                    uuid.UUID  `json:"id"`
	TenderID              uuid.UUID  `json:"tender_id"`
	ContractStartAt       time.Time  `json:"contract_start_at"`
	ContractEndAt         time.Time  `json:"contract_end_at"`
	IncumbentSupplier     string     `json:"incumbent_supplier"`
	RenewalProbability    float64    `json:"renewal_probability"`
	RenewalNotificationAt time.Time  `json:"renewal_notification_at"`
	RenewalTenderAt       *time.Time `json:"renewal_tender_at"`
	Status                string     `json:"status"` // monitoring, notified, tender_live, decided
	CreatedAt             time.Time  `json:"created_at"`
}
