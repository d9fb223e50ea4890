package lifecycle

import (
	"time"

	"github.com/david/tender-intel/internal/models"
)

// Critical-date types, each with a fixed priority and lead time.
const (
	DateClarificationDeadline = "clarification_deadline"
	DateSubmissionDeadline    = "submission_deadline"
	DateEvaluationComplete    = "evaluation_complete"
	DateAwardExpected         = "award_expected"
	DateServiceCommencement   = "service_commencement"
	DateContractEnd           = "contract_end"
	DateRenewalNotification   = "renewal_notification"
)

// ProjectedDate is one entry of a tender's projected timeline.
type ProjectedDate struct {
	Type        string
	At          time.Time
	Observed    bool // true when the source published the real date
	Priority    string
	DaysNotice  int
	Description string
	Impact      string
}

type dateSpec struct {
	Priority    string
	DaysNotice  int
	Description string
	Impact      string
}

// Submission deadlines are urgent with long lead time; clarification
// deadlines are medium with short lead time.
var dateSpecs = map[string]dateSpec{
	DateClarificationDeadline: {"medium", 3, "Last day to submit clarification questions", "Unclear requirements raise bid risk"},
	DateSubmissionDeadline:    {"urgent", 7, "Bid submission deadline", "Missing this date forfeits the opportunity"},
	DateEvaluationComplete:    {"low", 0, "Expected end of bid evaluation", "Award announcement follows shortly"},
	DateAwardExpected:         {"medium", 7, "Expected award announcement", "Competitor award means intelligence update"},
	DateServiceCommencement:   {"high", 14, "Expected service commencement", "Mobilization must be complete"},
	DateContractEnd:           {"high", 30, "Contract end date", "Successor tender expected before this date"},
	DateRenewalNotification:   {"urgent", 30, "Renewal decision window opens", "Position for the successor tender now"},
}

// InferStage derives the current lifecycle stage from whatever dates the
// notice carries. Late-arriving data (an award date on a freshly seen tender)
// lands directly on the implied stage instead of stepping through
// intermediates.
func InferStage(t models.Tender, now time.Time) Stage {
	now = now.UTC()

	if t.AwardedAt != nil {
		contractEnd := contractEndFor(t)
		switch {
		case !now.Before(contractEnd):
			return StageCompletion
		case !now.Before(contractEnd.AddDate(0, -renewalNoticeMonthsBeforeEnd, 0)):
			return StageRenewalNotice
		case now.After(t.AwardedAt.AddDate(0, 0, mobilizationAfterAwardDays)):
			return StageActive
		case now.After(t.AwardedAt.AddDate(0, 0, awardedGraceDays)):
			return StageMobilization
		default:
			return StageAwarded
		}
	}

	if t.ClosingAt != nil {
		if !t.ClosingAt.After(now) {
			return StageEvaluation
		}
		daysToClose := int(t.ClosingAt.Sub(now).Hours() / 24)
		switch {
		case daysToClose <= submissionWindowDays:
			return StageSubmission
		case daysToClose <= clarificationWindowDays:
			return StageClarification
		default:
			return StagePublished
		}
	}

	return StagePublished
}

// ProjectTimeline builds the full downstream critical-date list for a tender.
// Anchors on the publication date (or now when absent); every observed date
// overrides its projected counterpart and is marked as such. Dates for stages
// already bypassed by a jump are still produced so the record stays complete.
func ProjectTimeline(t models.Tender, now time.Time) []ProjectedDate {
	now = now.UTC()

	published := now
	if t.PublishedAt != nil {
		published = t.PublishedAt.UTC()
	}

	closing := published.AddDate(0, 0, submissionAfterPublishDays)
	closingObserved := false
	if t.ClosingAt != nil {
		closing = t.ClosingAt.UTC()
		closingObserved = true
	}

	award := closing.AddDate(0, 0, awardAfterCloseDays)
	awardObserved := false
	if t.AwardedAt != nil {
		award = t.AwardedAt.UTC()
		awardObserved = true
	}

	commencement := award.AddDate(0, 0, mobilizationAfterAwardDays)
	// Contract term runs from award, matching how renewal opportunities are
	// dated.
	contractEnd := award.AddDate(0, contractMonthsFor(t), 0)
	renewalNotice := contractEnd.AddDate(0, -renewalNoticeMonthsBeforeEnd, 0)

	return []ProjectedDate{
		makeDate(DateClarificationDeadline, published.AddDate(0, 0, clarificationAfterPublishDays), false),
		makeDate(DateSubmissionDeadline, closing, closingObserved),
		makeDate(DateEvaluationComplete, closing.AddDate(0, 0, evaluationAfterCloseDays), false),
		makeDate(DateAwardExpected, award, awardObserved),
		makeDate(DateServiceCommencement, commencement, false),
		makeDate(DateContractEnd, contractEnd, false),
		makeDate(DateRenewalNotification, renewalNotice, false),
	}
}

func makeDate(dateType string, at time.Time, observed bool) ProjectedDate {
	spec := dateSpecs[dateType]
	return ProjectedDate{
		Type:        dateType,
		At:          at,
		Observed:    observed,
		Priority:    spec.Priority,
		DaysNotice:  spec.DaysNotice,
		Description: spec.Description,
		Impact:      spec.Impact,
	}
}

func contractMonthsFor(t models.Tender) int {
	if t.Analysis != nil && t.Analysis.EstimatedMonths > 0 {
		return t.Analysis.EstimatedMonths
	}
	return defaultContractMonths
}

// contractEndFor computes the contract end from the award date plus the
// stated (or default) duration. The renewal window hangs off this date.
func contractEndFor(t models.Tender) time.Time {
	months := contractMonthsFor(t)
	return t.AwardedAt.UTC().AddDate(0, months, 0)
}
