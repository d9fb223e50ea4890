package lifecycle

// Stage is a tender's position in its contractual lifecycle. Stages only move
// forward; the renewal loop is tracked through RenewalOpportunity rows rather
// than by rewinding a state.
type Stage string

const (
	StagePublished     Stage = "published"
	StageClarification Stage = "clarification"
	StageSubmission    Stage = "submission"
	StageClosed        Stage = "closed"
	StageEvaluation    Stage = "evaluation"
	StageAwarded       Stage = "awarded"
	StageMobilization  Stage = "mobilization"
	StageActive        Stage = "active"
	StageRenewalNotice Stage = "renewal_notice"
	StageCompletion    Stage = "completion"
)

var stageOrder = map[Stage]int{
	StagePublished:     0,
	StageClarification: 1,
	StageSubmission:    2,
	StageClosed:        3,
	StageEvaluation:    4,
	StageAwarded:       5,
	StageMobilization:  6,
	StageActive:        7,
	StageRenewalNotice: 8,
	StageCompletion:    9,
}

var stageSequence = []Stage{
	StagePublished, StageClarification, StageSubmission, StageClosed,
	StageEvaluation, StageAwarded, StageMobilization, StageActive,
	StageRenewalNotice, StageCompletion,
}

// Order returns the stage's position in the forward sequence, or -1 for an
// unknown stage.
func (s Stage) Order() int {
	order, ok := stageOrder[s]
	if !ok {
		return -1
	}
	return order
}

// Next returns the expected following stage, or "" at the end of the
// lifecycle.
func (s Stage) Next() Stage {
	order := s.Order()
	if order < 0 || order+1 >= len(stageSequence) {
		return ""
	}
	return stageSequence[order+1]
}

// Typical stage-to-stage durations, used to project critical dates when the
// source has not yet published the real ones. Observed dates always override
// these projections.
const (
	clarificationAfterPublishDays = 7
	submissionAfterPublishDays    = 21
	evaluationAfterCloseDays      = 21
	awardAfterCloseDays           = 30
	awardedGraceDays              = 7
	mobilizationAfterAwardDays    = 30
	defaultContractMonths         = 12
	renewalNoticeMonthsBeforeEnd  = 6
)

// Stage-inference thresholds on days-to-close when no award exists yet.
const (
	submissionWindowDays    = 7
	clarificationWindowDays = 21
)
