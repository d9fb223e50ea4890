package lifecycle

import (
	"testing"
	"time"

	"github.com/david/tender-intel/internal/models"
)

var testNow = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

func tp(t time.Time) *time.Time { return &t }

func TestInferStage_ClosingWindowBoundaries(t *testing.T) {
	cases := []struct {
		daysToClose int
		want        Stage
	}{
		{30, StagePublished},
		{22, StagePublished},
		{21, StageClarification},
		{10, StageClarification},
		{8, StageClarification},
		{7, StageSubmission},
		{1, StageSubmission},
	}
	for _, tc := range cases {
		tender := models.Tender{ClosingAt: tp(testNow.AddDate(0, 0, tc.daysToClose))}
		if got := InferStage(tender, testNow); got != tc.want {
			t.Errorf("daysToClose=%d: expected %s, got %s", tc.daysToClose, tc.want, got)
		}
	}
}

func TestInferStage_ClosingPassedMeansEvaluation(t *testing.T) {
	tender := models.Tender{ClosingAt: tp(testNow.AddDate(0, 0, -3))}
	if got := InferStage(tender, testNow); got != StageEvaluation {
		t.Fatalf("expected evaluation, got %s", got)
	}
}

func TestInferStage_NoDatesDefaultsToPublished(t *testing.T) {
	if got := InferStage(models.Tender{}, testNow); got != StagePublished {
		t.Fatalf("expected published, got %s", got)
	}
}

func TestInferStage_AwardDateElapsedTime(t *testing.T) {
	cases := []struct {
		daysSinceAward int
		want           Stage
	}{
		{3, StageAwarded},
		{10, StageMobilization},
		{40, StageActive},
	}
	for _, tc := range cases {
		tender := models.Tender{AwardedAt: tp(testNow.AddDate(0, 0, -tc.daysSinceAward))}
		if got := InferStage(tender, testNow); got != tc.want {
			t.Errorf("daysSinceAward=%d: expected %s, got %s", tc.daysSinceAward, tc.want, got)
		}
	}
}

func TestInferStage_ContractTailStages(t *testing.T) {
	// 12-month default term: renewal notice inside the final 6 months,
	// completion after the end.
	award := testNow.AddDate(0, -8, 0)
	if got := InferStage(models.Tender{AwardedAt: tp(award)}, testNow); got != StageRenewalNotice {
		t.Fatalf("expected renewal_notice, got %s", got)
	}

	award = testNow.AddDate(0, -13, 0)
	if got := InferStage(models.Tender{AwardedAt: tp(award)}, testNow); got != StageCompletion {
		t.Fatalf("expected completion, got %s", got)
	}
}

func TestInferStage_AwardOverridesClosingDate(t *testing.T) {
	// Late data: award published while the stored closing date still looks
	// open. The award wins and lands on awarded or later.
	tender := models.Tender{
		ClosingAt: tp(testNow.AddDate(0, 0, 10)),
		AwardedAt: tp(testNow.AddDate(0, 0, -2)),
	}
	got := InferStage(tender, testNow)
	if got.Order() < StageAwarded.Order() {
		t.Fatalf("expected awarded or later, got %s", got)
	}
}

func TestProjectTimeline_ObservedClosingOverridesProjection(t *testing.T) {
	published := testNow.AddDate(0, 0, -5)
	closing := testNow.AddDate(0, 0, 9)
	tender := models.Tender{PublishedAt: tp(published), ClosingAt: tp(closing)}

	timeline := ProjectTimeline(tender, testNow)
	submission := findDate(t, timeline, DateSubmissionDeadline)
	if !submission.At.Equal(closing.UTC()) {
		t.Fatalf("expected observed closing %s, got %s", closing, submission.At)
	}
	if !submission.Observed {
		t.Fatal("expected submission deadline marked observed")
	}

	clarification := findDate(t, timeline, DateClarificationDeadline)
	if !clarification.At.Equal(published.AddDate(0, 0, clarificationAfterPublishDays)) {
		t.Fatalf("unexpected clarification deadline %s", clarification.At)
	}
	if clarification.Observed {
		t.Fatal("clarification deadline should be projected, not observed")
	}
}

func TestProjectTimeline_CoversAllDownstreamDates(t *testing.T) {
	timeline := ProjectTimeline(models.Tender{PublishedAt: tp(testNow)}, testNow)
	wanted := []string{
		DateClarificationDeadline, DateSubmissionDeadline, DateEvaluationComplete,
		DateAwardExpected, DateServiceCommencement, DateContractEnd, DateRenewalNotification,
	}
	if len(timeline) != len(wanted) {
		t.Fatalf("expected %d dates, got %d", len(wanted), len(timeline))
	}
	for _, w := range wanted {
		findDate(t, timeline, w)
	}
}

func TestProjectTimeline_RenewalWindowFromAwardAndDuration(t *testing.T) {
	award := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tender := models.Tender{
		AwardedAt: tp(award),
		Analysis:  &models.Analysis{EstimatedMonths: 12},
	}

	timeline := ProjectTimeline(tender, testNow)
	end := findDate(t, timeline, DateContractEnd)
	if !end.At.Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected contract end 2025-01-01, got %s", end.At)
	}
	notice := findDate(t, timeline, DateRenewalNotification)
	if !notice.At.Equal(time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected renewal notification 2024-07-01, got %s", notice.At)
	}
}

func TestDateSpecs_SubmissionUrgentClarificationMedium(t *testing.T) {
	timeline := ProjectTimeline(models.Tender{}, testNow)
	submission := findDate(t, timeline, DateSubmissionDeadline)
	if submission.Priority != "urgent" || submission.DaysNotice < 7 {
		t.Fatalf("expected urgent submission deadline with long lead, got %+v", submission)
	}
	clarification := findDate(t, timeline, DateClarificationDeadline)
	if clarification.Priority != "medium" || clarification.DaysNotice >= submission.DaysNotice {
		t.Fatalf("expected medium clarification deadline with shorter lead, got %+v", clarification)
	}
}

func findDate(t *testing.T, timeline []ProjectedDate, dateType string) ProjectedDate {
	t.Helper()
	for _, pd := range timeline {
		if pd.Type == dateType {
			return pd
		}
	}
	t.Fatalf("date type %s missing from timeline", dateType)
	return ProjectedDate{}
}
