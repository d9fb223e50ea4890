package collector

import (
	"testing"
	"time"
)

func TestClosingDateCandidates_NeedsDeadlineContext(t *testing.T) {
	text := `Invitation to Bid. Published on 01/02/2026 by the agency.
	Deadline for submission of bids: 15/04/2026 at the procurement office.
	Bid opening follows on 16 April 2026.`

	got := closingDateCandidates(text)
	if len(got) != 2 {
		t.Fatalf("expected 2 contextual dates, got %d: %v", len(got), got)
	}
	if !got[0].Equal(time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected earliest deadline 2026-04-15, got %s", got[0])
	}
	// The publication date has no deadline wording nearby and is skipped.
	for _, d := range got {
		if d.Month() == time.February {
			t.Fatalf("publication date leaked into candidates: %s", d)
		}
	}
}

func TestClosingDateCandidates_EmptyWithoutDates(t *testing.T) {
	if got := closingDateCandidates("no schedule information yet"); len(got) != 0 {
		t.Fatalf("expected no candidates, got %v", got)
	}
}

func TestParsePDFDate_Formats(t *testing.T) {
	cases := []string{"15/04/2026", "2026-04-15", "15 April 2026", "April 15, 2026"}
	want := time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC)
	for _, in := range cases {
		got, ok := parsePDFDate(in)
		if !ok || !got.Equal(want) {
			t.Errorf("parsePDFDate(%q) = %v ok=%v", in, got, ok)
		}
	}
	if _, ok := parsePDFDate("soon"); ok {
		t.Error("expected parse failure for junk token")
	}
}
