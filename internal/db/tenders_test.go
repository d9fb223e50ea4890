package db

import (
	"strings"
	"testing"
)

func TestBuildTenderWhere_DefaultsToTracked(t *testing.T) {
	where, args := buildTenderWhere(ListParams{})
	if !strings.Contains(where, "status = $1") {
		t.Fatalf("expected default status filter, got %s", where)
	}
	if len(args) != 1 || args[0] != "tracked" {
		t.Fatalf("expected tracked arg, got %v", args)
	}
}

func TestBuildTenderWhere_AllSkipsStatusFilter(t *testing.T) {
	where, args := buildTenderWhere(ListParams{Status: "all"})
	if strings.Contains(where, "status =") {
		t.Fatalf("status filter should be absent for all, got %s", where)
	}
	if len(args) != 0 {
		t.Fatalf("expected no args, got %v", args)
	}
}

func TestBuildTenderWhere_StageFilterJoinsLifecycle(t *testing.T) {
	where, args := buildTenderWhere(ListParams{Status: "all", Stage: "submission"})
	if !strings.Contains(where, "SELECT tender_id FROM lifecycle_states WHERE stage = $1") {
		t.Fatalf("expected stage subquery, got %s", where)
	}
	if len(args) != 1 || args[0] != "submission" {
		t.Fatalf("expected submission arg, got %v", args)
	}
}

func TestBuildTenderWhere_PlaceholdersStayOrdered(t *testing.T) {
	where, args := buildTenderWhere(ListParams{
		Query:       "security",
		Source:      "tenders.example.gov",
		MinScore:    60,
		MinValue:    100_000,
		AgencyName:  []string{"Ministry of Health"},
		ClosingDays: 14,
		AwardedOnly: true,
	})

	for i := 1; i <= len(args); i++ {
		if !strings.Contains(where, strings.Replace("$N", "N", string(rune('0'+i)), 1)) {
			t.Fatalf("missing placeholder $%d in %s", i, where)
		}
	}
	if !strings.Contains(where, "awarded_at IS NOT NULL") {
		t.Fatalf("expected awarded filter, got %s", where)
	}
	if !strings.Contains(where, "closing_at <= NOW() + ($7 * INTERVAL '1 day')") {
		t.Fatalf("expected closing window filter, got %s", where)
	}
}

func TestSanitizeStringSlice_DropsBlanks(t *testing.T) {
	got := sanitizeStringSlice([]string{" a ", "", "  ", "b"})
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("unexpected result %v", got)
	}
}
