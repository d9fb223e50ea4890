package analyze

import (
	"reflect"
	"testing"

	"github.com/david/tender-intel/internal/models"
)

func TestAnalyze_AdministrativeManpowerTender(t *testing.T) {
	tender := models.Tender{
		Title: "Provision of 30 administrative support personnel for a 24-month contract, urgent requirement",
	}

	a := Analyze(tender)

	if a.ServiceType != "administrative" {
		t.Fatalf("expected administrative, got %s", a.ServiceType)
	}
	if a.EstimatedManpower != 30 {
		t.Fatalf("expected manpower 30, got %d", a.EstimatedManpower)
	}
	if a.EstimatedMonths != 24 {
		t.Fatalf("expected 24 months, got %d", a.EstimatedMonths)
	}
	// admin base + manpower found + large manpower + duration found + long
	// duration + urgent indicator
	want := pointsAdministrative + pointsManpowerFound + pointsLargeManpower +
		pointsDurationFound + pointsLongDuration + pointsPerValueIndicator
	if a.IntelligenceScore != want {
		t.Fatalf("expected score %d, got %d", want, a.IntelligenceScore)
	}
	if a.AlertPriority != "high" && a.AlertPriority != "urgent" {
		t.Fatalf("expected high or urgent priority, got %s", a.AlertPriority)
	}
}

func TestAnalyze_YearsNormalizeToMonths(t *testing.T) {
	a := Analyze(models.Tender{Title: "Security guard services for 2 years"})
	if a.EstimatedMonths != 24 {
		t.Fatalf("expected 24 months, got %d", a.EstimatedMonths)
	}
	if a.ServiceType != "security_support" {
		t.Fatalf("expected security_support, got %s", a.ServiceType)
	}
}

func TestAnalyze_LargestManpowerWins(t *testing.T) {
	a := Analyze(models.Tender{
		Description: "5 supervisors and 120 data entry operators for digitization of records",
	})
	if a.EstimatedManpower != 120 {
		t.Fatalf("expected manpower 120, got %d", a.EstimatedManpower)
	}
	if a.ServiceType != "data_entry" {
		t.Fatalf("expected data_entry, got %s", a.ServiceType)
	}
}

func TestAnalyze_HighValueAgencyForcesHighPriority(t *testing.T) {
	a := Analyze(models.Tender{
		Title:      "Manpower services",
		AgencyName: "Ministry of Health - Central Procurement Unit",
	})
	if a.AlertPriority != "high" && a.AlertPriority != "urgent" {
		t.Fatalf("expected priority forced to high, got %s", a.AlertPriority)
	}
	if a.IntelligenceScore < pointsHighValueAgency {
		t.Fatalf("expected agency bonus applied, got score %d", a.IntelligenceScore)
	}
}

func TestAnalyze_RenewalSignalsCapProbability(t *testing.T) {
	a := Analyze(models.Tender{
		Description: "Contract is renewable with an option to extend; renewal and extension expected; recurring requirement, extendable",
	})
	if a.RenewalProbability != 1.0 {
		t.Fatalf("expected renewal probability capped at 1.0, got %f", a.RenewalProbability)
	}
}

func TestAnalyze_CompetitiveFactorsLowerWinProbability(t *testing.T) {
	plain := Analyze(models.Tender{Title: "Administrative support personnel"})
	strict := Analyze(models.Tender{
		Title:       "Administrative support personnel",
		Description: "Bidders must hold ISO certification, post a performance bond and demonstrate minimum turnover",
	})
	if len(strict.CompetitiveFactors) != 3 {
		t.Fatalf("expected 3 competitive factors, got %v", strict.CompetitiveFactors)
	}
	if strict.WinProbability >= plain.WinProbability {
		t.Fatalf("expected lower win probability with factors: %f vs %f",
			strict.WinProbability, plain.WinProbability)
	}
}

func TestAnalyze_ScoreClampedAt100(t *testing.T) {
	a := Analyze(models.Tender{
		Title: "Urgent 24/7 certified immediate nationwide multi-site long-term renewable recurring extendable " +
			"provision of 500 data entry operators and administrative staff and security guard services and event support " +
			"ushers for 36 months with option to extend, renewal expected",
		AgencyName: "Ministry of Education",
	})
	if a.IntelligenceScore != 100 {
		t.Fatalf("expected clamp at 100, got %d", a.IntelligenceScore)
	}
	if a.AlertPriority != "urgent" {
		t.Fatalf("expected urgent priority, got %s", a.AlertPriority)
	}
}

func TestAnalyze_EmptyInputIsZeroScore(t *testing.T) {
	a := Analyze(models.Tender{})
	if a.IntelligenceScore != 0 || a.AlertPriority != "low" {
		t.Fatalf("expected zero-score low-priority analysis, got %+v", a)
	}
}

func TestAnalyze_Deterministic(t *testing.T) {
	tender := models.Tender{
		Title:       "Outsourced manpower: 40 staff for 18 months, renewable",
		Description: "ISO certification required. Urgent deployment.",
		AgencyName:  "National Statistics Office",
	}
	first := Analyze(tender)
	for i := 0; i < 25; i++ {
		if got := Analyze(tender); !reflect.DeepEqual(got, first) {
			t.Fatalf("analysis not deterministic: %+v vs %+v", got, first)
		}
	}
}
