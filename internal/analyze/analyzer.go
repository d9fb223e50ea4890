package analyze

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/david/tender-intel/internal/models"
)

// Scoring weights and thresholds. Everything that shapes a score lives here
// so behavior is auditable and testable in isolation.
const (
	pointsDataEntry       = 20
	pointsAdministrative  = 20
	pointsEventSupport    = 15
	pointsSecuritySupport = 15

	pointsManpowerFound  = 10
	pointsLargeManpower  = 10
	largeManpowerMin     = 25

	pointsDurationFound = 10
	pointsLongDuration  = 10
	longDurationMonths  = 12

	pointsPerValueIndicator = 5
	pointsRenewalSignal     = 8
	pointsHighValueAgency   = 25

	scoreMax = 100

	priorityUrgentMin = 80
	priorityHighMin   = 60
	priorityMediumMin = 40

	winProbabilityBase   = 0.30
	winProbabilityMin    = 0.05
	winProbabilityMax    = 0.95
	winProbPerFactorDrop = 0.02

	renewalProbabilityBase = 0.30
	renewalProbPerSignal   = 0.15
)

// Service sub-type detection. Order matters: the first detected type becomes
// the tag, though every detected type contributes its points.
var serviceTypes = []struct {
	Name     string
	Points   int
	WinShift float64
	Keywords []string
}{
	{"data_entry", pointsDataEntry, 0.10, []string{"data entry", "data processing", "encoding", "digitization", "digitisation"}},
	{"administrative", pointsAdministrative, 0.05, []string{"administrative", "admin support", "clerical", "office support", "records management", "secretariat"}},
	{"event_support", pointsEventSupport, 0.0, []string{"event support", "ushers", "registration desk", "exhibition", "conference support"}},
	{"security_support", pointsSecuritySupport, -0.05, []string{"security guard", "security personnel", "surveillance", "guarding services"}},
}

var valueIndicators = []string{
	"urgent", "24/7", "certified", "immediate", "nationwide", "multi-site", "long-term",
}

var renewalSignals = []string{
	"renewable", "renewal", "extension", "extendable", "option to extend", "recurring",
}

var competitiveFactorSignals = []string{
	"iso certification", "minimum turnover", "performance bond", "bank guarantee",
	"prior experience", "site visit mandatory", "financial capacity",
}

// highValueAgencies are issuing bodies whose contracts are strategically
// significant regardless of headline value.
var highValueAgencies = []string{
	"ministry of health",
	"ministry of education",
	"electoral commission",
	"national statistics",
	"revenue authority",
	"ministry of interior",
}

var manpowerPattern = regexp.MustCompile(`(?i)\b(\d{1,5})\s+(?:[a-z\-]+\s+){0,4}(?:personnel|staff|workers|guards|operators|manpower|encoders)\b`)

var durationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(\d{1,3})\s*[- ]?\s*(month|months)\b`),
	regexp.MustCompile(`(?i)\b(\d{1,2})\s*[- ]?\s*(year|years|yr|yrs)\b`),
}

// Analyze scores a classified tender for business opportunity. Pure and
// deterministic; malformed text yields a zero-score analysis, never an error.
func Analyze(t models.Tender) models.Analysis {
	text := strings.ToLower(t.Title + "\n" + t.Description)

	analysis := models.Analysis{
		WinProbability:     winProbabilityBase,
		RenewalProbability: renewalProbabilityBase,
		AlertPriority:      "low",
	}

	score := 0
	for _, st := range serviceTypes {
		for _, kw := range st.Keywords {
			if strings.Contains(text, kw) {
				score += st.Points
				analysis.WinProbability += st.WinShift
				if analysis.ServiceType == "" {
					analysis.ServiceType = st.Name
				}
				break
			}
		}
	}

	if headcount := extractManpower(text); headcount > 0 {
		analysis.EstimatedManpower = headcount
		score += pointsManpowerFound
		if headcount >= largeManpowerMin {
			score += pointsLargeManpower
		}
	}

	if months := extractDurationMonths(text); months > 0 {
		analysis.EstimatedMonths = months
		score += pointsDurationFound
		if months >= longDurationMonths {
			score += pointsLongDuration
		}
	}

	for _, indicator := range valueIndicators {
		if strings.Contains(text, indicator) {
			score += pointsPerValueIndicator
		}
	}

	for _, signal := range renewalSignals {
		if strings.Contains(text, signal) {
			score += pointsRenewalSignal
			analysis.RenewalProbability += renewalProbPerSignal
		}
	}
	if analysis.RenewalProbability > 1.0 {
		analysis.RenewalProbability = 1.0
	}

	for _, factor := range competitiveFactorSignals {
		if strings.Contains(text, factor) {
			analysis.CompetitiveFactors = append(analysis.CompetitiveFactors, factor)
		}
	}
	analysis.WinProbability -= float64(len(analysis.CompetitiveFactors)) * winProbPerFactorDrop

	agencyForced := false
	agency := strings.ToLower(t.AgencyName)
	for _, hv := range highValueAgencies {
		if strings.Contains(agency, hv) {
			score += pointsHighValueAgency
			agencyForced = true
			break
		}
	}

	if score > scoreMax {
		score = scoreMax
	}
	analysis.IntelligenceScore = score
	analysis.AlertPriority = priorityForScore(score)
	if agencyForced && analysis.AlertPriority != "urgent" {
		analysis.AlertPriority = "high"
	}

	if analysis.WinProbability < winProbabilityMin {
		analysis.WinProbability = winProbabilityMin
	}
	if analysis.WinProbability > winProbabilityMax {
		analysis.WinProbability = winProbabilityMax
	}

	return analysis
}

func priorityForScore(score int) string {
	switch {
	case score >= priorityUrgentMin:
		return "urgent"
	case score >= priorityHighMin:
		return "high"
	case score >= priorityMediumMin:
		return "medium"
	default:
		return "low"
	}
}

// extractManpower scans for "<N> ... personnel" style phrases; the largest
// number wins so "5 supervisors and 30 workers" reads as 30.
func extractManpower(text string) int {
	best := 0
	for _, match := range manpowerPattern.FindAllStringSubmatch(text, -1) {
		n, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}
		if n > best {
			best = n
		}
	}
	return best
}

// extractDurationMonths scans for "<N> months" / "<N> years" phrases; years
// normalize to months and the largest value wins.
func extractDurationMonths(text string) int {
	best := 0
	for i, pattern := range durationPatterns {
		for _, match := range pattern.FindAllStringSubmatch(text, -1) {
			n, err := strconv.Atoi(match[1])
			if err != nil {
				continue
			}
			if i == 1 {
				n *= 12
			}
			if n > best {
				best = n
			}
		}
	}
	return best
}
