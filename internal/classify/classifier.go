package classify

import (
	"regexp"
	"sort"
	"strings"
)

// Result is the outcome of classifying one tender text. It is ephemeral and
// never persisted as-is; Matched/Confidence/Reason are copied onto the tender.
type Result struct {
	Matched         bool
	Confidence      float64
	Reason          string // code_match, keyword_match, pattern_match, no_match
	MatchedKeywords []string
}

const (
	ReasonCodeMatch    = "code_match"
	ReasonKeywordMatch = "keyword_match"
	ReasonPatternMatch = "pattern_match"
	ReasonNoMatch      = "no_match"
)

// Confidence is fixed per tier: an explicit category code is authoritative,
// keyword density scales with distinct hits, phrase patterns sit below both.
const (
	codeMatchConfidence    = 1.0
	patternMatchConfidence = 0.8
	keywordMatchDivisor    = 5.0
	minKeywordMatches      = 2
)

// targetCategoryCodes are the procurement classification codes for recurring
// outsourced-manpower service contracts. Matched as case-insensitive
// substrings of the notice's category code field.
var targetCategoryCodes = []string{
	"79620", // temporary-personnel supply services
	"79610", // placement services of personnel
	"98513", // manpower services for households
	"98514", // domestic services
}

var targetKeywords = []string{
	"manpower",
	"outsourced",
	"outsourcing",
	"staffing",
	"temporary staff",
	"contract staff",
	"personnel services",
	"labour supply",
	"labor supply",
	"support personnel",
	"service provider",
	"deployment of personnel",
}

var phrasePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)manpower\s+(?:\w+\s+){0,3}supply`),
	regexp.MustCompile(`(?i)supply\s+of\s+(?:\w+\s+){0,3}(?:manpower|personnel|labou?r)`),
	regexp.MustCompile(`(?i)provision\s+of\s+(?:\w+\s+){0,4}personnel`),
	regexp.MustCompile(`(?i)temporary\s+(?:\w+\s+){0,2}staff`),
	regexp.MustCompile(`(?i)hiring\s+of\s+(?:\w+\s+){0,3}services`),
}

// Classify decides whether a notice belongs to the target category. Pure and
// deterministic: the same inputs always produce the same result regardless of
// call order, so batch reprocessing is reproducible.
func Classify(title, description, categoryCode string) Result {
	text := strings.ToLower(title + "\n" + description)

	if code := strings.ToLower(strings.TrimSpace(categoryCode)); code != "" {
		for _, target := range targetCategoryCodes {
			if strings.Contains(code, target) {
				return Result{Matched: true, Confidence: codeMatchConfidence, Reason: ReasonCodeMatch}
			}
		}
	}

	var hits []string
	for _, kw := range targetKeywords {
		if strings.Contains(text, kw) {
			hits = append(hits, kw)
		}
	}
	if len(hits) >= minKeywordMatches {
		sort.Strings(hits)
		confidence := float64(len(hits)) / keywordMatchDivisor
		if confidence > 1.0 {
			confidence = 1.0
		}
		return Result{
			Matched:         true,
			Confidence:      confidence,
			Reason:          ReasonKeywordMatch,
			MatchedKeywords: hits,
		}
	}

	for _, pattern := range phrasePatterns {
		if pattern.MatchString(text) {
			return Result{Matched: true, Confidence: patternMatchConfidence, Reason: ReasonPatternMatch}
		}
	}

	return Result{Reason: ReasonNoMatch}
}
