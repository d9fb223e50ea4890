package collector

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

var strictPolicy = bluemonday.StrictPolicy()

// cleanText collapses whitespace and trims the string.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// HTMLToText strips tags and scripts from portal HTML and returns readable
// text for the classifier.
func HTMLToText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return cleanText(strictPolicy.Sanitize(html))
	}
	doc.Find("script, style, noscript").Remove()
	return cleanText(strictPolicy.Sanitize(doc.Text()))
}

var moneyPattern = regexp.MustCompile(`[\d][\d,.\s]*`)

// parseMoney pulls the first numeric amount out of a cell like
// "PHP 1,500,000.00 (ABC)". Returns 0 when nothing parseable is present.
func parseMoney(s string) float64 {
	match := moneyPattern.FindString(s)
	if match == "" {
		return 0
	}
	match = strings.TrimSpace(match)
	match = strings.ReplaceAll(match, " ", "")
	match = strings.ReplaceAll(match, ",", "")
	value, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0
	}
	return value
}

var portalDateLayouts = []string{
	"02/01/2006 15:04",
	"02/01/2006",
	"2006-01-02 15:04",
	"2006-01-02",
	"02 Jan 2006 15:04",
	"02 Jan 2006",
	"January 2, 2006",
	"2 January 2006",
}

// parsePortalDate parses the date formats common across portal listing
// cells. Returns nil when the cell is empty or unparseable.
func parsePortalDate(s string) *time.Time {
	s = cleanText(s)
	if s == "" {
		return nil
	}
	for _, layout := range portalDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			utc := t.UTC()
			return &utc
		}
	}
	return nil
}
