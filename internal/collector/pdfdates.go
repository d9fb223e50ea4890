package collector

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"
	"time"

	rpdf "rsc.io/pdf"
)

// Some portals only publish the submission deadline inside the tender
// dossier PDF. ExtractClosingDates pulls date candidates out of the
// document's text near deadline wording.

var deadlineLabelHints = []string{
	"deadline", "closing date", "submission", "last day", "closes",
	"bid opening", "due date",
}

var pdfDateRegexes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b\d{1,2}/\d{1,2}/20\d{2}\b`),
	regexp.MustCompile(`(?i)\b20\d{2}-\d{2}-\d{2}\b`),
	regexp.MustCompile(`(?i)\b\d{1,2}\s+(January|February|March|April|May|June|July|August|September|October|November|December|Jan|Feb|Mar|Apr|Jun|Jul|Aug|Sep|Oct|Nov|Dec)\s+20\d{2}\b`),
	regexp.MustCompile(`(?i)\b(January|February|March|April|May|June|July|August|September|October|November|December|Jan|Feb|Mar|Apr|Jun|Jul|Aug|Sep|Oct|Nov|Dec)\s+\d{1,2},?\s+20\d{2}\b`),
}

var pdfDateLayouts = []string{
	"2/1/2006", "02/01/2006", "2006-01-02",
	"2 January 2006", "2 Jan 2006",
	"January 2, 2006", "Jan 2, 2006",
	"January 2 2006", "Jan 2 2006",
}

func extractPDFText(content []byte) (text string, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("pdf parser panic: %v", recovered)
			text = ""
		}
	}()

	reader, err := rpdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", err
	}

	var builder strings.Builder
	for pageIndex := 1; pageIndex <= reader.NumPage(); pageIndex++ {
		page := reader.Page(pageIndex)
		if page.V.IsNull() {
			continue
		}
		for _, fragment := range page.Content().Text {
			builder.WriteString(fragment.S)
			builder.WriteString(" ")
		}
		builder.WriteString("\n")
	}

	return builder.String(), nil
}

// closingDateCandidates returns dates that appear near deadline wording,
// earliest first. Dates without such context are ignored to avoid picking up
// publication or award dates.
func closingDateCandidates(text string) []time.Time {
	lower := strings.ToLower(text)
	seen := make(map[time.Time]bool)
	var candidates []time.Time

	for _, expr := range pdfDateRegexes {
		for _, loc := range expr.FindAllStringIndex(text, -1) {
			start := loc[0] - 120
			if start < 0 {
				start = 0
			}
			window := lower[start:loc[0]]
			near := false
			for _, hint := range deadlineLabelHints {
				if strings.Contains(window, hint) {
					near = true
					break
				}
			}
			if !near {
				continue
			}

			token := strings.TrimSpace(text[loc[0]:loc[1]])
			parsed, ok := parsePDFDate(token)
			if !ok || seen[parsed] {
				continue
			}
			seen[parsed] = true
			candidates = append(candidates, parsed)
		}
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Before(candidates[j]) })
	return candidates
}

func parsePDFDate(token string) (time.Time, bool) {
	token = cleanText(token)
	for _, layout := range pdfDateLayouts {
		if t, err := time.Parse(layout, token); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// ExtractClosingDate downloads a dossier PDF and returns the earliest
// deadline-labelled date found in it, or nil when the document yields none.
func ExtractClosingDate(ctx context.Context, fetcher Fetcher, pdfURL string) (*time.Time, error) {
	doc, err := fetcher.Fetch(ctx, pdfURL)
	if err != nil {
		return nil, err
	}
	defer doc.Body.Close()

	content, err := io.ReadAll(doc.Body)
	if err != nil {
		return nil, fmt.Errorf("pdf read failed: %w", err)
	}

	text, err := extractPDFText(content)
	if err != nil {
		return nil, fmt.Errorf("pdf text extraction failed: %w", err)
	}

	candidates := closingDateCandidates(text)
	if len(candidates) == 0 {
		return nil, nil
	}
	return &candidates[0], nil
}
