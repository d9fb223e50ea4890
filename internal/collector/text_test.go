package collector

import (
	"testing"
	"time"
)

func TestParseMoney(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"PHP 1,500,000.00", 1500000},
		{"1 200 000", 1200000},
		{"EUR 850000", 850000},
		{"ABC: 2,400,000.50 (approved)", 2400000.50},
		{"to be announced", 0},
		{"", 0},
	}
	for _, tc := range cases {
		if got := parseMoney(tc.in); got != tc.want {
			t.Errorf("parseMoney(%q) = %f, want %f", tc.in, got, tc.want)
		}
	}
}

func TestParsePortalDate(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
	}{
		{"15/04/2026 10:00", time.Date(2026, 4, 15, 10, 0, 0, 0, time.UTC)},
		{"2026-04-15", time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC)},
		{"15 Apr 2026", time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC)},
		{"April 15, 2026", time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		got := parsePortalDate(tc.in)
		if got == nil || !got.Equal(tc.want) {
			t.Errorf("parsePortalDate(%q) = %v, want %s", tc.in, got, tc.want)
		}
	}

	if got := parsePortalDate("when ready"); got != nil {
		t.Errorf("expected nil for junk input, got %v", got)
	}
	if got := parsePortalDate(""); got != nil {
		t.Errorf("expected nil for empty input, got %v", got)
	}
}

func TestHTMLToText_StripsMarkupAndScripts(t *testing.T) {
	html := `<div><script>alert(1)</script><h1>Provision of  security</h1><p>guards &amp; staff</p></div>`
	got := HTMLToText(html)
	want := "Provision of security guards &amp; staff"
	if got != want {
		t.Fatalf("HTMLToText = %q, want %q", got, want)
	}
}

func TestExternalIDFromURL(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"https://portal.example.gov/notices/view?id=ABC-123", "ABC-123"},
		{"https://portal.example.gov/notices/2026/NT-4411", "NT-4411"},
		{"https://portal.example.gov/notices/NT-4411/", "NT-4411"},
		{"https://portal.example.gov/", ""},
	}
	for _, tc := range cases {
		if got := externalIDFromURL(tc.in); got != tc.want {
			t.Errorf("externalIDFromURL(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
