package collector

import (
	"context"
	"io"
	"time"
)

// RawTender is one untrusted notice as a source publishes it, before
// classification. ExternalID must be stable across scans of the same portal.
type RawTender struct {
	ExternalID      string
	SourceDomain    string
	Title           string
	Description     string
	AgencyName      string
	CategoryCode    string
	EstimatedValue  float64
	Currency        string
	PublishedAt     *time.Time
	ClosingAt       *time.Time
	AwardedAt       *time.Time
	AwardedSupplier string
	AwardAmount     float64
	SourceURL       string
	DocumentURL     string // dossier attachment, used to recover a missing deadline
	Payload         map[string]interface{}
}

// Collector pulls one batch of notices from a configured source.
type Collector interface {
	Source() SourceConfig
	FetchBatch(ctx context.Context) ([]RawTender, error)
}

// FetchedDocument is the raw result of a fetch operation.
type FetchedDocument struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        io.ReadCloser
	FetchedAt   time.Time
	Headers     map[string][]string
}

// Fetcher retrieves raw content from a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*FetchedDocument, error)
}
