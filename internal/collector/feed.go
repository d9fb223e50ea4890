package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"
)

// FeedCollector reads a structured JSON notice feed (TED-style search API).
type FeedCollector struct {
	config  SourceConfig
	fetcher Fetcher
}

func NewFeedCollector(config SourceConfig, fetcher Fetcher) (Collector, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("source %s has no base_url", config.ID)
	}
	return &FeedCollector{config: config, fetcher: fetcher}, nil
}

func (f *FeedCollector) Source() SourceConfig { return f.config }

type feedEnvelope struct {
	Notices []feedNotice `json:"notices"`
}

type feedNotice struct {
	ID             string  `json:"id"`
	Title          string  `json:"title"`
	Description    string  `json:"description"`
	BuyerName      string  `json:"buyer_name"`
	CPVCode        string  `json:"cpv_code"`
	EstimatedValue float64 `json:"estimated_value"`
	Currency       string  `json:"currency"`
	PublishedAt    string  `json:"published_at"`
	Deadline       string  `json:"deadline"`
	AwardDate      string  `json:"award_date"`
	WinnerName     string  `json:"winner_name"`
	AwardValue     float64 `json:"award_value"`
	NoticeURL      string  `json:"notice_url"`
}

func (f *FeedCollector) FetchBatch(ctx context.Context) ([]RawTender, error) {
	fetchURL := f.config.BaseURL
	if f.config.APIKey != "" {
		u, err := url.Parse(fetchURL)
		if err != nil {
			return nil, fmt.Errorf("invalid base url: %w", err)
		}
		q := u.Query()
		q.Set("apiKey", f.config.APIKey)
		u.RawQuery = q.Encode()
		fetchURL = u.String()
	}

	doc, err := f.fetcher.Fetch(ctx, fetchURL)
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", f.config.ID, err)
	}
	defer doc.Body.Close()

	var envelope feedEnvelope
	if err := json.NewDecoder(doc.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode feed %s: %w", f.config.ID, err)
	}

	domain, _ := getDomain(f.config.BaseURL)
	tenders := make([]RawTender, 0, len(envelope.Notices))
	for _, n := range envelope.Notices {
		if n.ID == "" || n.Title == "" {
			continue
		}
		currency := n.Currency
		if currency == "" {
			currency = f.config.Currency
		}
		tenders = append(tenders, RawTender{
			ExternalID:      n.ID,
			SourceDomain:    domain,
			Title:           cleanText(n.Title),
			Description:     cleanText(n.Description),
			AgencyName:      cleanText(n.BuyerName),
			CategoryCode:    n.CPVCode,
			EstimatedValue:  n.EstimatedValue,
			Currency:        currency,
			PublishedAt:     parseFeedTime(n.PublishedAt),
			ClosingAt:       parseFeedTime(n.Deadline),
			AwardedAt:       parseFeedTime(n.AwardDate),
			AwardedSupplier: cleanText(n.WinnerName),
			AwardAmount:     n.AwardValue,
			SourceURL:       n.NoticeURL,
			Payload:         map[string]interface{}{"source_id": f.config.ID, "cpv_code": n.CPVCode},
		})
	}
	return tenders, nil
}

func parseFeedTime(value string) *time.Time {
	if value == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			utc := t.UTC()
			return &utc
		}
	}
	return nil
}
