package collector

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
)

// PortalCollector scrapes listing pages of an e-procurement portal using the
// source's CSS selectors. One FetchBatch walks the seed pages plus
// pagination up to MaxPages.
type PortalCollector struct {
	config  SourceConfig
	fetcher Fetcher
}

func NewPortalCollector(config SourceConfig, fetcher Fetcher) (Collector, error) {
	if len(config.Seeds) == 0 {
		return nil, fmt.Errorf("source %s has no seed URLs", config.ID)
	}
	if config.Selectors.Container == "" || config.Selectors.Link == "" {
		return nil, fmt.Errorf("source %s needs container and link selectors", config.ID)
	}
	return &PortalCollector{config: config, fetcher: fetcher}, nil
}

func (p *PortalCollector) Source() SourceConfig { return p.config }

func (p *PortalCollector) FetchBatch(ctx context.Context) ([]RawTender, error) {
	domains := make([]string, 0, len(p.config.Seeds))
	for _, seed := range p.config.Seeds {
		if u, err := url.Parse(seed); err == nil {
			domains = append(domains, u.Hostname())
		}
	}

	c := colly.NewCollector(
		colly.UserAgent(fetchUserAgent),
		colly.AllowedDomains(domains...),
		colly.AllowURLRevisit(),
		colly.MaxBodySize(10*1024*1024),
	)
	c.SetRequestTimeout(timeoutFor(p.config.Fetch))
	c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
		Delay:       delayFor(p.config.Fetch),
	})

	sel := p.config.Selectors
	maxPages := p.config.MaxPages
	if maxPages <= 0 {
		maxPages = 3
	}

	var tenders []RawTender
	pages := 0

	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
		}
	})

	c.OnHTML(sel.Container, func(e *colly.HTMLElement) {
		link := e.ChildAttr(sel.Link, "href")
		if link == "" {
			return
		}
		absLink := e.Request.AbsoluteURL(link)

		raw := RawTender{
			ExternalID:   externalIDFromURL(absLink),
			SourceDomain: e.Request.URL.Host,
			Title:        cleanText(e.ChildText(sel.Title)),
			SourceURL:    absLink,
			Currency:     p.config.Currency,
			Payload:      map[string]interface{}{"source_id": p.config.ID},
		}
		if sel.Agency != "" {
			raw.AgencyName = cleanText(e.ChildText(sel.Agency))
		}
		if sel.Category != "" {
			raw.CategoryCode = cleanText(e.ChildText(sel.Category))
		}
		if sel.Description != "" {
			if html, err := e.DOM.Find(sel.Description).Html(); err == nil && html != "" {
				raw.Description = HTMLToText(html)
			}
		}
		if sel.Value != "" {
			raw.EstimatedValue = parseMoney(e.ChildText(sel.Value))
		}
		if sel.Closing != "" {
			raw.ClosingAt = parsePortalDate(e.ChildText(sel.Closing))
		}
		if sel.Published != "" {
			raw.PublishedAt = parsePortalDate(e.ChildText(sel.Published))
		}
		if sel.Awarded != "" {
			raw.AwardedAt = parsePortalDate(e.ChildText(sel.Awarded))
		}
		if sel.Supplier != "" {
			raw.AwardedSupplier = cleanText(e.ChildText(sel.Supplier))
			raw.AwardAmount = raw.EstimatedValue
		}
		if sel.Documents != "" {
			if href := e.ChildAttr(sel.Documents, "href"); href != "" {
				raw.DocumentURL = e.Request.AbsoluteURL(href)
			}
		}
		if raw.Title == "" || raw.ExternalID == "" {
			return
		}
		tenders = append(tenders, raw)
	})

	if sel.NextPage != "" {
		c.OnHTML(sel.NextPage, func(e *colly.HTMLElement) {
			if pages >= maxPages || ctx.Err() != nil {
				return
			}
			pages++
			next := e.Request.AbsoluteURL(e.Attr("href"))
			if next != "" {
				e.Request.Visit(next)
			}
		})
	}

	c.OnError(func(r *colly.Response, err error) {
		slog.Warn("portal fetch error", "source", p.config.ID, "url", r.Request.URL.String(), "err", err)
	})

	for _, seed := range p.config.Seeds {
		if err := ctx.Err(); err != nil {
			return tenders, err
		}
		pages++
		if err := c.Visit(seed); err != nil {
			slog.Warn("portal seed visit failed", "source", p.config.ID, "seed", seed, "err", err)
		}
	}
	c.Wait()

	p.enrichClosingDates(ctx, tenders)

	return tenders, nil
}

// enrichClosingDates recovers missing deadlines from linked dossier PDFs.
// Best-effort: a fetch or parse failure leaves the notice without a closing
// date, it never fails the batch.
func (p *PortalCollector) enrichClosingDates(ctx context.Context, tenders []RawTender) {
	if p.fetcher == nil {
		return
	}
	for i := range tenders {
		if tenders[i].ClosingAt != nil || tenders[i].DocumentURL == "" {
			continue
		}
		if ctx.Err() != nil {
			return
		}
		closing, err := ExtractClosingDate(ctx, p.fetcher, tenders[i].DocumentURL)
		if err != nil {
			slog.Warn("dossier deadline extraction failed",
				"source", p.config.ID, "url", tenders[i].DocumentURL, "err", err)
			continue
		}
		if closing != nil {
			tenders[i].ClosingAt = closing
		}
	}
}

// externalIDFromURL derives the portal's stable notice id from the detail
// link: the last non-empty path segment, plus an id query parameter when
// present.
func externalIDFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	if id := u.Query().Get("id"); id != "" {
		return id
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if segments[i] != "" {
			return segments[i]
		}
	}
	return ""
}

func timeoutFor(cfg FetchConfig) time.Duration {
	if cfg.TimeoutSeconds > 0 {
		return time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	return 30 * time.Second
}

func delayFor(cfg FetchConfig) time.Duration {
	if cfg.RateLimitRPS > 0 {
		return time.Duration(float64(time.Second) / cfg.RateLimitRPS)
	}
	return time.Second
}
