package collector

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"sync"
	"time"
)

const fetchUserAgent = "tender-intel/1.0 (+procurement monitoring)"

// RateLimitedFetcher provides per-domain rate limiting, retries with
// exponential backoff, and configurable timeouts.
type RateLimitedFetcher struct {
	clients       map[string]*http.Client
	limiters      map[string]*time.Ticker
	configs       map[string]FetchConfig
	defaultConfig FetchConfig
	mu            sync.RWMutex
}

func NewRateLimitedFetcher(defaultConfig FetchConfig) *RateLimitedFetcher {
	if defaultConfig.TimeoutSeconds == 0 {
		defaultConfig.TimeoutSeconds = 30
	}
	if defaultConfig.MaxRetries == 0 {
		defaultConfig.MaxRetries = 3
	}
	if defaultConfig.RateLimitRPS == 0 {
		defaultConfig.RateLimitRPS = 1.0
	}
	if defaultConfig.AcceptLanguage == "" {
		defaultConfig.AcceptLanguage = "en-US,en;q=0.5"
	}

	return &RateLimitedFetcher{
		clients:       make(map[string]*http.Client),
		limiters:      make(map[string]*time.Ticker),
		configs:       make(map[string]FetchConfig),
		defaultConfig: defaultConfig,
	}
}

// Configure pins a fetch config to one domain, overriding the default.
func (f *RateLimitedFetcher) Configure(domain string, config FetchConfig) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if config.TimeoutSeconds == 0 {
		config.TimeoutSeconds = f.defaultConfig.TimeoutSeconds
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = f.defaultConfig.MaxRetries
	}
	if config.RateLimitRPS == 0 {
		config.RateLimitRPS = f.defaultConfig.RateLimitRPS
	}
	if config.AcceptLanguage == "" {
		config.AcceptLanguage = f.defaultConfig.AcceptLanguage
	}
	f.configs[domain] = config
}

// ConfigureSource pins the source's fetch config to the domains of its base
// and seed URLs.
func (f *RateLimitedFetcher) ConfigureSource(src SourceConfig) {
	urls := src.Seeds
	if src.BaseURL != "" {
		urls = append([]string{src.BaseURL}, urls...)
	}
	for _, rawURL := range urls {
		domain, err := getDomain(rawURL)
		if err != nil || domain == "" {
			continue
		}
		f.Configure(domain, src.Fetch)
	}
}

func getDomain(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	return u.Host, nil
}

func (f *RateLimitedFetcher) getClient(domain string, config FetchConfig) *http.Client {
	f.mu.RLock()
	client, exists := f.clients[domain]
	f.mu.RUnlock()

	if exists {
		return client
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if client, exists := f.clients[domain]; exists {
		return client
	}

	timeout := time.Duration(config.TimeoutSeconds) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	client = &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			ForceAttemptHTTP2:   true,
			MaxIdleConns:        100,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}
	f.clients[domain] = client

	interval := time.Duration(float64(time.Second) / config.RateLimitRPS)
	if interval == 0 {
		interval = time.Second
	}
	f.limiters[domain] = time.NewTicker(interval)

	return client
}

// shouldRetry reports whether an error or status code warrants another
// attempt.
func shouldRetry(err error, statusCode int) bool {
	if err != nil {
		if netErr, ok := err.(interface{ Timeout() bool }); ok && netErr.Timeout() {
			return true
		}
		return false
	}

	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// Fetch implements Fetcher with rate limiting and retries.
func (f *RateLimitedFetcher) Fetch(ctx context.Context, rawURL string) (*FetchedDocument, error) {
	domain, err := getDomain(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	config := f.defaultConfig
	f.mu.RLock()
	if domainConfig, exists := f.configs[domain]; exists {
		config = domainConfig
	}
	f.mu.RUnlock()

	client := f.getClient(domain, config)

	f.mu.RLock()
	limiter, exists := f.limiters[domain]
	f.mu.RUnlock()
	if exists {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-limiter.C:
		}
	}

	var lastErr error
	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		if attempt > 0 {
			// Exponential backoff: 0.5s, 1s, 2s plus jitter.
			backoff := time.Duration(500*(1<<uint(attempt-1))) * time.Millisecond
			jitter := time.Duration(rand.Intn(100)) * time.Millisecond
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff + jitter):
			}
		}

		req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("User-Agent", fetchUserAgent)
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/json;q=0.9,*/*;q=0.8")
		req.Header.Set("Accept-Language", config.AcceptLanguage)

		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			if shouldRetry(err, 0) {
				continue
			}
			return nil, fmt.Errorf("failed to execute request: %w", err)
		}

		if resp.StatusCode == http.StatusOK {
			return &FetchedDocument{
				URL:         rawURL,
				StatusCode:  resp.StatusCode,
				ContentType: resp.Header.Get("Content-Type"),
				Body:        resp.Body,
				FetchedAt:   time.Now(),
				Headers:     resp.Header,
			}, nil
		}

		resp.Body.Close()
		if shouldRetry(nil, resp.StatusCode) {
			lastErr = fmt.Errorf("status code %d", resp.StatusCode)
			continue
		}
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}
