package collector

import (
	"embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed config/sources.yaml
var sourcesYAML embed.FS

// Registry holds the configuration for all tender sources.
type Registry struct {
	Sources []SourceConfig `yaml:"sources"`
}

// FetchConfig defines HTTP fetching configuration for a source.
type FetchConfig struct {
	TimeoutSeconds int     `yaml:"timeout_seconds,omitempty"` // Default: 30
	MaxRetries     int     `yaml:"max_retries,omitempty"`     // Default: 3
	RateLimitRPS   float64 `yaml:"rate_limit_rps,omitempty"`  // Requests per second, default: 1.0
	AcceptLanguage string  `yaml:"accept_language,omitempty"`
}

// SourceConfig defines a single tender source.
type SourceConfig struct {
	ID       string   `yaml:"id"`
	Name     string   `yaml:"name"`
	Country  string   `yaml:"country"`
	Strategy string   `yaml:"strategy"` // "json_feed", "html_portal"
	BaseURL  string   `yaml:"base_url,omitempty"`
	APIKey   string   `yaml:"api_key,omitempty"`
	Seeds    []string `yaml:"seed_urls,omitempty"`
	Currency string   `yaml:"currency,omitempty"` // default currency when the notice has none
	MaxPages int      `yaml:"max_pages,omitempty"`

	Fetch FetchConfig `yaml:"fetch,omitempty"`

	// For the HTML portal strategy.
	Selectors SelectorConfig `yaml:"selectors,omitempty"`
}

// SelectorConfig drives the generic HTML portal scraper.
type SelectorConfig struct {
	Container   string `yaml:"container,omitempty"` // list item wrapper
	Link        string `yaml:"link,omitempty"`
	Title       string `yaml:"title,omitempty"`
	Agency      string `yaml:"agency,omitempty"`
	Category    string `yaml:"category,omitempty"`
	Description string `yaml:"description,omitempty"` // cell may carry markup
	Value       string `yaml:"value,omitempty"`
	Closing     string `yaml:"closing,omitempty"`
	Published   string `yaml:"published,omitempty"`
	Awarded     string `yaml:"awarded,omitempty"`
	Supplier    string `yaml:"supplier,omitempty"`
	Documents   string `yaml:"documents,omitempty"` // dossier attachment link
	NextPage    string `yaml:"next_page,omitempty"`
}

// LoadRegistry reads the embedded sources.yaml, falling back to the given
// path for local development. Environment variables in the YAML (e.g.
// ${PORTAL_API_KEY}) are expanded.
func LoadRegistry(path string) (*Registry, error) {
	data, err := sourcesYAML.ReadFile("config/sources.yaml")
	if err != nil {
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, err
		}
	}

	expanded := os.ExpandEnv(string(data))

	var reg Registry
	if err := yaml.Unmarshal([]byte(expanded), &reg); err != nil {
		return nil, err
	}

	return &reg, nil
}

// Constructor builds a collector for one source.
type Constructor func(config SourceConfig, fetcher Fetcher) (Collector, error)

// Factory maps strategy names from sources.yaml to constructors. Built by
// the caller so strategies stay injectable.
type Factory struct {
	constructors map[string]Constructor
}

func NewFactory() *Factory {
	return &Factory{constructors: make(map[string]Constructor)}
}

func (f *Factory) Register(strategy string, c Constructor) {
	f.constructors[strategy] = c
}

// Build constructs collectors for every source in the registry. An unknown
// strategy is an error: a misconfigured source should fail loudly at startup
// rather than be silently skipped.
func (f *Factory) Build(reg *Registry, fetcher Fetcher) ([]Collector, error) {
	collectors := make([]Collector, 0, len(reg.Sources))
	for _, src := range reg.Sources {
		c, ok := f.constructors[src.Strategy]
		if !ok {
			return nil, fmt.Errorf("unknown strategy %q for source %s", src.Strategy, src.ID)
		}
		built, err := c(src, fetcher)
		if err != nil {
			return nil, fmt.Errorf("build collector %s: %w", src.ID, err)
		}
		collectors = append(collectors, built)
	}
	return collectors, nil
}

// DefaultFactory registers the built-in strategies.
func DefaultFactory() *Factory {
	f := NewFactory()
	f.Register("json_feed", NewFeedCollector)
	f.Register("html_portal", NewPortalCollector)
	return f
}
