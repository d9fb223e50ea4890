package collector

import (
	"testing"
)

func TestLoadRegistry_Embedded(t *testing.T) {
	reg, err := LoadRegistry("")
	if err != nil {
		t.Fatalf("load embedded registry: %v", err)
	}
	if len(reg.Sources) == 0 {
		t.Fatal("expected at least one configured source")
	}

	for _, src := range reg.Sources {
		if src.ID == "" || src.Strategy == "" {
			t.Errorf("source missing id or strategy: %+v", src)
		}
		switch src.Strategy {
		case "json_feed":
			if src.BaseURL == "" {
				t.Errorf("json_feed source %s has no base_url", src.ID)
			}
		case "html_portal":
			if len(src.Seeds) == 0 {
				t.Errorf("html_portal source %s has no seeds", src.ID)
			}
			if src.Selectors.Container == "" {
				t.Errorf("html_portal source %s has no container selector", src.ID)
			}
		default:
			t.Errorf("source %s uses unregistered strategy %s", src.ID, src.Strategy)
		}
	}
}

func TestFactory_BuildsAllConfiguredSources(t *testing.T) {
	reg, err := LoadRegistry("")
	if err != nil {
		t.Fatal(err)
	}
	fetcher := NewRateLimitedFetcher(FetchConfig{})
	collectors, err := DefaultFactory().Build(reg, fetcher)
	if err != nil {
		t.Fatalf("build collectors: %v", err)
	}
	if len(collectors) != len(reg.Sources) {
		t.Fatalf("expected %d collectors, got %d", len(reg.Sources), len(collectors))
	}
}

func TestFactory_UnknownStrategyFailsLoudly(t *testing.T) {
	reg := &Registry{Sources: []SourceConfig{{ID: "bad", Strategy: "carrier_pigeon"}}}
	_, err := DefaultFactory().Build(reg, NewRateLimitedFetcher(FetchConfig{}))
	if err == nil {
		t.Fatal("expected error for unknown strategy")
	}
}
