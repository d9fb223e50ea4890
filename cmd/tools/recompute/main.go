package main

import (
	"context"
	"log"
	"time"

	"github.com/david/tender-intel/internal/analyze"
	"github.com/david/tender-intel/internal/competitor"
	"github.com/david/tender-intel/internal/db"
	"github.com/david/tender-intel/internal/lifecycle"
)

const pageSize = 500

// Rebuilds every derived value from stored source data: re-runs the analyzer
// and lifecycle sync over all tenders, then recomputes competitor profiles
// from their full bid history. Run after scoring or projection constants
// change so stored rows match the current rules.
func main() {
	ctx := context.Background()
	pool, err := db.Connect(ctx)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	store := db.NewStore(pool)
	engine := lifecycle.NewEngine(store)
	ledger := competitor.NewLedger(store)
	now := time.Now().UTC()

	tendersDone, tendersTotal := 0, 0
	for offset := 0; ; offset += pageSize {
		page, err := store.ListTenders(ctx, db.ListParams{Status: "all", Limit: pageSize, Offset: offset})
		if err != nil {
			log.Fatal(err)
		}
		tendersTotal = page.Total
		if len(page.Tenders) == 0 {
			break
		}
		for i := range page.Tenders {
			t := page.Tenders[i]
			analysis := analyze.Analyze(t)
			t.Analysis = &analysis
			if err := store.UpsertTender(ctx, &t); err != nil {
				log.Printf("reanalyze %s/%s: %v", t.SourceDomain, t.ExternalID, err)
				continue
			}
			if _, err := engine.Sync(ctx, t, now); err != nil {
				log.Printf("lifecycle sync %s/%s: %v", t.SourceDomain, t.ExternalID, err)
				continue
			}
			tendersDone++
		}
		if offset+pageSize >= page.Total {
			break
		}
	}
	log.Printf("reanalyzed %d/%d tenders", tendersDone, tendersTotal)

	profiles, err := store.ListCompetitors(ctx, 10000)
	if err != nil {
		log.Fatal(err)
	}
	updated := 0
	for i := range profiles {
		if err := ledger.Recompute(ctx, &profiles[i], now); err != nil {
			log.Printf("recompute %s: %v", profiles[i].NormalizedName, err)
			continue
		}
		updated++
	}
	log.Printf("recomputed %d/%d competitor profiles", updated, len(profiles))
}
