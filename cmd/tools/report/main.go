package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/david/tender-intel/internal/db"
	"github.com/jedib0t/go-pretty/v6/table"
)

// Prints a console briefing: top competitors by threat, upcoming critical
// dates and recent scan runs.
func main() {
	ctx := context.Background()
	pool, err := db.Connect(ctx)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	store := db.NewStore(pool)

	competitors, err := store.ListCompetitors(ctx, 15)
	if err != nil {
		log.Fatal(err)
	}
	ct := table.NewWriter()
	ct.SetOutputMirror(os.Stdout)
	ct.SetTitle("Top Competitors by Threat")
	ct.AppendHeader(table.Row{"Name", "Tier", "Threat", "Level", "Won", "Bids", "Win Rate", "Total Value"})
	for _, p := range competitors {
		ct.AppendRow(table.Row{
			p.Name, p.Tier, p.ThreatScore, p.ThreatLevel,
			p.ContractsWon, p.TotalBids,
			fmt.Sprintf("%.0f%%", p.WinRate*100),
			fmt.Sprintf("%.0f", p.TotalValueWon),
		})
	}
	ct.Render()

	dates, err := store.UpcomingCriticalDates(ctx, 30)
	if err != nil {
		log.Fatal(err)
	}
	dt := table.NewWriter()
	dt.SetOutputMirror(os.Stdout)
	dt.SetTitle("Critical Dates (next 30 days)")
	dt.AppendHeader(table.Row{"Type", "Scheduled", "Priority", "Description"})
	for _, d := range dates {
		dt.AppendRow(table.Row{d.DateType, d.ScheduledAt.Format("2006-01-02"), d.Priority, d.Description})
	}
	dt.Render()

	runs, err := store.ListRuns(ctx, 10)
	if err != nil {
		log.Fatal(err)
	}
	rt := table.NewWriter()
	rt.SetOutputMirror(os.Stdout)
	rt.SetTitle("Recent Scan Runs")
	rt.AppendHeader(table.Row{"Run", "Status", "Found", "Saved", "Errors", "Duration", "Started At"})
	for _, r := range runs {
		duration := "Running..."
		if r.CompletedAt != nil {
			duration = r.CompletedAt.Sub(r.StartedAt).Round(time.Second).String()
		}
		rt.AppendRow(table.Row{r.RunID, r.Status, r.ItemsFound, r.ItemsSaved, r.Errors, duration, r.StartedAt.Format("01-02 15:04")})
	}
	rt.Render()
}
