package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/david/tender-intel/internal/alert"
	"github.com/david/tender-intel/internal/api"
	"github.com/david/tender-intel/internal/collector"
	"github.com/david/tender-intel/internal/competitor"
	"github.com/david/tender-intel/internal/config"
	"github.com/david/tender-intel/internal/db"
	"github.com/david/tender-intel/internal/events"
	"github.com/david/tender-intel/internal/lifecycle"
	"github.com/david/tender-intel/internal/observability/logging"
	"github.com/david/tender-intel/internal/observability/metrics"
	"github.com/david/tender-intel/internal/resilience"
	"github.com/david/tender-intel/internal/scan"
)

func main() {
	cfg := config.Load()
	logger := logging.Setup("tender-intel", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx)
	if err != nil {
		logger.Error("failed to connect to database", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := db.ApplyMigrations(ctx, pool); err != nil {
		logger.Error("migration failed", "err", err)
		os.Exit(1)
	}

	store := db.NewStore(pool)
	engine := lifecycle.NewEngine(store)
	ledger := competitor.NewLedger(store)
	alerts := alert.NewGenerator(store)
	scanMetrics := metrics.NewScanMetrics("tender-intel")
	executor := resilience.NewExecutor(resilience.DefaultConfig())

	registry, err := collector.LoadRegistry(cfg.SourcesPath)
	if err != nil {
		logger.Error("failed to load source registry", "err", err)
		os.Exit(1)
	}
	fetcher := collector.NewRateLimitedFetcher(collector.FetchConfig{})
	for _, src := range registry.Sources {
		fetcher.ConfigureSource(src)
	}
	collectors, err := collector.DefaultFactory().Build(registry, fetcher)
	if err != nil {
		logger.Error("failed to build collectors", "err", err)
		os.Exit(1)
	}

	var sink events.Sink = events.NoopSink{}
	if cfg.NATSURL != "" {
		natsSink, err := events.NewNATSSink(cfg.NATSURL, cfg.NATSSubjectPrefix, events.NATSOptions{
			ResilienceExecutor: executor,
		})
		if err != nil {
			logger.Warn("nats unavailable, events disabled", "err", err)
		} else {
			sink = natsSink
			defer natsSink.Close()
		}
	}

	orchestrator := scan.NewOrchestrator(
		collectors, store, engine, ledger, alerts,
		sink, scanMetrics, executor,
		scan.Config{Workers: cfg.ScanWorkers},
	)

	sink.Publish(ctx, events.Event{Type: events.SystemStarted})
	defer sink.Publish(context.Background(), events.Event{Type: events.SystemStopped})

	if !cfg.SchedulerDisabled {
		scheduler := scan.NewScheduler(buildTrigger(cfg), orchestrator)
		go scheduler.Start(ctx)
	}

	srv := api.NewServer(pool, orchestrator, scanMetrics)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Echo.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "err", err)
		}
	}()

	logger.Info("server starting", "port", cfg.APIPort, "sources", len(collectors))
	if err := srv.Start(cfg.APIPort); err != nil {
		logger.Info("server stopped", "reason", err)
	}
}

// buildTrigger picks the scan cadence from the configuration. Business-hours
// mode scans densely while portals publish and backs off overnight.
func buildTrigger(cfg config.Config) scan.Trigger {
	if cfg.BusinessHours {
		return scan.BusinessHoursTrigger{
			BusyEvery: cfg.BusyInterval,
			IdleEvery: cfg.IdleInterval,
			StartHour: cfg.ScanStartHour,
			EndHour:   cfg.ScanEndHour,
		}
	}
	return scan.IntervalTrigger{Every: cfg.ScanInterval}
}
