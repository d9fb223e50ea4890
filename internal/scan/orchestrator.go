package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/david/tender-intel/internal/alert"
	"github.com/david/tender-intel/internal/analyze"
	"github.com/david/tender-intel/internal/classify"
	"github.com/david/tender-intel/internal/collector"
	"github.com/david/tender-intel/internal/competitor"
	"github.com/david/tender-intel/internal/events"
	"github.com/david/tender-intel/internal/lifecycle"
	"github.com/david/tender-intel/internal/models"
	"github.com/david/tender-intel/internal/observability/metrics"
	"github.com/david/tender-intel/internal/resilience"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ErrRunInProgress is returned when a trigger fires while the previous run
// is still executing. Runs are single-flight; the caller skips, never
// overlaps.
var ErrRunInProgress = errors.New("scan run already in progress")

const (
	defaultWorkers    = 4
	likelyAlertTopN   = 3
	highValueEventMin = 1_000_000.0
)

// Store is the persistence surface the orchestrator itself needs. The
// lifecycle engine, ledger and alert generator carry their own narrower
// interfaces; *db.Store satisfies all of them.
type Store interface {
	UpsertTender(ctx context.Context, t *models.Tender) error
	CreateRun(ctx context.Context, runID string, startedAt time.Time) error
	CompleteRun(ctx context.Context, run models.ScanRun) error
	ListCompetitors(ctx context.Context, limit int) ([]models.CompetitorProfile, error)
	CountPriorWins(ctx context.Context, serviceType, agencyName string) (map[uuid.UUID]int, error)
}

type Config struct {
	Workers int
}

// Orchestrator drives one full collection -> classify -> analyze -> persist
// -> lifecycle -> competitor -> alert pass.
type Orchestrator struct {
	collectors []collector.Collector
	store      Store
	engine     *lifecycle.Engine
	ledger     *competitor.Ledger
	alerts     *alert.Generator
	sink       events.Sink
	metrics    *metrics.ScanMetrics
	executor   *resilience.Executor
	workers    int
	now        func() time.Time

	runMu sync.Mutex
}

func NewOrchestrator(
	collectors []collector.Collector,
	store Store,
	engine *lifecycle.Engine,
	ledger *competitor.Ledger,
	alerts *alert.Generator,
	sink events.Sink,
	scanMetrics *metrics.ScanMetrics,
	executor *resilience.Executor,
	cfg Config,
) *Orchestrator {
	workers := cfg.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	if sink == nil {
		sink = events.NoopSink{}
	}
	return &Orchestrator{
		collectors: collectors,
		store:      store,
		engine:     engine,
		ledger:     ledger,
		alerts:     alerts,
		sink:       sink,
		metrics:    scanMetrics,
		executor:   executor,
		workers:    workers,
		now:        time.Now,
	}
}

// RunScan executes one full scan. Per-item failures are logged and counted,
// never fatal; the run fails only when every collector fails systemically.
func (o *Orchestrator) RunScan(ctx context.Context) (models.ScanRun, error) {
	if !o.runMu.TryLock() {
		return models.ScanRun{}, ErrRunInProgress
	}
	defer o.runMu.Unlock()

	startedAt := o.now().UTC()
	runID := fmt.Sprintf("scan-%s-%s", startedAt.Format("20060102T150405"), uuid.NewString()[:8])
	logger := slog.With("run_id", runID)

	if err := o.store.CreateRun(ctx, runID, startedAt); err != nil {
		return models.ScanRun{}, fmt.Errorf("create run: %w", err)
	}
	if o.metrics != nil {
		o.metrics.RunStarted()
	}
	o.sink.Publish(ctx, events.Event{Type: events.ScanStarted, Payload: map[string]interface{}{"run_id": runID}})
	logger.Info("scan started", "collectors", len(o.collectors))

	batch, fetchErrs := o.fetchAll(ctx, logger)

	var (
		mu       sync.Mutex
		saved    int
		itemErrs int
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(o.workers)

	for _, raw := range batch {
		raw := raw
		// Cooperative cancellation: checked before each item starts, while
		// an in-flight item always completes to avoid partial writes.
		if groupCtx.Err() != nil {
			break
		}
		group.Go(func() error {
			ok, err := o.processItem(groupCtx, raw, runID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				itemErrs++
				logger.Warn("item processing failed", "external_id", raw.ExternalID, "source", raw.SourceDomain, "err", err)
				if o.metrics != nil {
					o.metrics.ItemResult("failed")
				}
				return nil
			}
			if ok {
				saved++
			}
			return nil
		})
	}
	group.Wait()

	completedAt := o.now().UTC()
	duration := completedAt.Sub(startedAt)

	status := "completed"
	// Zero items with every collector failing is a systemic outage, not an
	// empty feed.
	if len(batch) == 0 && len(fetchErrs) == len(o.collectors) && len(o.collectors) > 0 {
		status = "failed"
	}
	if err := ctx.Err(); err != nil {
		status = "failed"
	}

	run := models.ScanRun{
		RunID:       runID,
		Status:      status,
		ItemsFound:  len(batch),
		ItemsSaved:  saved,
		Errors:      itemErrs + len(fetchErrs),
		StartedAt:   startedAt,
		CompletedAt: &completedAt,
	}
	if err := o.store.CompleteRun(ctx, run); err != nil {
		logger.Error("complete run failed", "err", err)
	}
	if o.metrics != nil {
		o.metrics.RunFinished(status, duration)
	}
	o.sink.Publish(ctx, events.Event{Type: events.ScanCompleted, Payload: map[string]interface{}{
		"run_id":      runID,
		"status":      status,
		"items_found": len(batch),
		"items_saved": saved,
		"errors":      run.Errors,
		"duration_ms": duration.Milliseconds(),
	}})
	logger.Info("scan finished", "status", status, "found", len(batch), "saved", saved, "errors", run.Errors, "duration", duration)

	return run, nil
}

// fetchAll pulls batches from every collector, isolating per-source
// failures.
func (o *Orchestrator) fetchAll(ctx context.Context, logger *slog.Logger) ([]collector.RawTender, []error) {
	var batch []collector.RawTender
	var errs []error

	for _, c := range o.collectors {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			continue
		}
		source := c.Source()
		var items []collector.RawTender
		fetch := func(fctx context.Context) error {
			var err error
			items, err = c.FetchBatch(fctx)
			return err
		}

		var err error
		if o.executor != nil {
			err = o.executor.Execute(ctx, "fetch."+source.ID, fetch, classifyFetchError)
		} else {
			err = fetch(ctx)
		}
		if err != nil {
			errs = append(errs, err)
			logger.Warn("collector failed", "source", source.ID, "err", err)
			continue
		}
		logger.Info("collector batch", "source", source.ID, "items", len(items))
		batch = append(batch, items...)
	}
	return batch, errs
}

// processItem runs one notice through the pipeline. Reports whether the
// notice matched and was saved. Ordering per tender is write-then-derive:
// the repository upsert completes before lifecycle and competitor updates.
func (o *Orchestrator) processItem(ctx context.Context, raw collector.RawTender, runID string) (bool, error) {
	result := classify.Classify(raw.Title, raw.Description, raw.CategoryCode)
	if !result.Matched {
		if o.metrics != nil {
			o.metrics.ItemResult("skipped")
		}
		return false, nil
	}

	now := o.now().UTC()
	tender := models.Tender{
		ID:              uuid.New(),
		ExternalID:      raw.ExternalID,
		SourceDomain:    raw.SourceDomain,
		Title:           raw.Title,
		Description:     raw.Description,
		AgencyName:      raw.AgencyName,
		CategoryCode:    raw.CategoryCode,
		EstimatedValue:  raw.EstimatedValue,
		Currency:        raw.Currency,
		PublishedAt:     raw.PublishedAt,
		ClosingAt:       raw.ClosingAt,
		AwardedAt:       raw.AwardedAt,
		AwardedSupplier: raw.AwardedSupplier,
		AwardAmount:     raw.AwardAmount,
		SourceURL:       raw.SourceURL,
		RawPayload:      raw.Payload,
		Status:          "tracked",
		MatchConfidence: result.Confidence,
		MatchReason:     result.Reason,
		FirstSeenRunID:  &runID,
	}
	analysis := analyze.Analyze(tender)
	tender.Analysis = &analysis

	if err := o.store.UpsertTender(ctx, &tender); err != nil {
		return false, fmt.Errorf("upsert: %w", err)
	}
	if o.metrics != nil {
		o.metrics.ItemResult("matched")
		o.metrics.TenderMatched()
	}

	syncResult, err := o.engine.Sync(ctx, tender, now)
	if err != nil {
		return true, fmt.Errorf("lifecycle sync: %w", err)
	}
	if o.metrics != nil {
		if syncResult.Advanced {
			o.metrics.StageAdvanced(string(syncResult.Stage))
		}
		if syncResult.RenewalCreated {
			o.metrics.RenewalCreated()
		}
	}

	if tender.AwardedAt != nil && tender.AwardedSupplier != "" {
		award, err := o.ledger.RecordAward(ctx, tender, now)
		if err != nil {
			return true, fmt.Errorf("record award: %w", err)
		}
		if award.FirstWin {
			created, err := o.alerts.NewCompetitorWin(ctx, award.Profile, tender, now)
			if err != nil {
				slog.Warn("new competitor win alert failed", "tender", tender.ExternalID, "err", err)
			} else if created && o.metrics != nil {
				o.metrics.AlertCreated(alert.TypeNewCompetitorWin)
			}
		}
	} else {
		if err := o.alertLikelyCompetitors(ctx, tender, now); err != nil {
			slog.Warn("likely competitor pass failed", "tender", tender.ExternalID, "err", err)
		}
	}

	created, err := o.alerts.TenderThresholds(ctx, tender, now)
	if err != nil {
		return true, fmt.Errorf("threshold alerts: %w", err)
	}
	for i := 0; i < created && o.metrics != nil; i++ {
		o.metrics.AlertCreated("tender_threshold")
	}
	if tender.EstimatedValue >= highValueEventMin {
		o.sink.Publish(ctx, events.Event{Type: events.HighValueOpportunity, Payload: map[string]interface{}{
			"external_id": tender.ExternalID,
			"title":       tender.Title,
			"value":       tender.EstimatedValue,
			"score":       analysis.IntelligenceScore,
		}})
	}

	return true, nil
}

// alertLikelyCompetitors ranks known suppliers against an open tender and
// raises threat alerts for the strongest few.
func (o *Orchestrator) alertLikelyCompetitors(ctx context.Context, tender models.Tender, now time.Time) error {
	profiles, err := o.store.ListCompetitors(ctx, 100)
	if err != nil {
		return err
	}
	if len(profiles) == 0 {
		return nil
	}
	serviceType := ""
	if tender.Analysis != nil {
		serviceType = tender.Analysis.ServiceType
	}
	priorWins, err := o.store.CountPriorWins(ctx, serviceType, tender.AgencyName)
	if err != nil {
		return err
	}

	ranked := competitor.RankLikely(tender, profiles, priorWins)
	if len(ranked) > likelyAlertTopN {
		ranked = ranked[:likelyAlertTopN]
	}
	for _, likely := range ranked {
		created, err := o.alerts.ThreatOnTender(ctx, likely, tender, now)
		if err != nil {
			return err
		}
		if created && o.metrics != nil {
			o.metrics.AlertCreated(alert.TypeThreatOnTender)
		}
	}
	return nil
}

func classifyFetchError(err error) resilience.ErrorClassification {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
}
