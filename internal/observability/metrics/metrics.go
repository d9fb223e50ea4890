package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ScanMetrics covers the orchestrator's run loop and its per-item pipeline.
type ScanMetrics struct {
	registry *prometheus.Registry

	runsTotal     *prometheus.CounterVec
	runDuration   prometheus.Histogram
	runsInFlight  prometheus.Gauge
	itemsTotal    *prometheus.CounterVec
	matchedTotal  prometheus.Counter
	alertsTotal   *prometheus.CounterVec
	renewalsTotal prometheus.Counter
	stageAdvances *prometheus.CounterVec
}

func NewScanMetrics(service string) *ScanMetrics {
	registry := prometheus.NewRegistry()
	constLabels := prometheus.Labels{"service": service}

	m := &ScanMetrics{
		registry: registry,
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   "tenderintel",
				Subsystem:   "scan",
				Name:        "runs_total",
				Help:        "Completed scan runs by final status.",
				ConstLabels: constLabels,
			},
			[]string{"status"},
		),
		runDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace:   "tenderintel",
				Subsystem:   "scan",
				Name:        "run_duration_seconds",
				Help:        "Wall-clock duration of one scan run.",
				Buckets:     prometheus.ExponentialBuckets(0.5, 2, 10),
				ConstLabels: constLabels,
			},
		),
		runsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace:   "tenderintel",
				Subsystem:   "scan",
				Name:        "runs_in_flight",
				Help:        "1 while a scan run is executing.",
				ConstLabels: constLabels,
			},
		),
		itemsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   "tenderintel",
				Subsystem:   "scan",
				Name:        "items_total",
				Help:        "Per-item pipeline outcomes.",
				ConstLabels: constLabels,
			},
			[]string{"result"}, // matched, skipped, failed
		),
		matchedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace:   "tenderintel",
				Subsystem:   "pipeline",
				Name:        "tenders_matched_total",
				Help:        "Notices classified into the target category.",
				ConstLabels: constLabels,
			},
		),
		alertsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   "tenderintel",
				Subsystem:   "pipeline",
				Name:        "alerts_created_total",
				Help:        "Competitive alerts created by type.",
				ConstLabels: constLabels,
			},
			[]string{"type"},
		),
		renewalsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace:   "tenderintel",
				Subsystem:   "pipeline",
				Name:        "renewals_created_total",
				Help:        "Renewal opportunities created.",
				ConstLabels: constLabels,
			},
		),
		stageAdvances: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   "tenderintel",
				Subsystem:   "lifecycle",
				Name:        "stage_advances_total",
				Help:        "Lifecycle stage advancements by target stage.",
				ConstLabels: constLabels,
			},
			[]string{"stage"},
		),
	}

	registry.MustRegister(
		m.runsTotal, m.runDuration, m.runsInFlight, m.itemsTotal,
		m.matchedTotal, m.alertsTotal, m.renewalsTotal, m.stageAdvances,
	)
	return m
}

func (m *ScanMetrics) RunStarted() { m.runsInFlight.Set(1) }

func (m *ScanMetrics) RunFinished(status string, d time.Duration) {
	m.runsInFlight.Set(0)
	m.runsTotal.WithLabelValues(status).Inc()
	m.runDuration.Observe(d.Seconds())
}

func (m *ScanMetrics) ItemResult(result string) { m.itemsTotal.WithLabelValues(result).Inc() }

func (m *ScanMetrics) TenderMatched() { m.matchedTotal.Inc() }

func (m *ScanMetrics) AlertCreated(alertType string) {
	m.alertsTotal.WithLabelValues(alertType).Inc()
}

func (m *ScanMetrics) RenewalCreated() { m.renewalsTotal.Inc() }

func (m *ScanMetrics) StageAdvanced(stage string) { m.stageAdvances.WithLabelValues(stage).Inc() }

// Handler serves the registry for the /metrics endpoint.
func (m *ScanMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
