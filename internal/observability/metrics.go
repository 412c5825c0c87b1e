package observability

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/domain"
)

const namespace = "watershed_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for a batch run.
type Metrics struct {
	RowsAcquired        *prometheus.CounterVec // labels: source
	RowsExported        *prometheus.CounterVec // labels: layer, sink
	ObservationsDropped *prometheus.CounterVec // labels: reason
	SourceFailures      *prometheus.CounterVec // labels: source, stage={acquire,normalize,sink}
	BatchRunning        prometheus.Gauge

	RunDuration *prometheus.HistogramVec // labels: source

	// Aggregation metrics.
	BucketsGenerated *prometheus.GaugeVec // labels: mode={interval,daily}
	BucketsEmpty     *prometheus.GaugeVec // labels: mode={interval,daily}
}

func newMetrics() *Metrics {
	return &Metrics{
		RowsAcquired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_acquired_total",
			Help:      "Raw rows read from row sources.",
		}, []string{"source"}),
		RowsExported: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_exported_total",
			Help:      "Rows written per layer and sink.",
		}, []string{"layer", "sink"}),
		ObservationsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observations_dropped_total",
			Help:      "Observations excluded from aggregation by reason.",
		}, []string{"reason"}),
		SourceFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_failures_total",
			Help:      "Source pipelines aborted by stage.",
		}, []string{"source", "stage"}),
		BatchRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "batch_running",
			Help:      "1 while a batch is executing, 0 otherwise.",
		}),
		RunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_run_duration_seconds",
			Help:      "Duration of one acquire-normalize-export run.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 180, 600},
		}, []string{"source"}),
		BucketsGenerated: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "buckets_generated",
			Help:      "Buckets produced by the last aggregation.",
		}, []string{"mode"}),
		BucketsEmpty: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "buckets_empty",
			Help:      "Buckets without observations in the last aggregation.",
		}, []string{"mode"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.RowsAcquired,
		m.RowsExported,
		m.ObservationsDropped,
		m.SourceFailures,
		m.BatchRunning,
		m.RunDuration,
		m.BucketsGenerated,
		m.BucketsEmpty,
	}
}

// NewMetrics creates and registers all batch metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

// RecordDrops adds per-reason drop counts.
func (m *Metrics) RecordDrops(dropped map[domain.DropReason]int) {
	for reason, n := range dropped {
		m.ObservationsDropped.WithLabelValues(string(reason)).Add(float64(n))
	}
}
