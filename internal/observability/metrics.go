package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "lookup"

// Metrics holds the Prometheus counters, histograms, and gauges for lookup
// loading and the refresh pipeline. It implements domain.Observer.
type Metrics struct {
	LookupsLoaded    prometheus.Counter
	LookupsPublished prometheus.Counter
	LoadErrors       prometheus.Counter
	PipelineRunning  prometheus.Gauge

	// Batch processing metrics.
	BatchSize               prometheus.Histogram
	BatchProcessingDuration prometheus.Histogram

	// Data-quality and cache metrics.
	CacheLookups         *prometheus.CounterVec // labels: kind={raw,vars}, result={hit,miss}
	EncodingReplacements prometheus.Counter
	DependentFailures    *prometheus.CounterVec // labels: entity
	IssuedAtFallbacks    *prometheus.CounterVec // labels: source={gmtissued,date_time}
	TruncationRepairs    *prometheus.CounterVec // labels: entity
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.LookupsLoaded,
		m.LookupsPublished,
		m.LoadErrors,
		m.PipelineRunning,
		m.BatchSize,
		m.BatchProcessingDuration,
		m.CacheLookups,
		m.EncodingReplacements,
		m.DependentFailures,
		m.IssuedAtFallbacks,
		m.TruncationRepairs,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		LookupsLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lookups_loaded_total",
			Help:      "Total lookups loaded and resolved.",
		}),
		LookupsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lookups_published_total",
			Help:      "Total lookups handed to every sink.",
		}),
		LoadErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "load_errors_total",
			Help:      "Total lookups that could not be loaded or parsed.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 when the refresh pipeline is active, 0 when shut down.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Number of lookups per refresh batch.",
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100},
		}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_processing_duration_seconds",
			Help:      "Duration of a complete batch load-resolve-publish cycle.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Cache get-or-compute outcomes by kind and result.",
		}, []string{"kind", "result"}),
		EncodingReplacements: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "encoding_replacements_total",
			Help:      "Byte sequences replaced because they were invalid in the configured charset.",
		}),
		DependentFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dependent_failures_total",
			Help:      "Dependent lookups skipped because they failed to load.",
		}, []string{"entity"}),
		IssuedAtFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "issued_at_fallbacks_total",
			Help:      "Issued-at values that fell back to the current time, by source.",
		}, []string{"source"}),
		TruncationRepairs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "truncation_repairs_total",
			Help:      "Lookup literals re-closed after being cut at the storage limit.",
		}, []string{"entity"}),
	}
}

func (m *Metrics) CacheLookup(kind string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) EncodingReplaced(_ string, count int) {
	m.EncodingReplacements.Add(float64(count))
}

func (m *Metrics) DependentFailed(entity string) {
	m.DependentFailures.WithLabelValues(entity).Inc()
}

func (m *Metrics) IssuedAtFallback(_, source string) {
	m.IssuedAtFallbacks.WithLabelValues(source).Inc()
}

func (m *Metrics) TruncationRepaired(entity string) {
	m.TruncationRepairs.WithLabelValues(entity).Inc()
}
