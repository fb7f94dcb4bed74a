package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "case_trends"

// Metrics holds the Prometheus counters, histograms, and gauges for the analysis pipeline.
type Metrics struct {
	RowsIngested     prometheus.Counter
	RowsRejected     prometheus.Counter
	RegionsProcessed prometheus.Counter
	RegionsFailed    prometheus.Counter
	PipelineRunning  prometheus.Gauge

	// Trend fitting metrics.
	WindowsFitted  prometheus.Counter
	WindowsSkipped prometheus.Counter

	AnalysisDuration prometheus.Histogram
	LastRunTimestamp prometheus.Gauge

	// Sink metrics.
	ReportsPublished *prometheus.CounterVec // labels: sink
	SinkErrors       *prometheus.CounterVec // labels: sink
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RowsIngested,
		m.RowsRejected,
		m.RegionsProcessed,
		m.RegionsFailed,
		m.PipelineRunning,
		m.WindowsFitted,
		m.WindowsSkipped,
		m.AnalysisDuration,
		m.LastRunTimestamp,
		m.ReportsPublished,
		m.SinkErrors,
	)
	return m
}

// NewUnregisteredMetrics creates Metrics that are not exported anywhere, for
// one-shot runs that never serve /metrics.
func NewUnregisteredMetrics() *Metrics {
	return newMetrics()
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RowsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_ingested_total",
			Help:      "Total notification rows read from the dataset.",
		}),
		RowsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_rejected_total",
			Help:      "Total dataset rows that could not be parsed.",
		}),
		RegionsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "regions_processed_total",
			Help:      "Total regions analyzed successfully.",
		}),
		RegionsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "regions_failed_total",
			Help:      "Total regions skipped because of data or fit errors.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while an analysis run is in progress, 0 otherwise.",
		}),
		WindowsFitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "windows_fitted_total",
			Help:      "Total 8-day windows fitted.",
		}),
		WindowsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "windows_skipped_total",
			Help:      "Total windows rejected because they held non-positive counts.",
		}),
		AnalysisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "Duration of a complete extract-analyze-publish run.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),
		LastRunTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last completed analysis run.",
		}),
		ReportsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_published_total",
			Help:      "Reports delivered by sink.",
		}, []string{"sink"}),
		SinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_errors_total",
			Help:      "Failed report deliveries by sink.",
		}, []string{"sink"}),
	}
}
