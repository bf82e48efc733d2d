package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters and histograms for the ETL pipeline.
type Metrics struct {
	// Download metrics.
	FilesFetched  *prometheus.CounterVec // labels: outcome={written,skipped,failed}
	FetchDuration prometheus.Histogram

	// Transform metrics.
	TransformsRun       prometheus.Counter
	TransformsSkipped   prometheus.Counter
	CacheLookups        *prometheus.CounterVec // labels: result={hit,miss}
	CoordinateFallbacks prometheus.Counter
	RowsPerFile         prometheus.Histogram

	// Combine metrics.
	CombinesRun prometheus.Counter
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.FilesFetched,
		m.FetchDuration,
		m.TransformsRun,
		m.TransformsSkipped,
		m.CacheLookups,
		m.CoordinateFallbacks,
		m.RowsPerFile,
		m.CombinesRun,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		FilesFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tess_ida",
			Name:      "files_fetched_total",
			Help:      "Monthly file downloads by outcome.",
		}, []string{"outcome"}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "tess_ida",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of a single monthly file download.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		TransformsRun: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tess_ida",
			Name:      "transforms_run_total",
			Help:      "Monthly files transformed into artifacts.",
		}),
		TransformsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tess_ida",
			Name:      "transforms_skipped_total",
			Help:      "Transforms skipped because content and artifact were already current.",
		}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tess_ida",
			Name:      "cache_lookups_total",
			Help:      "Content-hash cache lookups by result.",
		}, []string{"result"}),
		CoordinateFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tess_ida",
			Name:      "coordinate_fallbacks_total",
			Help:      "Transforms that substituted reference coordinates for an unresolved header position.",
		}),
		RowsPerFile: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "tess_ida",
			Name:      "rows_per_file",
			Help:      "Data rows per parsed monthly file.",
			Buckets:   []float64{100, 500, 1000, 5000, 10000, 20000, 50000, 100000},
		}),
		CombinesRun: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tess_ida",
			Name:      "combines_run_total",
			Help:      "Range combines that produced a combined artifact.",
		}),
	}
}
