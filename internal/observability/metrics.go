package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// data service.
type Metrics struct {
	FetchAttempts *prometheus.CounterVec // labels: outcome={success,timeout,network,http,data_shape}
	FetchDuration prometheus.Histogram

	CacheReads       *prometheus.CounterVec // labels: result={hit,stale,miss}
	CacheWriteErrors prometheus.Counter

	SnapshotBuilds   prometheus.Counter
	RecordsSkipped   *prometheus.CounterVec // labels: reason={decode,location}
	SnapshotProjects prometheus.Gauge
	SnapshotMarkers  prometheus.Gauge

	ProxyRequests *prometheus.CounterVec // labels: outcome={ok,upstream_error,timeout,transport}
}

// NewMetrics creates and registers all service metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.FetchAttempts,
		m.FetchDuration,
		m.CacheReads,
		m.CacheWriteErrors,
		m.SnapshotBuilds,
		m.RecordsSkipped,
		m.SnapshotProjects,
		m.SnapshotMarkers,
		m.ProxyRequests,
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
		FetchAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "acciones",
			Name:      "fetch_attempts_total",
			Help:      "Survey API fetch attempts by outcome.",
		}, []string{"outcome"}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "acciones",
			Name:      "fetch_duration_seconds",
			Help:      "Survey API request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
		}),
		CacheReads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "acciones",
			Name:      "cache_reads_total",
			Help:      "Snapshot cache lookups by result.",
		}, []string{"result"}),
		CacheWriteErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "acciones",
			Name:      "cache_write_errors_total",
			Help:      "Failed snapshot cache writes.",
		}),
		SnapshotBuilds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "acciones",
			Name:      "snapshot_builds_total",
			Help:      "Successful aggregation passes over fresh survey data.",
		}),
		RecordsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "acciones",
			Name:      "records_skipped_total",
			Help:      "Survey submissions dropped during aggregation, by reason.",
		}, []string{"reason"}),
		SnapshotProjects: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "acciones",
			Name:      "snapshot_projects",
			Help:      "Projects in the most recent snapshot.",
		}),
		SnapshotMarkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "acciones",
			Name:      "snapshot_markers",
			Help:      "Markers in the most recent snapshot.",
		}),
		ProxyRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "acciones",
			Name:      "proxy_requests_total",
			Help:      "GeoServer proxy requests by outcome.",
		}, []string{"outcome"}),
	}
}
