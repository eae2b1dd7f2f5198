package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all metrics for the application
type Registry struct {
	// Refresh pipeline
	RefreshTotal       *prometheus.CounterVec
	RefreshDuration    prometheus.Histogram
	FetchDuration      *prometheus.HistogramVec
	FetchErrorsTotal   *prometheus.CounterVec
	RefreshTriggers    *prometheus.CounterVec
	RefreshesCoalesced prometheus.Counter

	// Snapshot
	SnapshotNodes      *prometheus.GaugeVec
	SnapshotEdges      *prometheus.GaugeVec
	SkippedRecords     *prometheus.GaugeVec
	RelationMisses     prometheus.Gauge
	TruncatedOnus      prometheus.Gauge
	SnapshotBuiltAt    prometheus.Gauge
	CacheHitsTotal     prometheus.Counter
	CacheBuildsTotal   prometheus.Counter
	CacheInvalidations prometheus.Counter

	// HTTP
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	AuthFailuresTotal   prometheus.Counter

	registry *prometheus.Registry
}

var (
	// Global registry instance
	defaultRegistry *Registry
	once            sync.Once
)

// DefaultRegistry returns the process-wide registry.
func DefaultRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry creates a new metrics registry with all metrics initialized
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	r := &Registry{
		registry: reg,
	}
	r.initRefreshMetrics()
	r.initSnapshotMetrics()
	r.initHTTPMetrics()
	return r
}

// GetPrometheusRegistry returns the underlying Prometheus registry
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

func (r *Registry) initRefreshMetrics() {
	r.RefreshTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "pontopology_refresh_total",
			Help: "Total number of topology refreshes",
		},
		[]string{"result"}, // built, cached, fetch_error, build_error
	)

	r.RefreshDuration = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pontopology_refresh_duration_seconds",
			Help:    "Duration of a full refresh (fetch + assemble) in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	r.FetchDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pontopology_fetch_duration_seconds",
			Help:    "Duration of one collection fetch in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"collection"},
	)

	r.FetchErrorsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "pontopology_fetch_errors_total",
			Help: "Total number of failed collection fetches",
		},
		[]string{"collection"},
	)

	r.RefreshTriggers = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "pontopology_refresh_triggers_total",
			Help: "Refresh triggers received by the scheduler",
		},
		[]string{"reason"}, // tick, manual, mutation, startup
	)

	r.RefreshesCoalesced = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "pontopology_refresh_triggers_coalesced_total",
			Help: "Triggers merged into an already pending refresh",
		},
	)
}

func (r *Registry) initSnapshotMetrics() {
	r.SnapshotNodes = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pontopology_snapshot_nodes",
			Help: "Nodes in the current snapshot",
		},
		[]string{"kind"},
	)

	r.SnapshotEdges = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pontopology_snapshot_edges",
			Help: "Edges in the current snapshot",
		},
		[]string{"class"},
	)

	r.SkippedRecords = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pontopology_snapshot_skipped_records",
			Help: "Malformed records skipped by the last assembly",
		},
		[]string{"kind"},
	)

	r.RelationMisses = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "pontopology_snapshot_relation_misses",
			Help: "Children emitted without their parent edge in the last assembly",
		},
	)

	r.TruncatedOnus = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "pontopology_snapshot_truncated_onus",
			Help: "ONUs left out of the last snapshot by the node cap",
		},
	)

	r.SnapshotBuiltAt = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "pontopology_snapshot_built_timestamp_seconds",
			Help: "Unix time the current snapshot was built",
		},
	)

	r.CacheHitsTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "pontopology_snapshot_cache_hits_total",
			Help: "Refreshes served from the snapshot cache",
		},
	)

	r.CacheBuildsTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "pontopology_snapshot_cache_builds_total",
			Help: "Snapshot assemblies",
		},
	)

	r.CacheInvalidations = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "pontopology_snapshot_cache_invalidations_total",
			Help: "Explicit snapshot cache invalidations",
		},
	)
}

func (r *Registry) initHTTPMetrics() {
	r.HTTPRequestsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "pontopology_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	r.HTTPRequestDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pontopology_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	r.AuthFailuresTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "pontopology_auth_failures_total",
			Help: "Requests rejected by the auth gate",
		},
	)
}
