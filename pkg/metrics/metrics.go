package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Graph metrics
	GraphVerticesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "accessmesh_graph_vertices_total",
			Help: "Total number of vertices in the reachability graph by kind (leaf, non_leaf)",
		},
		[]string{"kind"},
	)

	GraphEdgesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "accessmesh_graph_edges_total",
			Help: "Total number of edges in the reachability graph by kind (user_to_group, group_to_group)",
		},
		[]string{"kind"},
	)

	MappingsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "accessmesh_mappings_total",
			Help: "Total number of access mappings by kind (component, entity)",
		},
		[]string{"kind"},
	)

	// Event buffer / flush metrics
	EventBufferDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "accessmesh_event_buffer_depth",
			Help: "Current number of buffered events by event kind",
		},
		[]string{"kind"},
	)

	FlushDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "accessmesh_flush_duration_seconds",
			Help:    "Time taken to persist a flushed event batch",
			Buckets: prometheus.DefBuckets,
		},
	)

	FlushBatchSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "accessmesh_flush_batch_size",
			Help:    "Number of events in a flushed batch",
			Buckets: []float64{1, 10, 50, 100, 500, 1000, 5000},
		},
	)

	FlushFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "accessmesh_flush_failures_total",
			Help: "Total number of batch persist failures",
		},
	)

	// Cache metrics
	CacheHitTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "accessmesh_cache_hit_total",
			Help: "Total number of TemporalEventCache hits",
		},
	)

	CacheMissTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "accessmesh_cache_miss_total",
			Help: "Total number of TemporalEventCache misses (fell back to persister)",
		},
	)

	CacheSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "accessmesh_cache_size",
			Help: "Current number of events retained in the temporal cache",
		},
	)

	// Reader node metrics
	ReaderLagEvents = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "accessmesh_reader_lag_events",
			Help: "Estimated number of events the reader node has not yet applied",
		},
	)

	ReaderApplyDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "accessmesh_reader_apply_duration_seconds",
			Help:    "Time taken to apply a batch of events on a reader node",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Shard client / coordinator metrics
	ShardRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accessmesh_shard_requests_total",
			Help: "Total number of requests routed to a shard by kind and status",
		},
		[]string{"kind", "status"},
	)

	ShardRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "accessmesh_shard_request_duration_seconds",
			Help:    "Duration of a single shard RPC",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	CoordinatorFanoutDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "accessmesh_coordinator_fanout_duration_seconds",
			Help:    "Duration of a coordinator fan-out operation",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// Split metrics
	SplitState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "accessmesh_split_state",
			Help: "Current state of an in-progress split (1 = active) by range and state name",
		},
		[]string{"range", "state"},
	)

	SplitBackfillEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accessmesh_split_backfill_events_total",
			Help: "Total number of events copied during split backfill",
		},
		[]string{"range"},
	)

	// Breaker / pauser metrics
	CircuitBreakerTripped = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "accessmesh_circuit_breaker_tripped",
			Help: "Whether the circuit breaker is currently tripped (1 = tripped)",
		},
	)

	PauseActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "accessmesh_pause_active",
			Help: "Whether the request pauser currently has an active pause (1 = active)",
		},
	)

	// API-level metrics, collected by the out-of-scope transport layer but
	// registered here so the core exposes them under one registry.
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accessmesh_api_requests_total",
			Help: "Total number of API requests by method and status",
		},
		[]string{"method", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "accessmesh_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

func init() {
	prometheus.MustRegister(
		GraphVerticesTotal,
		GraphEdgesTotal,
		MappingsTotal,
		EventBufferDepth,
		FlushDuration,
		FlushBatchSize,
		FlushFailuresTotal,
		CacheHitTotal,
		CacheMissTotal,
		CacheSize,
		ReaderLagEvents,
		ReaderApplyDuration,
		ShardRequestsTotal,
		ShardRequestDuration,
		CoordinatorFanoutDuration,
		SplitState,
		SplitBackfillEventsTotal,
		CircuitBreakerTripped,
		PauseActive,
		APIRequestsTotal,
		APIRequestDuration,
	)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
