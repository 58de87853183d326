package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// CacheRequests counts cache lookups and writes made by the catalog read path.
// op is get or set; result is hit, miss, ok or error.
var CacheRequests = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "catalog_cache_requests_total",
		Help: "Cache operations issued by the catalog query service",
	},
	[]string{"op", "result"},
)

// SyncRuns counts provider sync runs by outcome (success, failure).
var SyncRuns = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "catalog_sync_runs_total",
		Help: "Catalog sync runs by outcome",
	},
	[]string{"status"},
)

// SyncPages counts committed movie pages.
var SyncPages = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "catalog_sync_pages_total",
		Help: "Movie pages committed by the synchronizer",
	},
)

// SyncDuration measures full sync runs, genres included.
var SyncDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "catalog_sync_duration_seconds",
		Help:    "Duration of catalog sync runs in seconds",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
	},
)

// DBQueryDuration measures repository calls, labelled by operation.
var DBQueryDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "catalog_db_query_duration_seconds",
		Help:    "Duration of catalog store queries in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
	},
	[]string{"operation"},
)

// ObserveQuery starts a timer for a store operation; call the returned func when done.
func ObserveQuery(operation string) func() {
	timer := prometheus.NewTimer(DBQueryDuration.WithLabelValues(operation))
	return func() { timer.ObserveDuration() }
}

// ProviderRequests counts provider calls made through the circuit breaker.
// result is success, failure or rejected.
var ProviderRequests = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "catalog_provider_requests_total",
		Help: "Movie provider requests by outcome",
	},
	[]string{"result"},
)

// BreakerState reports the provider circuit breaker state (0 closed, 1 half-open, 2 open).
var BreakerState = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "catalog_provider_breaker_state",
		Help: "Provider circuit breaker state",
	},
)

// DBPoolConnections reports connection pool occupancy by state
// (total, idle, acquired, max).
var DBPoolConnections = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "catalog_db_pool_connections",
		Help: "Postgres pool connections by state",
	},
	[]string{"state"},
)

// DBPoolAcquires reports cumulative pool acquires; empty counts those that had to wait.
var DBPoolAcquires = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "catalog_db_pool_acquires",
		Help: "Cumulative Postgres pool acquires by kind",
	},
	[]string{"kind"},
)

// PoolSnapshot is one reading of the pool counters.
type PoolSnapshot struct {
	Total        int32
	Idle         int32
	Acquired     int32
	Max          int32
	AcquireCount int64
	EmptyAcquire int64
}

// ObservePool sets the pool gauges from a snapshot.
func ObservePool(s PoolSnapshot) {
	DBPoolConnections.WithLabelValues("total").Set(float64(s.Total))
	DBPoolConnections.WithLabelValues("idle").Set(float64(s.Idle))
	DBPoolConnections.WithLabelValues("acquired").Set(float64(s.Acquired))
	DBPoolConnections.WithLabelValues("max").Set(float64(s.Max))
	DBPoolAcquires.WithLabelValues("all").Set(float64(s.AcquireCount))
	DBPoolAcquires.WithLabelValues("empty").Set(float64(s.EmptyAcquire))
}
