// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Resolution metrics
	ResolutionsTotal   *prometheus.CounterVec
	ResolutionDuration *prometheus.HistogramVec
	CacheHits          prometheus.Counter
	CacheMisses        prometheus.Counter
	StaleServed        prometheus.Counter
	InflightCollapsed  prometheus.Counter

	// Refresh metrics
	RefreshSweeps    prometheus.Counter
	RecordsRefreshed prometheus.Counter

	// Decoder metrics
	DecodesTotal *prometheus.CounterVec

	// Solana metrics
	RPCCallLatency         *prometheus.HistogramVec
	RPCErrors              *prometheus.CounterVec
	WSNotifications        prometheus.Counter
	WSDroppedNotifications prometheus.Gauge
	WatchedAccounts        prometheus.Gauge
	BreakerState           prometheus.Gauge

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulResolution prometheus.Gauge
	UptimeSeconds            prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "token_metadata_api"
	}

	return &Metrics{
		// Resolution metrics
		ResolutionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "resolutions_total",
			Help:      "Total number of metadata resolutions by status and source",
		}, []string{"status", "source"}),
		ResolutionDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "resolution_duration_seconds",
			Help:      "Metadata resolution duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source"}),
		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "cache_hits_total",
			Help:      "Total number of resolutions served from stored records",
		}),
		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "cache_misses_total",
			Help:      "Total number of resolutions that required an RPC fetch",
		}),
		StaleServed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "stale_served_total",
			Help:      "Total number of stale records served after a failed fetch",
		}),
		InflightCollapsed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "inflight_collapsed_total",
			Help:      "Total number of requests coalesced into an in-flight fetch",
		}),

		// Refresh metrics
		RefreshSweeps: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "refresh_sweeps_total",
			Help:      "Total number of background refresh sweeps",
		}),
		RecordsRefreshed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "records_refreshed_total",
			Help:      "Total number of records refreshed by the background sweep",
		}),

		// Decoder metrics
		DecodesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "decoder",
			Name:      "decodes_total",
			Help:      "Total number of metadata account decodes by outcome",
		}, []string{"outcome"}),

		// Solana metrics
		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		RPCErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_errors_total",
			Help:      "Total number of Solana RPC errors by method and kind",
		}, []string{"method", "kind"}),
		WSNotifications: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "ws_notifications_total",
			Help:      "Total number of account notifications processed",
		}),
		WSDroppedNotifications: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "ws_dropped_notifications",
			Help:      "Cumulative count of account notifications dropped by the subscriber",
		}),
		WatchedAccounts: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "watched_accounts",
			Help:      "Number of metadata accounts with an active subscription",
		}),
		BreakerState: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "breaker_state",
			Help:      "RPC circuit breaker state (0 closed, 1 half-open, 2 open)",
		}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastSuccessfulResolution: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_resolution_timestamp",
			Help:      "Unix timestamp of last successful resolution",
		}),
		UptimeSeconds: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "uptime_seconds_total",
			Help:      "Total uptime in seconds",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordResolution records a completed resolution attempt.
func RecordResolution(status, source string, seconds float64) {
	DefaultMetrics.ResolutionsTotal.WithLabelValues(status, source).Inc()
	DefaultMetrics.ResolutionDuration.WithLabelValues(source).Observe(seconds)
}

// RecordCacheHit increments the cache hits counter.
func RecordCacheHit() {
	DefaultMetrics.CacheHits.Inc()
}

// RecordCacheMiss increments the cache misses counter.
func RecordCacheMiss() {
	DefaultMetrics.CacheMisses.Inc()
}

// RecordStaleServed increments the stale records served counter.
func RecordStaleServed() {
	DefaultMetrics.StaleServed.Inc()
}

// RecordInflightCollapsed increments the coalesced requests counter.
func RecordInflightCollapsed() {
	DefaultMetrics.InflightCollapsed.Inc()
}

// RecordRefreshSweep records a background sweep and how many records it refreshed.
func RecordRefreshSweep(refreshed int) {
	DefaultMetrics.RefreshSweeps.Inc()
	DefaultMetrics.RecordsRefreshed.Add(float64(refreshed))
}

// RecordDecode records a decode attempt by outcome ("ok" or "error").
func RecordDecode(outcome string) {
	DefaultMetrics.DecodesTotal.WithLabelValues(outcome).Inc()
}

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordRPCError records an RPC error by kind ("transient" or "permanent").
func RecordRPCError(method, kind string) {
	DefaultMetrics.RPCErrors.WithLabelValues(method, kind).Inc()
}

// RecordWSNotification increments the processed notifications counter.
func RecordWSNotification() {
	DefaultMetrics.WSNotifications.Inc()
}

// UpdateWSDropped updates the dropped notifications gauge.
func UpdateWSDropped(count uint64) {
	DefaultMetrics.WSDroppedNotifications.Set(float64(count))
}

// UpdateWatchedAccounts updates the watched accounts gauge.
func UpdateWatchedAccounts(count int) {
	DefaultMetrics.WatchedAccounts.Set(float64(count))
}

// UpdateBreakerState updates the circuit breaker state gauge.
func UpdateBreakerState(state float64) {
	DefaultMetrics.BreakerState.Set(state)
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// RecordSuccessfulResolution updates the last successful resolution timestamp.
func RecordSuccessfulResolution(unixSeconds int64) {
	DefaultMetrics.LastSuccessfulResolution.Set(float64(unixSeconds))
}
