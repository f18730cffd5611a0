package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"coursecraft-backend/internal/domain"
)

// Collector holds all Prometheus metrics for the application
type Collector struct {
	// Registry for this collector instance
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Recovery metrics
	Recoveries       *prometheus.CounterVec
	UpstreamFailures prometheus.Counter

	// Cache metrics
	CacheRequests  *prometheus.CounterVec
	CacheEvictions prometheus.Counter

	// Transaction metrics
	TransactionConflicts *prometheus.CounterVec
	VersionsCreated      prometheus.Counter

	// Repository metrics
	DBOperations *prometheus.CounterVec
	DBDuration   *prometheus.HistogramVec
}

// NewCollector creates a collector on its own registry, so several
// collectors (one per test, say) never clash on registration.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		Recoveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "recovery_total",
				Help:      "Structured-output recoveries by kind and satisfying tier",
			},
			[]string{"kind", "tier"},
		),
		UpstreamFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upstream_failures_total",
				Help:      "Text generation calls that failed or returned empty text",
			},
		),
		CacheRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_requests_total",
				Help:      "Fingerprint cache lookups by result",
			},
			[]string{"result"},
		),
		CacheEvictions: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_evictions_total",
				Help:      "Fingerprint cache entries evicted for exceeding the size bound",
			},
		),
		TransactionConflicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transaction_conflicts_total",
				Help:      "Transactions retried after a revision conflict",
			},
			[]string{"operation"},
		),
		VersionsCreated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "versions_created_total",
				Help:      "Content versions appended to the ledger",
			},
		),
		DBOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "db_operations_total",
				Help:      "Total number of database operations",
			},
			[]string{"operation", "status"},
		),
		DBDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "db_operation_duration_seconds",
				Help:      "Database operation duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}

	registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.Recoveries,
		c.UpstreamFailures,
		c.CacheRequests,
		c.CacheEvictions,
		c.TransactionConflicts,
		c.VersionsCreated,
		c.DBOperations,
		c.DBDuration,
	)
	return c
}

// RecordRecovery counts the tier that satisfied a recovery.
func (c *Collector) RecordRecovery(kind domain.Kind, tier domain.Tier) {
	c.Recoveries.WithLabelValues(string(kind), string(tier)).Inc()
}

// RecordUpstreamFailure counts a failed or empty generation call.
func (c *Collector) RecordUpstreamFailure() {
	c.UpstreamFailures.Inc()
}

// RecordCacheRequest counts a cache lookup outcome.
func (c *Collector) RecordCacheRequest(result string) {
	c.CacheRequests.WithLabelValues(result).Inc()
}

// RecordCacheEvictions counts evicted cache entries.
func (c *Collector) RecordCacheEvictions(n int) {
	c.CacheEvictions.Add(float64(n))
}

// RecordConflict counts a retried transaction.
func (c *Collector) RecordConflict(operation string) {
	c.TransactionConflicts.WithLabelValues(operation).Inc()
}

// RecordVersionCreated counts an appended version.
func (c *Collector) RecordVersionCreated() {
	c.VersionsCreated.Inc()
}

// RecordDBOperation records a store call and its latency.
func (c *Collector) RecordDBOperation(operation string, err error, duration time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
	}
	c.DBOperations.WithLabelValues(operation, status).Inc()
	c.DBDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordHTTPRequest records a served request.
func (c *Collector) RecordHTTPRequest(method, route, status string, duration time.Duration) {
	c.HTTPRequests.WithLabelValues(method, route, status).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// GetRegistry returns the Prometheus registry for this collector
func (c *Collector) GetRegistry() *prometheus.Registry {
	return c.registry
}

// Handler serves the collector's metrics in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
