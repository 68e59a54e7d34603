// Package observability provides metrics and tracing.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ListingsCreated counts listings appended to the local collection.
	ListingsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketplace_listings_created_total",
		Help: "Total number of listings created, by category",
	}, []string{"category"})

	// ListingsAccepted counts OPEN -> ACCEPTED transitions by where the listing lives.
	ListingsAccepted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketplace_listings_accepted_total",
		Help: "Total number of listings accepted, by source",
	}, []string{"source"})

	// ValidationFailures counts rejected form submissions by form and field.
	ValidationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketplace_validation_failures_total",
		Help: "Total number of field-level validation failures",
	}, []string{"form", "field"})

	// CacheCorruptions counts local cache payloads discarded as unparseable.
	CacheCorruptions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marketplace_local_cache_corrupt_total",
		Help: "Total number of corrupt local cache payloads treated as empty",
	})

	// OversizedUploads counts image attachments rejected by the size cap.
	OversizedUploads = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marketplace_oversized_uploads_total",
		Help: "Total number of image uploads rejected for size",
	})

	// ProfileSaves counts profile save attempts by result.
	ProfileSaves = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketplace_profile_saves_total",
		Help: "Total number of profile saves, by result",
	}, []string{"result"})

	// RedisErrors counts Redis errors by command.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketplace_redis_errors_total",
		Help: "Total number of Redis errors by command",
	}, []string{"command"})

	// RateLimitRejections counts requests refused by the rate limiter.
	RateLimitRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketplace_rate_limit_rejections_total",
		Help: "Total number of requests rejected by the rate limiter, by resource",
	}, []string{"resource"})

	// DatabaseQueryLatency records repository latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "marketplace_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}
