// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fridgetrack_http_requests_total",
			Help: "Total number of HTTP requests issued by the transport",
		},
		[]string{"method", "route", "status"},
	)

	RetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fridgetrack_retry_attempts_total",
			Help: "Number of retries scheduled by the retry policy",
		},
		[]string{"operation", "status"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fridgetrack_cache_lookups_total",
			Help: "Query cache lookups by result (hit, stale, miss)",
		},
		[]string{"resource", "result"},
	)

	CacheInvalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fridgetrack_cache_invalidations_total",
			Help: "Entries marked stale by invalidation",
		},
		[]string{"resource"},
	)

	OptimisticRollbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fridgetrack_optimistic_rollbacks_total",
			Help: "Optimistic mutations rolled back after a server failure",
		},
		[]string{"mutation"},
	)

	Uploads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fridgetrack_uploads_total",
			Help: "Upload pipeline runs by terminal outcome",
		},
		[]string{"outcome"},
	)

	UploadBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fridgetrack_upload_bytes",
			Help:    "Size of transmitted upload payloads",
			Buckets: prometheus.ExponentialBuckets(64*1024, 2, 10),
		},
	)
)

// Resource returns the first element of a cache key as a metric label.
func Resource(key []interface{}) string {
	if len(key) == 0 {
		return "unknown"
	}
	if s, ok := key[0].(string); ok {
		return s
	}
	return "unknown"
}
