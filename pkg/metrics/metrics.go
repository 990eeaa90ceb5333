// Package metrics provides the centralized Prometheus registry reference for
// the DIP client. All metrics are defined in their respective packages
// (client, cache, ratelimit, pagination) to maintain modularity and avoid
// circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the DIP client.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - dip_requests_total{endpoint, status} (Counter): Total requests by endpoint and HTTP status ("cached" for cache hits)
//   - dip_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - dip_errors_total{category} (Counter): Errors by category (unauthorized, forbidden, rate_limited, client_error, server_error, connection_failure, timeout, malformed)
//
// Retry Metrics (pkg/client):
//   - dip_retries_total{category} (Counter): Retry attempts by error category
//   - dip_retry_backoff_seconds{category} (Histogram): Backoff duration by error category
//   - dip_retry_exhausted_total{category} (Counter): Requests that exhausted max retries
//
// Cache Metrics (pkg/cache):
//   - dip_cache_hits_total{backend} (Counter): Cache hits by backend (file, redis)
//   - dip_cache_misses_total{backend} (Counter): Cache misses by backend
//   - dip_cache_errors_total{backend, operation} (Counter): Cache operation errors
//   - dip_cache_evictions_total{backend} (Counter): Expired or corrupt entries removed
//
// Rate Limit Metrics (pkg/ratelimit):
//   - dip_ratelimit_waits_total (Counter): Requests delayed by the rate limiter
//   - dip_ratelimit_wait_seconds (Histogram): Time spent waiting for a slot
//
// Pagination Metrics (pkg/pagination):
//   - dip_pages_fetched_total{endpoint} (Counter): Pages fetched by endpoint
//   - dip_pagination_duration_seconds{endpoint} (Histogram): End-to-end multi-page fetch duration
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(dip_cache_hits_total[5m])) /
//   (sum(rate(dip_cache_hits_total[5m])) + sum(rate(dip_cache_misses_total[5m])))
//
//   # Request Error Rate
//   rate(dip_errors_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(dip_request_duration_seconds_bucket[5m]))
//
//   # Retry Pressure
//   rate(dip_retries_total[5m])
