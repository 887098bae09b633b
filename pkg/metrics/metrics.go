// Package metrics provides the centralized Prometheus metrics registry for
// the Intra API client. All metrics are defined in their respective packages
// (client, cache, ratelimit, pagination) to maintain modularity and avoid
// circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the Intra API client.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Rate Limit Metrics (pkg/ratelimit):
//   - ft_rate_limit_permits_granted_total (Counter): Permits granted by the limiter
//   - ft_rate_limit_permit_wait_seconds (Histogram): Time spent waiting for a permit
//   - ft_rate_limit_retry_after_blocks_total (Counter): Waits caused by a Retry-After directive
//   - ft_rate_limit_secondly_remaining (Gauge): Remaining requests in the per-second window
//   - ft_rate_limit_hourly_remaining (Gauge): Remaining requests in the per-hour window
//
// Scroll Metrics (pkg/pagination):
//   - ft_scroll_pages_fetched_total (Counter): Pages fetched across all scrolls
//   - ft_scroll_page_retries_total (Counter): Page retries after rate limit rejections
//   - ft_scroll_page_errors_total (Counter): Pages abandoned after a terminal error
//   - ft_scroll_duration_seconds (Histogram): Wall-clock duration of whole scrolls
//
// Cache Metrics (pkg/cache):
//   - ft_cache_hits_total{layer="redis"} (Counter): Cache hits by layer
//   - ft_cache_misses_total (Counter): Cache misses
//   - ft_cache_size_bytes{layer="redis"} (Gauge): Current cache size in bytes
//   - ft_cache_errors_total{operation} (Counter): Cache operation errors
//
// Request Metrics (pkg/client):
//   - ft_requests_total{endpoint, status} (Counter): Total requests by endpoint and HTTP status
//   - ft_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - ft_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network)
//
// Retry Metrics (pkg/client):
//   - ft_retries_total{error_class} (Counter): Retry attempts by error class
//   - ft_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - ft_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(ft_cache_hits_total[5m])) /
//   (sum(rate(ft_cache_hits_total[5m])) + sum(rate(ft_cache_misses_total[5m])))
//
//   # Hourly Quota Pressure
//   ft_rate_limit_hourly_remaining < 100
//
//   # Permit Wait P95
//   histogram_quantile(0.95, rate(ft_rate_limit_permit_wait_seconds_bucket[5m]))
//
//   # Page Retry Rate
//   rate(ft_scroll_page_retries_total[5m]) / rate(ft_scroll_pages_fetched_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(ft_request_duration_seconds_bucket[5m]))
