// Package metrics exposes the Prometheus metrics of the catalog client.
// Collectors are defined in their respective packages (client, cache,
// ratelimit, pagination, search) and registered via promauto, so importing
// this package never creates a dependency cycle.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registerer every catalog collector is registered with.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the gatherer Handler serves from.
var Gatherer = prometheus.DefaultGatherer

// Handler returns the HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Upstream Metrics (pkg/client):
//   - catalog_upstream_requests_total{upstream, status} (Counter): Requests by upstream and HTTP status
//   - catalog_upstream_request_duration_seconds{upstream} (Histogram): Request duration
//   - catalog_upstream_errors_total{upstream, class} (Counter): Errors by class (client, not_found, server, rate_limit, network, decode)
//   - catalog_upstream_retries_total{error_class} (Counter): Retry attempts
//   - catalog_upstream_retry_backoff_seconds{error_class} (Histogram): Backoff duration
//   - catalog_upstream_retry_exhausted_total{error_class} (Counter): Requests that exhausted max attempts
//
// Cache Metrics (pkg/cache):
//   - catalog_cache_hits_total{layer} (Counter): Cache hits by layer (memory, redis)
//   - catalog_cache_misses_total (Counter): Cache misses
//   - catalog_cache_memory_entries (Gauge): Entries held in the memory layer
//   - catalog_conditional_requests_total (Counter): Revalidation requests sent
//   - catalog_not_modified_responses_total (Counter): 304 Not Modified responses
//   - catalog_cache_errors_total{operation} (Counter): Cache operation errors
//
// Rate Limit Metrics (pkg/ratelimit):
//   - catalog_rate_limit_remaining{upstream} (Gauge): Remaining requests reported by the upstream
//   - catalog_rate_limit_blocks_total{upstream} (Counter): Requests blocked after a 429
//   - catalog_rate_limit_throttles_total{upstream} (Counter): Requests delayed by local pacing
//
// Pagination Metrics (pkg/pagination):
//   - catalog_pagination_pages_total{outcome} (Counter): Page fetches (ok, error)
//   - catalog_pagination_walks_total{strategy, result} (Counter): Catalog walks (complete, partial)
//
// Search Metrics (pkg/search):
//   - catalog_search_requests_total{outcome} (Counter): Search responses (ok, error, discarded)
//   - catalog_search_superseded_total (Counter): In-flight searches cancelled by a newer filter
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(catalog_cache_hits_total[5m])) /
//   (sum(rate(catalog_cache_hits_total[5m])) + sum(rate(catalog_cache_misses_total[5m])))
//
//   # Partial catalog walks
//   rate(catalog_pagination_walks_total{result="partial"}[1h])
//
//   # P95 Upstream Latency
//   histogram_quantile(0.95, rate(catalog_upstream_request_duration_seconds_bucket[5m]))
//
//   # Share of searches answered after the user moved on
//   rate(catalog_search_requests_total{outcome="discarded"}[5m]) / rate(catalog_search_requests_total[5m])
