// Package metrics exposes the Prometheus registry used by the proxy.
// All metrics are defined in their respective packages (cache, persist, fetch,
// breaker, coalesce, lookup) via promauto to keep packages independent.
//
// This package provides the scrape handler and a reference of every metric.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the proxy.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the registry scraped by Handler.
var Gatherer = prometheus.DefaultGatherer

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Memory Tier (pkg/cache):
//   - epg_memory_cache_records (Gauge): Source records held
//   - epg_memory_cache_chars{source} (Gauge): Cached document length per source
//   - epg_memory_cache_evictions_total (Counter): FIFO evictions
//   - epg_memory_cache_oversize_total (Counter): Documents too large to keep in memory
//   - epg_memory_cache_failures_total (Counter): Failed fetches recorded
//
// Persistent Tier (pkg/persist):
//   - epg_persistent_cache_hits_total{operation} (Counter): Hits by operation (match, header)
//   - epg_persistent_cache_misses_total (Counter): Misses
//   - epg_persistent_cache_stored_bytes_total (Counter): Body bytes written
//   - epg_persistent_cache_errors_total{operation} (Counter): Errors by operation
//
// Fetch (pkg/fetch):
//   - epg_fetch_requests_total{origin, result} (Counter): Fetches by origin (network, persistent)
//   - epg_fetch_duration_seconds (Histogram): Time to response headers
//   - epg_fetch_errors_total{kind} (Counter): Failures by kind (timeout, too_large, upstream_status, network, decode)
//   - epg_fetch_retries_total{kind} (Counter): Retry attempts
//   - epg_fetch_retry_exhausted_total (Counter): Fetches failing after every attempt
//   - epg_fetch_bytes_total (Counter): Body bytes read from upstream
//   - epg_fetch_persist_puts_total{result} (Counter): Background writes (stored, failed, aborted)
//
// Breaker and Coalescing (pkg/breaker, pkg/coalesce):
//   - epg_breaker_short_circuits_total (Counter): Lookups answered without fetching
//   - epg_breaker_cooldown_remaining_seconds{source} (Gauge): Time left in cooldown at last check
//   - epg_coalesce_calls_total{role} (Counter): Calls by role (leader, follower)
//   - epg_coalesce_abandoned_total (Counter): Waiters that gave up
//
// Lookup (pkg/lookup):
//   - epg_lookups_total{outcome} (Counter): How text was obtained
//   - epg_lookups_coalesced_total (Counter): Lookups sharing a fetch
//   - epg_queries_total{result} (Counter): Queries by result (ok, not_found, bad_request)
//   - epg_downloads_total{format, result} (Counter): Raw downloads
//
// HTTP (cmd/epg-proxy):
//   - epg_http_requests_total{route, status} (Counter): Requests by route and status
//   - epg_http_request_duration_seconds{route} (Histogram): Handler latency
//
// Example Prometheus Queries:
//
//   # Memory hit rate
//   sum(rate(epg_lookups_total{outcome="memory"}[5m])) / sum(rate(epg_lookups_total[5m]))
//
//   # Sources served stale because the upstream failed
//   rate(epg_lookups_total{outcome=~"stale|cooldown_stale"}[5m])
//
//   # Fetch failures by kind
//   sum by (kind) (rate(epg_fetch_errors_total[5m]))
//
//   # P95 upstream latency
//   histogram_quantile(0.95, rate(epg_fetch_duration_seconds_bucket[5m]))
