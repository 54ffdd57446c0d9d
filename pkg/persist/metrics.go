package persist

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks persistent cache hits by operation (match, header)
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "epg_persistent_cache_hits_total",
			Help: "Total number of persistent cache hits",
		},
		[]string{"operation"},
	)

	// CacheMisses tracks persistent cache misses
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "epg_persistent_cache_misses_total",
			Help: "Total number of persistent cache misses",
		},
	)

	// CacheStoredBytes tracks bytes written to the persistent cache
	CacheStoredBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "epg_persistent_cache_stored_bytes_total",
			Help: "Total number of body bytes written to the persistent cache",
		},
	)

	// CacheErrors tracks persistent cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "epg_persistent_cache_errors_total",
			Help: "Total number of persistent cache operation errors",
		},
		[]string{"operation"}, // "put", "match", "header"
	)
)
