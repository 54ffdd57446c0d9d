package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheRecords tracks the number of source records held in memory
	CacheRecords = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "epg_memory_cache_records",
			Help: "Current number of source records in the memory cache",
		},
	)

	// CacheChars tracks cached document size in characters by source
	CacheChars = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "epg_memory_cache_chars",
			Help: "Cached document length in characters by source",
		},
		[]string{"source"},
	)

	// CacheEvictions tracks FIFO evictions
	CacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "epg_memory_cache_evictions_total",
			Help: "Total number of source records evicted by capacity",
		},
	)

	// CacheOversize tracks documents too large to keep in memory
	CacheOversize = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "epg_memory_cache_oversize_total",
			Help: "Total number of fetched documents not cached because they exceeded the memory limit",
		},
	)

	// CacheFailures tracks recorded fetch failures
	CacheFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "epg_memory_cache_failures_total",
			Help: "Total number of fetch failures recorded against source records",
		},
	)
)
