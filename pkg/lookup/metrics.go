package lookup

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LookupsTotal tracks how document text was obtained for a lookup.
	LookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "epg_lookups_total",
			Help: "Lookups by outcome (memory, fetched, stale, cooldown_stale, cooldown_empty, empty, abandoned)",
		},
		[]string{"outcome"},
	)

	// LookupsCoalesced tracks lookups that shared a fetch with others.
	LookupsCoalesced = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "epg_lookups_coalesced_total",
			Help: "Total number of lookups whose fetch result was shared",
		},
	)

	// QueriesTotal tracks query answers by result.
	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "epg_queries_total",
			Help: "Point queries by result (ok, not_found, bad_request)",
		},
		[]string{"result"},
	)

	// DownloadsTotal tracks raw document downloads.
	DownloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "epg_downloads_total",
			Help: "Raw document downloads by format and result",
		},
		[]string{"format", "result"},
	)
)
