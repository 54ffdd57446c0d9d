package fetch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FetchRequests tracks source fetches by origin and result.
	FetchRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "epg_fetch_requests_total",
		Help: "Total source fetches by origin and result",
	}, []string{"origin", "result"})

	// FetchDuration tracks time to response headers.
	FetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "epg_fetch_duration_seconds",
		Help:    "Time until the upstream answered with headers",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 20, 30},
	})

	// FetchErrors tracks failed fetches by kind.
	FetchErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "epg_fetch_errors_total",
		Help: "Total failed source fetches by kind",
	}, []string{"kind"})

	// FetchRetries tracks retry attempts by kind of the failure retried.
	FetchRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "epg_fetch_retries_total",
		Help: "Total number of fetch retry attempts by error kind",
	}, []string{"kind"})

	// FetchRetryExhausted tracks fetches that failed after every attempt.
	FetchRetryExhausted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "epg_fetch_retry_exhausted_total",
		Help: "Total number of times fetch retry attempts were exhausted",
	})

	// FetchBytes tracks body bytes read from the network.
	FetchBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "epg_fetch_bytes_total",
		Help: "Total number of source body bytes read from upstream",
	})

	// PersistPuts tracks background persistent-cache writes by result.
	PersistPuts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "epg_fetch_persist_puts_total",
		Help: "Background persistent cache writes by result",
	}, []string{"result"}) // "stored", "failed", "aborted"
)
