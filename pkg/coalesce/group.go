// Package coalesce collapses concurrent fetches of the same source into one.
package coalesce

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/singleflight"
)

var (
	coalescedCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "epg_coalesce_calls_total",
		Help: "Coalesced calls by role (leader runs the function, follower attaches)",
	}, []string{"role"})

	coalesceAbandoned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "epg_coalesce_abandoned_total",
		Help: "Total number of waiters that stopped waiting because their context ended",
	})
)

// Group runs at most one function per key at a time. Callers arriving while a
// call is in flight wait for it and receive the same outcome.
type Group struct {
	sf singleflight.Group
}

// Do runs fn once for key and returns its result to every concurrent caller.
// shared reports whether the result was delivered to more than one caller.
//
// fn receives a context detached from ctx's cancellation (values are kept),
// so one caller giving up never aborts the work others are waiting on. When
// ctx ends first Do returns ctx.Err() and fn keeps running to completion.
func (g *Group) Do(ctx context.Context, key string, fn func(context.Context) (string, error)) (string, bool, error) {
	detached := context.WithoutCancel(ctx)
	leader := false

	ch := g.sf.DoChan(key, func() (interface{}, error) {
		leader = true
		return fn(detached)
	})

	select {
	case res := <-ch:
		if leader {
			coalescedCalls.WithLabelValues("leader").Inc()
		} else {
			coalescedCalls.WithLabelValues("follower").Inc()
		}
		text, _ := res.Val.(string)
		return text, res.Shared, res.Err
	case <-ctx.Done():
		coalesceAbandoned.Inc()
		return "", false, ctx.Err()
	}
}
