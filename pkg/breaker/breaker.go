package breaker

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/wumian8998/epg-proxy-newl/pkg/cache"
	"github.com/wumian8998/epg-proxy-newl/pkg/clock"
)

var (
	breakerShortCircuits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "epg_breaker_short_circuits_total",
		Help: "Total number of lookups answered without fetching because the circuit was open",
	})

	breakerCooldownRemaining = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "epg_breaker_cooldown_remaining_seconds",
		Help: "Seconds until the circuit for a source closes, as of the last check",
	}, []string{"source"})
)

// Breaker decides whether a source may be fetched.
type Breaker struct {
	cooldown time.Duration
	clock    clock.Clock
	logger   zerolog.Logger
}

// New creates a breaker. A non-positive cooldown uses DefaultCooldown.
func New(cooldown time.Duration, clk clock.Clock, logger zerolog.Logger) *Breaker {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Breaker{
		cooldown: cooldown,
		clock:    clk,
		logger:   logger,
	}
}

// Check evaluates the circuit for rec. An open circuit is counted and logged.
func (b *Breaker) Check(rec cache.SourceRecord) Decision {
	d := b.Peek(rec)
	if !d.Open {
		return d
	}

	breakerShortCircuits.Inc()
	breakerCooldownRemaining.WithLabelValues(rec.URL).Set(d.Remaining.Seconds())
	b.logger.Warn().
		Str("source", rec.URL).
		Dur("remaining", d.Remaining).
		Str("error", d.LastError).
		Bool("has_text", rec.HasText).
		Msg("Circuit open, skipping fetch")
	return d
}

// Peek evaluates the circuit for rec without recording anything.
func (b *Breaker) Peek(rec cache.SourceRecord) Decision {
	now := b.clock.Now()
	if !rec.InCooldown(now, b.cooldown) {
		return Decision{}
	}
	remaining := rec.LastErrorAt.Add(b.cooldown).Sub(now)
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Open:      true,
		Remaining: remaining,
		LastError: rec.LastErrorMessage,
	}
}

// Cooldown returns the configured cooldown window.
func (b *Breaker) Cooldown() time.Duration {
	return b.cooldown
}
