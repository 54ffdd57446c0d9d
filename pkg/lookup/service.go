// Package lookup is the resilient read-through path from a point query
// (channel, date) to programmes. It ties together the memory store, the
// circuit breaker, request coalescing, the fetcher and the query engine.
//
// Lookups never fail. Upstream trouble is absorbed into the source record
// and the logs; callers see either an answer computed from the best text
// available (fresh, or stale when the upstream is failing) or an empty result.
package lookup

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/wumian8998/epg-proxy-newl/pkg/breaker"
	"github.com/wumian8998/epg-proxy-newl/pkg/cache"
	"github.com/wumian8998/epg-proxy-newl/pkg/clock"
	"github.com/wumian8998/epg-proxy-newl/pkg/coalesce"
	"github.com/wumian8998/epg-proxy-newl/pkg/epg"
	"github.com/wumian8998/epg-proxy-newl/pkg/fetch"
	"github.com/wumian8998/epg-proxy-newl/pkg/persist"
)

// errCircuitOpen is returned from a coalesced refresh that found the circuit
// open by the time it ran.
var errCircuitOpen = errors.New("circuit open")

// SourceFetcher retrieves source documents.
type SourceFetcher interface {
	Fetch(ctx context.Context, url string) (*fetch.Source, error)
	FetchText(ctx context.Context, url string) (string, error)
}

// Config holds the service configuration and its collaborators.
type Config struct {
	// PrimaryURL is the main source document.
	PrimaryURL string

	// BackupURL is consulted when the primary yields no programmes.
	BackupURL string

	// TTL is advertised to HTTP clients through Cache-Control.
	TTL time.Duration

	// Location is the timezone of status labels.
	Location *time.Location

	Store   *cache.Store
	Breaker *breaker.Breaker
	Fetcher SourceFetcher
	Persist persist.Adapter
	Engine  *epg.Engine
	Clock   clock.Clock
}

// Service answers point queries against one primary and an optional backup
// source. It is safe for concurrent use and is created once per process.
type Service struct {
	config Config
	group  coalesce.Group
	logger zerolog.Logger
}

// New creates a service. Store, Breaker and Fetcher are required.
func New(cfg Config, logger zerolog.Logger) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("store is required")
	}
	if cfg.Breaker == nil {
		return nil, errors.New("breaker is required")
	}
	if cfg.Fetcher == nil {
		return nil, errors.New("fetcher is required")
	}
	if cfg.Persist == nil {
		cfg.Persist = persist.Nop{}
	}
	if cfg.Engine == nil {
		cfg.Engine = epg.NewEngine()
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Service{
		config: cfg,
		logger: logger,
	}, nil
}

// Lookup resolves channelQuery in the document at sourceURL and returns its
// programmes for date. It never returns an error; the result is empty when
// no usable text exists.
func (s *Service) Lookup(ctx context.Context, sourceURL, channelQuery, date string) epg.Result {
	text, ok := s.documentText(ctx, sourceURL)
	if !ok {
		return epg.Result{Date: date}
	}
	return s.config.Engine.ResolveAndExtract(text, channelQuery, date)
}

// Prefetch loads sourceURL through the resilient path without querying it.
// It reports whether usable text is now available.
func (s *Service) Prefetch(ctx context.Context, sourceURL string) bool {
	_, ok := s.documentText(ctx, sourceURL)
	return ok
}

// documentText returns the best text for sourceURL:
//  1. circuit open: cached text regardless of age, never a fetch
//  2. fresh cached text
//  3. a coalesced fetch, falling back to stale text when it fails
func (s *Service) documentText(ctx context.Context, sourceURL string) (string, bool) {
	rec, _ := s.config.Store.Get(sourceURL)

	if d := s.config.Breaker.Check(rec); d.Open {
		if rec.HasText {
			LookupsTotal.WithLabelValues("cooldown_stale").Inc()
			return rec.CachedText, true
		}
		LookupsTotal.WithLabelValues("cooldown_empty").Inc()
		return "", false
	}

	if rec.IsFresh(s.config.Clock.Now()) {
		LookupsTotal.WithLabelValues("memory").Inc()
		s.logger.Debug().Str("source", sourceURL).Msg("Memory cache hit")
		return rec.CachedText, true
	}

	text, shared, err := s.group.Do(ctx, sourceURL, func(ctx context.Context) (string, error) {
		return s.refresh(ctx, sourceURL)
	})
	if shared {
		LookupsCoalesced.Inc()
	}

	switch {
	case err == nil:
		LookupsTotal.WithLabelValues("fetched").Inc()
		return text, true
	case ctx.Err() != nil:
		// The caller left; the shared refresh still completes and records.
		LookupsTotal.WithLabelValues("abandoned").Inc()
		return "", false
	case text != "":
		LookupsTotal.WithLabelValues("stale").Inc()
		return text, true
	default:
		LookupsTotal.WithLabelValues("empty").Inc()
		return "", false
	}
}

// refresh runs once per coalesced group. It re-reads the record first, since
// a previous group may have finished between the caller's check and now, then
// fetches and applies the outcome to the store in one update. On failure it
// returns the stale text alongside the error.
func (s *Service) refresh(ctx context.Context, sourceURL string) (string, error) {
	rec, _ := s.config.Store.Get(sourceURL)
	if s.config.Breaker.Peek(rec).Open {
		return rec.CachedText, errCircuitOpen
	}
	if rec.IsFresh(s.config.Clock.Now()) {
		return rec.CachedText, nil
	}

	start := time.Now()
	text, err := s.config.Fetcher.FetchText(ctx, sourceURL)
	now := s.config.Clock.Now()

	if err != nil {
		updated := s.config.Store.RecordFailure(sourceURL, err, now)
		if updated.HasText {
			s.logger.Warn().
				Err(err).
				Str("source", sourceURL).
				Dur("age", now.Sub(updated.ExpireAt)).
				Msg("Serving stale text after failed fetch")
			return updated.CachedText, err
		}
		return "", err
	}

	s.config.Store.RecordSuccess(sourceURL, text, now)
	s.logger.Info().
		Str("source", sourceURL).
		Int("chars", len(text)).
		Dur("elapsed", time.Since(start)).
		Msg("Source refreshed")
	return text, nil
}

// PrimaryURL returns the configured primary source.
func (s *Service) PrimaryURL() string {
	return s.config.PrimaryURL
}

// BackupURL returns the configured backup source, or "".
func (s *Service) BackupURL() string {
	return s.config.BackupURL
}

// TTL returns the advertised cache lifetime.
func (s *Service) TTL() time.Duration {
	return s.config.TTL
}

// Ready reports whether the persistent tier, when it can be pinged, answers.
// A memory-only service is always ready.
func (s *Service) Ready(ctx context.Context) error {
	if p, ok := s.config.Persist.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Close waits for background persistent writes and releases the persistent
// tier when it holds resources.
func (s *Service) Close() error {
	if w, ok := s.config.Fetcher.(interface{ Wait() }); ok {
		w.Wait()
	}
	if c, ok := s.config.Persist.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
