package lookup

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/wumian8998/epg-proxy-newl/pkg/breaker"
	"github.com/wumian8998/epg-proxy-newl/pkg/cache"
	"github.com/wumian8998/epg-proxy-newl/pkg/clock"
	"github.com/wumian8998/epg-proxy-newl/pkg/config"
	"github.com/wumian8998/epg-proxy-newl/pkg/epg"
	"github.com/wumian8998/epg-proxy-newl/pkg/fetch"
	"github.com/wumian8998/epg-proxy-newl/pkg/logging"
	"github.com/wumian8998/epg-proxy-newl/pkg/persist"
)

// FromConfig wires a Service from the process configuration. When a Redis URL
// is configured the persistent tier is dialed; if that fails the service runs
// memory-only and logs why.
func FromConfig(ctx context.Context, cfg config.Config, clk clock.Clock, logger zerolog.Logger) (*Service, error) {
	if clk == nil {
		clk = clock.New()
	}

	var adapter persist.Adapter = persist.Nop{}
	if cfg.RedisURL != "" {
		r, err := persist.DialRedis(ctx, cfg.RedisURL, cfg.CacheTTL(), logging.Component(logger, "persist"))
		if err != nil {
			logger.Warn().Err(err).Msg("Persistent cache unavailable, continuing memory-only")
		} else {
			adapter = r
		}
	}

	store := cache.NewStore(cache.Config{
		Capacity: cfg.CacheCapacity,
		MaxChars: cfg.MaxMemoryCacheChars,
		TTL:      cfg.CacheTTL(),
	}, logging.Component(logger, "cache"))

	fetcher := fetch.New(fetch.Config{
		Timeout: cfg.FetchTimeout(),
		MaxSize: cfg.MaxSourceSizeBytes,
		TTL:     cfg.CacheTTL(),
		Retries: cfg.FetchRetries,
	}, adapter, clk, logging.Component(logger, "fetch"))

	return New(Config{
		PrimaryURL: cfg.SourceURL,
		BackupURL:  cfg.BackupSourceURL,
		TTL:        cfg.CacheTTL(),
		Location:   cfg.Location(),
		Store:      store,
		Breaker:    breaker.New(cfg.ErrorCooldown(), clk, logging.Component(logger, "breaker")),
		Fetcher:    fetcher,
		Persist:    adapter,
		Engine:     epg.NewEngine(),
		Clock:      clk,
	}, logging.Component(logger, "lookup"))
}
