package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "time/tzdata"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/wumian8998/epg-proxy-newl/pkg/config"
	"github.com/wumian8998/epg-proxy-newl/pkg/logging"
	"github.com/wumian8998/epg-proxy-newl/pkg/lookup"
	"github.com/wumian8998/epg-proxy-newl/pkg/warmup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// app carries state shared by every subcommand.
type app struct {
	v          *viper.Viper
	configPath string
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.NewViper()}

	root := &cobra.Command{
		Use:   "epg-proxy",
		Short: "Resilient caching proxy for XMLTV program guides",
		Long: `epg-proxy answers DIYP-style point queries (channel, date) against one
primary and an optional backup XMLTV document. Documents are cached in memory
and, when REDIS_URL is set, in Redis so the proxy keeps answering while the
upstream is slow or down.`,
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "Optional config file (yaml, json or toml)")
	flags.String("source-url", "", "Primary XMLTV source URL (EPG_URL)")
	flags.String("backup-url", "", "Backup XMLTV source URL (EPG_URL_BACKUP)")
	flags.String("redis-url", "", "Redis URL for the persistent cache (REDIS_URL)")
	flags.String("log-level", "", "Log level: debug, info, warn, error (LOG_LEVEL)")
	flags.Bool("log-pretty", false, "Human-readable console logs (LOG_PRETTY)")

	for key, name := range map[string]string{
		"source_url":        "source-url",
		"backup_source_url": "backup-url",
		"redis_url":         "redis-url",
		"log_level":         "log-level",
		"log_pretty":        "log-pretty",
	} {
		// BindPFlag only fails on a nil flag.
		_ = a.v.BindPFlag(key, flags.Lookup(name))
	}

	root.AddCommand(a.serveCmd())
	root.AddCommand(a.lookupCmd())
	root.AddCommand(a.statusCmd())
	return root
}

// load reads the configuration and installs the global logger.
func (a *app) load() (config.Config, zerolog.Logger, error) {
	cfg, err := config.LoadFrom(a.v, a.configPath)
	if err != nil {
		return config.Config{}, zerolog.Nop(), err
	}
	logger := logging.Setup(logging.ConfigFrom(cfg.LogLevel, cfg.LogPretty))
	return cfg, logger, nil
}

// service loads the configuration and builds the lookup service.
func (a *app) service(ctx context.Context) (*lookup.Service, config.Config, zerolog.Logger, error) {
	cfg, logger, err := a.load()
	if err != nil {
		return nil, config.Config{}, logger, err
	}
	svc, err := lookup.FromConfig(ctx, cfg, nil, logger)
	if err != nil {
		return nil, config.Config{}, logger, fmt.Errorf("build service: %w", err)
	}
	return svc, cfg, logger, nil
}

func (a *app) serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP proxy",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.runServe(ctx)
		},
	}
	cmd.Flags().Int("port", 0, "Listen port (PORT)")
	cmd.Flags().Bool("warmup", false, "Prefetch the sources at startup (WARMUP)")
	_ = a.v.BindPFlag("port", cmd.Flags().Lookup("port"))
	_ = a.v.BindPFlag("warmup", cmd.Flags().Lookup("warmup"))
	return cmd
}

func (a *app) runServe(ctx context.Context) error {
	svc, cfg, logger, err := a.service(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Warn().Err(err).Msg("Closing service failed")
		}
	}()

	if cfg.Warmup {
		go warmup.New(svc, warmup.DefaultConfig()).Run(ctx, cfg.Sources())
	}

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Port),
		Handler:           NewServer(svc, logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", srv.Addr).
			Str("source", cfg.SourceURL).
			Str("backup", cfg.BackupSourceURL).
			Bool("persistent_cache", cfg.RedisURL != "").
			Msg("Starting EPG proxy server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (a *app) lookupCmd() *cobra.Command {
	var channel, date string
	cmd := &cobra.Command{
		Use:   "lookup",
		Short: "Answer one query and print the JSON payload",
		Example: `  epg-proxy lookup --channel CCTV1 --date 2024-01-15
  EPG_URL=https://epg.example.com/e.xml.gz epg-proxy lookup --channel "湖南卫视" --date 2024-01-15`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, _, _, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			resp, err := svc.Query(cmd.Context(), lookup.Request{Channel: channel, Date: date})
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), resp.Payload); err != nil {
				return err
			}
			if !resp.Found() {
				return errNotFound
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&channel, "channel", "", "Channel name or id")
	cmd.Flags().StringVar(&date, "date", "", "Date as YYYY-MM-DD")
	_ = cmd.MarkFlagRequired("channel")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}

// errNotFound makes a lookup without programmes exit non-zero after the
// payload was printed.
var errNotFound = errors.New(lookup.MessageNotFound)

func (a *app) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print when each source was last fetched",
		Long: `Prints the status snapshot of the primary and backup sources. A fresh
process has nothing in memory, so with REDIS_URL set the fetch time comes
from the persistent cache.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, _, _, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()
			return printJSON(cmd.OutOrStdout(), svc.Statuses(cmd.Context()))
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
