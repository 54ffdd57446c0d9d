// Package logging provides structured logging configuration using zerolog.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// ConfigFrom builds a Config from the raw level string and pretty flag found in
// the proxy configuration.
func ConfigFrom(level string, pretty bool) Config {
	cfg := DefaultConfig()
	if level != "" {
		cfg.Level = LogLevel(strings.ToLower(level))
	}
	cfg.Pretty = pretty
	return cfg
}

// Setup configures the global zerolog logger.
func Setup(cfg Config) zerolog.Logger {
	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	logger := zerolog.New(output).With().Timestamp().Str("service", "epg-proxy").Logger()

	log.Logger = logger

	return logger
}

// parseLevel converts LogLevel to zerolog.Level.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Component derives a child of logger tagged with the component name.
func Component(logger zerolog.Logger, name string) zerolog.Logger {
	return logger.With().Str("component", name).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Memory cache hits (fresh / cooldown answers)
//   - Coalesced waiters attaching to an in-flight fetch
//   - Persistent cache hits and misses
//
// Info: Normal operation events
//   - Network fetch start and completion
//   - Memory cache updates (chars, ttl)
//   - Backup source fallback
//   - Server startup/shutdown
//
// Warn: Warning conditions that don't prevent operation
//   - Circuit open (source in cooldown)
//   - Stale-if-error answers
//   - Persistent cache put/match failures
//   - Document too large for the memory cache
//
// Error: Error conditions requiring attention
//   - Fetch failures (timeout, too large, upstream status, network)
//   - Configuration errors
//
// Context Fields:
//   - source: source URL
//   - channel, date: query parameters
//   - chars: cached document length
//   - ttl: cache TTL
//   - elapsed: time since last failure
//   - error_kind: fetch error classification
//   - provenance: memory, persistent-cache, unknown
