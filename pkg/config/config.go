// Package config loads the proxy configuration once at startup via Viper.
//
// Environment variable names match the ones the proxy has always been deployed
// with (EPG_URL, CACHE_TTL, ...), so existing deployments keep working.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/viper"
)

// Defaults applied when a value is unset or zero.
const (
	DefaultCacheTTLSeconds     = 3600
	DefaultFetchTimeoutMs      = 20000
	DefaultMaxSourceSizeBytes  = 150 * 1024 * 1024
	DefaultMaxMemoryCacheChars = 40 * 1024 * 1024
	DefaultErrorCooldownMs     = 2 * 60 * 1000
	DefaultCacheCapacity       = 5
	DefaultPort                = 8080
	DefaultStatusTimezone      = "Asia/Shanghai"
)

// ErrMissingSource is returned when no primary source URL is configured.
var ErrMissingSource = errors.New("EPG_URL is required")

// Config is the immutable proxy configuration.
type Config struct {
	SourceURL           string `mapstructure:"source_url"`
	BackupSourceURL     string `mapstructure:"backup_source_url"`
	CacheTTLSeconds     int    `mapstructure:"cache_ttl"`
	FetchTimeoutMs      int    `mapstructure:"fetch_timeout"`
	MaxSourceSizeBytes  int64  `mapstructure:"max_source_size_bytes"`
	MaxMemoryCacheChars int    `mapstructure:"max_memory_cache_chars"`
	ErrorCooldownMs     int    `mapstructure:"error_cooldown_ms"`
	CacheCapacity       int    `mapstructure:"cache_capacity"`
	FetchRetries        int    `mapstructure:"fetch_retries"`

	RedisURL string `mapstructure:"redis_url"`

	Port           int    `mapstructure:"port"`
	LogLevel       string `mapstructure:"log_level"`
	LogPretty      bool   `mapstructure:"log_pretty"`
	StatusTimezone string `mapstructure:"status_timezone"`
	Warmup         bool   `mapstructure:"warmup"`
}

// envBindings maps config keys to the environment variables they are read from.
var envBindings = map[string]string{
	"source_url":             "EPG_URL",
	"backup_source_url":      "EPG_URL_BACKUP",
	"cache_ttl":              "CACHE_TTL",
	"fetch_timeout":          "FETCH_TIMEOUT",
	"max_source_size_bytes":  "MAX_SOURCE_SIZE_BYTES",
	"max_memory_cache_chars": "MAX_MEMORY_CACHE_CHARS",
	"error_cooldown_ms":      "ERROR_COOLDOWN_MS",
	"cache_capacity":         "CACHE_CAPACITY",
	"fetch_retries":          "FETCH_RETRIES",
	"redis_url":              "REDIS_URL",
	"port":                   "PORT",
	"log_level":              "LOG_LEVEL",
	"log_pretty":             "LOG_PRETTY",
	"status_timezone":        "STATUS_TIMEZONE",
	"warmup":                 "WARMUP",
}

// NewViper returns a Viper instance with env bindings and defaults registered.
// Callers may bind CLI flags onto it before calling Load.
func NewViper() *viper.Viper {
	v := viper.New()
	for key, env := range envBindings {
		// BindEnv only fails when called without a key.
		_ = v.BindEnv(key, env)
	}
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("cache_ttl", DefaultCacheTTLSeconds)
	v.SetDefault("fetch_timeout", DefaultFetchTimeoutMs)
	v.SetDefault("max_source_size_bytes", DefaultMaxSourceSizeBytes)
	v.SetDefault("max_memory_cache_chars", DefaultMaxMemoryCacheChars)
	v.SetDefault("error_cooldown_ms", DefaultErrorCooldownMs)
	v.SetDefault("cache_capacity", DefaultCacheCapacity)
	v.SetDefault("fetch_retries", 0)
	v.SetDefault("port", DefaultPort)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_pretty", false)
	v.SetDefault("status_timezone", DefaultStatusTimezone)
	v.SetDefault("warmup", false)
}

// Load builds a Config from the environment and an optional config file.
func Load(path string) (Config, error) {
	return LoadFrom(NewViper(), path)
}

// LoadFrom builds a Config from a prepared Viper instance.
func LoadFrom(v *viper.Viper, path string) (Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyDefaults replaces zero or negative numeric values with defaults.
func (c *Config) applyDefaults() {
	if c.CacheTTLSeconds <= 0 {
		c.CacheTTLSeconds = DefaultCacheTTLSeconds
	}
	if c.FetchTimeoutMs <= 0 {
		c.FetchTimeoutMs = DefaultFetchTimeoutMs
	}
	if c.MaxSourceSizeBytes <= 0 {
		c.MaxSourceSizeBytes = DefaultMaxSourceSizeBytes
	}
	if c.MaxMemoryCacheChars <= 0 {
		c.MaxMemoryCacheChars = DefaultMaxMemoryCacheChars
	}
	if c.ErrorCooldownMs <= 0 {
		c.ErrorCooldownMs = DefaultErrorCooldownMs
	}
	if c.CacheCapacity <= 0 {
		c.CacheCapacity = DefaultCacheCapacity
	}
	if c.FetchRetries < 0 {
		c.FetchRetries = 0
	}
	if c.Port <= 0 {
		c.Port = DefaultPort
	}
	if c.StatusTimezone == "" {
		c.StatusTimezone = DefaultStatusTimezone
	}
}

// Validate checks required fields and URL shapes.
func (c Config) Validate() error {
	if c.SourceURL == "" {
		return ErrMissingSource
	}
	if err := validateURL("EPG_URL", c.SourceURL); err != nil {
		return err
	}
	if c.BackupSourceURL != "" {
		if err := validateURL("EPG_URL_BACKUP", c.BackupSourceURL); err != nil {
			return err
		}
	}
	if _, err := time.LoadLocation(c.StatusTimezone); err != nil {
		return fmt.Errorf("STATUS_TIMEZONE %q: %w", c.StatusTimezone, err)
	}
	return nil
}

func validateURL(name, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must be an http(s) URL, got %q", name, raw)
	}
	return nil
}

// CacheTTL is how long fetched text stays fresh.
func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// FetchTimeout bounds a single upstream fetch, body included.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutMs) * time.Millisecond
}

// ErrorCooldown is the circuit-breaker window after a failed fetch.
func (c Config) ErrorCooldown() time.Duration {
	return time.Duration(c.ErrorCooldownMs) * time.Millisecond
}

// Location returns the timezone used for status labels.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.StatusTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Sources returns the primary and, when configured, backup source URLs.
func (c Config) Sources() []string {
	if c.BackupSourceURL == "" {
		return []string{c.SourceURL}
	}
	return []string{c.SourceURL, c.BackupSourceURL}
}
