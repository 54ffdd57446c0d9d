package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("EPG_URL", "https://example.com/epg.xml.gz")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "https://example.com/epg.xml.gz", cfg.SourceURL)
	assert.Empty(t, cfg.BackupSourceURL)
	assert.Equal(t, time.Hour, cfg.CacheTTL())
	assert.Equal(t, 20*time.Second, cfg.FetchTimeout())
	assert.Equal(t, 2*time.Minute, cfg.ErrorCooldown())
	assert.Equal(t, int64(150*1024*1024), cfg.MaxSourceSizeBytes)
	assert.Equal(t, 40*1024*1024, cfg.MaxMemoryCacheChars)
	assert.Equal(t, 5, cfg.CacheCapacity)
	assert.Equal(t, 0, cfg.FetchRetries)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "Asia/Shanghai", cfg.StatusTimezone)
	assert.Equal(t, []string{"https://example.com/epg.xml.gz"}, cfg.Sources())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("EPG_URL", "https://primary.example.com/e.xml")
	t.Setenv("EPG_URL_BACKUP", "https://backup.example.com/e.xml")
	t.Setenv("CACHE_TTL", "60")
	t.Setenv("FETCH_TIMEOUT", "1500")
	t.Setenv("MAX_SOURCE_SIZE_BYTES", "1024")
	t.Setenv("MAX_MEMORY_CACHE_CHARS", "512")
	t.Setenv("ERROR_COOLDOWN_MS", "3000")
	t.Setenv("CACHE_CAPACITY", "2")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("WARMUP", "true")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, time.Minute, cfg.CacheTTL())
	assert.Equal(t, 1500*time.Millisecond, cfg.FetchTimeout())
	assert.Equal(t, 3*time.Second, cfg.ErrorCooldown())
	assert.Equal(t, int64(1024), cfg.MaxSourceSizeBytes)
	assert.Equal(t, 512, cfg.MaxMemoryCacheChars)
	assert.Equal(t, 2, cfg.CacheCapacity)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
	assert.True(t, cfg.Warmup)
	assert.Equal(t, []string{"https://primary.example.com/e.xml", "https://backup.example.com/e.xml"}, cfg.Sources())
}

func TestLoad_ZeroFallsBackToDefault(t *testing.T) {
	t.Setenv("EPG_URL", "https://example.com/e.xml")
	t.Setenv("CACHE_TTL", "0")
	t.Setenv("ERROR_COOLDOWN_MS", "-5")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultCacheTTLSeconds, cfg.CacheTTLSeconds)
	assert.Equal(t, DefaultErrorCooldownMs, cfg.ErrorCooldownMs)
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "epg.yaml")
	content := "source_url: https://file.example.com/e.xml\ncache_ttl: 120\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://file.example.com/e.xml", cfg.SourceURL)
	assert.Equal(t, 2*time.Minute, cfg.CacheTTL())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "missing source", cfg: Config{StatusTimezone: "UTC"}, wantErr: true},
		{name: "bad scheme", cfg: Config{SourceURL: "ftp://x/e.xml", StatusTimezone: "UTC"}, wantErr: true},
		{name: "bad backup", cfg: Config{SourceURL: "https://x/e.xml", BackupSourceURL: "x", StatusTimezone: "UTC"}, wantErr: true},
		{name: "bad timezone", cfg: Config{SourceURL: "https://x/e.xml", StatusTimezone: "Nowhere/Atlantis"}, wantErr: true},
		{name: "valid", cfg: Config{SourceURL: "https://x/e.xml", StatusTimezone: "UTC"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidate_MissingSourceSentinel(t *testing.T) {
	err := Config{}.Validate()
	assert.True(t, errors.Is(err, ErrMissingSource))
}
