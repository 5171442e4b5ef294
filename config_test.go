package goAuthz

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 24*time.Hour, cfg.Session.TTL)
	assert.Equal(t, "session:", cfg.Session.Prefix)
	assert.True(t, cfg.Session.Rolling)
	assert.Equal(t, 5, cfg.Session.MaxSessionsPerUser)
	assert.Equal(t, 5*time.Minute, cfg.Directory.CacheTimeout)
}

func TestConfigValidateRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero session ttl", func(c *Config) { c.Session.TTL = 0 }},
		{"sub-second session ttl", func(c *Config) { c.Session.TTL = 500 * time.Millisecond }},
		{"empty prefix", func(c *Config) { c.Session.Prefix = "" }},
		{"negative cap", func(c *Config) { c.Session.MaxSessionsPerUser = -1 }},
		{"huge cap", func(c *Config) { c.Session.MaxSessionsPerUser = 5000 }},
		{"zero cache timeout", func(c *Config) { c.Directory.CacheTimeout = 0 }},
		{"missing redis addr", func(c *Config) { c.Redis.Addr = "" }},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }},
		{"empty janitor schedule", func(c *Config) { c.Janitor.Schedule = "" }},
		{"unparseable janitor schedule", func(c *Config) { c.Janitor.Schedule = "every now and then" }},
		{"async audit without buffer", func(c *Config) {
			c.Audit.Async = true
			c.Audit.BufferSize = 0
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestConfigValidateAllowsDisabledJanitorWithoutSchedule(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Janitor.Enabled = false
	cfg.Janitor.Schedule = ""
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigFromFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "goauthz.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
redis:
  addr: redis.internal:6380
  db: 2
session:
  ttl: 2h
  rolling: false
  max_sessions_per_user: 3
directory:
  cache_timeout: 30s
audit:
  async: true
  buffer_size: 64
janitor:
  schedule: "@every 1m"
log:
  level: debug
`), 0o600))

	t.Setenv("GOAUTHZ_SESSION_MAX_SESSIONS_PER_USER", "7")
	t.Setenv("GOAUTHZ_METRICS_ENABLE_LATENCY_HISTOGRAMS", "true")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "redis.internal:6380", cfg.Redis.Addr)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, 2*time.Hour, cfg.Session.TTL)
	assert.False(t, cfg.Session.Rolling)
	assert.Equal(t, 7, cfg.Session.MaxSessionsPerUser, "env overrides file")
	assert.Equal(t, "session:", cfg.Session.Prefix, "unset keys keep defaults")
	assert.Equal(t, 30*time.Second, cfg.Directory.CacheTimeout)
	assert.True(t, cfg.Audit.Async)
	assert.Equal(t, 64, cfg.Audit.BufferSize)
	assert.Equal(t, "@every 1m", cfg.Janitor.Schedule)
	assert.True(t, cfg.Metrics.EnableLatencyHistograms)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadConfigDefaultsWithoutFile(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadConfigValidates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("session:\n  prefix: \"\"\n"), 0o600))

	_, err := LoadConfig(path)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(LogConfig{Level: "warn"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(-1))

	_, err = NewLogger(LogConfig{Level: "loud"})
	assert.Error(t, err)
}
