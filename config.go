package goAuthz

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/goAuthz/audit"
	"github.com/MrEthical07/goAuthz/cache"
	"github.com/MrEthical07/goAuthz/internal/metrics"
	"github.com/MrEthical07/goAuthz/rbac"
	"github.com/MrEthical07/goAuthz/session"
	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	sessionTTLFloor    = time.Second
	maxSessionsCeiling = 1000
)

// EnvPrefix is prepended to environment overrides, e.g. GOAUTHZ_SESSION_TTL.
const EnvPrefix = "GOAUTHZ"

// Config is the full configuration of an [Authority].
type Config struct {
	Redis     cache.RedisConfig `mapstructure:"redis"`
	Session   session.Config    `mapstructure:"session"`
	Directory rbac.Config       `mapstructure:"directory"`
	Audit     AuditConfig       `mapstructure:"audit"`
	Metrics   MetricsConfig     `mapstructure:"metrics"`
	Janitor   JanitorConfig     `mapstructure:"janitor"`
	Log       LogConfig         `mapstructure:"log"`
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig controls the optional async dispatcher in front of the event log.
type AuditConfig = audit.Config

/*
====================================
JANITOR CONFIG
====================================
*/

// JanitorConfig schedules background cleanup of expired sessions.
type JanitorConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule" validate:"required_if=Enabled true"`
}

/*
====================================
LOG CONFIG
====================================
*/

// LogConfig builds the default zap logger when none is injected.
type LogConfig struct {
	Level       string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
	Development bool   `mapstructure:"development"`
}

// DefaultConfig returns production defaults: 24h rolling sessions capped at five per
// user, a five minute permission cache and synchronous audit writes.
func DefaultConfig() Config {
	return Config{
		Redis:     cache.DefaultRedisConfig(),
		Session:   session.DefaultConfig(),
		Directory: rbac.DefaultConfig(),
		Audit: AuditConfig{
			Async:      false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: metrics.Config{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
		Janitor: JanitorConfig{
			Enabled:  true,
			Schedule: session.DefaultJanitorSchedule,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Validate checks struct tags and cross-field rules.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	if c.Janitor.Enabled {
		if _, err := cron.ParseStandard(c.Janitor.Schedule); err != nil {
			return fmt.Errorf("janitor.schedule: %w", err)
		}
	}

	if c.Audit.Async && c.Audit.BufferSize <= 0 {
		return errors.New("audit.buffer_size: must be positive when audit.async is set")
	}

	if c.Session.TTL < sessionTTLFloor {
		return fmt.Errorf("session.ttl: must be at least %s", sessionTTLFloor)
	}

	if c.Session.MaxSessionsPerUser > maxSessionsCeiling {
		return fmt.Errorf("session.max_sessions_per_user: must not exceed %d", maxSessionsCeiling)
	}

	return nil
}

func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}

	messages := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		field := strings.TrimPrefix(e.Namespace(), "Config.")
		if e.Param() != "" {
			messages = append(messages, fmt.Sprintf("%s: failed %s=%s", field, e.Tag(), e.Param()))
		} else {
			messages = append(messages, fmt.Sprintf("%s: failed %s", field, e.Tag()))
		}
	}
	return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(messages, "; "))
}

// LoadConfig reads path (YAML, JSON or TOML by extension) over [DefaultConfig] and
// applies GOAUTHZ_* environment overrides. An empty path uses defaults and env only.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("redis.addr", d.Redis.Addr)
	v.SetDefault("redis.password", d.Redis.Password)
	v.SetDefault("redis.db", d.Redis.DB)
	v.SetDefault("redis.pool_size", d.Redis.PoolSize)
	v.SetDefault("redis.min_idle_conns", d.Redis.MinIdleConns)
	v.SetDefault("redis.dial_timeout", d.Redis.DialTimeout)
	v.SetDefault("redis.read_timeout", d.Redis.ReadTimeout)
	v.SetDefault("redis.write_timeout", d.Redis.WriteTimeout)
	v.SetDefault("redis.max_retries", d.Redis.MaxRetries)
	v.SetDefault("redis.retry_interval", d.Redis.RetryInterval)

	v.SetDefault("session.ttl", d.Session.TTL)
	v.SetDefault("session.prefix", d.Session.Prefix)
	v.SetDefault("session.rolling", d.Session.Rolling)
	v.SetDefault("session.max_sessions_per_user", d.Session.MaxSessionsPerUser)
	v.SetDefault("session.track_devices", d.Session.TrackDevices)
	v.SetDefault("session.enable_event_logging", d.Session.EnableEventLogging)

	v.SetDefault("directory.cache_timeout", d.Directory.CacheTimeout)
	v.SetDefault("directory.cache_size", d.Directory.CacheSize)

	v.SetDefault("audit.async", d.Audit.Async)
	v.SetDefault("audit.buffer_size", d.Audit.BufferSize)
	v.SetDefault("audit.drop_if_full", d.Audit.DropIfFull)

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.enable_latency_histograms", d.Metrics.EnableLatencyHistograms)

	v.SetDefault("janitor.enabled", d.Janitor.Enabled)
	v.SetDefault("janitor.schedule", d.Janitor.Schedule)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.development", d.Log.Development)
}

// NewLogger builds a zap logger from cfg.
func NewLogger(cfg LogConfig) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	}

	if cfg.Level != "" {
		level, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("log.level: %w", err)
		}
		zcfg.Level = zap.NewAtomicLevelAt(level)
	}

	return zcfg.Build()
}
