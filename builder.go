package goAuthz

import (
	"context"
	"fmt"

	"github.com/MrEthical07/goAuthz/audit"
	"github.com/MrEthical07/goAuthz/cache"
	"github.com/MrEthical07/goAuthz/internal/metrics"
	"github.com/MrEthical07/goAuthz/rbac"
	"github.com/MrEthical07/goAuthz/session"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Builder assembles an [Authority].
//
// Builder instances are single-use: configure, call Build once, discard.
type Builder struct {
	config  Config
	redis   redis.UniversalClient
	gateway cache.Gateway
	logger  *zap.Logger
	sinks   []audit.Sink

	bootstrap bool
	built     bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis uses an existing client. The caller keeps ownership and closes it.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithGateway uses gateway directly, bypassing Redis setup entirely.
func (b *Builder) WithGateway(gateway cache.Gateway) *Builder {
	b.gateway = gateway
	return b
}

// WithLogger injects a logger instead of building one from Config.Log.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink adds a sink receiving every session event alongside the event log.
// May be called more than once.
func (b *Builder) WithAuditSink(sink audit.Sink) *Builder {
	if sink != nil {
		b.sinks = append(b.sinks, sink)
	}
	return b
}

// WithMetricsEnabled toggles counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the decision latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// WithDefaultRoles makes Build run [rbac.Directory.InitializeDefaultRoles].
func (b *Builder) WithDefaultRoles() *Builder {
	b.bootstrap = true
	return b
}

// Build validates the configuration and wires every component. Without WithGateway
// or WithRedis it dials Config.Redis and owns the resulting client.
func (b *Builder) Build() (*Authority, error) {
	return b.BuildContext(context.Background())
}

// BuildContext is Build with a context bounding the Redis dial and role bootstrap.
func (b *Builder) BuildContext(ctx context.Context) (*Authority, error) {
	if b.built {
		return nil, ErrBuilderUsed
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &Authority{cfg: cfg}

	// -------- LOGGER --------
	a.logger = b.logger
	if a.logger == nil {
		logger, err := NewLogger(cfg.Log)
		if err != nil {
			return nil, err
		}
		a.logger = logger
	}

	// -------- GATEWAY --------
	switch {
	case b.gateway != nil:
		a.gateway = b.gateway
	case b.redis != nil:
		a.gateway = cache.NewRedisGateway(b.redis)
	default:
		client, err := cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		a.ownedRedis = client
		a.gateway = cache.NewRedisGateway(client)
	}

	a.metrics = metrics.New(cfg.Metrics)

	// -------- AUDIT --------
	a.auditLog = audit.NewLog(a.gateway, a.logger.Named("audit"), a.metrics)
	var sink audit.Sink = a.auditLog
	if len(b.sinks) > 0 {
		sink = append(audit.MultiSink{a.auditLog}, b.sinks...)
	}
	if d := audit.NewDispatcher(cfg.Audit, sink, a.logger.Named("audit"), a.metrics); d != nil {
		a.dispatcher = d
		sink = d
	}

	// -------- SESSIONS --------
	a.sessions = session.NewStore(a.gateway, cfg.Session,
		session.WithAuditSink(sink),
		session.WithLogger(a.logger.Named("session")),
		session.WithMetrics(a.metrics),
	)

	// -------- DIRECTORY --------
	dir, err := rbac.NewDirectory(a.gateway, cfg.Directory,
		rbac.WithLogger(a.logger.Named("rbac")),
		rbac.WithMetrics(a.metrics),
	)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.directory = dir

	if b.bootstrap {
		if err := dir.InitializeDefaultRoles(ctx); err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("initialize default roles: %w", err)
		}
	}

	// -------- JANITOR --------
	if cfg.Janitor.Enabled {
		janitor, err := session.NewJanitor(a.sessions, cfg.Janitor.Schedule, a.logger.Named("janitor"))
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.janitor = janitor
		janitor.Start()
	}

	b.built = true
	return a, nil
}
