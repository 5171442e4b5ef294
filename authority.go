package goAuthz

import (
	"context"
	"sync"
	"time"

	"github.com/MrEthical07/goAuthz/audit"
	"github.com/MrEthical07/goAuthz/cache"
	"github.com/MrEthical07/goAuthz/internal/metrics"
	"github.com/MrEthical07/goAuthz/rbac"
	"github.com/MrEthical07/goAuthz/session"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Authority owns the session store, the authorization directory and the audit log
// sharing one gateway. All methods are safe for concurrent use.
type Authority struct {
	cfg        Config
	logger     *zap.Logger
	gateway    cache.Gateway
	ownedRedis *redis.Client
	metrics    *metrics.Metrics

	auditLog   *audit.Log
	dispatcher *audit.Dispatcher
	sessions   *session.Store
	directory  *rbac.Directory
	janitor    *session.Janitor

	closeOnce sync.Once
	closeErr  error
}

// Config returns the validated configuration the authority was built with.
func (a *Authority) Config() Config {
	return a.cfg
}

// Logger returns the root logger.
func (a *Authority) Logger() *zap.Logger {
	return a.logger
}

// Gateway returns the shared cache gateway.
func (a *Authority) Gateway() cache.Gateway {
	return a.gateway
}

// Sessions returns the session store.
func (a *Authority) Sessions() *session.Store {
	return a.sessions
}

// Directory returns the authorization directory.
func (a *Authority) Directory() *rbac.Directory {
	return a.directory
}

// AuditLog returns the authentication event log.
func (a *Authority) AuditLog() *audit.Log {
	return a.auditLog
}

// Janitor returns the cleanup scheduler, or nil when disabled.
func (a *Authority) Janitor() *session.Janitor {
	return a.janitor
}

// Authorize resolves sessionID and checks permission for its user. It reports the
// session when found, and false whenever the session is absent or the check cannot
// be completed.
func (a *Authority) Authorize(ctx context.Context, sessionID, permission string) (*session.Session, bool) {
	sess, ok := a.sessions.GetSession(ctx, sessionID)
	if !ok {
		return nil, false
	}
	return sess, a.directory.UserHasPermission(ctx, sess.UserID, permission)
}

// Logout destroys every session of userID, or every session but keepSessionID when
// it is non-empty.
func (a *Authority) Logout(ctx context.Context, userID, keepSessionID string) (int, error) {
	return a.sessions.DestroyAllUserSessions(ctx, userID, keepSessionID)
}

type pinger interface {
	Ping(ctx context.Context) (time.Duration, error)
}

// Ping measures a backend round-trip. Gateways that cannot ping report zero.
func (a *Authority) Ping(ctx context.Context) (time.Duration, error) {
	if p, ok := a.gateway.(pinger); ok {
		return p.Ping(ctx)
	}
	return 0, nil
}

// Close stops the janitor, drains the audit dispatcher, releases cache timers and
// closes the Redis client if Build created it. Safe to call more than once.
func (a *Authority) Close() error {
	a.closeOnce.Do(func() {
		if a.janitor != nil {
			a.janitor.Stop()
		}
		a.dispatcher.Close()
		if a.directory != nil {
			a.directory.Close()
		}
		if a.ownedRedis != nil {
			a.closeErr = a.ownedRedis.Close()
		}
		if a.logger != nil {
			_ = a.logger.Sync()
		}
	})
	return a.closeErr
}
