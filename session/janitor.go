package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultJanitorSchedule runs expiry cleanup every five minutes.
const DefaultJanitorSchedule = "@every 5m"

// Janitor periodically runs [Store.CleanupExpiredSessions] on a cron schedule.
// Overlapping runs are skipped.
type Janitor struct {
	store  *Store
	logger *zap.Logger
	cron   *cron.Cron

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
}

// NewJanitor validates schedule (standard five-field cron or @every descriptors)
// and prepares a stopped janitor.
func NewJanitor(store *Store, schedule string, logger *zap.Logger) (*Janitor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if schedule == "" {
		schedule = DefaultJanitorSchedule
	}

	clog := cronLogger{logger.Sugar()}
	j := &Janitor{
		store:  store,
		logger: logger,
		cron:   cron.New(cron.WithLogger(clog), cron.WithChain(cron.SkipIfStillRunning(clog))),
	}

	if _, err := j.cron.AddFunc(schedule, j.run); err != nil {
		return nil, fmt.Errorf("janitor schedule %q: %w", schedule, err)
	}
	return j, nil
}

// Start begins scheduling. It is a no-op if already started. A stopped janitor can
// be started again.
func (j *Janitor) Start() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.started {
		return
	}
	j.ctx, j.cancel = context.WithCancel(context.Background())
	j.started = true
	j.cron.Start()
}

// Stop cancels an in-flight run and waits for it to return.
func (j *Janitor) Stop() {
	j.mu.Lock()
	started := j.started
	cancel := j.cancel
	j.started = false
	j.mu.Unlock()

	if !started {
		return
	}
	cancel()
	<-j.cron.Stop().Done()
}

// RunOnce performs a single cleanup pass synchronously.
func (j *Janitor) RunOnce(ctx context.Context) (int, error) {
	return j.store.CleanupExpiredSessions(ctx)
}

func (j *Janitor) run() {
	j.mu.Lock()
	ctx := j.ctx
	j.mu.Unlock()

	removed, err := j.RunOnce(ctx)
	if err != nil {
		j.logger.Warn("session cleanup failed", zap.Error(err))
		return
	}
	if removed > 0 {
		j.logger.Info("session cleanup", zap.Int("removed", removed))
	}
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	sugar *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}
