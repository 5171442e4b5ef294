package audit

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/goAuthz/cache"
	"github.com/MrEthical07/goAuthz/internal/metrics"
	"go.uber.org/zap"
)

// Retention is how long an event survives in the cache.
const Retention = 24 * time.Hour

// DefaultListLimit applies when GetUserAuthEvents is called with limit <= 0.
const DefaultListLimit = 50

const keyPrefix = "auth:event:"

// Log is the append-only authentication event log.
//
// Keys are auth:event:{userId}:{timestampMillis}. Millisecond values are allocated
// monotonically per Log so two events from one process never share a key; writers in
// different processes can still collide within the same millisecond.
type Log struct {
	gateway cache.Gateway
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	lastMillis atomic.Int64
}

// NewLog creates a [Log] on gateway. logger and m may be nil.
func NewLog(gateway cache.Gateway, logger *zap.Logger, m *metrics.Metrics) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{
		gateway: gateway,
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
}

// EventKey builds the storage key for an event.
func EventKey(userID string, millis int64) string {
	return keyPrefix + userID + ":" + strconv.FormatInt(millis, 10)
}

// Append stores event with the fixed retention. A zero Timestamp is set to now.
func (l *Log) Append(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = l.now()
	}

	key := EventKey(event.UserID, l.nextMillis(event.Timestamp))
	if err := cache.SetObject(ctx, l.gateway, key, event, Retention); err != nil {
		l.metrics.Inc(metrics.AuditAppendFailed)
		return err
	}

	l.metrics.Inc(metrics.AuditAppended)
	return nil
}

// Emit implements [Sink]. Failures are logged and swallowed.
func (l *Log) Emit(ctx context.Context, event Event) {
	if err := l.Append(ctx, event); err != nil {
		l.logger.Warn("audit append failed",
			zap.String("event_type", string(event.EventType)),
			zap.String("user_id", event.UserID),
			zap.String("session_id", event.SessionID),
			zap.Error(err),
		)
	}
}

// GetUserAuthEvents returns up to limit events for userID, newest first.
//
// Entries that expire between enumeration and read are skipped. Backend failures are
// returned so callers can tell "no events" from "could not look".
func (l *Log) GetUserAuthEvents(ctx context.Context, userID string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	prefix := keyPrefix + userID + ":"
	keys, err := l.gateway.Keys(ctx, escapeGlob(prefix)+"*")
	if err != nil {
		return nil, err
	}

	type stamped struct {
		key    string
		millis int64
	}
	entries := make([]stamped, 0, len(keys))
	for _, k := range keys {
		suffix := strings.TrimPrefix(k, prefix)
		// A user id containing ':' could otherwise capture another user's keys.
		millis, err := strconv.ParseInt(suffix, 10, 64)
		if err != nil {
			continue
		}
		entries = append(entries, stamped{key: k, millis: millis})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].millis < entries[j].millis })
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}

	events := make([]Event, 0, min(limit, len(entries)))
	for _, e := range entries {
		if len(events) >= limit {
			break
		}
		event, err := cache.GetObject[Event](ctx, l.gateway, e.key)
		if err != nil {
			if cache.IsMiss(err) {
				continue
			}
			return nil, fmt.Errorf("read %s: %w", e.key, err)
		}
		events = append(events, event)
	}

	return events, nil
}

func (l *Log) nextMillis(ts time.Time) int64 {
	for {
		ms := ts.UnixMilli()
		last := l.lastMillis.Load()
		if ms <= last {
			ms = last + 1
		}
		if l.lastMillis.CompareAndSwap(last, ms) {
			return ms
		}
	}
}

func escapeGlob(s string) string {
	if !strings.ContainsAny(s, `*?[]\`) {
		return s
	}
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
