package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/goAuthz/audit"
	"github.com/MrEthical07/goAuthz/cache"
	"github.com/MrEthical07/goAuthz/internal"
	"github.com/MrEthical07/goAuthz/internal/metrics"
	"go.uber.org/zap"
)

// ErrSessionNotFound is returned when no live record exists for a session id.
var ErrSessionNotFound = errors.New("session not found")

// ErrSessionExpired is joined with ErrSessionNotFound when a record was found past
// its expiry and removed.
var ErrSessionExpired = errors.New("session expired")

// ErrInvalidUserID is returned by CreateSession for an empty user id.
var ErrInvalidUserID = errors.New("invalid user id")

// ErrSessionCreationFailed wraps failures that prevented a session record from
// being written.
var ErrSessionCreationFailed = errors.New("session creation failed")

// Audit metadata reasons attached to logout events.
const (
	ReasonLogout    = "logout"
	ReasonLogoutAll = "logout_all"
	ReasonEvicted   = "evicted"
	ReasonExpired   = "expired"
)

// Config controls session lifetime and bookkeeping.
type Config struct {
	TTL                time.Duration `mapstructure:"ttl" validate:"gt=0"`
	Prefix             string        `mapstructure:"prefix" validate:"required"`
	Rolling            bool          `mapstructure:"rolling"`
	MaxSessionsPerUser int           `mapstructure:"max_sessions_per_user" validate:"gte=0"`
	TrackDevices       bool          `mapstructure:"track_devices"`
	EnableEventLogging bool          `mapstructure:"enable_event_logging"`
}

// DefaultConfig returns a 24h rolling configuration capped at five sessions per user.
func DefaultConfig() Config {
	return Config{
		TTL:                24 * time.Hour,
		Prefix:             "session:",
		Rolling:            true,
		MaxSessionsPerUser: 5,
		TrackDevices:       true,
		EnableEventLogging: true,
	}
}

// Option configures a [Store].
type Option func(*Store)

// WithAuditSink routes login and logout events to sink.
func WithAuditSink(sink audit.Sink) Option {
	return func(s *Store) {
		if sink != nil {
			s.audit = sink
		}
	}
}

// WithLogger sets the logger used for degraded paths.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics records session counters into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) {
		s.metrics = m
	}
}

// Store persists sessions through a [cache.Gateway].
//
// Critical writes (the session record itself) propagate errors. Index maintenance
// and audit emission are best-effort: failures are logged and the operation
// still succeeds.
type Store struct {
	gateway cache.Gateway
	cfg     Config
	audit   audit.Sink
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewStore creates a [Store]. Zero TTL and empty Prefix fall back to defaults.
func NewStore(gateway cache.Gateway, cfg Config, opts ...Option) *Store {
	def := DefaultConfig()
	if cfg.TTL <= 0 {
		cfg.TTL = def.TTL
	}
	if cfg.Prefix == "" {
		cfg.Prefix = def.Prefix
	}
	if cfg.MaxSessionsPerUser < 0 {
		cfg.MaxSessionsPerUser = 0
	}

	s := &Store{
		gateway: gateway,
		cfg:     cfg,
		audit:   audit.NoOpSink{},
		logger:  zap.NewNop(),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns the effective configuration.
func (s *Store) Config() Config {
	return s.cfg
}

func (s *Store) key(sessionID string) string {
	return s.cfg.Prefix + sessionID
}

func (s *Store) userKey(userID string) string {
	return s.cfg.Prefix + "user:" + userID
}

// CreateSession writes a new session for userID and appends it to the user's index,
// evicting the oldest sessions beyond MaxSessionsPerUser.
//
// deviceID may be empty; with device tracking enabled a fingerprint of info is used
// instead. With tracking disabled both device fields are omitted.
//
//	Performance: 1 SET for the record, plus GET+SET on the index and
//	one DEL per evicted session.
func (s *Store) CreateSession(ctx context.Context, userID string, info *DeviceInfo, deviceID string) (*Session, error) {
	if userID == "" {
		return nil, ErrInvalidUserID
	}

	sid, err := internal.NewSessionID()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSessionCreationFailed, err)
	}

	now := s.now()
	sess := &Session{
		ID:           sid.String(),
		UserID:       userID,
		CreatedAt:    now,
		LastActiveAt: now,
		ExpiresAt:    now.Add(s.cfg.TTL),
		IsActive:     true,
	}
	if s.cfg.TrackDevices {
		sess.DeviceInfo = info.clone()
		sess.DeviceID = deviceID
		if sess.DeviceID == "" && info != nil {
			sess.DeviceID = internal.DeviceFingerprint(info.UserAgent, info.IPAddress, info.Platform, info.Browser)
		}
	}

	if err := cache.SetObject(ctx, s.gateway, s.key(sess.ID), sess, s.cfg.TTL); err != nil {
		s.logger.Error("session write failed",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %w", ErrSessionCreationFailed, err)
	}
	s.metrics.Inc(metrics.SessionCreated)

	s.indexSession(ctx, sess)
	s.emit(ctx, audit.EventLogin, sess, "")

	return sess, nil
}

func (s *Store) indexSession(ctx context.Context, sess *Session) {
	idx, err := s.loadIndex(ctx, sess.UserID)
	if err != nil {
		// Skipping is safer than overwriting an index we could not read.
		s.logger.Warn("session index read failed; index not updated",
			zap.String("user_id", sess.UserID),
			zap.String("session_id", sess.ID),
			zap.Error(err),
		)
		return
	}

	for _, old := range idx.Push(sess.ID, s.cfg.MaxSessionsPerUser) {
		evicted, err := s.destroyRecord(ctx, old, ReasonEvicted)
		if err != nil {
			s.logger.Warn("session eviction failed",
				zap.String("user_id", sess.UserID),
				zap.String("session_id", old),
				zap.Error(err),
			)
			continue
		}
		if evicted != nil {
			s.metrics.Inc(metrics.SessionEvicted)
		}
	}

	if err := s.saveIndex(ctx, sess.UserID, idx); err != nil {
		s.logger.Warn("session index write failed",
			zap.String("user_id", sess.UserID),
			zap.Error(err),
		)
	}
}

// Lookup returns the live session for sessionID.
//
// A missing record yields [ErrSessionNotFound]; a record past its expiry is deleted
// and yields ErrSessionNotFound joined with [ErrSessionExpired]. Backend failures wrap
// [cache.ErrUnavailable]. In rolling mode a successful lookup extends the session;
// a failed extension is logged and the session is still returned.
func (s *Store) Lookup(ctx context.Context, sessionID string) (*Session, error) {
	sess, err := s.read(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if sess.Expired(now) {
		s.expire(ctx, sess)
		return nil, errors.Join(ErrSessionNotFound, ErrSessionExpired)
	}

	if s.cfg.Rolling {
		if err := s.touch(ctx, sess, now); err != nil {
			s.logger.Warn("session renewal failed",
				zap.String("session_id", sessionID),
				zap.Error(err),
			)
		}
	}

	return sess, nil
}

// GetSession is the degrading form of [Store.Lookup]: any failure reads as absent.
func (s *Store) GetSession(ctx context.Context, sessionID string) (*Session, bool) {
	sess, err := s.Lookup(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, ErrSessionNotFound) {
			s.metrics.Inc(metrics.SessionLookupDegraded)
			s.logger.Warn("session lookup degraded",
				zap.String("session_id", sessionID),
				zap.Error(err),
			)
		}
		return nil, false
	}
	return sess, true
}

// TouchSession records activity on a live session. In rolling mode the expiry moves
// to now+TTL; otherwise only LastActiveAt changes and the remaining lifetime is kept.
func (s *Store) TouchSession(ctx context.Context, sessionID string) error {
	sess, err := s.read(ctx, sessionID)
	if err != nil {
		return err
	}

	now := s.now()
	if sess.Expired(now) {
		s.expire(ctx, sess)
		return errors.Join(ErrSessionNotFound, ErrSessionExpired)
	}

	return s.touch(ctx, sess, now)
}

func (s *Store) touch(ctx context.Context, sess *Session, now time.Time) error {
	sess.LastActiveAt = now
	if s.cfg.Rolling {
		sess.ExpiresAt = now.Add(s.cfg.TTL)
	}

	ttl := sess.ExpiresAt.Sub(now)
	if ttl <= 0 {
		return errors.Join(ErrSessionNotFound, ErrSessionExpired)
	}

	return cache.SetObject(ctx, s.gateway, s.key(sess.ID), sess, ttl)
}

// DestroySession deletes a session and removes it from its user's index. Destroying
// an unknown or already destroyed session is a no-op.
func (s *Store) DestroySession(ctx context.Context, sessionID string) error {
	sess, err := s.destroyRecord(ctx, sessionID, ReasonLogout)
	if err != nil {
		return err
	}
	if sess == nil {
		return nil
	}

	s.unindex(ctx, sess.UserID, sessionID)
	return nil
}

// GetUserSessions returns the user's live sessions, oldest first. Index entries
// whose record is gone or expired are pruned from the index.
func (s *Store) GetUserSessions(ctx context.Context, userID string) ([]*Session, error) {
	idx, err := s.loadIndex(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	live := make([]*Session, 0, idx.Len())
	pruned := false
	for _, id := range idx.IDs() {
		sess, err := s.read(ctx, id)
		if err != nil {
			if errors.Is(err, ErrSessionNotFound) {
				idx.Remove(id)
				pruned = true
				continue
			}
			return nil, err
		}
		if sess.Expired(now) {
			s.deleteRecord(ctx, sess, ReasonExpired, metrics.SessionExpired)
			idx.Remove(id)
			pruned = true
			continue
		}
		live = append(live, sess)
	}

	if pruned {
		if err := s.saveIndex(ctx, userID, idx); err != nil {
			s.logger.Warn("session index prune failed",
				zap.String("user_id", userID),
				zap.Error(err),
			)
		}
	}

	return live, nil
}

// DestroyAllUserSessions destroys every session of userID except excludeID (which
// may be empty) and returns how many records were deleted.
func (s *Store) DestroyAllUserSessions(ctx context.Context, userID, excludeID string) (int, error) {
	idx, err := s.loadIndex(ctx, userID)
	if err != nil {
		return 0, err
	}

	keep := NewIndex()
	destroyed := 0
	var firstErr error
	for _, id := range idx.IDs() {
		if id == excludeID {
			keep.Push(id, 0)
			continue
		}
		sess, err := s.destroyRecord(ctx, id, ReasonLogoutAll)
		if err != nil {
			keep.Push(id, 0)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if sess != nil {
			destroyed++
		}
	}

	if err := s.saveIndex(ctx, userID, keep); err != nil {
		s.logger.Warn("session index write failed",
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}

	return destroyed, firstErr
}

// CleanupExpiredSessions scans all session records, deletes those past expiry and
// prunes per-user indexes. It returns the number of expired records removed.
//
//	Performance: SCAN over {prefix}* plus one GET per key.
func (s *Store) CleanupExpiredSessions(ctx context.Context) (int, error) {
	keys, err := s.gateway.Keys(ctx, s.cfg.Prefix+"*")
	if err != nil {
		return 0, err
	}

	now := s.now()
	indexPrefix := s.userKey("")
	removed := 0
	var users []string
	for _, k := range keys {
		if strings.HasPrefix(k, indexPrefix) {
			users = append(users, strings.TrimPrefix(k, indexPrefix))
			continue
		}

		sess, err := s.read(ctx, strings.TrimPrefix(k, s.cfg.Prefix))
		if err != nil {
			if errors.Is(err, ErrSessionNotFound) {
				continue
			}
			return removed, err
		}
		if sess.Expired(now) {
			s.deleteRecord(ctx, sess, ReasonExpired, metrics.SessionExpired)
			removed++
		}
	}

	// Records are gone by now; this only drops their ids from the indexes.
	for _, userID := range users {
		if _, err := s.GetUserSessions(ctx, userID); err != nil {
			return removed, err
		}
	}

	return removed, nil
}

// GetSessionStats counts stored session records and indexed users.
func (s *Store) GetSessionStats(ctx context.Context) (Stats, error) {
	keys, err := s.gateway.Keys(ctx, s.cfg.Prefix+"*")
	if err != nil {
		return Stats{}, err
	}

	now := s.now()
	indexPrefix := s.userKey("")
	var stats Stats
	for _, k := range keys {
		if strings.HasPrefix(k, indexPrefix) {
			stats.Users++
			continue
		}

		sess, err := s.read(ctx, strings.TrimPrefix(k, s.cfg.Prefix))
		if err != nil {
			if errors.Is(err, ErrSessionNotFound) {
				continue
			}
			return Stats{}, err
		}
		stats.Total++
		if sess.Expired(now) {
			stats.Expired++
		} else if sess.IsActive {
			stats.Active++
		}
	}

	return stats, nil
}

// read loads a record without expiry handling. Corrupt records are deleted and
// reported as not found.
//
// Only well-formed session ids reach the gateway. Anything else, including ids
// that would address a user index under the same prefix, reads as not found.
func (s *Store) read(ctx context.Context, sessionID string) (*Session, error) {
	if _, err := internal.ParseSessionID(sessionID); err != nil {
		return nil, ErrSessionNotFound
	}

	key := s.key(sessionID)
	sess, err := cache.GetObject[Session](ctx, s.gateway, key)
	switch {
	case err == nil:
		return &sess, nil
	case cache.IsMiss(err):
		return nil, ErrSessionNotFound
	case errors.Is(err, cache.ErrCorrupt):
		s.logger.Warn("discarding corrupt session record",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
		if delErr := s.gateway.Del(ctx, key); delErr != nil {
			return nil, delErr
		}
		return nil, ErrSessionNotFound
	default:
		return nil, err
	}
}

// destroyRecord deletes the record for sessionID and emits a logout. It returns nil
// without error when there was nothing to delete. The index is left untouched.
func (s *Store) destroyRecord(ctx context.Context, sessionID, reason string) (*Session, error) {
	sess, err := s.read(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, nil
		}
		return nil, err
	}

	if err := s.gateway.Del(ctx, s.key(sessionID)); err != nil {
		return nil, err
	}
	sess.IsActive = false
	s.metrics.Inc(metrics.SessionDestroyed)
	s.emit(ctx, audit.EventLogout, sess, reason)
	return sess, nil
}

// deleteRecord is the best-effort delete used on expiry paths.
func (s *Store) deleteRecord(ctx context.Context, sess *Session, reason string, counter metrics.ID) {
	if err := s.gateway.Del(ctx, s.key(sess.ID)); err != nil {
		s.logger.Warn("session delete failed",
			zap.String("session_id", sess.ID),
			zap.String("reason", reason),
			zap.Error(err),
		)
		return
	}
	sess.IsActive = false
	s.metrics.Inc(counter)
	s.emit(ctx, audit.EventLogout, sess, reason)
}

func (s *Store) expire(ctx context.Context, sess *Session) {
	s.deleteRecord(ctx, sess, ReasonExpired, metrics.SessionExpired)
	s.unindex(ctx, sess.UserID, sess.ID)
}

func (s *Store) unindex(ctx context.Context, userID, sessionID string) {
	idx, err := s.loadIndex(ctx, userID)
	if err == nil {
		if !idx.Remove(sessionID) {
			return
		}
		err = s.saveIndex(ctx, userID, idx)
	}
	if err != nil {
		s.logger.Warn("session index update failed",
			zap.String("user_id", userID),
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
	}
}

// loadIndex returns the user's index; a missing or corrupt index reads as empty.
func (s *Store) loadIndex(ctx context.Context, userID string) (*Index, error) {
	idx, err := cache.GetObject[*Index](ctx, s.gateway, s.userKey(userID))
	switch {
	case err == nil && idx != nil:
		return idx, nil
	case err == nil, cache.IsMiss(err), errors.Is(err, cache.ErrCorrupt):
		return NewIndex(), nil
	default:
		return nil, err
	}
}

// saveIndex writes idx without a TTL, or deletes the key when idx is empty.
func (s *Store) saveIndex(ctx context.Context, userID string, idx *Index) error {
	if idx.Len() == 0 {
		return s.gateway.Del(ctx, s.userKey(userID))
	}
	return cache.SetObject(ctx, s.gateway, s.userKey(userID), idx, 0)
}

func (s *Store) emit(ctx context.Context, eventType audit.EventType, sess *Session, reason string) {
	if !s.cfg.EnableEventLogging {
		return
	}

	event := audit.Event{
		EventType: eventType,
		Success:   true,
		UserID:    sess.UserID,
		SessionID: sess.ID,
		Timestamp: s.now(),
	}
	if sess.DeviceInfo != nil {
		event.IPAddress = sess.DeviceInfo.IPAddress
		event.UserAgent = sess.DeviceInfo.UserAgent
	}
	if reason != "" || sess.DeviceID != "" {
		event.Metadata = make(map[string]string, 2)
		if reason != "" {
			event.Metadata["reason"] = reason
		}
		if sess.DeviceID != "" {
			event.Metadata["deviceId"] = sess.DeviceID
		}
	}

	s.audit.Emit(ctx, event)
}
