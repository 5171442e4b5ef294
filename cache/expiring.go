package cache

import (
	"errors"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultExpiringSize bounds an [Expiring] map when no size is given.
const DefaultExpiringSize = 10000

// Expiring is a bounded in-process map whose entries expire after a fixed window.
//
// Every entry owns a cancellable timer. Replacing, invalidating or evicting an entry
// stops its timer, and a timer that fires late only removes the exact entry it was
// created for, never a fresher value stored under the same key. Reads also check the
// deadline, so an entry is never served past its window even if its timer is delayed.
//
// Expiring instances are independent; nothing is shared between them.
type Expiring[V any] struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries *lru.Cache[string, *expiringEntry[V]]
	epoch   uint64
	closed  bool
}

type expiringEntry[V any] struct {
	value     V
	expiresAt time.Time
	timer     *time.Timer
}

func (e *expiringEntry[V]) stop() {
	if e.timer != nil {
		e.timer.Stop()
	}
}

// NewExpiring creates an [Expiring] map holding at most size entries for ttl each.
func NewExpiring[V any](ttl time.Duration, size int) (*Expiring[V], error) {
	if ttl <= 0 {
		return nil, errors.New("expiring ttl must be > 0")
	}
	if size <= 0 {
		size = DefaultExpiringSize
	}

	entries, err := lru.NewWithEvict[string, *expiringEntry[V]](size, func(_ string, entry *expiringEntry[V]) {
		entry.stop()
	})
	if err != nil {
		return nil, err
	}

	return &Expiring[V]{
		ttl:     ttl,
		now:     time.Now,
		entries: entries,
	}, nil
}

// TTL returns the expiry window.
func (m *Expiring[V]) TTL() time.Duration {
	return m.ttl
}

// Get returns the live value for key.
func (m *Expiring[V]) Get(key string) (V, bool) {
	var zero V

	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries.Get(key)
	if !ok {
		return zero, false
	}
	if !m.now().Before(entry.expiresAt) {
		m.entries.Remove(key)
		return zero, false
	}
	return entry.value, true
}

// Set stores value under key for one window, replacing and disarming any previous entry.
func (m *Expiring[V]) Set(key string, value V) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setLocked(key, value)
}

// SetIfEpoch stores value only if no invalidation happened since epoch was read.
// Loaders use it so a value read before a concurrent write is not cached after it.
func (m *Expiring[V]) SetIfEpoch(key string, value V, epoch uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.epoch != epoch {
		return false
	}
	m.setLocked(key, value)
	return true
}

func (m *Expiring[V]) setLocked(key string, value V) {
	if m.closed {
		return
	}
	if prev, ok := m.entries.Peek(key); ok {
		prev.stop()
	}

	entry := &expiringEntry[V]{
		value:     value,
		expiresAt: m.now().Add(m.ttl),
	}
	entry.timer = time.AfterFunc(m.ttl, func() {
		m.expire(key, entry)
	})
	m.entries.Add(key, entry)
}

func (m *Expiring[V]) expire(key string, entry *expiringEntry[V]) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cur, ok := m.entries.Peek(key); ok && cur == entry {
		m.entries.Remove(key)
	}
}

// Invalidate drops keys immediately and advances the invalidation epoch.
func (m *Expiring[V]) Invalidate(keys ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.epoch++
	for _, key := range keys {
		m.entries.Remove(key)
	}
}

// Clear drops every entry.
func (m *Expiring[V]) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.epoch++
	m.entries.Purge()
}

// Epoch returns the current invalidation epoch.
func (m *Expiring[V]) Epoch() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.epoch
}

// Len returns the number of stored entries, including ones whose timer has not fired yet.
func (m *Expiring[V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries.Len()
}

// Close stops every timer. Later writes are ignored.
func (m *Expiring[V]) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.epoch++
	m.entries.Purge()
}
