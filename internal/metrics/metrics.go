package metrics

import (
	"sync/atomic"
	"time"
)

// ID identifies a counter or histogram slot.
type ID uint16

const (
	SessionCreated ID = iota
	SessionEvicted
	SessionExpired
	SessionDestroyed
	SessionLookupDegraded
	AuthzAllowed
	AuthzDenied
	AuthzDegraded
	PermissionCacheHit
	PermissionCacheMiss
	AuditAppended
	AuditAppendFailed
	AuditDropped
	AuthzLatency
	IDCount
)

// HistBucketCount is the number of latency buckets.
const HistBucketCount = 8

const cacheLineSize = 64

type histogram struct {
	buckets [HistBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Config toggles collection.
type Config struct {
	Enabled                 bool `mapstructure:"enabled"`
	EnableLatencyHistograms bool `mapstructure:"enable_latency_histograms"`
}

// Metrics holds every counter and histogram for one goAuthz instance.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [IDCount]paddedCounter
	histograms    [IDCount]histogram
}

// Snapshot is a point-in-time copy of all metric values.
type Snapshot struct {
	Counters   map[ID]uint64
	Histograms map[ID][]uint64
}

// New creates a Metrics instance.
func New(cfg Config) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether histograms are recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to the counter id.
func (m *Metrics) Inc(id ID) {
	m.Add(id, 1)
}

// Add adds n to the counter id.
func (m *Metrics) Add(id ID, n uint64) {
	if m == nil || !m.enabled || id >= IDCount || n == 0 {
		return
	}
	atomic.AddUint64(&m.counters[id].value, n)
}

// Observe records d in the histogram id.
func (m *Metrics) Observe(id ID, d time.Duration) {
	if m == nil || !m.enableLatency || id >= IDCount {
		return
	}
	if id != AuthzLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value returns the current value of counter id.
func (m *Metrics) Value(id ID) uint64 {
	if m == nil || id >= IDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies all values. A disabled instance yields empty maps.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil || !m.enabled {
		return Snapshot{
			Counters:   map[ID]uint64{},
			Histograms: map[ID][]uint64{},
		}
	}

	s := Snapshot{
		Counters:   make(map[ID]uint64, int(IDCount)),
		Histograms: make(map[ID][]uint64, 1),
	}

	for id := ID(0); id < IDCount; id++ {
		if id == AuthzLatency {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, HistBucketCount)
		for i := 0; i < HistBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[AuthzLatency].buckets[i])
		}
		s.Histograms[AuthzLatency] = buckets
	}

	return s
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
