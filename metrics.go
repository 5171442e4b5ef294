package goAuthz

import "github.com/MrEthical07/goAuthz/internal/metrics"

// MetricID identifies a counter or histogram in a [MetricsSnapshot].
type MetricID = metrics.ID

// MetricsSnapshot is a point-in-time copy of all metric values.
type MetricsSnapshot = metrics.Snapshot

// MetricsConfig toggles metric collection.
type MetricsConfig = metrics.Config

const (
	MetricSessionCreated        = metrics.SessionCreated
	MetricSessionEvicted        = metrics.SessionEvicted
	MetricSessionExpired        = metrics.SessionExpired
	MetricSessionDestroyed      = metrics.SessionDestroyed
	MetricSessionLookupDegraded = metrics.SessionLookupDegraded
	MetricAuthzAllowed          = metrics.AuthzAllowed
	MetricAuthzDenied           = metrics.AuthzDenied
	MetricAuthzDegraded         = metrics.AuthzDegraded
	MetricPermissionCacheHit    = metrics.PermissionCacheHit
	MetricPermissionCacheMiss   = metrics.PermissionCacheMiss
	MetricAuditAppended         = metrics.AuditAppended
	MetricAuditAppendFailed     = metrics.AuditAppendFailed
	MetricAuditDropped          = metrics.AuditDropped

	// MetricAuthzLatency is the only histogram.
	MetricAuthzLatency = metrics.AuthzLatency
)

// MetricsSnapshot returns current counters and, when enabled, the decision latency
// histogram.
func (a *Authority) MetricsSnapshot() MetricsSnapshot {
	return a.metrics.Snapshot()
}

// AuditDropped reports events the async audit dispatcher could not deliver. It reads
// the same counter as MetricAuditDropped and is zero while metrics are disabled.
func (a *Authority) AuditDropped() uint64 {
	return a.metrics.Value(metrics.AuditDropped)
}
