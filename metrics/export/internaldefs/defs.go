package internaldefs

import (
	"strconv"

	"github.com/MrEthical07/goAuthz/internal/metrics"
)

// CounterDef names one exported counter.
type CounterDef struct {
	ID   metrics.ID
	Name string
	Help string
}

// HistogramDef names one exported histogram.
type HistogramDef struct {
	ID   metrics.ID
	Name string
	Help string
}

// CounterDefs lists every counter in exposition order.
var CounterDefs = []CounterDef{
	{ID: metrics.SessionCreated, Name: "goauthz_session_created_total", Help: "Created sessions."},
	{ID: metrics.SessionEvicted, Name: "goauthz_session_evicted_total", Help: "Sessions evicted by the per-user cap."},
	{ID: metrics.SessionExpired, Name: "goauthz_session_expired_total", Help: "Sessions removed after expiry was detected."},
	{ID: metrics.SessionDestroyed, Name: "goauthz_session_destroyed_total", Help: "Sessions destroyed explicitly or by eviction."},
	{ID: metrics.SessionLookupDegraded, Name: "goauthz_session_lookup_degraded_total", Help: "Session lookups answered as absent due to backend failure."},
	{ID: metrics.AuthzAllowed, Name: "goauthz_authz_allowed_total", Help: "Authorization checks that granted access."},
	{ID: metrics.AuthzDenied, Name: "goauthz_authz_denied_total", Help: "Authorization checks that denied access."},
	{ID: metrics.AuthzDegraded, Name: "goauthz_authz_degraded_total", Help: "Authorization checks denied because the backend could not be read."},
	{ID: metrics.PermissionCacheHit, Name: "goauthz_permission_cache_hit_total", Help: "Role permission lookups served in-process."},
	{ID: metrics.PermissionCacheMiss, Name: "goauthz_permission_cache_miss_total", Help: "Role permission lookups that went to the backend."},
	{ID: metrics.AuditAppended, Name: "goauthz_audit_appended_total", Help: "Authentication events written."},
	{ID: metrics.AuditAppendFailed, Name: "goauthz_audit_append_failed_total", Help: "Authentication events that could not be written."},
	{ID: metrics.AuditDropped, Name: "goauthz_audit_dropped_total", Help: "Audit events the async dispatcher dropped or could not enqueue."},
}

// HistogramDefs lists every histogram.
var HistogramDefs = []HistogramDef{
	{ID: metrics.AuthzLatency, Name: "goauthz_authz_latency_seconds", Help: "Authorization decision latency."},
}

// HistogramUpperBounds are the bucket upper bounds in seconds. The last bucket is
// unbounded and has no entry.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// BucketLabels renders HistogramUpperBounds as Prometheus-style "le" values, with
// "+Inf" for the unbounded bucket.
func BucketLabels() [metrics.HistBucketCount]string {
	var out [metrics.HistBucketCount]string
	for i, b := range HistogramUpperBounds {
		out[i] = strconv.FormatFloat(b, 'g', -1, 64)
	}
	out[len(out)-1] = "+Inf"
	return out
}

// NormalizeBuckets copies raw into a fixed-size array, padding with zeros.
func NormalizeBuckets(raw []uint64) [metrics.HistBucketCount]uint64 {
	var out [metrics.HistBucketCount]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [metrics.HistBucketCount]uint64) [metrics.HistBucketCount]uint64 {
	var out [metrics.HistBucketCount]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
