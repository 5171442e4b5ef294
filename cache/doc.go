// Package cache provides the key-value gateway every goAuthz component is built on,
// plus the in-process tier layered above it.
//
// # Components
//
//   - [Gateway]: minimal contract over a shared key-value store: get/set/del/exists,
//     TTL-bearing set, prefix enumeration and set membership. No multi-key transactions.
//   - [RedisGateway]: go-redis implementation of [Gateway].
//   - [GetObject] / [SetObject]: structured JSON (de)serialization helpers.
//   - [Expiring]: per-instance expiring map with cancellable per-entry timers.
//   - [Aside]: cache-aside decorator combining an [Expiring] map with a loader.
//
// # Two-tier consistency
//
// [Aside] entries are allowed to lag the authoritative store by at most the
// [Expiring] window. Writers in the same process MUST call Invalidate on every key
// their mutation can affect; the timer only bounds staleness caused by writers in
// other processes.
//
// # What this package must NOT do
//
//   - Import session, rbac, audit or goAuthz (no upward imports).
//   - Retry failed backend calls. Retry policy belongs to the host.
package cache
