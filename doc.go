// Package goAuthz is a session and role-based access control authority built on a
// shared key-value cache without multi-key transactions.
//
// [Builder] wires the pieces into an [Authority]:
//
//   - cache: the gateway contract, a Redis implementation and the in-process
//     expiring/cache-aside tiers.
//   - session: session records, per-user FIFO index, rolling renewal, lazy expiry.
//   - rbac: roles, permissions, assignments and fail-closed decisions.
//   - audit: the 24h login/logout event log and its sinks.
//
// # Architecture boundaries
//
// goAuthz is the composition root. Sub-packages never import it, so each can be used
// on its own with any [cache.Gateway].
//
// # Consistency model
//
// Every multi-step write treats the primary record as the source of truth. Index
// maintenance, audit emission and cache invalidation after it are best-effort and
// logged. Per-user read-modify-write structures have no version check, so concurrent
// writers can lose an update; the session cap is an eventually consistent bound.
//
// # What this package must NOT do
//
//   - Issue or verify tokens, or hash passwords.
//   - Expose a network protocol of its own.
package goAuthz
