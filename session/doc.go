// Package session provides cache-backed session persistence: creation with a
// per-user cap, rolling renewal, lazy expiry and idempotent destruction.
//
// # Storage layout
//
//   - {prefix}{id}           JSON [Session] record, TTL = remaining lifetime
//   - {prefix}user:{userId}  JSON array of session ids, oldest first ([Index])
//
// With the default prefix these are session:{id} and session:user:{userId}.
//
// # Consistency
//
// The record is the source of truth. The per-user index is maintained with
// read-modify-write and no version check, so two concurrent logins for one user can
// lose an index update and briefly exceed MaxSessionsPerUser. Readers tolerate
// dangling ids and [Store.GetUserSessions] prunes them.
//
// # What this package must NOT do
//
//   - Import goAuthz or rbac (no upward imports).
//   - Perform authorization decisions.
//   - Store credentials or tokens in [Session] fields.
package session
