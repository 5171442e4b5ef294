// Package rbac is the authorization directory: roles, permissions, user-role
// assignment and the decisions derived from them.
//
// # Storage layout
//
//   - role:{id}, permission:{id}       JSON records
//   - roles:by_name, permissions:by_name JSON name → id maps
//   - roles:all, permissions:all        JSON id arrays
//   - user:{userId}:roles               set of role ids
//   - role:{name}:users                 set of user ids (reverse index)
//
// # Caching
//
// Two per-directory cache-aside tiers sit over the gateway: userId → role names and
// role name → permissions. Every mutation invalidates the entries it can affect before
// returning. The entry timeout only bounds staleness caused by writers in other
// processes; it is never relied on for same-process correctness.
//
// # Decisions
//
// Presence implies grant and absence implies deny. There is no explicit deny. The
// boolean helpers deny when the backend cannot be read; the Check* variants return the
// error instead.
package rbac
