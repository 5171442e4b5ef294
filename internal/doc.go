// Package internal contains helpers that are intentionally private to goAuthz:
// secure session-id generation and device fingerprinting.
//
// # Sub-packages
//
//   - metrics: lock-free counters and latency histograms
//
// # What this package must NOT do
//
//   - Export types that appear in the public goAuthz API.
//   - Be imported by any package outside the goAuthz module.
package internal
