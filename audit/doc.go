// Package audit records authentication events.
//
// # Components
//
//   - [Log]: append-only, per-user, chronologically keyed event log stored in the
//     cache gateway with a fixed 24h retention. Retention is delegated to key TTLs;
//     the log never prunes.
//   - [Sink]: interface for event consumers ([Log], channel, JSON writer, no-op, multi).
//   - [Dispatcher]: buffered async relay with drop-if-full / block-if-full semantics.
//
// # Architecture boundaries
//
// This package owns event storage and delivery. It does NOT decide which events
// to emit; that responsibility belongs to the session store.
package audit
