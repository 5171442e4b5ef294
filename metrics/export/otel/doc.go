// Package otel exposes goAuthz metrics through OpenTelemetry observable instruments.
//
// [NewOTelExporter] registers one Int64ObservableCounter per counter. Each histogram
// becomes a cumulative "_bucket" gauge with an "le" attribute per upper bound, plus
// a "_count" gauge. A single callback reads [goAuthz.Authority.MetricsSnapshot] on
// each collection cycle.
//
// # What this package must NOT do
//
//   - Own the MeterProvider; callers supply the Meter.
//   - Mutate authority state.
package otel
