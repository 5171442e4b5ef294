// Package prometheus exposes goAuthz metrics as a client_golang collector.
//
// [NewPrometheusExporter] reads [goAuthz.Authority.MetricsSnapshot] on every scrape.
// Counters are named goauthz_*_total; the single histogram is
// goauthz_authz_latency_seconds.
//
// # What this package must NOT do
//
//   - Register into the global default registry; callers choose the registry.
//   - Mutate authority state.
package prometheus
