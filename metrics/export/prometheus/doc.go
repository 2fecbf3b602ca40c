// Package prometheus exposes goRefresh engine metrics through the official
// Prometheus client library.
//
// [NewCollector] wraps an engine as a prometheus.Collector built from const
// metrics; [NewHandler] mounts it on a private registry and returns an
// http.Handler. Counter names are prefixed gorefresh_*_total; the single
// histogram is gorefresh_authenticate_latency_seconds.
//
// # What this package must NOT do
//
//   - Register anything in the global default registry.
//   - Mutate engine state.
package prometheus
