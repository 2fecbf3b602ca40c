// Package otel provides OpenTelemetry metric bindings for goRefresh
// counters and histograms.
//
// [NewOTelExporter] registers Int64ObservableCounter instruments for each
// engine counter and Int64ObservableGauge per histogram bucket. A single
// callback reads the engine snapshot on each collection cycle.
//
// # What this package must NOT do
//
//   - Own the OTel MeterProvider — callers supply the Meter.
//   - Mutate engine state.
package otel
