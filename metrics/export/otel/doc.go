// Package otel publishes engine counters and latency histograms through an
// OpenTelemetry meter.
//
// [NewOTelExporter] registers four asynchronous instruments:
//
//   - authcore.operations counts operations, keyed by the operation and
//     outcome attributes (login/success, refresh/failure, and so on).
//   - authcore.operation.latency.buckets reports cumulative latency samples
//     per operation and le bound.
//   - authcore.operation.latency.count reports the sample total per operation.
//   - authcore.audit.dropped counts audit events lost to backpressure.
//
// Operations with no latency samples are skipped in a collection cycle.
//
// # What this package must NOT do
//
//   - Own the MeterProvider. Callers supply the Meter.
//   - Mutate engine state.
package otel
