// Package prometheus exposes engine counters and latency histograms as a
// Prometheus collector.
//
// [NewPrometheusExporter] registers itself in a private registry and serves
// it through [PrometheusExporter.Handler]. Counter names follow
// authcore_*_total and histograms authcore_*_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in the global Prometheus registry. Callers mount the Handler
//     or add the collector to their own registry.
//   - Mutate engine state.
package prometheus
