// Package prometheus exposes engine metrics to Prometheus.
//
// [NewExporter] wraps a [tenantauth.Engine] as a prometheus.Collector. Counter
// names are prefixed tenantauth_*_total; the single histogram is
// tenantauth_authorize_latency_seconds.
//
// # What this package must NOT do
//
//   - Register in the global Prometheus registry. Callers pass a Registerer or
//     mount Handler, which uses a private registry.
//   - Mutate engine state.
package prometheus
