// Package metrics holds the engine's in-process counters. Exporters under
// metrics/export read them through Snapshot.
package metrics
