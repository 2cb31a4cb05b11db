// Package internaldefs holds the metric names, help strings and bucket helpers
// shared by the Prometheus and OTel exporters, so both publish identical names.
//
// # What this package must NOT do
//
//   - Import tenantauth or any exporter package.
//   - Perform I/O.
package internaldefs
