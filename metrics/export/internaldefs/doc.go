// Package internaldefs exposes stable metric name and bucket definitions
// shared by exporter implementations.
//
// Counter and histogram definitions live here so the Prometheus and OTel
// exporters publish identical names and boundaries. Changing a definition
// here changes every exporter at once.
//
// # What this package must NOT do
//
//   - Perform I/O.
//   - Depend on any exporter package.
package internaldefs
