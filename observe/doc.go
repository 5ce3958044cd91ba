// Package observe provides the telemetry surface of the caching layer:
// a minimal structured logging interface with a JSON implementation, and
// an OpenTelemetry meter mirror that exposes cache operations to whatever
// exporter the host application configures.
package observe
