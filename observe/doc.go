// Package observe provides the observability primitives used across toolgate.
//
// It sets up OpenTelemetry tracing and metrics from a small Config, exposes a
// structured JSON logger with sensitive-field redaction, records tool call
// telemetry through Middleware, and records authentication telemetry through
// AuthMetrics. Nothing in this package performs authentication itself.
package observe
