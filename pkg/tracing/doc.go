// Package tracing wires OpenTelemetry spans around orchestrator operations.
// Spans are exported as JSON through the stdout exporter when enabled.
package tracing
