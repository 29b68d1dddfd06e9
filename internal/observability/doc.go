// Package observability configures process-wide logging.
//
// Local logs always go to stderr because stdout carries the stdio transport.
// Optionally, records are also shipped through an OpenTelemetry log exporter
// via the otelslog bridge.
package observability
