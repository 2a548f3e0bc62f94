// Package observability installs the process-wide slog logger.
//
// Plain text and JSON handlers write to stderr so that log lines never mix
// with the interactive console output on stdout. The "otel" and "otlp"
// formats route records through the OpenTelemetry log SDK via the otelslog
// bridge, with minimum-severity filtering applied before export.
package observability
