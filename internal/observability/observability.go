package observability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/processors/minsev"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
)

// ServiceName identifies this program in exported log records.
const ServiceName = "runbooker"

// ShutdownFunc flushes and releases logging resources.
type ShutdownFunc func(context.Context) error

func noopShutdown(context.Context) error { return nil }

// Instrument installs the default slog logger for level and format
// (text|json|otel|otlp). The returned function must be called before exit.
func Instrument(level slog.Level, format string) (ShutdownFunc, error) {
	logger, shutdown, err := newLogger(context.Background(), level, format, os.Stderr)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return shutdown, nil
}

func newLogger(ctx context.Context, level slog.Level, format string, w io.Writer) (*slog.Logger, ShutdownFunc, error) {
	opts := &slog.HandlerOptions{Level: level}

	switch format {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), noopShutdown, nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), noopShutdown, nil
	case "otel":
		exporter, err := stdoutlog.New(stdoutlog.WithWriter(w))
		if err != nil {
			return nil, nil, fmt.Errorf("creating stdout log exporter: %w", err)
		}
		return otelLogger(level, sdklog.NewSimpleProcessor(exporter))
	case "otlp":
		exporter, err := otlpExporter(ctx)
		if err != nil {
			return nil, nil, err
		}
		return otelLogger(level, sdklog.NewBatchProcessor(exporter))
	default:
		return nil, nil, fmt.Errorf("unsupported log format: %s", format)
	}
}

// otlpExporter picks the transport from the standard OTLP protocol variables.
func otlpExporter(ctx context.Context) (sdklog.Exporter, error) {
	protocol := os.Getenv("OTEL_EXPORTER_OTLP_LOGS_PROTOCOL")
	if protocol == "" {
		protocol = os.Getenv("OTEL_EXPORTER_OTLP_PROTOCOL")
	}

	if strings.EqualFold(protocol, "grpc") {
		exporter, err := otlploggrpc.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("creating otlp grpc log exporter: %w", err)
		}
		return exporter, nil
	}

	exporter, err := otlploghttp.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating otlp http log exporter: %w", err)
	}
	return exporter, nil
}

func otelLogger(level slog.Level, processor sdklog.Processor) (*slog.Logger, ShutdownFunc, error) {
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		attribute.String("service.name", ServiceName),
	))
	if err != nil {
		return nil, nil, fmt.Errorf("building log resource: %w", err)
	}

	provider := sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(minsev.NewLogProcessor(processor, severity(level))),
	)
	global.SetLoggerProvider(provider)

	handler := otelslog.NewHandler(ServiceName, otelslog.WithLoggerProvider(provider))
	shutdown := func(ctx context.Context) error {
		return errors.Join(provider.ForceFlush(ctx), provider.Shutdown(ctx))
	}
	return slog.New(handler), shutdown, nil
}

// severity maps a slog level onto the closest OpenTelemetry minimum severity.
func severity(level slog.Level) minsev.Severity {
	switch {
	case level <= slog.LevelDebug:
		return minsev.SeverityDebug
	case level <= slog.LevelInfo:
		return minsev.SeverityInfo
	case level <= slog.LevelWarn:
		return minsev.SeverityWarn
	default:
		return minsev.SeverityError
	}
}
