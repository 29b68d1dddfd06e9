package observability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/processors/minsev"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

const instrumentationName = "github.com/florianilch/ihealth-mcp"

// Log exporters.
const (
	ExporterNone     = "none"
	ExporterStdout   = "stdout"
	ExporterOTLPGRPC = "otlp-grpc"
	ExporterOTLPHTTP = "otlp-http"
)

// Config describes how logs are emitted.
type Config struct {
	Level slog.Level
	// Format is text or json.
	Format string
	// Exporter additionally ships records through OpenTelemetry. Empty means none.
	Exporter string
	// Writer receives local log output. Defaults to os.Stderr; stdout is
	// reserved for the stdio transport.
	Writer io.Writer
}

// Instrument installs the default slog logger and, if configured, an
// OpenTelemetry log pipeline. The returned function flushes and stops the
// pipeline.
func Instrument(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	w := cfg.Writer
	if w == nil {
		w = os.Stderr
	}

	local, err := newLocalHandler(w, cfg.Level, cfg.Format)
	if err != nil {
		return nil, err
	}

	if cfg.Exporter == "" || cfg.Exporter == ExporterNone {
		slog.SetDefault(slog.New(local))
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := newExporter(ctx, cfg.Exporter, w)
	if err != nil {
		return nil, err
	}

	processor := minsev.NewLogProcessor(sdklog.NewBatchProcessor(exporter), severity(cfg.Level))
	provider := sdklog.NewLoggerProvider(sdklog.WithProcessor(processor))
	global.SetLoggerProvider(provider)

	bridge := otelslog.NewHandler(instrumentationName, otelslog.WithLoggerProvider(provider))
	slog.SetDefault(slog.New(fanout{local, bridge}))

	return func(ctx context.Context) error {
		return errors.Join(provider.ForceFlush(ctx), provider.Shutdown(ctx))
	}, nil
}

func newLocalHandler(w io.Writer, level slog.Level, format string) (slog.Handler, error) {
	opts := &slog.HandlerOptions{Level: level}
	switch format {
	case "", "text":
		return slog.NewTextHandler(w, opts), nil
	case "json":
		return slog.NewJSONHandler(w, opts), nil
	default:
		return nil, fmt.Errorf("unsupported log format: %s", format)
	}
}

func newExporter(ctx context.Context, name string, w io.Writer) (sdklog.Exporter, error) {
	switch name {
	case ExporterStdout:
		// Written to the local writer, never to stdout itself
		return stdoutlog.New(stdoutlog.WithWriter(w))
	case ExporterOTLPGRPC:
		// Endpoint and headers come from the standard OTEL_EXPORTER_OTLP_* variables
		return otlploggrpc.New(ctx)
	case ExporterOTLPHTTP:
		return otlploghttp.New(ctx)
	default:
		return nil, fmt.Errorf("unsupported log exporter: %s", name)
	}
}

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
