package tools

import (
	"context"
	"log/slog"
)

type loggerKey struct{}

// withLogger stores a call-scoped logger in ctx.
func withLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// loggerFrom returns the call-scoped logger, or the default logger.
func loggerFrom(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}
