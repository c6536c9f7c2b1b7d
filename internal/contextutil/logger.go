package contextutil

import (
	"context"
	"log/slog"
)

type loggerKeyType struct{}

var loggerKey loggerKeyType

// WithLogger returns a child context carrying the given logger. Request
// middleware uses this to attach a request-scoped logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// LoggerFromContext returns the logger stored by WithLogger, or the default
// logger when the context carries none.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}
