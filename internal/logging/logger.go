// Package logging provides the structured logger used throughout the
// mockforge core pipeline. It wraps log/slog behind a process-wide
// singleton so that packages with no access to a constructed logger
// (template token evaluation, override matching) can still emit
// diagnostics without threading a *slog.Logger through every call.
package logging

import (
	"context"
	"log/slog"
	"os"
	"sync/atomic"
)

var singleton atomic.Pointer[slog.Logger]

func init() {
	singleton.Store(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))
}

// SetDefault replaces the process-wide logger. Intended for startup
// wiring (choosing JSON vs text output, setting the level) and for
// tests that want to capture output.
func SetDefault(l *slog.Logger) {
	singleton.Store(l)
}

// Default returns the current process-wide logger.
func Default() *slog.Logger {
	return singleton.Load()
}

// With returns a logger derived from the default with the given
// structured attributes attached, for use within a single request's
// lifetime (request id, protocol, matched operation).
func With(args ...any) *slog.Logger {
	return Default().With(args...)
}

// Debug logs at debug level.
func Debug(msg string, args ...any) { Default().Debug(msg, args...) }

// Info logs at info level.
func Info(msg string, args ...any) { Default().Info(msg, args...) }

// Warn logs at warn level.
func Warn(msg string, args ...any) { Default().Warn(msg, args...) }

// Error logs at error level.
func Error(msg string, args ...any) { Default().Error(msg, args...) }

// DebugContext logs at debug level using the context's deadline/values.
func DebugContext(ctx context.Context, msg string, args ...any) {
	Default().DebugContext(ctx, msg, args...)
}

// InfoContext logs at info level using the context's deadline/values.
func InfoContext(ctx context.Context, msg string, args ...any) {
	Default().InfoContext(ctx, msg, args...)
}

// WarnContext logs at warn level using the context's deadline/values.
func WarnContext(ctx context.Context, msg string, args ...any) {
	Default().WarnContext(ctx, msg, args...)
}

// ErrorContext logs at error level using the context's deadline/values.
func ErrorContext(ctx context.Context, msg string, args ...any) {
	Default().ErrorContext(ctx, msg, args...)
}
