package texturecache

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/rt64port/texturecache/internal/gpu"
	"github.com/rt64port/texturecache/internal/replacement"
	"github.com/rt64port/texturecache/internal/upload"
)

// nopHandler is a slog.Handler that silently discards all log records.
// The Enabled method returns false so the caller skips message formatting
// entirely, making disabled logging effectively zero-cost.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// newNopLogger creates a logger that silently discards all output.
func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger. Accessed atomically so that
// SetLogger can be called concurrently with logging from any goroutine.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the logger for texturecache and all its
// sub-packages. By default, texturecache produces no log output. Call
// SetLogger to enable logging.
//
// SetLogger is safe for concurrent use: it stores the new logger
// atomically. Pass nil to disable logging (restore default silent
// behavior).
//
// Log levels used by texturecache:
//   - [slog.LevelInfo]: GPU backend lifecycle (initialized, closed)
//   - [slog.LevelWarn]: non-fatal issues (unreadable replacement asset, GPU release errors)
//   - [slog.LevelError]: failed uploads and unreadable replacement databases
//
// Example:
//
//	// Enable info-level logging to stderr:
//	texturecache.SetLogger(slog.Default())
//
//	// Enable debug-level logging for full diagnostics:
//	texturecache.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)

	gpu.SetLogger(l)
	replacement.SetLogger(l)
	upload.SetLogger(l)
}

// Logger returns the current logger used by texturecache.
//
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
