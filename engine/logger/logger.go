// Package logger holds the structured logger shared by every engine package.
// Nothing is logged until SetLogger installs a logger.
package logger

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler drops every record. Enabled reports false so callers skip formatting.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger installs the logger used by the engine and all of its sub-packages.
// Passing nil restores the silent default.
//
// Log levels used by the engine:
//   - slog.LevelDebug: skipped passes, cache allocations, binder misses
//   - slog.LevelInfo: pipeline loads, reloads, profiler output
//   - slog.LevelWarn: configuration errors (missing sections, unknown presets)
//   - slog.LevelError: shader compile and pipeline creation failures
//
// Parameters:
//   - l: the logger to install, or nil to disable logging
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
}

// Logger returns the currently installed logger.
//
// Returns:
//   - *slog.Logger: the active logger, never nil
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

// Component returns the active logger tagged with a "component" attribute.
// The logger is resolved on every call so a later SetLogger takes effect immediately.
//
// Parameters:
//   - name: the component name, e.g. "pipeline" or "renderer"
//
// Returns:
//   - *slog.Logger: a child logger carrying the component attribute
func Component(name string) *slog.Logger {
	return Logger().With("component", name)
}
