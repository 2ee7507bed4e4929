package ggcalc

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// nopHandler is a slog.Handler that silently discards all log records.
// The Enabled method returns false so the caller skips message formatting
// entirely.
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

// SetLogger configures the logger for ggcalc and the devices of all open
// renderers. By default, ggcalc produces no log output.
//
// Pass nil to disable logging (restore default silent behavior).
//
// Log levels used by ggcalc:
//   - [slog.LevelDebug]: rebuild details (case counts, program length, timings)
//   - [slog.LevelInfo]: backend switches, device selection
//   - [slog.LevelWarn]: non-fatal failures (compile errors, rejected
//     instruction streams, program overflow)
//
// Example:
//
//	ggcalc.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)

	renderersMu.Lock()
	defer renderersMu.Unlock()
	for r := range renderers {
		propagateLogger(r.dev, l)
	}
}

// Logger returns the current logger used by ggcalc.
// Sub-packages call this to share the same logger configuration.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

// loggerSetter is implemented by devices that accept a logger.
type loggerSetter interface {
	SetLogger(*slog.Logger)
}

// renderers holds the open renderers so SetLogger reaches their devices.
// Renderers sharing a device are tracked separately.
var (
	renderersMu sync.Mutex
	renderers   = map[*Renderer]struct{}{}
)

func track(r *Renderer) {
	renderersMu.Lock()
	defer renderersMu.Unlock()
	renderers[r] = struct{}{}
	propagateLogger(r.dev, Logger())
}

func untrack(r *Renderer) {
	renderersMu.Lock()
	defer renderersMu.Unlock()
	delete(renderers, r)
}

// propagateLogger passes the logger to a device if it implements
// loggerSetter.
func propagateLogger(d Device, l *slog.Logger) {
	if ls, ok := d.(loggerSetter); ok {
		ls.SetLogger(l)
	}
}
