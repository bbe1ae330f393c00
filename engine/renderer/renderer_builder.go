package renderer

import (
	"log/slog"

	"github.com/Carmen-Shannon/oxy-render/engine/profiler"
)

// RendererBuilderOption is a functional option applied to a renderer during construction via NewRenderer.
type RendererBuilderOption func(*renderer)

// WithCPUTimers sets the scope timers RenderFrame records into. Without timers no scope is measured.
//
// Parameters:
//   - t: the timers to record into
//
// Returns:
//   - RendererBuilderOption: a function that applies the timers option to a renderer
func WithCPUTimers(t *profiler.CPUTimers) RendererBuilderOption {
	return func(r *renderer) {
		r.timers = t
	}
}

// WithLogger replaces the component logger of the renderer.
//
// Parameters:
//   - l: the logger to use, nil keeps the default
//
// Returns:
//   - RendererBuilderOption: a function that applies the logger option to a renderer
func WithLogger(l *slog.Logger) RendererBuilderOption {
	return func(r *renderer) {
		if l != nil {
			r.log = l
		}
	}
}

// WithWindow registers a window at construction, as RegisterWindow does.
//
// Parameters:
//   - w: the window to register
//
// Returns:
//   - RendererBuilderOption: a function that applies the window option to a renderer
func WithWindow(w WindowTarget) RendererBuilderOption {
	return func(r *renderer) {
		r.RegisterWindow(w)
	}
}
