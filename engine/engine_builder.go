package engine

import (
	"time"

	"github.com/Carmen-Shannon/oxy-render/engine/gpu"
	"github.com/Carmen-Shannon/oxy-render/engine/loader"
	"github.com/Carmen-Shannon/oxy-render/engine/profiler"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-render/engine/scene"
	"github.com/Carmen-Shannon/oxy-render/engine/window"
)

// EngineBuilderOption is a functional option for configuring an Engine.
// Use the With* functions to create options that are applied directly to the engine instance.
type EngineBuilderOption func(*engine)

// WithProfiling enables or disables performance profiling output.
//
// Parameters:
//   - enabled: if true, enables performance profiling
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProfiling(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.profilingEnabled.Store(enabled)
	}
}

// WithCPUTimers sets the timers the renderer records its frame phases into.
//
// Parameters:
//   - t: the timers, shared with the profiler report
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithCPUTimers(t *profiler.CPUTimers) EngineBuilderOption {
	return func(e *engine) {
		e.timers = t
	}
}

// WithTickRate sets the engine tick rate in frames per second.
// Values <= 0 will be treated as the default (60Hz).
//
// Parameters:
//   - fps: target ticks per second (default 60)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithTickRate(fps float64) EngineBuilderOption {
	return func(e *engine) {
		if fps <= 0 {
			fps = 60.0
		}
		e.engineTickRate = time.Duration(float64(time.Second) / fps)
	}
}

// WithWindow sets a custom configured window for the engine to use rather than allowing the engine
// to create one internally.
//
// Parameters:
//   - w: a pre-configured Window instance
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithWindow(w window.Window) EngineBuilderOption {
	return func(e *engine) {
		e.window = w
	}
}

// WithWindowOptions configures the window the engine creates when WithWindow is not used.
//
// Parameters:
//   - options: the window options
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithWindowOptions(options ...window.WindowBuilderOption) EngineBuilderOption {
	return func(e *engine) {
		e.windowOpt = append(e.windowOpt, options...)
	}
}

// WithDevice makes the engine render with an existing device and surface instead of
// creating a WebGPU device for its window. The caller keeps ownership of both.
//
// Parameters:
//   - d: the device
//   - s: the swap chain of the window, nil to render without presenting
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithDevice(d gpu.Device, s gpu.Surface) EngineBuilderOption {
	return func(e *engine) {
		e.device = d
		e.surface = s
		e.ownsDevice = false
	}
}

// WithVSync sets whether the WebGPU surface the engine creates waits for vertical blank.
//
// Parameters:
//   - on: true for FIFO presentation (default), false for immediate
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithVSync(on bool) EngineBuilderOption {
	return func(e *engine) {
		e.vsync = on
	}
}

// WithLoader sets the loader pipeline and preset documents are read from.
//
// Parameters:
//   - l: the loader; the engine closes it on Close
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithLoader(l loader.Loader) EngineBuilderOption {
	return func(e *engine) {
		e.loader = l
	}
}

// WithSettingsFile makes the engine create its loader from a settings document.
//
// Parameters:
//   - path: the settings file, see loader.LoadSettings
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithSettingsFile(path string) EngineBuilderOption {
	return func(e *engine) {
		e.settingsPath = path
	}
}

// WithCompiler sets the shader compiler the pipeline manager uses.
//
// Parameters:
//   - c: the compiler
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithCompiler(c shader.Compiler) EngineBuilderOption {
	return func(e *engine) {
		e.compiler = c
	}
}

// WithShaderRoot sets the folder relative shader paths are resolved against.
//
// Parameters:
//   - dir: the shader folder
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithShaderRoot(dir string) EngineBuilderOption {
	return func(e *engine) {
		e.shaderRoot = dir
	}
}

// WithScene registers a scene at the given z-index key during engine construction.
//
// Parameters:
//   - key: the z-index determining submission order (lower submits first)
//   - s: the Scene to register
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithScene(key int, s scene.Scene) EngineBuilderOption {
	return func(e *engine) {
		e.scenes[key] = s
	}
}

// WithRenderFrameLimit sets an optional render frame rate cap in frames per second.
// Pass 0 to uncap the render loop (default).
//
// Parameters:
//   - fps: maximum render frames per second (0 = uncapped)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithRenderFrameLimit(fps float64) EngineBuilderOption {
	return func(e *engine) {
		if fps <= 0 {
			e.renderFrameLimit = 0
			return
		}
		e.renderFrameLimit = time.Duration(float64(time.Second) / fps)
	}
}
