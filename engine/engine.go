package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/oxy-render/engine/gpu"
	"github.com/Carmen-Shannon/oxy-render/engine/loader"
	"github.com/Carmen-Shannon/oxy-render/engine/logger"
	"github.com/Carmen-Shannon/oxy-render/engine/profiler"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-render/engine/scene"
	"github.com/Carmen-Shannon/oxy-render/engine/window"
)

// ErrNoLoader is returned by Reload when the engine was built without pipeline documents.
var ErrNoLoader = errors.New("engine has no document loader")

// engine implements the Engine interface.
// Coordinates the tick goroutine, the render goroutine and the window message loop.
type engine struct {
	tickRateChannel chan time.Duration // dynamic tick rate updates

	running atomic.Bool
	wg      sync.WaitGroup

	quitChannel chan struct{}
	quitOnce    sync.Once
	closeOnce   sync.Once

	window    window.Window
	windowOpt []window.WindowBuilderOption

	device     gpu.Device
	surface    gpu.Surface
	ownsDevice bool
	vsync      bool

	compiler     shader.Compiler
	shaderRoot   string
	settingsPath string
	loader       loader.Loader
	watcher      loader.Watcher
	manager      pipeline.Manager
	renderer     renderer.Renderer

	reloadPending atomic.Bool
	reloads       atomic.Int64
	resizePending atomic.Pointer[[2]int]

	timers           *profiler.CPUTimers
	profiler         *profiler.Profiler
	profilingEnabled atomic.Bool

	engineTickRate   time.Duration
	tickCallback     func(deltaTime float32)
	renderCallback   func(deltaTime float32)
	renderFrameLimit time.Duration // minimum frame duration; 0 = uncapped

	scenesMu sync.Mutex
	scenes   map[int]scene.Scene
	// attached is only touched by the goroutine that renders frames.
	attached map[scene.Scene]bool

	log *slog.Logger
}

// Engine is the main entry point of the module.
// It owns the window, device, pipeline manager and renderer, runs the tick and render
// loops, and reloads pipelines between frames when their documents change.
type Engine interface {
	// Window returns the window the engine renders into.
	//
	// Returns:
	//   - window.Window: the window instance
	Window() window.Window

	// Device returns the GPU device.
	Device() gpu.Device

	// Renderer returns the renderer the scenes submit to.
	Renderer() renderer.Renderer

	// PipelineManager returns the pipeline manager built from the loaded documents.
	PipelineManager() pipeline.Manager

	// CPUTimers returns the timers the renderer records its frame phases into.
	CPUTimers() *profiler.CPUTimers

	// EnableProfiler enables performance profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// SetTickRate sets the engine tick rate in frames per second.
	//
	// Parameters:
	//   - fps: target frames per second (defaults to 60 if <= 0)
	SetTickRate(fps float64)

	// SetTickCallback registers the function called each engine tick, after the active
	// scenes have been updated.
	//
	// Parameters:
	//   - callback: function to call at the configured tick rate, receiving the delta time in seconds
	SetTickCallback(callback func(deltaTime float32))

	// SetRenderCallback registers the function called each render frame, after
	// RenderFrame has recorded the frame and before it is submitted.
	//
	// Parameters:
	//   - callback: function to call each render frame, receiving the delta time in seconds
	SetRenderCallback(callback func(deltaTime float32))

	// SetRenderFrameLimit sets an optional render frame rate cap in frames per second.
	//
	// Parameters:
	//   - fps: maximum render frames per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// AddScene registers a scene at the given z-index key. The scene is attached to the
	// renderer on the next frame.
	//
	// Parameters:
	//   - key: the z-index determining submission order (lower submits first)
	//   - s: the Scene to register
	AddScene(key int, s scene.Scene)

	// RemoveScene removes the scene at the given z-index key. Its passes are unregistered
	// on the next frame.
	//
	// Parameters:
	//   - key: the z-index of the scene to remove
	RemoveScene(key int)

	// Scene retrieves the scene registered at the given z-index key, nil if there is none.
	//
	// Parameters:
	//   - key: the z-index of the scene to retrieve
	//
	// Returns:
	//   - scene.Scene: the scene at the key, or nil if not found
	Scene(key int) scene.Scene

	// Scenes returns a copy of all registered scenes keyed by z-index.
	//
	// Returns:
	//   - map[int]scene.Scene: a copy of the scenes map
	Scenes() map[int]scene.Scene

	// RequestReload asks the render goroutine to reload the pipeline documents before the
	// next frame. Safe to call from any goroutine.
	RequestReload()

	// Reload reads the documents again and rebuilds every pipeline. Must be called from
	// the goroutine that renders frames; RequestReload is the asynchronous form.
	//
	// Returns:
	//   - error: error if the documents cannot be read or a pipeline fails to build
	Reload() error

	// Reloads returns how many reloads have completed.
	Reloads() int64

	// Frame renders one frame on the calling goroutine. Run calls it from the render
	// goroutine; tests and custom loops may call it directly.
	//
	// Parameters:
	//   - dt: the time since the previous frame in seconds
	//
	// Returns:
	//   - error: error if the frame could not be submitted
	Frame(dt float32) error

	// Run starts the tick and render goroutines and runs the window message loop on the
	// calling goroutine. Blocks until the window closes or Quit is called.
	Run()

	// Quit signals all engine goroutines to stop.
	// Safe to call multiple times; subsequent calls are no-ops.
	Quit()

	// Close releases the watcher, scenes, renderer, pipelines and device, then closes the
	// window. Run calls it on exit.
	Close()
}

var _ Engine = &engine{}

// NewEngine creates the window (unless one is supplied), the device and surface (unless
// supplied), loads the pipeline documents and builds the renderer.
//
// Parameters:
//   - options: functional options for engine configuration
//
// Returns:
//   - Engine: the newly created engine
//   - error: error if the window, device or pipelines cannot be created
func NewEngine(options ...EngineBuilderOption) (Engine, error) {
	e := &engine{
		tickRateChannel: make(chan time.Duration, 1),
		quitChannel:     make(chan struct{}),
		scenes:          make(map[int]scene.Scene),
		attached:        make(map[scene.Scene]bool),
		engineTickRate:  time.Second / 60,
		vsync:           true,
		log:             logger.Component("engine"),
	}
	for _, opt := range options {
		opt(e)
	}

	if e.window == nil {
		w, err := window.NewWindow(e.windowOpt...)
		if err != nil {
			return nil, fmt.Errorf("failed to create window: %w", err)
		}
		e.window = w
	}

	if e.device == nil {
		d, s, err := gpu.NewWGPUDevice(
			gpu.WithCompatibleSurface(e.window.SurfaceDescriptor()),
			gpu.WithVSync(e.vsync),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create device: %w", err)
		}
		e.device, e.surface, e.ownsDevice = d, s, true
	}
	if e.surface != nil {
		if err := e.surface.Configure(uint32(e.window.Width()), uint32(e.window.Height())); err != nil {
			e.release()
			return nil, fmt.Errorf("failed to configure surface: %w", err)
		}
		e.window.SetSurface(e.surface)
	}

	if e.loader == nil && e.settingsPath != "" {
		l, err := loader.NewLoaderFromFile(e.settingsPath)
		if err != nil {
			e.release()
			return nil, fmt.Errorf("failed to create document loader: %w", err)
		}
		e.loader = l
	}

	managerOpts := []pipeline.ManagerBuilderOption{}
	if e.compiler != nil {
		managerOpts = append(managerOpts, pipeline.WithCompiler(e.compiler))
	}
	if e.shaderRoot != "" {
		managerOpts = append(managerOpts, pipeline.WithShaderRoot(e.shaderRoot))
	}
	e.manager = pipeline.NewManager(e.device, managerOpts...)

	if e.loader != nil {
		src, err := e.loader.Load(context.Background())
		if err != nil {
			e.release()
			return nil, fmt.Errorf("failed to load pipeline documents: %w", err)
		}
		if err := e.manager.Load(src); err != nil {
			e.release()
			return nil, fmt.Errorf("failed to build pipelines: %w", err)
		}
		if e.loader.Settings().Watch {
			w, err := e.loader.Watch(e.RequestReload)
			if err != nil {
				e.release()
				return nil, fmt.Errorf("failed to watch pipeline documents: %w", err)
			}
			e.watcher = w
		}
	}

	if e.timers == nil {
		e.timers = profiler.NewCPUTimers(60)
	}
	e.profiler = profiler.NewProfiler(e.timers)
	e.renderer = renderer.NewRenderer(e.device, e.manager,
		renderer.WithCPUTimers(e.timers),
		renderer.WithWindow(e.window),
	)

	e.window.SetResizeCallback(func(width, height int) {
		e.resizePending.Store(&[2]int{width, height})
	})

	e.log.Info("engine ready", "window", e.window.Label(), "pipelines", len(e.manager.Names()), "watch", e.watcher != nil)
	return e, nil
}

func (e *engine) Window() window.Window             { return e.window }
func (e *engine) Device() gpu.Device                { return e.device }
func (e *engine) Renderer() renderer.Renderer       { return e.renderer }
func (e *engine) PipelineManager() pipeline.Manager { return e.manager }
func (e *engine) CPUTimers() *profiler.CPUTimers    { return e.timers }
func (e *engine) Reloads() int64                    { return e.reloads.Load() }

func (e *engine) RequestReload() {
	e.reloadPending.Store(true)
}

func (e *engine) Reload() error {
	if e.loader == nil {
		return ErrNoLoader
	}
	stop := e.timers.Scope("Reload")
	defer stop()

	src, err := e.loader.Load(context.Background())
	if err != nil {
		return fmt.Errorf("failed to load pipeline documents: %w", err)
	}
	if err := e.manager.Reload(src); err != nil {
		return fmt.Errorf("failed to rebuild pipelines: %w", err)
	}
	n := e.reloads.Add(1)
	e.log.Info("pipelines reloaded", "generation", e.manager.Generation(), "reloads", n)
	return nil
}

func (e *engine) Run() {
	e.running.Store(true)
	e.handle()
	e.window.ProcessMessages()
	e.signalQuit()
	e.wg.Wait()
	e.running.Store(false)
	e.Close()
}

func (e *engine) Quit() {
	e.signalQuit()
}

// signalQuit closes the quit channel to signal all goroutines to exit.
func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		close(e.quitChannel)
	})
}

// handle launches the engine, render, and quit goroutines.
// Each goroutine is tracked by the engine's WaitGroup.
func (e *engine) handle() {
	e.wg.Add(3)
	go e.handleEngine()
	go e.handleRender()
	go e.handleQuit()
}

// handleEngine runs the fixed-rate tick loop. Active scenes are updated before the tick
// callback runs.
func (e *engine) handleEngine() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.engineTickRate)
	defer ticker.Stop()

	lastTick := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		case <-ticker.C:
			now := time.Now()
			dt := float32(now.Sub(lastTick).Seconds())
			lastTick = now

			for _, s := range e.sortedScenes() {
				if s.Active() {
					s.Update(dt)
				}
			}
			if e.tickCallback != nil {
				e.tickCallback(dt)
			}
		case newRate := <-e.tickRateChannel:
			ticker.Reset(newRate)
			e.engineTickRate = newRate
		}
	}
}

// handleRender runs the render loop until quit. A panic inside a frame is logged and
// shuts the engine down.
func (e *engine) handleRender() {
	defer e.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("render goroutine recovered from panic", "panic", r)
			e.signalQuit()
		}
	}()

	lastRender := time.Now()

	for {
		select {
		case <-e.quitChannel:
			e.detachAll()
			return
		default:
		}

		now := time.Now()
		dt := float32(now.Sub(lastRender).Seconds())
		lastRender = now

		if err := e.Frame(dt); err != nil {
			e.log.Warn("frame failed", "error", err)
		}

		if e.renderFrameLimit > 0 {
			if remaining := e.renderFrameLimit - time.Since(now); remaining > 0 {
				time.Sleep(remaining)
			}
		}
	}
}

// handleQuit waits for quit and stops the window message loop.
func (e *engine) handleQuit() {
	defer e.wg.Done()
	<-e.quitChannel
	if err := e.window.Close(); err != nil {
		e.log.Warn("failed to close window", "error", err)
	}
}

func (e *engine) Frame(dt float32) error {
	if e.reloadPending.CompareAndSwap(true, false) {
		if err := e.Reload(); err != nil {
			// the previous pipelines stay in use
			e.log.Error("pipeline reload failed", "error", err)
		}
	}
	if err := e.applyResize(); err != nil {
		e.log.Warn("failed to resize surface", "error", err)
	}

	scenes := e.sortedScenes()
	e.reconcileScenes(scenes)

	recording := false
	if e.surface != nil && !e.window.IsMinimized() && !e.window.IsPendingDestroy() {
		if _, err := e.surface.Begin(); err != nil {
			e.log.Debug("surface not recording", "error", err)
		} else {
			recording = true
		}
	}

	stop := e.timers.Scope("Scenes_SubmitFrame")
	for _, s := range scenes {
		s.SubmitFrame()
	}
	stop()

	e.renderer.RenderFrame()

	if e.renderCallback != nil {
		e.renderCallback(dt)
	}

	var err error
	if recording {
		err = e.present()
	}

	if e.profilingEnabled.Load() {
		e.profiler.Tick()
	}
	return err
}

// present ends the surface recording, submits it and shows the image.
func (e *engine) present() error {
	cb, err := e.surface.End()
	if err != nil {
		return fmt.Errorf("failed to end frame: %w", err)
	}
	if err := e.device.Submit(cb); err != nil {
		return fmt.Errorf("failed to submit frame: %w", err)
	}
	e.surface.Present()
	return nil
}

// applyResize reconfigures the surface and the scene cameras to the last size the window
// reported. A zero size only updates the cameras' pending state.
func (e *engine) applyResize() error {
	size := e.resizePending.Swap(nil)
	if size == nil {
		return nil
	}
	w, h := size[0], size[1]
	for _, s := range e.sortedScenes() {
		if c := s.Camera(); c != nil {
			c.SetViewport(w, h)
		}
	}
	if e.surface == nil || w <= 0 || h <= 0 {
		return nil
	}
	return e.surface.Configure(uint32(w), uint32(h))
}

// sortedScenes returns the registered scenes in ascending key order.
func (e *engine) sortedScenes() []scene.Scene {
	e.scenesMu.Lock()
	defer e.scenesMu.Unlock()
	keys := make([]int, 0, len(e.scenes))
	for k := range e.scenes {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	out := make([]scene.Scene, 0, len(keys))
	for _, k := range keys {
		out = append(out, e.scenes[k])
	}
	return out
}

// reconcileScenes attaches newly added scenes and detaches removed ones.
func (e *engine) reconcileScenes(current []scene.Scene) {
	live := make(map[scene.Scene]bool, len(current))
	for _, s := range current {
		live[s] = true
		if !e.attached[s] {
			s.AttachToRenderer(e.renderer, e.window)
			e.attached[s] = true
			e.log.Debug("scene attached", "scene", s.Name())
		}
	}
	for s := range e.attached {
		if !live[s] {
			s.DetachFromRenderer()
			delete(e.attached, s)
			e.log.Debug("scene detached", "scene", s.Name())
		}
	}
}

func (e *engine) detachAll() {
	for s := range e.attached {
		s.DetachFromRenderer()
		delete(e.attached, s)
	}
}

func (e *engine) EnableProfiler() {
	e.profilingEnabled.Store(true)
}

func (e *engine) DisableProfiler() {
	e.profilingEnabled.Store(false)
}

// SetTickRate sets the engine tick rate in frames per second.
// If the engine is running, the change takes effect immediately.
func (e *engine) SetTickRate(fps float64) {
	if fps <= 0 {
		fps = 60
	}
	newRate := time.Duration(float64(time.Second) / fps)

	if !e.running.Load() {
		e.engineTickRate = newRate
		return
	}
	// replace a pending update that has not been picked up yet
	select {
	case e.tickRateChannel <- newRate:
	default:
		select {
		case <-e.tickRateChannel:
		default:
		}
		e.tickRateChannel <- newRate
	}
}

func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.tickCallback = callback
}

func (e *engine) SetRenderCallback(callback func(deltaTime float32)) {
	e.renderCallback = callback
}

func (e *engine) SetRenderFrameLimit(fps float64) {
	if fps <= 0 {
		e.renderFrameLimit = 0
		return
	}
	e.renderFrameLimit = time.Duration(float64(time.Second) / fps)
}

func (e *engine) AddScene(key int, s scene.Scene) {
	e.scenesMu.Lock()
	defer e.scenesMu.Unlock()
	e.scenes[key] = s
}

func (e *engine) RemoveScene(key int) {
	e.scenesMu.Lock()
	defer e.scenesMu.Unlock()
	delete(e.scenes, key)
}

func (e *engine) Scene(key int) scene.Scene {
	e.scenesMu.Lock()
	defer e.scenesMu.Unlock()
	return e.scenes[key]
}

func (e *engine) Scenes() map[int]scene.Scene {
	e.scenesMu.Lock()
	defer e.scenesMu.Unlock()
	cp := make(map[int]scene.Scene, len(e.scenes))
	for k, v := range e.scenes {
		cp[k] = v
	}
	return cp
}

func (e *engine) Close() {
	e.closeOnce.Do(func() {
		e.detachAll()
		for _, s := range e.sortedScenes() {
			s.Close()
		}
		e.release()
		if err := e.window.Close(); err != nil {
			e.log.Warn("failed to close window", "error", err)
		}
		e.log.Info("engine closed", "reloads", e.reloads.Load())
	})
}

// release frees whatever NewEngine has created so far.
func (e *engine) release() {
	if e.watcher != nil {
		if err := e.watcher.Close(); err != nil {
			e.log.Warn("failed to close watcher", "error", err)
		}
	}
	if e.loader != nil {
		e.loader.Close()
	}
	if e.renderer != nil {
		e.renderer.Release()
	}
	if e.manager != nil {
		e.manager.Release()
	}
	if e.ownsDevice {
		if e.surface != nil {
			e.surface.Release()
		}
		e.device.Release()
	}
}
