package renderer

import (
	"log/slog"

	"github.com/Carmen-Shannon/oxy-render/engine/gpu"
	"github.com/Carmen-Shannon/oxy-render/engine/logger"
	"github.com/Carmen-Shannon/oxy-render/engine/profiler"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/pipeline"
)

// renderer is the implementation of the Renderer interface.
type renderer struct {
	device  gpu.Device
	manager pipeline.Manager

	// generation is the pipeline manager generation the caches were filled against
	generation uint64

	persistent [targetKindCount]*registry
	frame      [targetKindCount]passBuckets

	screenNext   PersistentPassHandle
	screenByID   map[PersistentPassHandle]*ScreenPass
	screenPasses []*ScreenPass

	windowOrder   []WindowTarget
	windowBinders map[WindowTarget]pipeline.Binder

	cache  *bufferCache
	timers *profiler.CPUTimers
	log    *slog.Logger
}

// Renderer schedules draw requests across window, offscreen and shadow-map targets.
//
// Each frame runs shadow-map passes, then offscreen passes, then post-effect screen passes,
// then window passes. Within a target, system objects draw before game objects, 3D before
// 2D, and standard passes before instanced batches. Passes sharing a target, a pipeline and
// a batch key in instancing mode are drawn as one instanced draw.
//
// The Renderer is not safe for concurrent use; registration and RenderFrame run on the
// render goroutine.
type Renderer interface {
	// RegisterWindow gives a window its own pipeline binder. Window passes for a window
	// that is not registered are skipped. Registering twice is a no-op.
	//
	// Parameters:
	//   - w: the window to register
	RegisterWindow(w WindowTarget)

	// UnregisterWindow drops the binder of a window and releases every buffer cached for it.
	//
	// Parameters:
	//   - w: the window to drop
	//
	// Returns:
	//   - bool: true if the window was registered
	UnregisterWindow(w WindowTarget) bool

	// RegisterPersistentRenderPass files a window pass that is drawn every frame until it
	// is unregistered. The window is registered if it is not yet.
	//
	// Parameters:
	//   - pass: the pass; its Target must be a WindowTarget
	//
	// Returns:
	//   - PersistentPassHandle: the registration handle, 0 if the pass has no window target
	RegisterPersistentRenderPass(pass RenderPass) PersistentPassHandle

	// UnregisterPersistentRenderPass removes a window pass.
	//
	// Parameters:
	//   - h: the handle returned by RegisterPersistentRenderPass
	//
	// Returns:
	//   - bool: true if the pass was registered
	UnregisterPersistentRenderPass(h PersistentPassHandle) bool

	// RegisterPersistentOffscreenRenderPass files a pass that draws into a ScreenBuffer every frame.
	//
	// Parameters:
	//   - pass: the pass; its Target must be a *ScreenBuffer
	//
	// Returns:
	//   - PersistentPassHandle: the registration handle, 0 if the pass has no screen buffer target
	RegisterPersistentOffscreenRenderPass(pass RenderPass) PersistentPassHandle

	// UnregisterPersistentOffscreenRenderPass removes an offscreen pass.
	//
	// Parameters:
	//   - h: the handle returned by RegisterPersistentOffscreenRenderPass
	//
	// Returns:
	//   - bool: true if the pass was registered
	UnregisterPersistentOffscreenRenderPass(h PersistentPassHandle) bool

	// RegisterPersistentShadowMapRenderPass files a pass that draws into a ShadowMapBuffer every frame.
	//
	// Parameters:
	//   - pass: the pass; its Target must be a *ShadowMapBuffer
	//
	// Returns:
	//   - PersistentPassHandle: the registration handle, 0 if the pass has no shadow map target
	RegisterPersistentShadowMapRenderPass(pass RenderPass) PersistentPassHandle

	// UnregisterPersistentShadowMapRenderPass removes a shadow-map pass.
	//
	// Parameters:
	//   - h: the handle returned by RegisterPersistentShadowMapRenderPass
	//
	// Returns:
	//   - bool: true if the pass was registered
	UnregisterPersistentShadowMapRenderPass(h PersistentPassHandle) bool

	// RegisterPersistentScreenPass runs the post effects of a ScreenBuffer every frame.
	//
	// Parameters:
	//   - pass: the screen pass
	//
	// Returns:
	//   - PersistentPassHandle: the registration handle, 0 if the pass has no buffer
	RegisterPersistentScreenPass(pass ScreenPass) PersistentPassHandle

	// UnregisterPersistentScreenPass removes a screen pass.
	//
	// Parameters:
	//   - h: the handle returned by RegisterPersistentScreenPass
	//
	// Returns:
	//   - bool: true if the pass was registered
	UnregisterPersistentScreenPass(h PersistentPassHandle) bool

	// SubmitRenderPass files a pass for the next RenderFrame only. Instancing passes join
	// a persistent batch with the same key.
	//
	// Parameters:
	//   - pass: the pass, for any target type
	//
	// Returns:
	//   - bool: false if the pass has no usable target
	SubmitRenderPass(pass RenderPass) bool

	// RenderFrame records every pass of the frame. Window passes record into the command
	// list of each window surface's frame in flight; offscreen and shadow-map recordings
	// are submitted by RenderFrame itself.
	RenderFrame()

	// Device returns the device buffers are allocated on.
	Device() gpu.Device

	// PipelineManager returns the manager pipelines are resolved from.
	PipelineManager() pipeline.Manager

	// CPUTimers returns the scope timers the renderer records into, nil if none were set.
	CPUTimers() *profiler.CPUTimers

	// CachedBuffers returns the number of live constant and instance buffers.
	//
	// Returns:
	//   - int: constant buffers
	//   - int: instance buffers
	CachedBuffers() (int, int)

	// Release releases every cached buffer and forgets every registration.
	Release()
}

var _ Renderer = &renderer{}

// NewRenderer creates a Renderer allocating buffers on device and resolving pipelines from m.
//
// Parameters:
//   - device: the device buffers are allocated on and offscreen work is submitted to
//   - m: the pipeline manager
//   - options: variadic list of RendererBuilderOption functions to configure the Renderer
//
// Returns:
//   - Renderer: the new renderer
func NewRenderer(device gpu.Device, m pipeline.Manager, options ...RendererBuilderOption) Renderer {
	r := &renderer{
		device:        device,
		manager:       m,
		screenByID:    make(map[PersistentPassHandle]*ScreenPass),
		windowBinders: make(map[WindowTarget]pipeline.Binder),
		cache:         newBufferCache(device),
		log:           logger.Component("renderer"),
	}
	for i := range r.persistent {
		r.persistent[i] = newRegistry()
	}
	for _, opt := range options {
		opt(r)
	}
	r.generation = m.Generation()
	return r
}

func (r *renderer) Device() gpu.Device                { return r.device }
func (r *renderer) PipelineManager() pipeline.Manager { return r.manager }
func (r *renderer) CPUTimers() *profiler.CPUTimers    { return r.timers }
func (r *renderer) CachedBuffers() (int, int)         { return len(r.cache.constants), len(r.cache.instances) }

func (r *renderer) RegisterWindow(w WindowTarget) {
	if w == nil {
		return
	}
	if _, ok := r.windowBinders[w]; ok {
		return
	}
	b := pipeline.NewBinder(r.manager)
	if s := w.Surface(); s != nil && s.CommandList() != nil {
		b.SetCommandList(s.CommandList())
	}
	b.Invalidate()
	r.windowBinders[w] = b
	r.windowOrder = append(r.windowOrder, w)
}

func (r *renderer) UnregisterWindow(w WindowTarget) bool {
	if _, ok := r.windowBinders[w]; !ok {
		return false
	}
	delete(r.windowBinders, w)
	for i, o := range r.windowOrder {
		if o == w {
			r.windowOrder = append(r.windowOrder[:i], r.windowOrder[i+1:]...)
			break
		}
	}
	n := r.cache.dropTarget(w)
	r.log.Debug("window unregistered", "window", w.Label(), "released", n)
	return true
}

func (r *renderer) registerPersistent(kind targetKind, pass RenderPass) PersistentPassHandle {
	k, ok := kindOf(pass.Target)
	if !ok || k != kind {
		r.log.Debug("persistent pass rejected, wrong target", "pipeline", pass.PipelineName)
		return 0
	}
	if w, ok := pass.Target.(WindowTarget); ok {
		r.RegisterWindow(w)
	}
	return r.persistent[kind].register(pass)
}

func (r *renderer) RegisterPersistentRenderPass(pass RenderPass) PersistentPassHandle {
	return r.registerPersistent(targetWindow, pass)
}

func (r *renderer) UnregisterPersistentRenderPass(h PersistentPassHandle) bool {
	return r.persistent[targetWindow].unregister(h)
}

func (r *renderer) RegisterPersistentOffscreenRenderPass(pass RenderPass) PersistentPassHandle {
	return r.registerPersistent(targetOffscreen, pass)
}

func (r *renderer) UnregisterPersistentOffscreenRenderPass(h PersistentPassHandle) bool {
	return r.persistent[targetOffscreen].unregister(h)
}

func (r *renderer) RegisterPersistentShadowMapRenderPass(pass RenderPass) PersistentPassHandle {
	return r.registerPersistent(targetShadowMap, pass)
}

func (r *renderer) UnregisterPersistentShadowMapRenderPass(h PersistentPassHandle) bool {
	return r.persistent[targetShadowMap].unregister(h)
}

func (r *renderer) RegisterPersistentScreenPass(pass ScreenPass) PersistentPassHandle {
	if pass.Buffer == nil {
		return 0
	}
	r.screenNext++
	p := &pass
	r.screenByID[r.screenNext] = p
	r.screenPasses = append(r.screenPasses, p)
	return r.screenNext
}

func (r *renderer) UnregisterPersistentScreenPass(h PersistentPassHandle) bool {
	p, ok := r.screenByID[h]
	if !ok {
		return false
	}
	delete(r.screenByID, h)
	for i, q := range r.screenPasses {
		if q == p {
			r.screenPasses = append(r.screenPasses[:i], r.screenPasses[i+1:]...)
			break
		}
	}
	return true
}

func (r *renderer) SubmitRenderPass(pass RenderPass) bool {
	kind, ok := kindOf(pass.Target)
	if !ok {
		return false
	}
	if w, ok := pass.Target.(WindowTarget); ok {
		r.RegisterWindow(w)
	}
	r.frame[kind].add(&pass)
	return true
}

func (r *renderer) Release() {
	n := r.cache.releaseAll()
	for i := range r.persistent {
		r.persistent[i] = newRegistry()
		r.frame[i].clear()
	}
	clear(r.screenByID)
	r.screenPasses = nil
	clear(r.windowBinders)
	r.windowOrder = nil
	r.log.Debug("renderer released", "buffers", n)
}
