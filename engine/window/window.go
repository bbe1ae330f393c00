package window

import (
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-render/engine/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

// Window is a platform window the renderer can draw into. It satisfies renderer.WindowTarget
// once a surface has been attached with SetSurface.
type Window interface {
	// Label returns the window title.
	Label() string

	// Surface returns the attached swap chain, nil before SetSurface.
	Surface() gpu.Surface

	// SetSurface attaches the swap chain created for this window.
	//
	// Parameters:
	//   - s: the surface, typically from gpu.NewWGPUDevice
	SetSurface(s gpu.Surface)

	// IsPendingDestroy reports whether the window has been asked to close.
	IsPendingDestroy() bool

	// IsMinimized reports whether the window is iconified.
	IsMinimized() bool

	// IsVisible reports whether the window is shown.
	IsVisible() bool

	// SetUpdateCallback sets the function called each message loop iteration.
	//
	// Parameters:
	//   - callback: function to call (or nil to disable)
	SetUpdateCallback(callback func())

	// SetResizeCallback sets the function called when the framebuffer is resized.
	//
	// Parameters:
	//   - callback: function receiving new width and height in pixels
	SetResizeCallback(callback func(width, height int))

	// SetScrollCallback sets the callback for mouse scroll wheel events.
	//
	// Parameters:
	//   - callback: function receiving scroll delta (positive = up, negative = down)
	SetScrollCallback(callback func(delta float32))

	// SetKeyDownCallback sets the callback for key press and repeat events.
	//
	// Parameters:
	//   - callback: function receiving the key
	SetKeyDownCallback(callback func(key Key))

	// SetKeyUpCallback sets the callback for key release events.
	//
	// Parameters:
	//   - callback: function receiving the key
	SetKeyUpCallback(callback func(key Key))

	// SetMouseMoveCallback sets the callback for mouse movement.
	//
	// Parameters:
	//   - callback: function receiving mouse x, y position
	SetMouseMoveCallback(callback func(x, y int32))

	// SurfaceDescriptor returns the platform surface descriptor a WebGPU surface is created from.
	//
	// Returns:
	//   - *wgpu.SurfaceDescriptor: the descriptor, or nil if the window is not initialized
	SurfaceDescriptor() *wgpu.SurfaceDescriptor

	// IsRunning returns true while the window is open.
	IsRunning() bool

	// Close asks the window to close. While ProcessMessages is running it only stops the
	// loop, so it is safe from any goroutine. Once the loop has returned, Close destroys the
	// platform window and must run on the goroutine that created it.
	//
	// Returns:
	//   - error: error if the platform window cannot be destroyed
	Close() error

	// ProcessMessages runs the message loop on the calling goroutine until the window closes.
	// Calls the update callback each iteration.
	ProcessMessages()

	// Width returns the framebuffer width in pixels.
	Width() int

	// Height returns the framebuffer height in pixels.
	Height() int
}

// engineWindow is the implementation of the Window interface.
type engineWindow struct {
	title string

	minWidth, minHeight int
	maxWidth, maxHeight int

	width  atomic.Int32
	height atomic.Int32

	minimized atomic.Bool
	hidden    atomic.Bool
	closing   atomic.Bool
	looping   atomic.Bool

	surface atomic.Pointer[surfaceRef]

	// internalWindow holds the platform window (glfwWindow).
	internalWindow any

	onUpdate    func()
	onResize    func(width, height int)
	onScroll    func(delta float32)
	onKeyDown   func(key Key)
	onKeyUp     func(key Key)
	onMouseMove func(x, y int32)
}

// surfaceRef boxes the surface interface for atomic swaps.
type surfaceRef struct{ s gpu.Surface }

var _ Window = &engineWindow{}

// NewWindow creates and shows a platform window.
//
// Parameters:
//   - options: functional options to configure the window
//
// Returns:
//   - Window: the created window
//   - error: error if the platform window cannot be created
func NewWindow(options ...WindowBuilderOption) (Window, error) {
	w := &engineWindow{
		title:     "oxy-render",
		minWidth:  320,
		minHeight: 200,
		maxWidth:  -1,
		maxHeight: -1,
	}
	w.width.Store(1280)
	w.height.Store(720)
	for _, opt := range options {
		opt(w)
	}
	if err := newPlatformWindow(w); err != nil {
		return nil, fmt.Errorf("failed to create platform window: %w", err)
	}
	return w, nil
}

func (w *engineWindow) Label() string { return w.title }

func (w *engineWindow) Surface() gpu.Surface {
	if ref := w.surface.Load(); ref != nil {
		return ref.s
	}
	return nil
}

func (w *engineWindow) SetSurface(s gpu.Surface) {
	w.surface.Store(&surfaceRef{s: s})
}

func (w *engineWindow) IsPendingDestroy() bool { return w.closing.Load() }
func (w *engineWindow) IsMinimized() bool      { return w.minimized.Load() }
func (w *engineWindow) IsVisible() bool        { return !w.hidden.Load() }

func (w *engineWindow) SetUpdateCallback(callback func())                  { w.onUpdate = callback }
func (w *engineWindow) SetResizeCallback(callback func(width, height int)) { w.onResize = callback }
func (w *engineWindow) SetScrollCallback(callback func(delta float32))     { w.onScroll = callback }
func (w *engineWindow) SetKeyDownCallback(callback func(key Key))          { w.onKeyDown = callback }
func (w *engineWindow) SetKeyUpCallback(callback func(key Key))            { w.onKeyUp = callback }
func (w *engineWindow) SetMouseMoveCallback(callback func(x, y int32))     { w.onMouseMove = callback }

func (w *engineWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor {
	return platformGetSurfaceDescriptor(w)
}

func (w *engineWindow) IsRunning() bool {
	return !w.closing.Load() && platformIsRunningCheck(w)
}

func (w *engineWindow) Close() error {
	w.closing.Store(true)
	if w.looping.Load() {
		return nil
	}
	return platformCloseWindow(w)
}

func (w *engineWindow) ProcessMessages() {
	w.looping.Store(true)
	defer w.looping.Store(false)
	for w.IsRunning() {
		if !platformProcessMessages(w) {
			w.closing.Store(true)
			break
		}
		if w.onUpdate != nil {
			w.onUpdate()
		}
		runtime.Gosched()
	}
}

func (w *engineWindow) Width() int  { return int(w.width.Load()) }
func (w *engineWindow) Height() int { return int(w.height.Load()) }

// resized records a framebuffer size change. A zero size marks the window minimized.
func (w *engineWindow) resized(width, height int) {
	w.width.Store(int32(width))
	w.height.Store(int32(height))
	w.minimized.Store(width == 0 || height == 0)
	if w.onResize != nil {
		w.onResize(width, height)
	}
}
