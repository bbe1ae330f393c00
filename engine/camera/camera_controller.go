package camera

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-render/engine/window"
)

// PanController moves a camera from keyboard and scroll input. Arrow keys and WASD pan,
// the scroll wheel zooms.
type PanController struct {
	camera Camera

	// Speed is the pan speed in pixels per second at zoom 1.
	Speed float32
	// ZoomStep is the zoom factor applied per scroll notch.
	ZoomStep float32

	mu   sync.Mutex
	held map[window.Key]bool
}

// NewPanController creates a controller for c.
//
// Parameters:
//   - c: the camera to move
//
// Returns:
//   - *PanController: the controller, with a speed of 400 and a zoom step of 1.1
func NewPanController(c Camera) *PanController {
	return &PanController{camera: c, Speed: 400, ZoomStep: 1.1, held: make(map[window.Key]bool)}
}

// KeyDown records a pressed key.
func (p *PanController) KeyDown(k window.Key) {
	p.mu.Lock()
	p.held[k] = true
	p.mu.Unlock()
}

// KeyUp records a released key.
func (p *PanController) KeyUp(k window.Key) {
	p.mu.Lock()
	delete(p.held, k)
	p.mu.Unlock()
}

// Scroll zooms in for positive deltas and out for negative ones.
func (p *PanController) Scroll(delta float32) {
	z := p.camera.Zoom()
	switch {
	case delta > 0:
		z *= p.ZoomStep
	case delta < 0:
		z /= p.ZoomStep
	}
	p.camera.SetZoom(z)
}

// Update pans the camera for the keys held during dt seconds.
func (p *PanController) Update(dt float32) {
	p.mu.Lock()
	var dx, dy float32
	if p.held[window.KeyLeft] || p.held[window.KeyA] {
		dx--
	}
	if p.held[window.KeyRight] || p.held[window.KeyD] {
		dx++
	}
	if p.held[window.KeyDown] || p.held[window.KeyS] {
		dy--
	}
	if p.held[window.KeyUp] || p.held[window.KeyW] {
		dy++
	}
	p.mu.Unlock()

	if dx == 0 && dy == 0 {
		return
	}
	step := p.Speed * dt / p.camera.Zoom()
	p.camera.Pan(dx*step, dy*step)
}
