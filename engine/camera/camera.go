package camera

import (
	"math"
	"sync"

	"github.com/Carmen-Shannon/oxy-render/common"
)

// ProjectionType selects how the camera maps view space to clip space.
type ProjectionType int

const (
	// ProjectionOrthographic maps one world unit to one pixel at zoom 1, centered on the position.
	ProjectionOrthographic ProjectionType = iota
	// ProjectionPerspective looks from the position at the target with a vertical field of view.
	ProjectionPerspective
)

// ViewProjectionSize is the byte size of the matrix written by WriteViewProjection.
const ViewProjectionSize = 64

type cameraImpl struct {
	mu sync.Mutex

	projection ProjectionType

	position [3]float32
	target   [3]float32
	up       [3]float32

	fov        float32
	near, far  float32
	zoom       float32
	width      float32
	height     float32
	dirty      bool
	viewProj   common.Mat4
	frustum    common.Frustum
	generation uint64
}

// Camera produces the view-projection matrix passes write into their camera constant buffer.
// A Camera is safe for concurrent use: the tick goroutine moves it while the render
// goroutine reads its matrix.
type Camera interface {
	// Projection returns the projection type.
	Projection() ProjectionType

	// Position returns the camera position in world space.
	Position() [3]float32

	// SetPosition moves the camera. An orthographic camera keeps looking down -Z; a
	// perspective camera keeps its target.
	//
	// Parameters:
	//   - x, y, z: the new position
	SetPosition(x, y, z float32)

	// Pan moves the camera and, for a perspective camera, its target by the same offset.
	//
	// Parameters:
	//   - dx, dy: the offset in world units
	Pan(dx, dy float32)

	// SetTarget sets the point a perspective camera looks at.
	//
	// Parameters:
	//   - x, y, z: the look-at point
	SetTarget(x, y, z float32)

	// Zoom returns the orthographic zoom factor.
	Zoom() float32

	// SetZoom sets the orthographic zoom factor. Values are clamped to [0.05, 50].
	//
	// Parameters:
	//   - zoom: the zoom factor, 2 shows half as much of the world
	SetZoom(zoom float32)

	// SetViewport sets the pixel size of the target the camera renders into.
	//
	// Parameters:
	//   - width, height: the size in pixels; zero sizes are ignored
	SetViewport(width, height int)

	// ViewProjection returns projection * view.
	ViewProjection() common.Mat4

	// Frustum returns the planes of the current view volume.
	Frustum() common.Frustum

	// WriteViewProjection copies the view-projection matrix into a mapped constant buffer.
	//
	// Parameters:
	//   - dst: the destination, at least ViewProjectionSize bytes
	//
	// Returns:
	//   - bool: false if dst is too short
	WriteViewProjection(dst []byte) bool

	// Generation increases every time the matrix changes.
	Generation() uint64
}

var _ Camera = &cameraImpl{}

// NewCamera creates an orthographic camera over a 1280x720 viewport unless options say otherwise.
//
// Parameters:
//   - options: functional options to configure the camera
//
// Returns:
//   - Camera: the new camera
func NewCamera(options ...CameraBuilderOption) Camera {
	c := &cameraImpl{
		up:     [3]float32{0, 1, 0},
		fov:    45 * math.Pi / 180,
		near:   -100,
		far:    100,
		zoom:   1,
		width:  1280,
		height: 720,
		dirty:  true,
	}
	for _, option := range options {
		option(c)
	}
	if c.projection == ProjectionPerspective && c.near <= 0 {
		c.near, c.far = 0.1, 1000
	}
	return c
}

func (c *cameraImpl) Projection() ProjectionType { return c.projection }

func (c *cameraImpl) Position() [3]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.position
}

func (c *cameraImpl) SetPosition(x, y, z float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.position = [3]float32{x, y, z}
	c.dirty = true
}

func (c *cameraImpl) Pan(dx, dy float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.position[0] += dx
	c.position[1] += dy
	c.target[0] += dx
	c.target[1] += dy
	c.dirty = true
}

func (c *cameraImpl) SetTarget(x, y, z float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.target = [3]float32{x, y, z}
	c.dirty = true
}

func (c *cameraImpl) Zoom() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.zoom
}

func (c *cameraImpl) SetZoom(zoom float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.zoom = min(max(zoom, 0.05), 50)
	c.dirty = true
}

func (c *cameraImpl) SetViewport(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.width, c.height = float32(width), float32(height)
	c.dirty = true
}

func (c *cameraImpl) ViewProjection() common.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.update()
	return c.viewProj
}

func (c *cameraImpl) Frustum() common.Frustum {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.update()
	return c.frustum
}

func (c *cameraImpl) WriteViewProjection(dst []byte) bool {
	if len(dst) < ViewProjectionSize {
		return false
	}
	vp := c.ViewProjection()
	copy(dst, common.StructToBytes(&vp))
	return true
}

func (c *cameraImpl) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.update()
	return c.generation
}

// update recomputes the matrix if anything changed. Caller holds mu.
func (c *cameraImpl) update() {
	if !c.dirty {
		return
	}
	c.dirty = false
	c.generation++

	switch c.projection {
	case ProjectionPerspective:
		view := common.LookAt(c.position, c.target, c.up)
		proj := common.Perspective(c.fov, c.width/c.height, c.near, c.far)
		c.viewProj = proj.Mul(view)
	default:
		hw := c.width / (2 * c.zoom)
		hh := c.height / (2 * c.zoom)
		x, y := c.position[0], c.position[1]
		c.viewProj = common.Orthographic(x-hw, x+hw, y-hh, y+hh, c.near, c.far)
	}
	c.frustum = common.FrustumFromMatrix(c.viewProj)
}
