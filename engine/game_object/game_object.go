package game_object

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/camera"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/binder"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/pipeline"
)

const (
	// CameraVariable is the constant buffer every sprite pipeline reads the view-projection from.
	CameraVariable = "Vertex:camera"
	// InstanceVariable is the structured buffer holding one spriteInstance per drawn sprite.
	InstanceVariable = "Vertex:instances"
	// InstanceStride is the byte size of one spriteInstance.
	InstanceStride = 80
	// DefaultPipeline is the pipeline sprites draw with unless WithPipeline says otherwise.
	DefaultPipeline = "Sprite"
)

// spriteInstance is the per-instance layout of the sprite shaders.
type spriteInstance struct {
	Model common.Mat4
	Color [4]float32
}

type gameObject struct {
	id        uint64
	enabled   atomic.Bool
	ephemeral bool

	pipeline   string
	renderType renderer.RenderType
	objectType renderer.ObjectType
	batchKey   uint64

	mu       sync.RWMutex
	position [3]float32
	rotation float32
	scale    [2]float32
	color    [4]float32
	velocity [2]float32
	spin     float32
}

// Drawable is anything a scene can turn into render passes.
type Drawable interface {
	// PipelineName returns the pipeline the drawable draws with.
	PipelineName() string

	// CreateRenderPass builds the pass that draws the drawable into target.
	//
	// Parameters:
	//   - target: a window, screen buffer or shadow map
	//   - cam: the camera whose view-projection fills the camera buffer
	//
	// Returns:
	//   - renderer.RenderPass: the pass, ready to register or submit
	CreateRenderPass(target renderer.Target, cam camera.Camera) renderer.RenderPass
}

// GameObject is a colored-quad scene entity. It moves by its velocity and spin every
// Update and draws itself through the pass built by CreateRenderPass.
type GameObject interface {
	// ID returns the object's identifier, assigned by the scene.
	ID() uint64

	// SetID sets the object's identifier.
	//
	// Parameters:
	//   - id: the ID to assign
	SetID(id uint64)

	// Enabled reports whether the object is drawn.
	Enabled() bool

	// SetEnabled sets whether the object is drawn.
	//
	// Parameters:
	//   - enabled: true to draw the object
	SetEnabled(enabled bool)

	// Ephemeral reports whether the object is drawn through per-frame submissions instead
	// of a persistent registration.
	Ephemeral() bool

	Drawable

	// Position returns the object's center.
	Position() [3]float32

	// SetPosition moves the object.
	//
	// Parameters:
	//   - x, y, z: the new center; z orders overlapping sprites
	SetPosition(x, y, z float32)

	// Rotation returns the rotation around Z in radians.
	Rotation() float32

	// SetRotation sets the rotation around Z.
	//
	// Parameters:
	//   - radians: counter-clockwise rotation
	SetRotation(radians float32)

	// Scale returns the quad size in world units.
	Scale() [2]float32

	// SetScale sets the quad size.
	//
	// Parameters:
	//   - sx, sy: the width and height in world units
	SetScale(sx, sy float32)

	// Color returns the RGBA tint.
	Color() [4]float32

	// SetColor sets the RGBA tint.
	//
	// Parameters:
	//   - c: the tint, components in [0, 1]
	SetColor(c [4]float32)

	// SetVelocity sets the linear and angular velocity applied by Update.
	//
	// Parameters:
	//   - vx, vy: world units per second
	//   - spin: radians per second
	SetVelocity(vx, vy, spin float32)

	// Update advances the object by dt seconds.
	//
	// Parameters:
	//   - dt: the elapsed time in seconds
	Update(dt float32)

	// Radius returns the radius of a circle enclosing the quad, for culling.
	Radius() float32
}

var _ GameObject = &gameObject{}

// NewGameObject creates an enabled 32x32 white sprite drawn with DefaultPipeline in one
// instanced batch.
//
// Parameters:
//   - options: functional options to configure the object
//
// Returns:
//   - GameObject: the new object
func NewGameObject(options ...GameObjectBuilderOption) GameObject {
	o := &gameObject{
		pipeline:   DefaultPipeline,
		renderType: renderer.RenderTypeInstancing,
		objectType: renderer.ObjectTypeGame,
		scale:      [2]float32{32, 32},
		color:      [4]float32{1, 1, 1, 1},
	}
	o.enabled.Store(true)
	for _, option := range options {
		option(o)
	}
	return o
}

func (o *gameObject) ID() uint64              { return o.id }
func (o *gameObject) SetID(id uint64)         { o.id = id }
func (o *gameObject) Enabled() bool           { return o.enabled.Load() }
func (o *gameObject) SetEnabled(enabled bool) { o.enabled.Store(enabled) }
func (o *gameObject) Ephemeral() bool         { return o.ephemeral }
func (o *gameObject) PipelineName() string    { return o.pipeline }

func (o *gameObject) Position() [3]float32 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.position
}

func (o *gameObject) SetPosition(x, y, z float32) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.position = [3]float32{x, y, z}
}

func (o *gameObject) Rotation() float32 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.rotation
}

func (o *gameObject) SetRotation(radians float32) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rotation = radians
}

func (o *gameObject) Scale() [2]float32 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.scale
}

func (o *gameObject) SetScale(sx, sy float32) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.scale = [2]float32{sx, sy}
}

func (o *gameObject) Color() [4]float32 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.color
}

func (o *gameObject) SetColor(c [4]float32) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.color = c
}

func (o *gameObject) SetVelocity(vx, vy, spin float32) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.velocity = [2]float32{vx, vy}
	o.spin = spin
}

func (o *gameObject) Update(dt float32) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.position[0] += o.velocity[0] * dt
	o.position[1] += o.velocity[1] * dt
	o.rotation = float32(math.Mod(float64(o.rotation+o.spin*dt), 2*math.Pi))
}

func (o *gameObject) Radius() float32 {
	s := o.Scale()
	return float32(math.Hypot(float64(s[0]), float64(s[1]))) / 2
}

// writeInstance encodes the object into one instance slot. dst must hold InstanceStride bytes.
func (o *gameObject) writeInstance(dst []byte) bool {
	if len(dst) < InstanceStride {
		return false
	}
	o.mu.RLock()
	inst := spriteInstance{
		Model: common.Model(o.position[0], o.position[1], o.position[2], o.rotation, o.scale[0], o.scale[1]),
		Color: o.color,
	}
	o.mu.RUnlock()
	copy(dst, common.StructToBytes(&inst))
	return true
}

func (o *gameObject) CreateRenderPass(target renderer.Target, cam camera.Camera) renderer.RenderPass {
	return renderer.RenderPass{
		Target:          target,
		PipelineName:    o.pipeline,
		RenderType:      o.renderType,
		ObjectType:      o.objectType,
		Dimension:       renderer.Dimension2D,
		BatchKey:        o.batchKey,
		ConstantBuffers: []renderer.ConstantBufferRequirement{{Name: CameraVariable, ByteSize: camera.ViewProjectionSize}},
		InstanceBuffers: []renderer.InstanceBufferRequirement{{Name: InstanceVariable, ElementStride: InstanceStride}},
		UpdateConstantBuffers: func(maps map[string][]byte, _ int) bool {
			return cam != nil && cam.WriteViewProjection(maps[CameraVariable])
		},
		SubmitInstance: func(maps map[string][]byte, _ binder.ShaderVariableBinder, index int) bool {
			buf := maps[InstanceVariable]
			off := index * InstanceStride
			if off+InstanceStride > len(buf) {
				return false
			}
			return o.writeInstance(buf[off : off+InstanceStride])
		},
		BatchedRender: func(binder.ShaderVariableBinder, int) bool {
			return true
		},
		RenderCommand: func(pipeline.Binder) *renderer.RenderCommand {
			return &renderer.RenderCommand{VertexCount: 6}
		},
	}
}
