package game_object

import "github.com/Carmen-Shannon/oxy-render/engine/renderer"

// GameObjectBuilderOption is a functional option for configuring a GameObject during construction.
type GameObjectBuilderOption func(*gameObject)

// WithEnabled sets whether the object is drawn.
//
// Parameters:
//   - enabled: true to draw the object
//
// Returns:
//   - GameObjectBuilderOption: functional option to set the enabled state
func WithEnabled(enabled bool) GameObjectBuilderOption {
	return func(o *gameObject) {
		o.enabled.Store(enabled)
	}
}

// WithEphemeral makes the scene submit the object every frame instead of registering it once.
// Ephemeral objects are culled against the camera frustum.
//
// Returns:
//   - GameObjectBuilderOption: functional option to mark the object ephemeral
func WithEphemeral() GameObjectBuilderOption {
	return func(o *gameObject) {
		o.ephemeral = true
	}
}

// WithPipeline sets the pipeline the object draws with.
//
// Parameters:
//   - name: a pipeline built by the pipeline manager
//
// Returns:
//   - GameObjectBuilderOption: functional option to set the pipeline
func WithPipeline(name string) GameObjectBuilderOption {
	return func(o *gameObject) {
		o.pipeline = name
	}
}

// WithStandardRendering draws the object with its own draw call instead of batching it.
//
// Returns:
//   - GameObjectBuilderOption: functional option to disable instancing
func WithStandardRendering() GameObjectBuilderOption {
	return func(o *gameObject) {
		o.renderType = renderer.RenderTypeStandard
	}
}

// WithSystemObject orders the object before game objects of the same target.
//
// Returns:
//   - GameObjectBuilderOption: functional option to mark the object as engine-owned
func WithSystemObject() GameObjectBuilderOption {
	return func(o *gameObject) {
		o.objectType = renderer.ObjectTypeSystem
	}
}

// WithBatchKey splits instanced objects of the same pipeline into separate draws.
//
// Parameters:
//   - key: objects with equal keys share a draw
//
// Returns:
//   - GameObjectBuilderOption: functional option to set the batch key
func WithBatchKey(key uint64) GameObjectBuilderOption {
	return func(o *gameObject) {
		o.batchKey = key
	}
}

// WithTransform sets the initial placement.
//
// Parameters:
//   - x, y, z: the center
//   - rotation: rotation around Z in radians
//   - sx, sy: the quad size
//
// Returns:
//   - GameObjectBuilderOption: functional option to set the transform
func WithTransform(x, y, z, rotation, sx, sy float32) GameObjectBuilderOption {
	return func(o *gameObject) {
		o.position = [3]float32{x, y, z}
		o.rotation = rotation
		o.scale = [2]float32{sx, sy}
	}
}

// WithColor sets the RGBA tint.
//
// Parameters:
//   - c: the tint
//
// Returns:
//   - GameObjectBuilderOption: functional option to set the color
func WithColor(c [4]float32) GameObjectBuilderOption {
	return func(o *gameObject) {
		o.color = c
	}
}

// WithVelocity sets the motion applied by Update.
//
// Parameters:
//   - vx, vy: world units per second
//   - spin: radians per second
//
// Returns:
//   - GameObjectBuilderOption: functional option to set the velocity
func WithVelocity(vx, vy, spin float32) GameObjectBuilderOption {
	return func(o *gameObject) {
		o.velocity = [2]float32{vx, vy}
		o.spin = spin
	}
}
