package camera

// CameraBuilderOption is a functional option for configuring a Camera via NewCamera.
type CameraBuilderOption func(*cameraImpl)

// WithPerspective makes the camera a perspective camera.
//
// Parameters:
//   - fov: vertical field of view in radians
//   - near, far: the clip distances, near > 0
//
// Returns:
//   - CameraBuilderOption: a function that applies the perspective option to a camera
func WithPerspective(fov, near, far float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.projection = ProjectionPerspective
		c.fov, c.near, c.far = fov, near, far
	}
}

// WithDepthRange sets the near and far distances of an orthographic camera.
//
// Parameters:
//   - near, far: the depth range in world units
//
// Returns:
//   - CameraBuilderOption: a function that applies the depth range to a camera
func WithDepthRange(near, far float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.near, c.far = near, far
	}
}

// WithViewport sets the pixel size of the target.
//
// Parameters:
//   - width, height: the size in pixels
//
// Returns:
//   - CameraBuilderOption: a function that applies the viewport option to a camera
func WithViewport(width, height int) CameraBuilderOption {
	return func(c *cameraImpl) {
		if width > 0 && height > 0 {
			c.width, c.height = float32(width), float32(height)
		}
	}
}

// WithPosition sets the initial position.
//
// Parameters:
//   - x, y, z: the position in world space
//
// Returns:
//   - CameraBuilderOption: a function that applies the position option to a camera
func WithPosition(x, y, z float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.position = [3]float32{x, y, z}
	}
}

// WithTarget sets the initial look-at point of a perspective camera.
//
// Parameters:
//   - x, y, z: the look-at point
//
// Returns:
//   - CameraBuilderOption: a function that applies the target option to a camera
func WithTarget(x, y, z float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.target = [3]float32{x, y, z}
	}
}
