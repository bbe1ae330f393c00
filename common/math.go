// Package common holds the small math and byte helpers shared by the camera, the scene and
// game objects. Matrices are column-major, matching WGSL and the WebGPU clip space.
package common

import (
	"math"
	"unsafe"
)

// Mat4 is a 4x4 column-major matrix. Element (row, col) is at index col*4 + row.
type Mat4 [16]float32

// Identity4 returns the identity matrix.
func Identity4() Mat4 {
	return Mat4{0: 1, 5: 1, 10: 1, 15: 1}
}

// Mul returns m * n.
//
// Parameters:
//   - n: the right-hand matrix
//
// Returns:
//   - Mat4: the product
func (m Mat4) Mul(n Mat4) Mat4 {
	var out Mat4
	for col := 0; col < 4; col++ {
		for row := 0; row < 4; row++ {
			var sum float32
			for k := 0; k < 4; k++ {
				sum += m[k*4+row] * n[col*4+k]
			}
			out[col*4+row] = sum
		}
	}
	return out
}

// Transform returns m * (x, y, z, w).
func (m Mat4) Transform(x, y, z, w float32) [4]float32 {
	return [4]float32{
		m[0]*x + m[4]*y + m[8]*z + m[12]*w,
		m[1]*x + m[5]*y + m[9]*z + m[13]*w,
		m[2]*x + m[6]*y + m[10]*z + m[14]*w,
		m[3]*x + m[7]*y + m[11]*z + m[15]*w,
	}
}

// Perspective returns a right-handed projection with a [0, 1] depth range.
//
// Parameters:
//   - fovY: vertical field of view in radians
//   - aspect: width / height
//   - near: near plane distance, > 0
//   - far: far plane distance, > near
//
// Returns:
//   - Mat4: the projection matrix
func Perspective(fovY, aspect, near, far float32) Mat4 {
	f := 1 / float32(math.Tan(float64(fovY)/2))
	var out Mat4
	out[0] = f / aspect
	out[5] = f
	out[10] = far / (near - far)
	out[11] = -1
	out[14] = near * far / (near - far)
	return out
}

// Orthographic returns a right-handed orthographic projection with a [0, 1] depth range.
//
// Parameters:
//   - left, right, bottom, top: the view volume edges
//   - near, far: the depth range of the view volume
//
// Returns:
//   - Mat4: the projection matrix
func Orthographic(left, right, bottom, top, near, far float32) Mat4 {
	out := Identity4()
	out[0] = 2 / (right - left)
	out[5] = 2 / (top - bottom)
	out[10] = 1 / (near - far)
	out[12] = -(right + left) / (right - left)
	out[13] = -(top + bottom) / (top - bottom)
	out[14] = near / (near - far)
	return out
}

// LookAt returns the view matrix of an eye looking at center.
//
// Parameters:
//   - eye: the camera position
//   - center: the point looked at
//   - up: the up direction, typically (0, 1, 0)
//
// Returns:
//   - Mat4: the view matrix
func LookAt(eye, center, up [3]float32) Mat4 {
	z := normalize([3]float32{eye[0] - center[0], eye[1] - center[1], eye[2] - center[2]})
	x := normalize(cross(up, z))
	y := cross(z, x)

	out := Identity4()
	out[0], out[4], out[8], out[12] = x[0], x[1], x[2], -dot(x, eye)
	out[1], out[5], out[9], out[13] = y[0], y[1], y[2], -dot(y, eye)
	out[2], out[6], out[10], out[14] = z[0], z[1], z[2], -dot(z, eye)
	return out
}

// Model returns the translation * rotation(Z) * scale matrix of a 2D object placed at depth z.
//
// Parameters:
//   - x, y, z: the translation
//   - rotation: counter-clockwise rotation around Z in radians
//   - sx, sy: the scale along X and Y
//
// Returns:
//   - Mat4: the model matrix
func Model(x, y, z, rotation, sx, sy float32) Mat4 {
	c := float32(math.Cos(float64(rotation)))
	s := float32(math.Sin(float64(rotation)))
	out := Identity4()
	out[0], out[1] = c*sx, s*sx
	out[4], out[5] = -s*sy, c*sy
	out[12], out[13], out[14] = x, y, z
	return out
}

func dot(a, b [3]float32) float32 { return a[0]*b[0] + a[1]*b[1] + a[2]*b[2] }

func cross(a, b [3]float32) [3]float32 {
	return [3]float32{a[1]*b[2] - a[2]*b[1], a[2]*b[0] - a[0]*b[2], a[0]*b[1] - a[1]*b[0]}
}

func normalize(v [3]float32) [3]float32 {
	l := float32(math.Sqrt(float64(dot(v, v))))
	if l == 0 {
		return v
	}
	return [3]float32{v[0] / l, v[1] / l, v[2] / l}
}

// StructToBytes returns the memory of *v as bytes. The slice aliases v.
//
// Parameters:
//   - v: pointer to a struct of plain numeric fields
//
// Returns:
//   - []byte: a view of the struct's memory
func StructToBytes[T any](v *T) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(v)), int(unsafe.Sizeof(*v)))
}
