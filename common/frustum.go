package common

import "math"

// Plane is the set of points p with Normal·p + Distance = 0. Points on the Normal side are inside.
type Plane struct {
	Normal   [3]float32
	Distance float32
}

// Frustum is the six planes of a view volume: left, right, bottom, top, near, far.
type Frustum struct {
	Planes [6]Plane
}

// FrustumFromMatrix extracts the planes of a view-projection matrix with a [0, 1] depth range.
//
// Parameters:
//   - vp: the combined projection * view matrix
//
// Returns:
//   - Frustum: the normalized planes
func FrustumFromMatrix(vp Mat4) Frustum {
	row := func(i int) [4]float32 { return [4]float32{vp[i], vp[4+i], vp[8+i], vp[12+i]} }
	r0, r1, r2, r3 := row(0), row(1), row(2), row(3)
	planes := [6][4]float32{
		add(r3, r0, 1), add(r3, r0, -1),
		add(r3, r1, 1), add(r3, r1, -1),
		r2, add(r3, r2, -1),
	}

	var f Frustum
	for i, p := range planes {
		l := float32(math.Sqrt(float64(p[0]*p[0] + p[1]*p[1] + p[2]*p[2])))
		if l == 0 {
			l = 1
		}
		f.Planes[i] = Plane{Normal: [3]float32{p[0] / l, p[1] / l, p[2] / l}, Distance: p[3] / l}
	}
	return f
}

func add(a, b [4]float32, sign float32) [4]float32 {
	return [4]float32{a[0] + sign*b[0], a[1] + sign*b[1], a[2] + sign*b[2], a[3] + sign*b[3]}
}

// ContainsSphere reports whether a sphere overlaps the frustum.
//
// Parameters:
//   - center: the sphere center in world space
//   - radius: the sphere radius
//
// Returns:
//   - bool: false only if the sphere is entirely outside one plane
func (f Frustum) ContainsSphere(center [3]float32, radius float32) bool {
	for _, p := range f.Planes {
		if dot(p.Normal, center)+p.Distance < -radius {
			return false
		}
	}
	return true
}
