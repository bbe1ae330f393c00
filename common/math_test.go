package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMulIdentity(t *testing.T) {
	m := Model(3, 4, 0.5, 0, 2, 2)
	assert.Equal(t, m, Identity4().Mul(m))
	assert.Equal(t, m, m.Mul(Identity4()))

	p := m.Transform(1, 1, 0, 1)
	assert.Equal(t, [4]float32{5, 6, 0.5, 1}, p)
}

func TestOrthographicMapsEdges(t *testing.T) {
	m := Orthographic(0, 800, 0, 600, -1, 1)
	lo := m.Transform(0, 0, 0, 1)
	hi := m.Transform(800, 600, 0, 1)
	assert.InDelta(t, -1, lo[0], 1e-6)
	assert.InDelta(t, -1, lo[1], 1e-6)
	assert.InDelta(t, 1, hi[0], 1e-6)
	assert.InDelta(t, 1, hi[1], 1e-6)
	assert.InDelta(t, 0.5, lo[2], 1e-6)
}

func TestFrustumContainsSphere(t *testing.T) {
	f := FrustumFromMatrix(Orthographic(-10, 10, -10, 10, -1, 1))
	assert.True(t, f.ContainsSphere([3]float32{0, 0, 0}, 1))
	assert.True(t, f.ContainsSphere([3]float32{10.5, 0, 0}, 1), "overlapping the edge")
	assert.False(t, f.ContainsSphere([3]float32{12, 0, 0}, 1))
	assert.False(t, f.ContainsSphere([3]float32{0, -12, 0}, 1))
}

func TestLookAtMovesEyeToOrigin(t *testing.T) {
	v := LookAt([3]float32{0, 0, 5}, [3]float32{}, [3]float32{0, 1, 0})
	p := v.Transform(0, 0, 5, 1)
	assert.InDelta(t, 0, p[0], 1e-6)
	assert.InDelta(t, 0, p[1], 1e-6)
	assert.InDelta(t, 0, p[2], 1e-6)
	c := v.Transform(0, 0, 0, 1)
	assert.InDelta(t, -5, c[2], 1e-6)
}
