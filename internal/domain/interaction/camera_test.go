package interaction

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestCamera_RayAndProjectAgree(t *testing.T) {
	cam := Camera{FieldOfView: 60, Distance: 15, Width: 800, Height: 600}

	points := []r3.Vec{
		{},
		{X: 3, Y: -2, Z: 1},
		{X: -5, Y: 4, Z: -6},
	}
	for _, p := range points {
		px, py, ok := cam.Project(p)
		require.True(t, ok)

		ray := cam.Ray(px, py)
		assert.InDelta(t, 1, r3.Norm(ray.Direction), 1e-12)

		// The projected point must lie on the ray through its pixel.
		dist := r3.Norm(r3.Sub(p, cam.Eye()))
		hit := ray.At(dist)
		assert.InDelta(t, 0, r3.Norm(r3.Sub(hit, p)), 1e-9)
	}
}

func TestCamera_CentreLooksDown(t *testing.T) {
	cam := Camera{FieldOfView: 60, Distance: 15, Width: 640, Height: 480}
	ray := cam.Ray(320, 240)
	assert.InDelta(t, 0, ray.Direction.X, 1e-12)
	assert.InDelta(t, 0, ray.Direction.Y, 1e-12)
	assert.InDelta(t, -1, ray.Direction.Z, 1e-12)

	nx, ny := cam.NDC(0, 0)
	assert.Equal(t, -1.0, nx)
	assert.Equal(t, 1.0, ny)
}

func TestCamera_BehindCamera(t *testing.T) {
	cam := Camera{FieldOfView: 60, Distance: 15, Width: 800, Height: 600}
	_, _, ok := cam.Project(r3.Vec{Z: 20})
	assert.False(t, ok)
}

func TestIntersectSphere(t *testing.T) {
	ray := Ray{Origin: r3.Vec{Z: 10}, Direction: r3.Vec{Z: -1}}

	d, ok := intersectSphere(ray, r3.Vec{}, 1)
	require.True(t, ok)
	assert.InDelta(t, 9, d, 1e-12)

	_, ok = intersectSphere(ray, r3.Vec{X: 2}, 1)
	assert.False(t, ok)

	_, ok = intersectSphere(ray, r3.Vec{Z: 20}, 1)
	assert.False(t, ok, "sphere behind the origin")
}

func TestRaySegmentDistance(t *testing.T) {
	ray := Ray{Origin: r3.Vec{Z: 10}, Direction: r3.Vec{Z: -1}}

	dist, along := raySegmentDistance(ray, r3.Vec{X: -1, Y: 0.1}, r3.Vec{X: 1, Y: 0.1})
	assert.InDelta(t, 0.1, dist, 1e-9)
	assert.InDelta(t, 10, along, 1e-9)

	// The segment ends before reaching the ray.
	dist, _ = raySegmentDistance(ray, r3.Vec{X: 2}, r3.Vec{X: 5})
	assert.InDelta(t, 2, dist, 1e-9)

	// Degenerate segment.
	dist, _ = raySegmentDistance(ray, r3.Vec{Y: 3}, r3.Vec{Y: 3})
	assert.InDelta(t, 3, dist, 1e-9)

	assert.Equal(t, 0.0, clamp01(-1))
	assert.Equal(t, 1.0, clamp01(math.Inf(1)))
}
