// Package interaction holds the pointer and camera model of the memory
// network view: scene rotation, ray picking of nodes and edges, hover
// emphasis and the idle animation.
package interaction

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Ray is a half-line with a unit direction.
type Ray struct {
	Origin    r3.Vec
	Direction r3.Vec
}

// At returns the point at distance t along the ray.
func (r Ray) At(t float64) r3.Vec {
	return r3.Add(r.Origin, r3.Scale(t, r.Direction))
}

// Camera is a perspective camera on the +Z axis looking at the origin.
type Camera struct {
	// FieldOfView is the vertical field of view in degrees.
	FieldOfView float64
	Distance    float64
	Width       int
	Height      int
}

// Aspect is width over height; a degenerate viewport counts as square.
func (c Camera) Aspect() float64 {
	if c.Width <= 0 || c.Height <= 0 {
		return 1
	}
	return float64(c.Width) / float64(c.Height)
}

func (c Camera) tanHalfFOV() float64 {
	return math.Tan(c.FieldOfView * math.Pi / 360)
}

// Eye is the camera position.
func (c Camera) Eye() r3.Vec {
	return r3.Vec{Z: c.Distance}
}

// NDC converts a pixel position to normalised device coordinates, with y
// pointing up.
func (c Camera) NDC(px, py float64) (x, y float64) {
	w, h := float64(c.Width), float64(c.Height)
	if w <= 0 || h <= 0 {
		return 0, 0
	}
	return px/w*2 - 1, -(py/h*2 - 1)
}

// Ray returns the ray through the given pixel.
func (c Camera) Ray(px, py float64) Ray {
	nx, ny := c.NDC(px, py)
	t := c.tanHalfFOV()
	dir := r3.Vec{X: nx * t * c.Aspect(), Y: ny * t, Z: -1}
	return Ray{Origin: c.Eye(), Direction: r3.Unit(dir)}
}

// Project maps a world point to pixel coordinates. ok is false for points
// at or behind the camera plane.
func (c Camera) Project(p r3.Vec) (px, py float64, ok bool) {
	q := r3.Sub(p, c.Eye())
	if q.Z >= 0 {
		return 0, 0, false
	}
	t := c.tanHalfFOV()
	nx := (q.X / -q.Z) / (t * c.Aspect())
	ny := (q.Y / -q.Z) / t
	return (nx + 1) / 2 * float64(c.Width), (1 - ny) / 2 * float64(c.Height), true
}
