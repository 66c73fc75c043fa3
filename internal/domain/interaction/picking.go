package interaction

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// rayReach bounds the ray when it is treated as a segment for edge picking.
// It is far beyond any scene the camera can frame.
const rayReach = 1e4

// intersectSphere returns the distance along the ray to the first surface
// hit of the sphere, or false when the ray misses it or it lies behind.
func intersectSphere(ray Ray, center r3.Vec, radius float64) (float64, bool) {
	oc := r3.Sub(ray.Origin, center)
	b := r3.Dot(oc, ray.Direction)
	c := r3.Norm2(oc) - radius*radius
	disc := b*b - c
	if disc < 0 {
		return 0, false
	}
	sq := math.Sqrt(disc)
	t := -b - sq
	if t < 0 {
		t = -b + sq
	}
	if t < 0 {
		return 0, false
	}
	return t, true
}

// raySegmentDistance returns the smallest distance between the ray and the
// segment ab, and how far along the ray the closest point lies.
func raySegmentDistance(ray Ray, a, b r3.Vec) (dist, along float64) {
	p1, d1 := ray.Origin, r3.Scale(rayReach, ray.Direction)
	p2, d2 := a, r3.Sub(b, a)
	r := r3.Sub(p1, p2)

	const eps = 1e-12
	aa := r3.Dot(d1, d1)
	e := r3.Dot(d2, d2)
	f := r3.Dot(d2, r)

	var s, t float64
	switch {
	case e <= eps:
		s = clamp01(-r3.Dot(d1, r) / aa)
	default:
		c := r3.Dot(d1, r)
		bb := r3.Dot(d1, d2)
		denom := aa*e - bb*bb
		if denom > eps {
			s = clamp01((bb*f - c*e) / denom)
		}
		t = (bb*s + f) / e
		if t < 0 {
			t = 0
			s = clamp01(-c / aa)
		} else if t > 1 {
			t = 1
			s = clamp01((bb - c) / aa)
		}
	}

	c1 := r3.Add(p1, r3.Scale(s, d1))
	c2 := r3.Add(p2, r3.Scale(t, d2))
	return r3.Norm(r3.Sub(c1, c2)), s * rayReach
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
