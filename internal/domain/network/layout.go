package network

import "math"

// GoldenAngle is the angular step between successive points, π(3−√5).
var GoldenAngle = math.Pi * (3 - math.Sqrt(5))

// Layout places point i of n on a sphere of the given radius using the
// Fibonacci sphere distribution. A single point sits on the equator at
// (radius, 0, 0). The result depends only on its arguments.
func Layout(i, n int, radius float64) Position {
	yNorm := 0.0
	if n > 1 {
		yNorm = 1 - (2*float64(i))/float64(n-1)
	}
	radiusAtY := math.Sqrt(math.Max(0, 1-yNorm*yNorm))
	theta := GoldenAngle * float64(i)

	return Position{
		X: math.Cos(theta) * radiusAtY * radius,
		Y: yNorm * radius,
		Z: math.Sin(theta) * radiusAtY * radius,
	}
}

// LayoutAll returns the positions of all n points. n <= 0 yields nil.
func LayoutAll(n int, radius float64) []Position {
	if n <= 0 {
		return nil
	}
	positions := make([]Position, n)
	for i := range positions {
		positions[i] = Layout(i, n, radius)
	}
	return positions
}
