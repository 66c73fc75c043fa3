package network

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayout_Deterministic(t *testing.T) {
	for _, n := range []int{1, 2, 7, 50} {
		for i := 0; i < n; i++ {
			first := Layout(i, n, 6)
			second := Layout(i, n, 6)
			assert.Equal(t, first, second, "n=%d i=%d", n, i)
		}
	}
}

func TestLayout_OnSphere(t *testing.T) {
	for _, radius := range []float64{1, 6, 10.5} {
		for _, n := range []int{1, 2, 3, 10, 50} {
			for _, p := range LayoutAll(n, radius) {
				assert.InDelta(t, radius, magnitude(p), 1e-9, "n=%d radius=%v", n, radius)
			}
		}
	}
}

func TestLayout_NoCollisions(t *testing.T) {
	for n := 2; n <= 60; n++ {
		positions := LayoutAll(n, 6)
		require.Len(t, positions, n)
		for i := range positions {
			for j := i + 1; j < len(positions); j++ {
				assert.Greater(t, positions[i].DistanceTo(positions[j]), 1e-6, "n=%d i=%d j=%d", n, i, j)
			}
		}
	}
}

func TestLayout_KnownPoints(t *testing.T) {
	single := Layout(0, 1, 6)
	assert.True(t, approxEqual(single, Position{X: 6}), "single node sits on the equator, got %s", single)

	top := Layout(0, 5, 6)
	assert.True(t, approxEqual(top, Position{Y: 6}), "first node at the pole, got %s", top)

	bottom := Layout(4, 5, 6)
	assert.InDelta(t, -6, bottom.Y, 1e-12)

	middle := Layout(2, 5, 6)
	theta := 2 * GoldenAngle
	assert.InDelta(t, math.Cos(theta)*6, middle.X, 1e-12)
	assert.InDelta(t, 0, middle.Y, 1e-12)
	assert.InDelta(t, math.Sin(theta)*6, middle.Z, 1e-12)
}

func TestLayoutAll_Empty(t *testing.T) {
	assert.Nil(t, LayoutAll(0, 6))
	assert.Nil(t, LayoutAll(-1, 6))
}

func TestPosition(t *testing.T) {
	p := Position{X: 3, Y: 4}
	assert.InDelta(t, 5, magnitude(p), 1e-12)
	assert.InDelta(t, 5, p.DistanceTo(Position{}), 1e-12)
	assert.True(t, approxEqual(p, Position{X: 3, Y: 4 + 1e-12}))
	assert.Equal(t, "(3.000, 4.000, 0.000)", p.String())
}

func magnitude(p Position) float64 {
	return p.DistanceTo(Position{})
}

func approxEqual(a, b Position) bool {
	return a.DistanceTo(b) < 1e-9
}
