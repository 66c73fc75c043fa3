package network

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// Position is a point in scene space.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Vec returns the position as a gonum vector.
func (p Position) Vec() r3.Vec {
	return r3.Vec{X: p.X, Y: p.Y, Z: p.Z}
}

// DistanceTo calculates the Euclidean distance to another position
func (p Position) DistanceTo(other Position) float64 {
	return r3.Norm(r3.Sub(p.Vec(), other.Vec()))
}

// String returns a string representation of the position
func (p Position) String() string {
	return fmt.Sprintf("(%.3f, %.3f, %.3f)", p.X, p.Y, p.Z)
}
