package body

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Law is the pairwise force law plus the mass-to-size mapping used for collisions.
type Law struct {
	G            float64
	RadiusOffset float64
}

// DefaultLaw uses an exaggerated G so that small scenes move at interactive rates.
var DefaultLaw = Law{G: 20, RadiusOffset: 2}

// Radius is the collision size of a body of the given mass.
func (l Law) Radius(mass float64) float64 {
	return math.Sqrt(mass) + l.RadiusOffset
}

func Distance(a, b Body) float64 {
	return r2.Norm(r2.Sub(b.Pos, a.Pos))
}

// Overlaps reports whether the two bodies' surfaces touch.
func (l Law) Overlaps(a, b Body) bool {
	return Distance(a, b) <= l.Radius(a.Mass)+l.Radius(b.Mass)
}

// ForceFrom is the attraction exerted on self by other. It reports false for
// coincident positions instead of dividing by zero.
func (l Law) ForceFrom(self, other Body) (r2.Vec, bool) {
	d := r2.Sub(other.Pos, self.Pos)
	dist := r2.Norm(d)
	if dist == 0 {
		return r2.Vec{}, false
	}
	f := l.G * (self.Mass * other.Mass) / (dist * dist)
	return r2.Vec{X: f * (d.X / dist), Y: f * (d.Y / dist)}, true
}
