package body

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Tag is an opaque display classification carried for the renderer.
// Only StarTag has a meaning inside the simulation.
type Tag int

const (
	// StarTag marks fixed bodies. Any merge that produces a fixed body takes this tag.
	StarTag Tag = 6

	PaletteSize = 7
)

var (
	ErrInvalidMass = errors.New("mass must be positive and finite")
	ErrNonFinite   = errors.New("coordinates must be finite")
)

// Body is a point mass. Velocity is implicit in Pos-Prev (Verlet position history).
type Body struct {
	Pos   r2.Vec  `json:"pos"`
	Prev  r2.Vec  `json:"prev"`
	Mass  float64 `json:"mass"`
	Fixed bool    `json:"fixed,omitempty"`
	Tag   Tag     `json:"tag"`
}

// New returns a body at rest at pos.
func New(pos r2.Vec, mass float64) Body {
	return Body{Pos: pos, Prev: pos, Mass: mass}
}

// NewWithVelocity seeds a body that has already moved one step along vel.
func NewWithVelocity(pos, vel r2.Vec, mass float64) Body {
	return Body{Pos: r2.Add(pos, vel), Prev: pos, Mass: mass}
}

// Launch builds a body placed at anchor by a pull-back gesture: drag is the
// cursor offset from the anchor, and the launch velocity points the other way.
func Launch(anchor, drag r2.Vec, mass float64, tag Tag, scale float64) Body {
	if scale <= 0 {
		scale = 1
	}
	return Body{
		Pos:   anchor,
		Prev:  r2.Vec{X: anchor.X + drag.X/scale, Y: anchor.Y + drag.Y/scale},
		Mass:  mass,
		Fixed: tag == StarTag,
		Tag:   tag,
	}
}

// Validate rejects non-positive or non-finite mass and non-finite coordinates.
func (b Body) Validate() error {
	if !(b.Mass > 0) || math.IsInf(b.Mass, 0) {
		return fmt.Errorf("body: %w (got %v)", ErrInvalidMass, b.Mass)
	}
	for _, v := range [...]float64{b.Pos.X, b.Pos.Y, b.Prev.X, b.Prev.Y} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("body: %w", ErrNonFinite)
		}
	}
	return nil
}

// Velocity is the displacement over the last integration step.
func (b Body) Velocity() r2.Vec { return r2.Sub(b.Pos, b.Prev) }

// Integrate advances one Störmer–Verlet step. The new position is computed
// from the old Prev before Prev is shifted.
func (b *Body) Integrate(acc r2.Vec, dt float64) {
	dt2 := dt * dt
	next := r2.Vec{
		X: 2*b.Pos.X - b.Prev.X + acc.X*dt2,
		Y: 2*b.Pos.Y - b.Prev.Y + acc.Y*dt2,
	}
	b.Prev = b.Pos
	b.Pos = next
}

// Hold pins the body in place with zero implicit velocity.
func (b *Body) Hold() { b.Prev = b.Pos }
