package engine

import (
	"errors"
	"fmt"
	"strings"

	"gonum.org/v1/gonum/spatial/r2"

	"gravsim.dev/internal/sim/body"
)

// MergePolicy selects how colliding bodies found in one tick are combined.
type MergePolicy string

const (
	// MergeGrouped reduces every connected group of colliding bodies in one step.
	MergeGrouped MergePolicy = "grouped"
	// MergePairwise applies each colliding pair in (i, j) order, skipping pairs
	// whose bodies were already absorbed earlier in the same tick.
	MergePairwise MergePolicy = "pairwise"
)

// ParseMergePolicy accepts a tuning value; empty selects MergeGrouped.
func ParseMergePolicy(s string) (MergePolicy, error) {
	switch MergePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", MergeGrouped:
		return MergeGrouped, nil
	case MergePairwise:
		return MergePairwise, nil
	}
	return "", fmt.Errorf("unknown merge policy %q", s)
}

var ErrFull = errors.New("body limit reached")

// Config fixes the force law, merge policy and capacity of an Engine.
type Config struct {
	Law       body.Law
	Policy    MergePolicy
	MaxBodies int // 0 means unlimited
}

// Engine owns the body collection. It is not safe for concurrent use; callers
// serialize access (see world.World).
type Engine struct {
	cfg    Config
	bodies []body.Body

	ticks  uint64
	merges uint64
}

func New(cfg Config) *Engine {
	if cfg.Law == (body.Law{}) {
		cfg.Law = body.DefaultLaw
	}
	if cfg.Policy == "" {
		cfg.Policy = MergeGrouped
	}
	return &Engine{cfg: cfg}
}

func (e *Engine) Config() Config { return e.cfg }

// Insert validates b and appends it. Fixed bodies are stored with zero velocity.
func (e *Engine) Insert(b body.Body) (int, error) {
	if err := b.Validate(); err != nil {
		return -1, err
	}
	if e.cfg.MaxBodies > 0 && len(e.bodies) >= e.cfg.MaxBodies {
		return -1, ErrFull
	}
	if b.Fixed {
		b.Hold()
	}
	e.bodies = append(e.bodies, b)
	return len(e.bodies) - 1, nil
}

// Remove deletes the body at index i. An out-of-range index is a caller bug.
func (e *Engine) Remove(i int) {
	if i < 0 || i >= len(e.bodies) {
		panic(fmt.Sprintf("engine: remove index %d out of range [0,%d)", i, len(e.bodies)))
	}
	e.bodies = append(e.bodies[:i], e.bodies[i+1:]...)
}

// HitTest returns the first body whose radius contains p.
func (e *Engine) HitTest(p r2.Vec) (int, bool) {
	for i, b := range e.bodies {
		if r2.Norm(r2.Sub(b.Pos, p)) <= e.cfg.Law.Radius(b.Mass) {
			return i, true
		}
	}
	return -1, false
}

// At returns the body at index i.
func (e *Engine) At(i int) body.Body { return e.bodies[i] }

// Bodies returns a copy of the collection.
func (e *Engine) Bodies() []body.Body {
	out := make([]body.Body, len(e.bodies))
	copy(out, e.bodies)
	return out
}

func (e *Engine) Len() int           { return len(e.bodies) }
func (e *Engine) Ticks() uint64      { return e.ticks }
func (e *Engine) MergeCount() uint64 { return e.merges }

func (e *Engine) TotalMass() float64 {
	var m float64
	for _, b := range e.bodies {
		m += b.Mass
	}
	return m
}

// Project runs the look-ahead against the current collection without touching it.
func (e *Engine) Project(hyp body.Body, dt float64, steps, stride int) ([]r2.Vec, error) {
	return Project(e.cfg.Law, e.bodies, hyp, dt, steps, stride)
}
