package engine

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r2"

	"gravsim.dev/internal/sim/body"
)

func mustInsert(t *testing.T, e *Engine, b body.Body) int {
	t.Helper()
	i, err := e.Insert(b)
	if err != nil {
		t.Fatalf("insert %+v: %v", b, err)
	}
	return i
}

func TestTick_EqualMassesMoveSymmetrically(t *testing.T) {
	e := New(Config{})
	mustInsert(t, e, body.New(r2.Vec{X: -50, Y: 0}, 50))
	mustInsert(t, e, body.New(r2.Vec{X: 50, Y: 0}, 50))

	e.Tick(1)
	bs := e.Bodies()
	da := r2.Sub(bs[0].Pos, r2.Vec{X: -50})
	db := r2.Sub(bs[1].Pos, r2.Vec{X: 50})
	if da.X != -db.X || da.Y != -db.Y {
		t.Fatalf("displacements not opposite: %v vs %v", da, db)
	}
	if da.X <= 0 {
		t.Fatalf("bodies should attract, got displacement %v", da)
	}
}

func TestTick_TwoBodyReference(t *testing.T) {
	e := New(Config{Law: body.Law{G: 20, RadiusOffset: 2}})
	mustInsert(t, e, body.New(r2.Vec{X: 0, Y: 0}, 1000))
	mustInsert(t, e, body.New(r2.Vec{X: 500, Y: 0}, 300))

	rep := e.Tick(1.0)
	if len(rep.Merges) != 0 {
		t.Fatalf("unexpected merges: %+v", rep.Merges)
	}
	bs := e.Bodies()
	// a1 = G*1000/500^2 = 0.08 toward body 0; a0 = G*300/500^2 = 0.024.
	want1 := r2.Vec{X: 500 - 0.08, Y: 0}
	want0 := r2.Vec{X: 0.024, Y: 0}
	if math.Abs(bs[1].Pos.X-want1.X) > 1e-9 || bs[1].Pos.Y != 0 {
		t.Fatalf("body1: got %v want %v", bs[1].Pos, want1)
	}
	if math.Abs(bs[0].Pos.X-want0.X) > 1e-9 || bs[0].Pos.Y != 0 {
		t.Fatalf("body0: got %v want %v", bs[0].Pos, want0)
	}
	if bs[1].Prev != (r2.Vec{X: 500}) || bs[0].Prev != (r2.Vec{}) {
		t.Fatalf("prev not shifted: %v %v", bs[0].Prev, bs[1].Prev)
	}
}

func TestTick_FixedBodyNeverMoves(t *testing.T) {
	e := New(Config{})
	star := body.Body{Pos: r2.Vec{X: 10, Y: 20}, Prev: r2.Vec{X: 13, Y: 20}, Mass: 1, Fixed: true, Tag: body.StarTag}
	mustInsert(t, e, star)
	mustInsert(t, e, body.New(r2.Vec{X: 210, Y: 20}, 5000))
	mustInsert(t, e, body.New(r2.Vec{X: 10, Y: -300}, 2000))

	for i := 0; i < 5; i++ {
		e.Tick(0.1)
		got := e.Bodies()[0]
		if got.Pos != (r2.Vec{X: 10, Y: 20}) || got.Prev != got.Pos {
			t.Fatalf("tick %d: fixed body moved: %+v", i, got)
		}
	}
}

func TestTick_OverlapMergesIntoLarger(t *testing.T) {
	e := New(Config{})
	big := body.New(r2.Vec{X: 0, Y: 0}, 100)
	big.Tag = 3
	small := body.New(r2.Vec{X: 10, Y: 0}, 25)
	small.Tag = 4
	mustInsert(t, e, small)
	mustInsert(t, e, big)

	rep := e.Tick(0.1)
	if e.Len() != 1 {
		t.Fatalf("len: got %d want 1", e.Len())
	}
	got := e.Bodies()[0]
	if got.Mass != 125 {
		t.Fatalf("mass: got %v want 125", got.Mass)
	}
	if got.Tag != 3 {
		t.Fatalf("tag: got %v want 3", got.Tag)
	}
	if len(rep.Merges) != 1 || rep.Merges[0].Survivor != 1 || len(rep.Merges[0].Absorbed) != 1 || rep.Merges[0].Absorbed[0] != 0 {
		t.Fatalf("report: %+v", rep.Merges)
	}
}

func TestTick_MergeWithFixedBecomesStar(t *testing.T) {
	e := New(Config{})
	star := body.New(r2.Vec{X: 0, Y: 0}, 4)
	star.Fixed = true
	star.Tag = body.StarTag
	mover := body.NewWithVelocity(r2.Vec{X: 3, Y: 0}, r2.Vec{X: -1, Y: 0}, 100)
	mover.Tag = 1
	mustInsert(t, e, star)
	mustInsert(t, e, mover)

	e.Tick(0.1)
	if e.Len() != 1 {
		t.Fatalf("len: got %d", e.Len())
	}
	got := e.Bodies()[0]
	if !got.Fixed || got.Tag != body.StarTag {
		t.Fatalf("expected fixed star, got %+v", got)
	}
	if got.Prev != got.Pos {
		t.Fatalf("fixed merge result should be at rest: %+v", got)
	}
	if got.Mass != 104 {
		t.Fatalf("mass: got %v", got.Mass)
	}
}

func TestTick_CoincidentBodiesMergeWithoutNaN(t *testing.T) {
	e := New(Config{})
	mustInsert(t, e, body.New(r2.Vec{X: 5, Y: 5}, 10))
	mustInsert(t, e, body.New(r2.Vec{X: 5, Y: 5}, 10))
	mustInsert(t, e, body.New(r2.Vec{X: 400, Y: 5}, 10))

	e.Tick(0.1)
	if e.Len() != 2 {
		t.Fatalf("len: got %d want 2", e.Len())
	}
	for _, b := range e.Bodies() {
		if err := b.Validate(); err != nil {
			t.Fatalf("corrupted body %+v: %v", b, err)
		}
	}
	if e.Bodies()[0].Mass != 20 {
		t.Fatalf("mass: got %v", e.Bodies()[0].Mass)
	}
}

func TestTick_CompactionKeepsOrder(t *testing.T) {
	e := New(Config{})
	tags := []body.Tag{0, 1, 2, 3, 4}
	pos := []r2.Vec{{X: 0}, {X: 5}, {X: 1000}, {X: 2000}, {X: 2005}}
	mass := []float64{9, 16, 1, 16, 9}
	for i := range pos {
		b := body.New(pos[i], mass[i])
		b.Tag = tags[i]
		mustInsert(t, e, b)
	}
	e.Tick(0.01)
	bs := e.Bodies()
	if len(bs) != 3 {
		t.Fatalf("len: got %d want 3", len(bs))
	}
	wantTags := []body.Tag{1, 2, 3}
	wantMass := []float64{25, 1, 25}
	for i := range bs {
		if bs[i].Tag != wantTags[i] || bs[i].Mass != wantMass[i] {
			t.Fatalf("slot %d: got tag=%d mass=%v", i, bs[i].Tag, bs[i].Mass)
		}
	}
}

func TestInsert_RejectsInvalid(t *testing.T) {
	e := New(Config{})
	if _, err := e.Insert(body.New(r2.Vec{}, 0)); !errors.Is(err, body.ErrInvalidMass) {
		t.Fatalf("zero mass: got %v", err)
	}
	if _, err := e.Insert(body.New(r2.Vec{X: math.Inf(1)}, 1)); !errors.Is(err, body.ErrNonFinite) {
		t.Fatalf("inf pos: got %v", err)
	}
	if e.Len() != 0 {
		t.Fatalf("invalid bodies entered the collection")
	}
}

func TestInsert_Limit(t *testing.T) {
	e := New(Config{MaxBodies: 2})
	mustInsert(t, e, body.New(r2.Vec{X: 0}, 1))
	mustInsert(t, e, body.New(r2.Vec{X: 100}, 1))
	if _, err := e.Insert(body.New(r2.Vec{X: 200}, 1)); !errors.Is(err, ErrFull) {
		t.Fatalf("got %v want ErrFull", err)
	}
}

func TestInsert_FixedIsHeld(t *testing.T) {
	e := New(Config{})
	b := body.NewWithVelocity(r2.Vec{X: 1, Y: 1}, r2.Vec{X: 4, Y: 0}, 10)
	b.Fixed = true
	mustInsert(t, e, b)
	got := e.Bodies()[0]
	if got.Prev != got.Pos {
		t.Fatalf("fixed body kept velocity: %+v", got)
	}
}

func TestRemove(t *testing.T) {
	e := New(Config{})
	for i := 0; i < 3; i++ {
		b := body.New(r2.Vec{X: float64(i) * 100}, 1)
		b.Tag = body.Tag(i)
		mustInsert(t, e, b)
	}
	e.Remove(1)
	bs := e.Bodies()
	if len(bs) != 2 || bs[0].Tag != 0 || bs[1].Tag != 2 {
		t.Fatalf("after remove: %+v", bs)
	}

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on out-of-range remove")
		}
	}()
	e.Remove(2)
}

func TestHitTest(t *testing.T) {
	e := New(Config{})
	mustInsert(t, e, body.New(r2.Vec{X: 0, Y: 0}, 100))   // r=12
	mustInsert(t, e, body.New(r2.Vec{X: 100, Y: 0}, 100)) // r=12
	if i, ok := e.HitTest(r2.Vec{X: 95, Y: 5}); !ok || i != 1 {
		t.Fatalf("hit: got %d %v", i, ok)
	}
	if _, ok := e.HitTest(r2.Vec{X: 50, Y: 0}); ok {
		t.Fatalf("unexpected hit")
	}
}

func TestTick_PanicsOnBadDt(t *testing.T) {
	for _, dt := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		func() {
			defer func() {
				if recover() == nil {
					t.Fatalf("dt=%v: expected panic", dt)
				}
			}()
			New(Config{}).Tick(dt)
		}()
	}
}

func TestDigest_Deterministic(t *testing.T) {
	build := func() *Engine {
		e := New(Config{})
		mustInsert(t, e, body.New(r2.Vec{X: 0, Y: 0}, 900))
		mustInsert(t, e, body.NewWithVelocity(r2.Vec{X: 200, Y: 0}, r2.Vec{X: 0, Y: 1.5}, 10))
		mustInsert(t, e, body.NewWithVelocity(r2.Vec{X: -150, Y: 40}, r2.Vec{X: 0.3, Y: -1}, 4))
		return e
	}
	e1, e2 := build(), build()
	if e1.Digest() != e2.Digest() {
		t.Fatalf("initial digest mismatch")
	}
	start := e1.Digest()
	for i := 0; i < 200; i++ {
		e1.Tick(0.1)
		e2.Tick(0.1)
		if d1, d2 := e1.Digest(), e2.Digest(); d1 != d2 {
			t.Fatalf("digest mismatch at tick %d: %s vs %s", i, d1, d2)
		}
	}
	if e1.Digest() == start {
		t.Fatalf("digest did not change over 200 ticks")
	}
	if e1.Ticks() != 200 {
		t.Fatalf("ticks: got %d", e1.Ticks())
	}
}
