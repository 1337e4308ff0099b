package body

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r2"
)

func TestForceFrom_NewtonThirdLaw(t *testing.T) {
	pairs := [][2]Body{
		{New(r2.Vec{X: 0, Y: 0}, 1000), New(r2.Vec{X: 500, Y: 0}, 300)},
		{New(r2.Vec{X: -3.5, Y: 17}, 2.25), New(r2.Vec{X: 41, Y: -9.75}, 77)},
		{New(r2.Vec{X: 1e-3, Y: 1e-3}, 1), New(r2.Vec{X: 2e-3, Y: -5e-3}, 1)},
	}
	for i, p := range pairs {
		fab, ok := DefaultLaw.ForceFrom(p[0], p[1])
		if !ok {
			t.Fatalf("pair %d: unexpected coincidence", i)
		}
		fba, _ := DefaultLaw.ForceFrom(p[1], p[0])
		if fab.X != -fba.X || fab.Y != -fba.Y {
			t.Fatalf("pair %d: force mismatch: %v vs %v", i, fab, fba)
		}
	}
}

func TestForceFrom_MagnitudeAndDirection(t *testing.T) {
	a := New(r2.Vec{X: 0, Y: 0}, 1000)
	b := New(r2.Vec{X: 0, Y: 500}, 300)
	f, ok := DefaultLaw.ForceFrom(a, b)
	if !ok {
		t.Fatalf("unexpected coincidence")
	}
	want := 20.0 * 1000 * 300 / (500 * 500)
	if f.X != 0 || math.Abs(f.Y-want) > 1e-12 {
		t.Fatalf("force: got %v want (0,%v)", f, want)
	}
}

func TestForceFrom_CoincidentIsReported(t *testing.T) {
	a := New(r2.Vec{X: 3, Y: 4}, 10)
	b := New(r2.Vec{X: 3, Y: 4}, 10)
	f, ok := DefaultLaw.ForceFrom(a, b)
	if ok {
		t.Fatalf("expected coincident pair to be reported")
	}
	if f != (r2.Vec{}) {
		t.Fatalf("expected zero force, got %v", f)
	}
}

func TestIntegrate_VerletOrder(t *testing.T) {
	b := Body{Pos: r2.Vec{X: 10, Y: 5}, Prev: r2.Vec{X: 9, Y: 5}, Mass: 1}
	b.Integrate(r2.Vec{X: 2, Y: -4}, 0.5)
	// 2*10 - 9 + 2*0.25 = 11.5; 2*5 - 5 - 4*0.25 = 4
	if b.Pos != (r2.Vec{X: 11.5, Y: 4}) {
		t.Fatalf("pos: got %v", b.Pos)
	}
	if b.Prev != (r2.Vec{X: 10, Y: 5}) {
		t.Fatalf("prev: got %v", b.Prev)
	}
}

func TestIntegrate_ZeroAccelerationKeepsVelocity(t *testing.T) {
	b := NewWithVelocity(r2.Vec{X: 0, Y: 0}, r2.Vec{X: 1, Y: 2}, 5)
	for i := 0; i < 10; i++ {
		b.Integrate(r2.Vec{}, 0.1)
	}
	if b.Pos != (r2.Vec{X: 11, Y: 22}) {
		t.Fatalf("pos: got %v", b.Pos)
	}
	if v := b.Velocity(); v != (r2.Vec{X: 1, Y: 2}) {
		t.Fatalf("velocity: got %v", v)
	}
}

func TestNew_StartsAtRest(t *testing.T) {
	b := New(r2.Vec{X: 7, Y: -2}, 3)
	if b.Prev != b.Pos {
		t.Fatalf("prev %v != pos %v", b.Prev, b.Pos)
	}
	if b.Fixed || b.Tag != 0 {
		t.Fatalf("unexpected defaults: %+v", b)
	}
}

func TestLaunch(t *testing.T) {
	b := Launch(r2.Vec{X: 100, Y: 100}, r2.Vec{X: 40, Y: -20}, 10, 2, 20)
	if b.Prev != (r2.Vec{X: 102, Y: 99}) {
		t.Fatalf("prev: got %v", b.Prev)
	}
	if v := b.Velocity(); v != (r2.Vec{X: -2, Y: 1}) {
		t.Fatalf("velocity should oppose drag, got %v", v)
	}
	if b.Fixed {
		t.Fatalf("mobile tag launched fixed")
	}
	star := Launch(r2.Vec{}, r2.Vec{}, 500, StarTag, 20)
	if !star.Fixed {
		t.Fatalf("star tag should launch fixed")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		b    Body
		want error
	}{
		{"ok", New(r2.Vec{X: 1, Y: 1}, 1), nil},
		{"zero mass", New(r2.Vec{}, 0), ErrInvalidMass},
		{"negative mass", New(r2.Vec{}, -4), ErrInvalidMass},
		{"nan mass", New(r2.Vec{}, math.NaN()), ErrInvalidMass},
		{"inf mass", New(r2.Vec{}, math.Inf(1)), ErrInvalidMass},
		{"nan pos", New(r2.Vec{X: math.NaN()}, 1), ErrNonFinite},
		{"inf prev", Body{Pos: r2.Vec{}, Prev: r2.Vec{Y: math.Inf(-1)}, Mass: 1}, ErrNonFinite},
	}
	for _, tc := range cases {
		err := tc.b.Validate()
		if tc.want == nil {
			if err != nil {
				t.Fatalf("%s: unexpected error %v", tc.name, err)
			}
			continue
		}
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: got %v want %v", tc.name, err, tc.want)
		}
	}
}

func TestRadiusAndOverlap(t *testing.T) {
	if r := DefaultLaw.Radius(100); r != 12 {
		t.Fatalf("radius(100): got %v", r)
	}
	a := New(r2.Vec{X: 0, Y: 0}, 100) // r=12
	b := New(r2.Vec{X: 23, Y: 0}, 81) // r=11
	if !DefaultLaw.Overlaps(a, b) {
		t.Fatalf("touching bodies should overlap")
	}
	b.Pos.X = 23.5
	if DefaultLaw.Overlaps(a, b) {
		t.Fatalf("separated bodies should not overlap")
	}
}
