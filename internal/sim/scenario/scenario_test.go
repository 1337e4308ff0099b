package scenario

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/spatial/r2"

	"gravsim.dev/internal/sim/body"
)

func TestLoad_ConfigScenarios(t *testing.T) {
	matches, err := filepath.Glob("../../../configs/scenarios/*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) == 0 {
		t.Fatalf("no scenarios found")
	}
	for _, p := range matches {
		s, err := Load(p)
		if err != nil {
			t.Fatalf("load %s: %v", p, err)
		}
		if len(s.Bodies) == 0 {
			t.Fatalf("%s: no bodies", p)
		}
	}
}

func TestBuild_AutoOrbitIsTangentialAndCircular(t *testing.T) {
	s := Scenario{
		AutoOrbit: true,
		Bodies: []BodySpec{
			{Pos: [2]float64{0, 0}, Mass: 2000, Fixed: true, Tag: int(body.StarTag)},
			{Pos: [2]float64{500, 0}, Mass: 1, Tag: 1},
			{Pos: [2]float64{0, -200}, Vel: [2]float64{3, 0}, Mass: 1, Tag: 2},
		},
	}
	bs := s.Build(body.DefaultLaw, 0.1)
	if len(bs) != 3 {
		t.Fatalf("len: got %d", len(bs))
	}
	if !bs[0].Fixed || bs[0].Prev != bs[0].Pos {
		t.Fatalf("central body should be fixed at rest: %+v", bs[0])
	}
	v := bs[1].Velocity()
	want := math.Sqrt(20*2000/500.0) * 0.1
	if math.Abs(v.X) > 1e-12 || math.Abs(v.Y-want) > 1e-9 {
		t.Fatalf("orbit velocity: got %v want (0,%v)", v, want)
	}
	// Explicit velocities are kept.
	if got := bs[2].Velocity(); math.Abs(got.X-0.3) > 1e-12 || got.Y != 0 {
		t.Fatalf("explicit velocity changed: %v", got)
	}
	if bs[1].Prev != (r2.Vec{X: 500, Y: 0}) {
		t.Fatalf("prev should be the declared position: %v", bs[1].Prev)
	}
}

func TestLoad_RejectsBadMass(t *testing.T) {
	p := filepath.Join(t.TempDir(), "bad.yaml")
	raw := "name: bad\nbodies:\n  - {pos: [0, 0], mass: 10}\n  - {pos: [5, 5], mass: 0}\n"
	if err := os.WriteFile(p, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(p); !errors.Is(err, body.ErrInvalidMass) {
		t.Fatalf("got %v want ErrInvalidMass", err)
	}
}

func TestLoad_EmptyPath(t *testing.T) {
	s, err := Load("")
	if err != nil || len(s.Bodies) != 0 {
		t.Fatalf("got %+v, %v", s, err)
	}
}
