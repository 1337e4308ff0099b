package scenario

import (
	"fmt"
	"math"
	"os"
	"strings"

	"gonum.org/v1/gonum/spatial/r2"
	"gopkg.in/yaml.v3"

	"gravsim.dev/internal/sim/body"
)

// Scenario is an initial body layout. Velocities are in units per unit time
// and are converted to a Verlet position offset using the run's dt.
type Scenario struct {
	Name      string     `yaml:"name" json:"name"`
	AutoOrbit bool       `yaml:"auto_orbit" json:"auto_orbit"`
	Bodies    []BodySpec `yaml:"bodies" json:"bodies"`
}

type BodySpec struct {
	Pos   [2]float64 `yaml:"pos" json:"pos"`
	Vel   [2]float64 `yaml:"vel" json:"vel"`
	Mass  float64    `yaml:"mass" json:"mass"`
	Fixed bool       `yaml:"fixed" json:"fixed"`
	Tag   int        `yaml:"tag" json:"tag"`
}

func Load(path string) (Scenario, error) {
	var s Scenario
	if strings.TrimSpace(path) == "" {
		return s, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return s, err
	}
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return s, fmt.Errorf("scenario %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return s, fmt.Errorf("scenario %s: %w", path, err)
	}
	return s, nil
}

func (s Scenario) Validate() error {
	for i, b := range s.Bodies {
		if err := b.body(1).Validate(); err != nil {
			return fmt.Errorf("bodies[%d]: %w", i, err)
		}
	}
	return nil
}

// Build converts the scenario into bodies for a run with the given law and dt.
// With AutoOrbit, every body after the first that has no explicit velocity is
// put on a circular orbit around the first body.
func (s Scenario) Build(law body.Law, dt float64) []body.Body {
	specs := make([]BodySpec, len(s.Bodies))
	copy(specs, s.Bodies)
	if s.AutoOrbit {
		setOrbitalVelocities(specs, law.G)
	}
	out := make([]body.Body, 0, len(specs))
	for _, b := range specs {
		out = append(out, b.body(dt))
	}
	return out
}

func (b BodySpec) body(dt float64) body.Body {
	pos := r2.Vec{X: b.Pos[0], Y: b.Pos[1]}
	vel := r2.Vec{X: b.Vel[0] * dt, Y: b.Vel[1] * dt}
	out := body.NewWithVelocity(pos, vel, b.Mass)
	out.Fixed = b.Fixed
	out.Tag = body.Tag(b.Tag)
	if out.Fixed {
		out.Hold()
	}
	return out
}

func setOrbitalVelocities(specs []BodySpec, g float64) {
	if len(specs) == 0 {
		return
	}
	central := specs[0]
	for i := 1; i < len(specs); i++ {
		if specs[i].Vel != [2]float64{} || specs[i].Fixed {
			continue
		}
		dx := specs[i].Pos[0] - central.Pos[0]
		dy := specs[i].Pos[1] - central.Pos[1]
		r := math.Hypot(dx, dy)
		if r == 0 {
			continue
		}
		v := math.Sqrt(g * central.Mass / r)
		// Tangent to the radius, counter-clockwise.
		specs[i].Vel[0] = -dy/r*v + central.Vel[0]
		specs[i].Vel[1] = dx/r*v + central.Vel[1]
	}
}
