package tuning

import (
	"fmt"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"gravsim.dev/internal/sim/body"
	"gravsim.dev/internal/sim/engine"
)

type Tuning struct {
	Gravity      float64 `yaml:"gravity" json:"gravity"`
	RadiusOffset float64 `yaml:"radius_offset" json:"radius_offset"`
	Dt           float64 `yaml:"dt" json:"dt"`
	TickRateHz   int     `yaml:"tick_rate_hz" json:"tick_rate_hz"`
	MergePolicy  string  `yaml:"merge_policy" json:"merge_policy"`
	MaxBodies    int     `yaml:"max_bodies" json:"max_bodies"`
	LaunchScale  float64 `yaml:"launch_scale" json:"launch_scale"`

	Projection Projection `yaml:"projection" json:"projection"`
}

type Projection struct {
	Steps  int `yaml:"steps" json:"steps"`
	Stride int `yaml:"stride" json:"stride"`
}

// Defaults mirrors the reference desktop build: 10ms frames, dt 0.1,
// 5000 look-ahead steps sampled every 5th.
func Defaults() Tuning {
	return Tuning{
		Gravity:      body.DefaultLaw.G,
		RadiusOffset: body.DefaultLaw.RadiusOffset,
		Dt:           0.1,
		TickRateHz:   100,
		MergePolicy:  string(engine.MergeGrouped),
		MaxBodies:    512,
		LaunchScale:  20,
		Projection: Projection{
			Steps:  5000,
			Stride: 5,
		},
	}
}

// Load reads a tuning file on top of Defaults. Missing keys keep their default.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	finitePos := func(v float64) bool { return v > 0 && !math.IsInf(v, 0) }
	if !finitePos(t.Gravity) {
		return fmt.Errorf("gravity must be > 0")
	}
	if t.RadiusOffset < 0 || math.IsNaN(t.RadiusOffset) || math.IsInf(t.RadiusOffset, 0) {
		return fmt.Errorf("radius_offset must be >= 0")
	}
	if !finitePos(t.Dt) {
		return fmt.Errorf("dt must be > 0")
	}
	if t.TickRateHz <= 0 || t.TickRateHz > 1000 {
		return fmt.Errorf("tick_rate_hz must be in [1, 1000]")
	}
	if _, err := engine.ParseMergePolicy(t.MergePolicy); err != nil {
		return err
	}
	if t.MaxBodies < 0 {
		return fmt.Errorf("max_bodies must be >= 0")
	}
	if !finitePos(t.LaunchScale) {
		return fmt.Errorf("launch_scale must be > 0")
	}
	if t.Projection.Steps < 0 {
		return fmt.Errorf("projection.steps must be >= 0")
	}
	if t.Projection.Stride <= 0 {
		return fmt.Errorf("projection.stride must be > 0")
	}
	return nil
}

func (t Tuning) Law() body.Law {
	return body.Law{G: t.Gravity, RadiusOffset: t.RadiusOffset}
}

// EngineConfig assumes t has been validated.
func (t Tuning) EngineConfig() engine.Config {
	policy, _ := engine.ParseMergePolicy(strings.TrimSpace(t.MergePolicy))
	return engine.Config{
		Law:       t.Law(),
		Policy:    policy,
		MaxBodies: t.MaxBodies,
	}
}
