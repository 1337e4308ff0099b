package engine

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"gravsim.dev/internal/sim/body"
)

// Project simulates hyp forward under the gravity of bodies, which are only
// read. The real bodies do not feel hyp. The path stops at the first contact.
// The start position is always the first waypoint; after that every stride-th
// sub-step is recorded.
func Project(law body.Law, bodies []body.Body, hyp body.Body, dt float64, steps, stride int) ([]r2.Vec, error) {
	if steps < 0 {
		panic(fmt.Sprintf("engine: negative projection steps %d", steps))
	}
	if stride <= 0 {
		panic(fmt.Sprintf("engine: invalid projection stride %d", stride))
	}
	if !(dt > 0) || math.IsInf(dt, 0) {
		panic(fmt.Sprintf("engine: invalid dt %v", dt))
	}
	if err := hyp.Validate(); err != nil {
		return nil, err
	}

	out := make([]r2.Vec, 0, 2+steps/stride)
	out = append(out, hyp.Pos)
	if hyp.Fixed {
		return out, nil
	}

	for n := 0; n < steps; n++ {
		var net r2.Vec
		for _, b := range bodies {
			if law.Overlaps(hyp, b) {
				return out, nil
			}
			if f, ok := law.ForceFrom(hyp, b); ok {
				net = r2.Add(net, f)
			}
		}
		hyp.Integrate(r2.Vec{X: net.X / hyp.Mass, Y: net.Y / hyp.Mass}, dt)
		if n%stride == 0 {
			out = append(out, hyp.Pos)
		}
	}
	return out, nil
}
