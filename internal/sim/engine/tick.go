package engine

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"gravsim.dev/internal/sim/body"
)

// Merge describes one reduction applied during a tick. Indices refer to the
// collection as it was before compaction.
type Merge struct {
	Survivor int       `json:"survivor"`
	Absorbed []int     `json:"absorbed"`
	Result   body.Body `json:"result"`
}

type Report struct {
	Tick   uint64  `json:"tick"`
	Merges []Merge `json:"merges,omitempty"`
}

type pair struct{ i, j int }

// Tick advances the simulation by dt. All work happens on a staged copy that
// replaces the collection only once the tick is complete.
func (e *Engine) Tick(dt float64) Report {
	if !(dt > 0) || math.IsInf(dt, 0) {
		panic(fmt.Sprintf("engine: invalid dt %v", dt))
	}
	law := e.cfg.Law
	cur := e.bodies
	n := len(cur)

	next := make([]body.Body, n)
	copy(next, cur)

	// Forces and collision candidates come from the same pass over pre-update positions.
	var pairs []pair
	for i := 0; i < n; i++ {
		var net r2.Vec
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			if j > i && law.Overlaps(cur[i], cur[j]) {
				pairs = append(pairs, pair{i, j})
			}
			f, ok := law.ForceFrom(cur[i], cur[j])
			if !ok {
				continue
			}
			net = r2.Add(net, f)
		}
		if cur[i].Fixed {
			next[i].Hold()
			continue
		}
		m := cur[i].Mass
		next[i].Integrate(r2.Vec{X: net.X / m, Y: net.Y / m}, dt)
	}

	var merges []Merge
	if len(pairs) > 0 {
		switch e.cfg.Policy {
		case MergePairwise:
			merges = mergePairwise(next, pairs)
		default:
			merges = mergeGrouped(next, pairs)
		}
		next = compact(next, merges)
	}

	tick := e.ticks
	e.bodies = next
	e.ticks++
	e.merges += uint64(len(merges))
	return Report{Tick: tick, Merges: merges}
}
