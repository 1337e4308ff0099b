package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	persistlog "gravsim.dev/internal/persistence/log"
	"gravsim.dev/internal/sim/scenario"
	"gravsim.dev/internal/sim/tuning"
	"gravsim.dev/internal/sim/world"
)

func main() {
	var (
		eventsDir    = flag.String("events", "", "events dir containing events-*.jsonl.zst")
		tuningPath   = flag.String("tuning", "./configs/tuning.yaml", "tuning the run was started with")
		scenarioPath = flag.String("scenario", "", "scenario the run was started with (optional)")
		fromTick     = flag.Uint64("from_tick", 0, "start verifying from tick (inclusive, optional)")
		toTick       = flag.Uint64("to_tick", 0, "stop at tick (inclusive, optional)")
	)
	flag.Parse()

	if *eventsDir == "" {
		fmt.Fprintln(os.Stderr, "missing -events")
		os.Exit(2)
	}

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load tuning:", err)
		os.Exit(1)
	}
	sc, err := scenario.Load(*scenarioPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load scenario:", err)
		os.Exit(1)
	}
	w, err := newReplayWorld(tune, sc)
	if err != nil {
		fmt.Fprintln(os.Stderr, "world:", err)
		os.Exit(1)
	}

	files, err := persistlog.ListFiles(*eventsDir, "events")
	if err != nil {
		fmt.Fprintln(os.Stderr, "list events:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no events files found in", *eventsDir)
		os.Exit(1)
	}

	checked, err := replay(w, files, *fromTick, *toTick)
	if err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}
	fmt.Printf("replay ok: checked=%d entries, final tick=%d bodies=%d\n", checked, w.CurrentTick(), w.Metrics().Bodies)
}

func newReplayWorld(tune tuning.Tuning, sc scenario.Scenario) (*world.World, error) {
	w, err := world.New(world.WorldConfig{
		ID:               "replay",
		TickRateHz:       tune.TickRateHz,
		Dt:               tune.Dt,
		LaunchScale:      tune.LaunchScale,
		ProjectionSteps:  tune.Projection.Steps,
		ProjectionStride: tune.Projection.Stride,
		Engine:           tune.EngineConfig(),
	})
	if err != nil {
		return nil, err
	}
	if err := w.Seed(sc.Build(tune.Law(), tune.Dt)); err != nil {
		return nil, err
	}
	return w, nil
}

type stopReplay struct{}

func (stopReplay) Error() string { return "stop" }

// replay re-applies every logged entry in order and compares digests.
func replay(w *world.World, files []string, verifyFrom, toTick uint64) (uint64, error) {
	var checked uint64
	for _, path := range files {
		err := persistlog.ReadTicks(path, func(entry world.TickLogEntry) error {
			if toTick != 0 && entry.Tick > toTick {
				return stopReplay{}
			}
			if entry.Tick != w.CurrentTick() {
				return fmt.Errorf("tick mismatch: want=%d got=%d (file=%s)", w.CurrentTick(), entry.Tick, filepath.Base(path))
			}

			inserts := make([]world.InsertRequest, 0, len(entry.Inserts))
			for _, b := range entry.Inserts {
				inserts = append(inserts, world.InsertRequest{Body: b})
			}
			tick, gotDigest, err := w.StepOnce(entry.Removes, inserts, !entry.Paused)
			if err != nil {
				return fmt.Errorf("tick %d: %w", entry.Tick, err)
			}
			if tick != entry.Tick {
				return fmt.Errorf("internal tick mismatch: stepped=%d entry=%d (file=%s)", tick, entry.Tick, filepath.Base(path))
			}
			if tick >= verifyFrom {
				checked++
				if gotDigest != entry.Digest {
					return fmt.Errorf("digest mismatch at tick %d: got=%s want=%s", tick, gotDigest, entry.Digest)
				}
			}
			return nil
		})
		if _, ok := err.(stopReplay); ok {
			return checked, nil
		}
		if err != nil {
			return checked, err
		}
	}
	return checked, nil
}
