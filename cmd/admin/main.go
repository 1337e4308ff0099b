package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	persistlog "gravsim.dev/internal/persistence/log"
	"gravsim.dev/internal/sim/world"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "db":
			dbCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "merges":
			mergesCmd(os.Args[2:])
			return
		case "mergelog":
			mergeLogCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id (optional)")
	_ = fs.Parse(args)

	base := filepath.Join(*dataDir, "worlds")
	if *worldID != "" {
		base = filepath.Join(base, *worldID)
	}

	entries, err := os.ReadDir(base)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, e := range entries {
		fmt.Println(e.Name())
	}
}

// mergeLogCmd prints merges from the merges-*.jsonl.zst logs, optionally
// filtered to a tick range and a minimum resulting mass.
func mergeLogCmd(args []string) {
	fs := flag.NewFlagSet("mergelog", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id")
	sinceTick := fs.Uint64("since_tick", 0, "first tick (inclusive)")
	toTick := fs.Uint64("to_tick", 0, "last tick (inclusive, optional)")
	minMass := fs.Float64("min_mass", 0, "only merges whose result is at least this heavy")
	_ = fs.Parse(args)

	if strings.TrimSpace(*worldID) == "" {
		fmt.Fprintln(os.Stderr, "missing -world")
		os.Exit(2)
	}
	dir := filepath.Join(*dataDir, "worlds", *worldID, "merges")
	files, err := persistlog.ListFiles(dir, "merges")
	if err != nil {
		fmt.Fprintln(os.Stderr, "list:", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	n := 0
	for _, path := range files {
		err := persistlog.ReadMerges(path, func(e world.MergeEntry) error {
			if !mergeMatches(e, *sinceTick, *toTick, *minMass) {
				return nil
			}
			n++
			return enc.Encode(e)
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, "read:", err)
			os.Exit(1)
		}
	}
	fmt.Fprintf(os.Stderr, "%d merges\n", n)
}

func mergeMatches(e world.MergeEntry, sinceTick, toTick uint64, minMass float64) bool {
	if e.Tick < sinceTick {
		return false
	}
	if toTick != 0 && e.Tick > toTick {
		return false
	}
	return e.Result.Mass >= minMass
}
