package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gravsim.dev/internal/persistence/indexdb"
	"gravsim.dev/internal/sim/scenario"
	"gravsim.dev/internal/sim/tuning"
	"gravsim.dev/internal/sim/world"
)

type runtimeIndex interface {
	world.TickLogger
	world.MergeLogger
	Close() error
	UpsertConfig(tune tuning.Tuning, sc scenario.Scenario) error
	Stats() indexdb.Stats
	RecentMerges(ctx context.Context, limit int) ([]indexdb.MergeRow, error)
}

func openRuntimeIndex(worldDir string, disableDB bool) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("GS_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		dbPath := filepath.Join(worldDir, "index", "world.sqlite")
		return indexdb.OpenSQLite(dbPath)
	default:
		return nil, fmt.Errorf("unsupported GS_INDEX_BACKEND: %s", backend)
	}
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
