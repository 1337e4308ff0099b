package world

import (
	"errors"
	"fmt"
	"sync/atomic"

	"gonum.org/v1/gonum/spatial/r2"

	"gravsim.dev/internal/sim/body"
	"gravsim.dev/internal/sim/engine"
)

var (
	ErrNoSuchBody = errors.New("no such body")
	ErrBadRequest = errors.New("bad request")
)

type WorldConfig struct {
	ID          string
	TickRateHz  int
	Dt          float64
	LaunchScale float64

	ProjectionSteps  int
	ProjectionStride int

	Engine engine.Config
}

type InsertRequest struct {
	Body body.Body
	Resp chan InsertResult // optional
}

type InsertResult struct {
	Index int
	Err   error
}

// RemoveRequest removes by Index, or by hit-testing At when At is set.
type RemoveRequest struct {
	Index int
	At    *r2.Vec
	Resp  chan RemoveResult // optional
}

type RemoveResult struct {
	Index int
	Err   error
}

// ProjectRequest asks for the predicted path of a body that is not (yet) in
// the world. Zero Steps/Stride fall back to the world defaults.
type ProjectRequest struct {
	Body   body.Body
	Steps  int
	Stride int
	Resp   chan ProjectResult
}

type ProjectResult struct {
	Tick   uint64
	Points []r2.Vec
	Err    error
}

type ControlOp string

const (
	ControlPause  ControlOp = "PAUSE"
	ControlResume ControlOp = "RESUME"
	ControlStep   ControlOp = "STEP"
)

type ControlRequest struct {
	Op   ControlOp
	Resp chan error // optional
}

type SnapshotRequest struct {
	Resp chan Snapshot
}

// Snapshot is a consistent copy of the committed collection.
type Snapshot struct {
	Tick   uint64
	Paused bool
	Bodies []body.Body
}

// World is a single-threaded authoritative simulation.
// The engine must be accessed only from the world loop goroutine.
type World struct {
	cfg WorldConfig
	eng *engine.Engine

	tick     atomic.Uint64
	paused   bool
	stepOnce bool

	insert        chan InsertRequest
	remove        chan RemoveRequest
	project       chan ProjectRequest
	control       chan ControlRequest
	snapshot      chan SnapshotRequest
	observerJoin  chan ObserverJoinRequest
	observerLeave chan string
	stop          chan struct{}

	observers map[string]*observerState

	// Optional loggers (may be nil). Implemented in internal/persistence/*.
	tickLogger  TickLogger
	mergeLogger MergeLogger

	metrics atomic.Value
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

type MergeLogger interface {
	WriteMerge(entry MergeEntry) error
}

// TickLogEntry records what a tick applied. Removes and Inserts are in
// application order (removes first), so a replay from the same initial
// bodies reproduces Digest.
type TickLogEntry struct {
	Tick    uint64         `json:"tick"`
	Paused  bool           `json:"paused,omitempty"`
	Removes []int          `json:"removes,omitempty"`
	Inserts []body.Body    `json:"inserts,omitempty"`
	Merges  []engine.Merge `json:"merges,omitempty"`
	Bodies  int            `json:"bodies"`
	Digest  string         `json:"digest"`
}

type MergeEntry struct {
	Tick     uint64    `json:"tick"`
	Survivor int       `json:"survivor"`
	Absorbed []int     `json:"absorbed"`
	Result   body.Body `json:"result"`
}

func New(cfg WorldConfig) (*World, error) {
	if cfg.TickRateHz <= 0 {
		return nil, fmt.Errorf("tick rate must be > 0")
	}
	if !(cfg.Dt > 0) {
		return nil, fmt.Errorf("dt must be > 0")
	}
	if cfg.ProjectionSteps < 0 || cfg.ProjectionStride <= 0 {
		return nil, fmt.Errorf("invalid projection defaults: steps=%d stride=%d", cfg.ProjectionSteps, cfg.ProjectionStride)
	}
	if cfg.LaunchScale <= 0 {
		cfg.LaunchScale = 1
	}
	w := &World{
		cfg:           cfg,
		eng:           engine.New(cfg.Engine),
		insert:        make(chan InsertRequest, 256),
		remove:        make(chan RemoveRequest, 256),
		project:       make(chan ProjectRequest, 64),
		control:       make(chan ControlRequest, 16),
		snapshot:      make(chan SnapshotRequest, 16),
		observerJoin:  make(chan ObserverJoinRequest, 64),
		observerLeave: make(chan string, 64),
		stop:          make(chan struct{}),
		observers:     map[string]*observerState{},
	}
	w.cfg.Engine = w.eng.Config()
	return w, nil
}

// Seed inserts the initial bodies. It must be called before Run.
func (w *World) Seed(bodies []body.Body) error {
	for i, b := range bodies {
		if _, err := w.eng.Insert(b); err != nil {
			return fmt.Errorf("seed body %d: %w", i, err)
		}
	}
	return nil
}

// Launch builds a body from a pull-back gesture using the world's launch scale.
func (w *World) Launch(anchor, drag r2.Vec, mass float64, tag body.Tag) body.Body {
	return body.Launch(anchor, drag, mass, tag, w.cfg.LaunchScale)
}
