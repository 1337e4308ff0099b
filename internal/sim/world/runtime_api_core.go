package world

import (
	"gravsim.dev/internal/protocol"
	"gravsim.dev/internal/sim/body"
)

func (w *World) SetTickLogger(l TickLogger)   { w.tickLogger = l }
func (w *World) SetMergeLogger(l MergeLogger) { w.mergeLogger = l }

func (w *World) Insert() chan<- InsertRequest     { return w.insert }
func (w *World) Remove() chan<- RemoveRequest     { return w.remove }
func (w *World) Project() chan<- ProjectRequest   { return w.project }
func (w *World) Control() chan<- ControlRequest   { return w.control }
func (w *World) Snapshot() chan<- SnapshotRequest { return w.snapshot }

func (w *World) ObserverJoin() chan<- ObserverJoinRequest { return w.observerJoin }
func (w *World) ObserverLeave() chan<- string             { return w.observerLeave }

func (w *World) CurrentTick() uint64 { return w.tick.Load() }

func (w *World) ID() string {
	if w == nil {
		return ""
	}
	return w.cfg.ID
}

func (w *World) Config() WorldConfig { return w.cfg }

// Params is safe to call from any goroutine; it only reads immutable config.
func (w *World) Params() protocol.WorldParams {
	law := w.cfg.Engine.Law
	return protocol.WorldParams{
		TickRateHz:       w.cfg.TickRateHz,
		Dt:               w.cfg.Dt,
		Gravity:          law.G,
		RadiusOffset:     law.RadiusOffset,
		LaunchScale:      w.cfg.LaunchScale,
		StarTag:          int(body.StarTag),
		PaletteSize:      body.PaletteSize,
		ProjectionSteps:  w.cfg.ProjectionSteps,
		ProjectionStride: w.cfg.ProjectionStride,
	}
}
