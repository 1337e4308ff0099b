package world

import (
	"time"

	"gravsim.dev/internal/sim/engine"
)

func (w *World) stepInternal(removes []RemoveRequest, inserts []InsertRequest, advance bool) {
	if !advance && len(removes) == 0 && len(inserts) == 0 {
		return
	}
	stepStart := time.Now()
	nowTick := w.tick.Load()

	// Commands apply at the tick boundary: removes first, then inserts, each in receive order.
	recordedRemoves := make([]int, 0, len(removes))
	for _, req := range removes {
		idx := req.Index
		if req.At != nil {
			i, ok := w.eng.HitTest(*req.At)
			if !ok {
				replyRemove(req, RemoveResult{Index: -1, Err: ErrNoSuchBody})
				continue
			}
			idx = i
		}
		if idx < 0 || idx >= w.eng.Len() {
			replyRemove(req, RemoveResult{Index: idx, Err: ErrNoSuchBody})
			continue
		}
		w.eng.Remove(idx)
		recordedRemoves = append(recordedRemoves, idx)
		replyRemove(req, RemoveResult{Index: idx})
	}

	entry := TickLogEntry{Tick: nowTick, Paused: !advance, Removes: recordedRemoves}
	for _, req := range inserts {
		idx, err := w.eng.Insert(req.Body)
		if err == nil {
			entry.Inserts = append(entry.Inserts, w.eng.At(idx))
		}
		if req.Resp != nil {
			req.Resp <- InsertResult{Index: idx, Err: err}
		}
	}

	var rep engine.Report
	if advance {
		rep = w.eng.Tick(w.cfg.Dt)
		w.tick.Add(1)
		entry.Merges = rep.Merges
	}
	entry.Bodies = w.eng.Len()
	entry.Digest = w.eng.Digest()

	w.broadcast(w.stateMsg(rep.Merges))

	if w.tickLogger != nil {
		_ = w.tickLogger.WriteTick(entry)
	}
	if w.mergeLogger != nil {
		for _, m := range rep.Merges {
			_ = w.mergeLogger.WriteMerge(MergeEntry{Tick: nowTick, Survivor: m.Survivor, Absorbed: m.Absorbed, Result: m.Result})
		}
	}

	w.publishMetrics(float64(time.Since(stepStart).Microseconds()) / 1000.0)
}

// publishMetrics refreshes the atomic metrics view read by HTTP handlers.
func (w *World) publishMetrics(stepMS float64) {
	w.metrics.Store(WorldMetrics{
		Tick:      w.tick.Load(),
		Bodies:    w.eng.Len(),
		TotalMass: w.eng.TotalMass(),
		Merges:    w.eng.MergeCount(),
		Observers: len(w.observers),
		Paused:    w.paused,
		QueueDepths: QueueDepths{
			Insert:  len(w.insert),
			Remove:  len(w.remove),
			Project: len(w.project),
		},
		StepMS: stepMS,
	})
}

func replyRemove(req RemoveRequest, res RemoveResult) {
	if req.Resp != nil {
		req.Resp <- res
	}
}
