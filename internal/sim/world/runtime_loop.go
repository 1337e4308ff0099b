package world

import (
	"context"
	"time"
)

func (w *World) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(w.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pendingInserts []InsertRequest
	var pendingRemoves []RemoveRequest

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case req := <-w.insert:
			pendingInserts = append(pendingInserts, req)
		case req := <-w.remove:
			pendingRemoves = append(pendingRemoves, req)
		case req := <-w.project:
			w.handleProject(req)
		case req := <-w.control:
			w.handleControl(req)
		case req := <-w.snapshot:
			w.handleSnapshot(req)
		case req := <-w.observerJoin:
			w.handleObserverJoin(req)
		case id := <-w.observerLeave:
			w.handleObserverLeave(id)
		case <-ticker.C:
			advance := !w.paused || w.stepOnce
			w.stepOnce = false
			w.stepInternal(pendingRemoves, pendingInserts, advance)
			pendingInserts = pendingInserts[:0]
			pendingRemoves = pendingRemoves[:0]
		}
	}
}

func (w *World) Stop() { close(w.stop) }

// StepOnce applies already-resolved commands and optionally advances physics,
// with the same ordering as the live loop. It is intended for replays/tests
// and must not be used while Run is active.
func (w *World) StepOnce(removes []int, inserts []InsertRequest, advance bool) (tick uint64, digest string, err error) {
	reqs := make([]RemoveRequest, 0, len(removes))
	results := make([]chan RemoveResult, 0, len(removes))
	for _, idx := range removes {
		ch := make(chan RemoveResult, 1)
		reqs = append(reqs, RemoveRequest{Index: idx, Resp: ch})
		results = append(results, ch)
	}
	for i := range inserts {
		if inserts[i].Resp == nil {
			inserts[i].Resp = make(chan InsertResult, 1)
		}
	}
	tick = w.tick.Load()
	w.stepInternal(reqs, inserts, advance)
	for _, ch := range results {
		if r := <-ch; r.Err != nil {
			return tick, "", r.Err
		}
	}
	for _, req := range inserts {
		if r := <-req.Resp; r.Err != nil {
			return tick, "", r.Err
		}
	}
	return tick, w.eng.Digest(), nil
}

func (w *World) handleControl(req ControlRequest) {
	var err error
	switch req.Op {
	case ControlPause:
		w.paused = true
	case ControlResume:
		w.paused = false
	case ControlStep:
		w.stepOnce = true
	default:
		err = ErrBadRequest
	}
	if err == nil {
		// Paused idle ticks publish nothing, so the new run state goes out here.
		w.publishMetrics(w.Metrics().StepMS)
		w.broadcast(w.stateMsg(nil))
	}
	if req.Resp != nil {
		req.Resp <- err
	}
}

func (w *World) handleSnapshot(req SnapshotRequest) {
	req.Resp <- Snapshot{
		Tick:   w.tick.Load(),
		Paused: w.paused,
		Bodies: w.eng.Bodies(),
	}
}

func (w *World) handleProject(req ProjectRequest) {
	steps, stride := req.Steps, req.Stride
	if steps == 0 {
		steps = w.cfg.ProjectionSteps
	}
	if stride == 0 {
		stride = w.cfg.ProjectionStride
	}
	res := ProjectResult{Tick: w.tick.Load()}
	if steps < 0 || stride < 0 {
		res.Err = ErrBadRequest
	} else {
		res.Points, res.Err = w.eng.Project(req.Body, w.cfg.Dt, steps, stride)
	}
	req.Resp <- res
}

func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}
