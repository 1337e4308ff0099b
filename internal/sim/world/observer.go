package world

import (
	"encoding/json"

	"gravsim.dev/internal/protocol"
	"gravsim.dev/internal/sim/engine"
)

type ObserverJoinRequest struct {
	SessionID string
	Out       chan []byte
}

type observerState struct {
	out chan []byte
}

func (w *World) handleObserverJoin(req ObserverJoinRequest) {
	if req.SessionID == "" || req.Out == nil {
		return
	}
	w.observers[req.SessionID] = &observerState{out: req.Out}
	// New observers get the current state right away, even while paused.
	if b, err := json.Marshal(w.stateMsg(nil)); err == nil {
		sendLatest(req.Out, b)
	}
}

func (w *World) handleObserverLeave(id string) {
	delete(w.observers, id)
}

func (w *World) stateMsg(merges []engine.Merge) protocol.StateMsg {
	law := w.cfg.Engine.Law
	dt := w.cfg.Dt
	msg := protocol.StateMsg{
		Type:            protocol.TypeState,
		ProtocolVersion: protocol.Version,
		Tick:            w.tick.Load(),
		Paused:          w.paused,
		TotalMass:       w.eng.TotalMass(),
		Bodies:          make([]protocol.BodyState, 0, w.eng.Len()),
	}
	for i := 0; i < w.eng.Len(); i++ {
		b := w.eng.At(i)
		v := b.Velocity()
		msg.Bodies = append(msg.Bodies, protocol.BodyState{
			Pos:    [2]float64{b.Pos.X, b.Pos.Y},
			Vel:    [2]float64{v.X / dt, v.Y / dt},
			Mass:   b.Mass,
			Radius: law.Radius(b.Mass),
			Fixed:  b.Fixed,
			Tag:    int(b.Tag),
		})
	}
	for _, m := range merges {
		msg.Merges = append(msg.Merges, protocol.MergeNotice{
			Survivor: m.Survivor,
			Absorbed: m.Absorbed,
			Mass:     m.Result.Mass,
		})
	}
	return msg
}

func (w *World) broadcast(msg protocol.StateMsg) {
	if len(w.observers) == 0 {
		return
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return
	}
	for _, o := range w.observers {
		sendLatest(o.out, b)
	}
}
