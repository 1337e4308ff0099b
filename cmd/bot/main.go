package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"

	"gravsim.dev/internal/protocol"
)

func main() {
	var (
		url      = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name     = flag.String("name", "bot", "client name")
		every    = flag.Uint64("every", 300, "launch a body every N ticks (0 disables)")
		mass     = flag.Float64("mass", 4, "mass of launched bodies")
		distance = flag.Float64("distance", 250, "launch distance from the heaviest body")
		verbose  = flag.Bool("v", false, "log every STATE frame")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		ClientName:      *name,
		Capabilities:    protocol.HelloCapabilities{MaxQueue: 8},
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	b := &bot{
		conn:     conn,
		log:      logger,
		every:    *every,
		mass:     *mass,
		distance: *distance,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	for {
		select {
		case <-stop:
			return
		default:
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeWelcome:
			var w protocol.WelcomeMsg
			if err := json.Unmarshal(msg, &w); err != nil {
				continue
			}
			b.params = w.WorldParams
			logger.Printf("WELCOME session=%s tick_rate=%d dt=%g G=%g", w.SessionID, w.WorldParams.TickRateHz, w.WorldParams.Dt, w.WorldParams.Gravity)

		case protocol.TypeState:
			var st protocol.StateMsg
			if err := json.Unmarshal(msg, &st); err != nil {
				continue
			}
			if *verbose {
				logger.Printf("STATE tick=%d bodies=%d mass=%.1f paused=%v", st.Tick, len(st.Bodies), st.TotalMass, st.Paused)
			}
			for _, m := range st.Merges {
				logger.Printf("merge tick=%d survivor=%d absorbed=%v mass=%.1f", st.Tick, m.Survivor, m.Absorbed, m.Mass)
			}
			b.handleState(&st)

		case protocol.TypeTrajectory:
			var tr protocol.TrajectoryMsg
			if err := json.Unmarshal(msg, &tr); err != nil {
				continue
			}
			if n := len(tr.Points); n > 0 {
				logger.Printf("trajectory %s: %d waypoints, ends at (%.1f, %.1f)", tr.ReqID, n, tr.Points[n-1][0], tr.Points[n-1][1])
			}

		case protocol.TypeAck:
			var ack protocol.AckMsg
			if err := json.Unmarshal(msg, &ack); err != nil {
				continue
			}
			if ack.Index != nil {
				logger.Printf("ack %s index=%d", ack.ReqID, *ack.Index)
			}

		case protocol.TypeError:
			var em protocol.ErrorMsg
			if err := json.Unmarshal(msg, &em); err != nil {
				continue
			}
			logger.Printf("error %s: %s %s", em.ReqID, em.Code, em.Message)
		}
	}
}

type bot struct {
	conn   *websocket.Conn
	log    *log.Logger
	params protocol.WorldParams
	rng    *rand.Rand

	every    uint64
	mass     float64
	distance float64
	seq      int
}

// handleState previews and then launches a body on a roughly circular orbit
// around the heaviest body every b.every ticks.
func (b *bot) handleState(st *protocol.StateMsg) {
	if b.every == 0 || b.params.PaletteSize <= 0 || st.Paused || st.Tick%b.every != 0 || len(st.Bodies) == 0 {
		return
	}
	center := st.Bodies[0]
	for _, body := range st.Bodies[1:] {
		if body.Mass > center.Mass {
			center = body
		}
	}

	theta := b.rng.Float64() * 2 * math.Pi
	anchor := [2]float64{
		center.Pos[0] + b.distance*math.Cos(theta),
		center.Pos[1] + b.distance*math.Sin(theta),
	}
	// Circular speed per step; the pull-back drag points against the motion.
	speed := math.Sqrt(b.params.Gravity*center.Mass/b.distance) * b.params.Dt
	scale := b.params.LaunchScale
	drag := [2]float64{
		math.Sin(theta) * speed * scale,
		-math.Cos(theta) * speed * scale,
	}
	tag := b.rng.Intn(b.params.PaletteSize)
	if tag == b.params.StarTag {
		tag = 0
	}

	b.seq++
	_ = b.conn.WriteJSON(protocol.ProjectMsg{
		Type:            protocol.TypeProject,
		ProtocolVersion: protocol.Version,
		ReqID:           fmt.Sprintf("P%d", b.seq),
		Anchor:          anchor,
		Drag:            drag,
		Mass:            b.mass,
		Tag:             tag,
		Steps:           500,
	})
	_ = b.conn.WriteJSON(protocol.LaunchMsg{
		Type:            protocol.TypeLaunch,
		ProtocolVersion: protocol.Version,
		ReqID:           fmt.Sprintf("L%d", b.seq),
		Anchor:          anchor,
		Drag:            drag,
		Mass:            b.mass,
		Tag:             tag,
	})
}
