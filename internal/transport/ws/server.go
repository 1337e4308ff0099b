package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
	"gonum.org/v1/gonum/spatial/r2"

	"gravsim.dev/internal/protocol"
	"gravsim.dev/internal/sim/body"
	"gravsim.dev/internal/sim/engine"
	"gravsim.dev/internal/sim/world"
)

// How long a command waits for the world loop to answer.
const replyTimeout = 5 * time.Second

// Default per-session command budget. PROJECT requests are the expensive ones.
const (
	DefaultCommandRate  = 50
	DefaultCommandBurst = 100
)

type Server struct {
	world *world.World
	log   *log.Logger

	upgrader websocket.Upgrader
	nextID   atomic.Uint64

	cmdRate  rate.Limit
	cmdBurst int

	sessions    atomic.Int64
	commands    atomic.Uint64
	rateLimited atomic.Uint64
}

// Stats are cumulative counters for the metrics endpoint.
type Stats struct {
	Sessions    int64
	Commands    uint64
	RateLimited uint64
}

func NewServer(w *world.World, logger *log.Logger) *Server {
	s := &Server{
		world: w,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		cmdRate:  DefaultCommandRate,
		cmdBurst: DefaultCommandBurst,
	}
	return s
}

// SetCommandRate limits how many commands per second each session may send.
// A non-positive r disables the limit.
func (s *Server) SetCommandRate(r float64, burst int) {
	if r <= 0 {
		s.cmdRate = rate.Inf
	} else {
		s.cmdRate = rate.Limit(r)
	}
	if burst < 1 {
		burst = 1
	}
	s.cmdBurst = burst
}

func (s *Server) Stats() Stats {
	return Stats{
		Sessions:    s.sessions.Load(),
		Commands:    s.commands.Load(),
		RateLimited: s.rateLimited.Load(),
	}
}

type session struct {
	id      string
	s       *Server
	replies chan []byte
	limiter *rate.Limiter
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sid, out := s.handshake(conn)
		if sid == "" {
			return
		}
		defer func() {
			select {
			case s.world.ObserverLeave() <- sid:
			default:
			}
		}()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		s.sessions.Add(1)
		defer s.sessions.Add(-1)

		sess := &session{
			id:      sid,
			s:       s,
			replies: make(chan []byte, 64),
			limiter: rate.NewLimiter(s.cmdRate, s.cmdBurst),
		}

		// Writer goroutine. Replies have their own queue; STATE frames are latest-wins.
		go func() {
			for {
				var b []byte
				select {
				case <-ctx.Done():
					return
				case b = <-sess.replies:
				case b = <-out:
				}
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					cancel()
					return
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			if ctx.Err() != nil {
				break
			}
			sess.handle(ctx, msg)
		}
		cancel()
	}
}

func (s *Server) handshake(conn *websocket.Conn) (sessionID string, out chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return "", nil
	}
	if err := protocol.Validate(protocol.TypeHello, msg); err != nil {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad HELLO"), time.Now().Add(time.Second))
		return "", nil
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return "", nil
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return "", nil
	}
	if hello.ClientName == "" {
		hello.ClientName = "client"
	}

	maxQ := hello.Capabilities.MaxQueue
	if maxQ <= 0 {
		maxQ = 8
	}
	if maxQ > 64 {
		maxQ = 64
	}
	out = make(chan []byte, maxQ)
	sid := fmt.Sprintf("S%d", s.nextID.Add(1))

	// WELCOME goes out before the observer is registered so it is always the first frame.
	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       sid,
		WorldParams:     s.world.Params(),
	}
	if err := writeJSON(conn, welcome); err != nil {
		return "", nil
	}
	select {
	case s.world.ObserverJoin() <- world.ObserverJoinRequest{SessionID: sid, Out: out}:
	default:
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "server busy"), time.Now().Add(time.Second))
		return "", nil
	}
	if s.log != nil {
		s.log.Printf("session %s connected client=%q", sid, hello.ClientName)
	}
	return sid, out
}

func (ss *session) handle(ctx context.Context, msg []byte) {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		ss.reply(protocol.NewError("", protocol.ErrProtoBadRequest, "malformed json"))
		return
	}
	if base.ProtocolVersion != protocol.Version {
		ss.reply(protocol.NewError("", protocol.ErrProtoBadRequest, "bad protocol_version"))
		return
	}
	var ref struct {
		ReqID string `json:"req_id"`
	}
	_ = json.Unmarshal(msg, &ref)
	if err := protocol.Validate(base.Type, msg); err != nil {
		ss.reply(protocol.NewError(ref.ReqID, protocol.ErrProtoBadRequest, err.Error()))
		return
	}
	if !ss.limiter.Allow() {
		ss.s.rateLimited.Add(1)
		ss.reply(protocol.NewError(ref.ReqID, protocol.ErrRateLimit, "too many commands"))
		return
	}
	ss.s.commands.Add(1)

	switch base.Type {
	case protocol.TypeInsert:
		var m protocol.InsertMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			ss.reply(protocol.NewError(m.ReqID, protocol.ErrProtoBadRequest, err.Error()))
			return
		}
		b := body.Body{Pos: vec(m.Pos), Prev: vec(m.Pos), Mass: m.Mass, Fixed: m.Fixed, Tag: body.Tag(m.Tag)}
		if m.Prev != nil {
			b.Prev = vec(*m.Prev)
		}
		ss.insert(ctx, m.ReqID, b)

	case protocol.TypeLaunch:
		var m protocol.LaunchMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			ss.reply(protocol.NewError(m.ReqID, protocol.ErrProtoBadRequest, err.Error()))
			return
		}
		ss.insert(ctx, m.ReqID, ss.s.world.Launch(vec(m.Anchor), vec(m.Drag), m.Mass, body.Tag(m.Tag)))

	case protocol.TypeRemove:
		var m protocol.RemoveMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			ss.reply(protocol.NewError(m.ReqID, protocol.ErrProtoBadRequest, err.Error()))
			return
		}
		ss.remove(ctx, m)

	case protocol.TypeProject:
		var m protocol.ProjectMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			ss.reply(protocol.NewError(m.ReqID, protocol.ErrProtoBadRequest, err.Error()))
			return
		}
		ss.project(ctx, m)

	case protocol.TypeControl:
		var m protocol.ControlMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			ss.reply(protocol.NewError(m.ReqID, protocol.ErrProtoBadRequest, err.Error()))
			return
		}
		resp := make(chan error, 1)
		if !enqueue(ss.s.world.Control(), world.ControlRequest{Op: world.ControlOp(m.Op), Resp: resp}) {
			ss.reply(protocol.NewError(m.ReqID, protocol.ErrWorldBusy, "control queue full"))
			return
		}
		err, ok := await(ctx, resp)
		if !ok {
			ss.reply(protocol.NewError(m.ReqID, protocol.ErrWorldBusy, "no reply from world"))
			return
		}
		if err != nil {
			ss.replyErr(m.ReqID, err)
			return
		}
		ss.reply(protocol.NewAck(m.ReqID, nil))

	default:
		ss.reply(protocol.NewError(ref.ReqID, protocol.ErrProtoBadRequest, "unsupported message type "+base.Type))
	}
}

func (ss *session) insert(ctx context.Context, reqID string, b body.Body) {
	resp := make(chan world.InsertResult, 1)
	if !enqueue(ss.s.world.Insert(), world.InsertRequest{Body: b, Resp: resp}) {
		ss.reply(protocol.NewError(reqID, protocol.ErrWorldBusy, "insert queue full"))
		return
	}
	res, ok := await(ctx, resp)
	if !ok {
		ss.reply(protocol.NewError(reqID, protocol.ErrWorldBusy, "no reply from world"))
		return
	}
	if res.Err != nil {
		ss.replyErr(reqID, res.Err)
		return
	}
	idx := res.Index
	ss.reply(protocol.NewAck(reqID, &idx))
}

func (ss *session) remove(ctx context.Context, m protocol.RemoveMsg) {
	req := world.RemoveRequest{Resp: make(chan world.RemoveResult, 1)}
	switch {
	case m.At != nil:
		at := vec(*m.At)
		req.At = &at
	case m.Index != nil:
		req.Index = *m.Index
	}
	if !enqueue(ss.s.world.Remove(), req) {
		ss.reply(protocol.NewError(m.ReqID, protocol.ErrWorldBusy, "remove queue full"))
		return
	}
	res, ok := await(ctx, req.Resp)
	if !ok {
		ss.reply(protocol.NewError(m.ReqID, protocol.ErrWorldBusy, "no reply from world"))
		return
	}
	if res.Err != nil {
		ss.replyErr(m.ReqID, res.Err)
		return
	}
	idx := res.Index
	ss.reply(protocol.NewAck(m.ReqID, &idx))
}

func (ss *session) project(ctx context.Context, m protocol.ProjectMsg) {
	hyp := ss.s.world.Launch(vec(m.Anchor), vec(m.Drag), m.Mass, body.Tag(m.Tag))
	resp := make(chan world.ProjectResult, 1)
	if !enqueue(ss.s.world.Project(), world.ProjectRequest{Body: hyp, Steps: m.Steps, Stride: m.Stride, Resp: resp}) {
		ss.reply(protocol.NewError(m.ReqID, protocol.ErrWorldBusy, "project queue full"))
		return
	}
	res, ok := await(ctx, resp)
	if !ok {
		ss.reply(protocol.NewError(m.ReqID, protocol.ErrWorldBusy, "no reply from world"))
		return
	}
	if res.Err != nil {
		ss.replyErr(m.ReqID, res.Err)
		return
	}
	pts := make([][2]float64, len(res.Points))
	for i, p := range res.Points {
		pts[i] = [2]float64{p.X, p.Y}
	}
	ss.reply(protocol.TrajectoryMsg{
		Type:            protocol.TypeTrajectory,
		ProtocolVersion: protocol.Version,
		ReqID:           m.ReqID,
		Tick:            res.Tick,
		Points:          pts,
	})
}

func (ss *session) replyErr(reqID string, err error) {
	ss.reply(protocol.NewError(reqID, errorCode(err), err.Error()))
}

func (ss *session) reply(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case ss.replies <- b:
	default:
		// A client that stops reading loses replies rather than stalling the reader.
		if ss.s.log != nil {
			ss.s.log.Printf("session %s: reply queue full, dropping", ss.id)
		}
	}
}

// errorCode maps world and engine errors to stable wire codes.
func errorCode(err error) string {
	switch {
	case errors.Is(err, engine.ErrFull):
		return protocol.ErrWorldFull
	case errors.Is(err, body.ErrInvalidMass), errors.Is(err, body.ErrNonFinite):
		return protocol.ErrInvalidBody
	case errors.Is(err, world.ErrNoSuchBody):
		return protocol.ErrNoSuchBody
	case errors.Is(err, world.ErrBadRequest):
		return protocol.ErrBadRequest
	default:
		return protocol.ErrInternal
	}
}

func enqueue[T any](ch chan<- T, v T) bool {
	select {
	case ch <- v:
		return true
	default:
		return false
	}
}

func await[T any](ctx context.Context, ch <-chan T) (T, bool) {
	t := time.NewTimer(replyTimeout)
	defer t.Stop()
	select {
	case v := <-ch:
		return v, true
	case <-ctx.Done():
	case <-t.C:
	}
	var zero T
	return zero, false
}

func vec(p [2]float64) r2.Vec { return r2.Vec{X: p[0], Y: p[1]} }

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
