package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/http/pprof"
	"strconv"
	"time"

	"gravsim.dev/internal/persistence/indexdb"
	"gravsim.dev/internal/sim/body"
	"gravsim.dev/internal/sim/world"
	"gravsim.dev/internal/transport/observer"
	"gravsim.dev/internal/transport/ws"
)

func newMux(w *world.World, wsSrv *ws.Server, idx runtimeIndex, logger *log.Logger, enableAdmin, enablePprof bool) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.Handle("/metrics", metricsHandler(w, wsSrv, idx))

	if enableAdmin {
		// Local-only admin endpoints (do not affect simulation determinism).
		mux.HandleFunc("/admin/v1/state", stateHandler(w, idx))
		mux.HandleFunc("/admin/v1/merges", mergesHandler(idx))

		obsSrv := observer.NewServer(w, logger)
		mux.HandleFunc("/admin/v1/observer/bootstrap", obsSrv.BootstrapHandler())
		mux.HandleFunc("/admin/v1/observer/ws", obsSrv.WSHandler())
	} else if logger != nil {
		logger.Printf("admin endpoints disabled (GS_ENABLE_ADMIN_HTTP=false)")
	}
	if enablePprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	} else if logger != nil {
		logger.Printf("pprof endpoints disabled (GS_ENABLE_PPROF_HTTP=false)")
	}
	mux.HandleFunc("/v1/ws", wsSrv.Handler())
	return mux
}

type adminState struct {
	WorldID string             `json:"world_id"`
	Tick    uint64             `json:"tick"`
	Paused  bool               `json:"paused"`
	Metrics world.WorldMetrics `json:"metrics"`
	Bodies  []body.Body        `json:"bodies"`
	Index   *indexdb.Stats     `json:"index,omitempty"`
}

func stateHandler(w *world.World, idx runtimeIndex) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !observer.IsLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		resp := make(chan world.Snapshot, 1)
		select {
		case w.Snapshot() <- world.SnapshotRequest{Resp: resp}:
		case <-ctx.Done():
			http.Error(rw, "world busy", http.StatusServiceUnavailable)
			return
		}
		var snap world.Snapshot
		select {
		case snap = <-resp:
		case <-ctx.Done():
			http.Error(rw, "world busy", http.StatusServiceUnavailable)
			return
		}

		out := adminState{
			WorldID: w.ID(),
			Tick:    snap.Tick,
			Paused:  snap.Paused,
			Metrics: w.Metrics(),
			Bodies:  snap.Bodies,
		}
		if idx != nil {
			st := idx.Stats()
			out.Index = &st
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(out)
	}
}

func mergesHandler(idx runtimeIndex) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !observer.IsLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		if idx == nil {
			http.Error(rw, "index disabled", http.StatusNotFound)
			return
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		rows, err := idx.RecentMerges(r.Context(), limit)
		if err != nil {
			http.Error(rw, err.Error(), http.StatusInternalServerError)
			return
		}
		if rows == nil {
			rows = []indexdb.MergeRow{}
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(rows)
	}
}
