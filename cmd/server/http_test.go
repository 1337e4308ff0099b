package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"gravsim.dev/internal/persistence/indexdb"
	"gravsim.dev/internal/sim/scenario"
	"gravsim.dev/internal/sim/tuning"
	"gravsim.dev/internal/sim/world"
	"gravsim.dev/internal/transport/ws"
)

func newTestWorld(t *testing.T) *world.World {
	t.Helper()
	tune, err := tuning.Load("../../configs/tuning.yaml")
	if err != nil {
		t.Fatalf("load tuning: %v", err)
	}
	sc, err := scenario.Load("../../configs/scenarios/solar.yaml")
	if err != nil {
		t.Fatalf("load scenario: %v", err)
	}
	w, err := world.New(worldConfig("test_world", tune))
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	if err := w.Seed(sc.Build(tune.Law(), tune.Dt)); err != nil {
		t.Fatalf("seed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = w.Run(ctx) }()
	t.Cleanup(cancel)
	return w
}

func get(t *testing.T, h http.Handler, path, remote string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = remote
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestMux_HealthAndMetrics(t *testing.T) {
	w := newTestWorld(t)
	mux := newMux(w, ws.NewServer(w, nil), nil, nil, true, false)

	rec := get(t, mux, "/healthz", "127.0.0.1:1")
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthz: %d %q", rec.Code, rec.Body.String())
	}

	rec = get(t, mux, "/metrics", "10.1.2.3:1")
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		`gravsim_world_tick{world="test_world"}`,
		`gravsim_world_bodies{world="test_world"}`,
		`gravsim_world_queue_depth{queue="insert",world="test_world"}`,
		`gravsim_ws_sessions{world="test_world"} 0`,
	} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("metrics missing %s:\n%s", want, body)
		}
	}
	if strings.Contains(string(body), "gravsim_index_") {
		t.Fatalf("index metrics without an index")
	}
}

func TestMux_AdminStateLoopbackOnly(t *testing.T) {
	w := newTestWorld(t)
	mux := newMux(w, ws.NewServer(w, nil), nil, nil, true, false)

	rec := get(t, mux, "/admin/v1/state", "10.1.2.3:1")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("remote status=%d", rec.Code)
	}

	rec = get(t, mux, "/admin/v1/state", "127.0.0.1:1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	var st adminState
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.WorldID != "test_world" || len(st.Bodies) == 0 {
		t.Fatalf("unexpected state: %+v", st)
	}
	if st.Index != nil {
		t.Fatalf("index stats without an index")
	}
}

func TestMux_AdminDisabled(t *testing.T) {
	w := newTestWorld(t)
	mux := newMux(w, ws.NewServer(w, nil), nil, nil, false, false)
	if rec := get(t, mux, "/admin/v1/state", "127.0.0.1:1"); rec.Code != http.StatusNotFound {
		t.Fatalf("status=%d", rec.Code)
	}
}

func TestMux_MergesFromIndex(t *testing.T) {
	w := newTestWorld(t)
	idx, err := indexdb.OpenSQLite(filepath.Join(t.TempDir(), "world.sqlite"))
	if err != nil {
		t.Fatalf("open index: %v", err)
	}
	defer idx.Close()
	mux := newMux(w, ws.NewServer(w, nil), idx, nil, true, false)

	rec := get(t, mux, "/admin/v1/merges?limit=5", "127.0.0.1:1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Fatalf("body=%s", got)
	}

	rec = get(t, mux, "/metrics", "127.0.0.1:1")
	if !strings.Contains(rec.Body.String(), `gravsim_index_queue_depth{world="test_world"}`) {
		t.Fatalf("missing index metrics:\n%s", rec.Body.String())
	}
}
