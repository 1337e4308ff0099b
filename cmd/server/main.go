package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	persistlog "gravsim.dev/internal/persistence/log"
	"gravsim.dev/internal/sim/scenario"
	"gravsim.dev/internal/sim/tuning"
	"gravsim.dev/internal/sim/world"
	"gravsim.dev/internal/transport/ws"
)

func main() {
	var (
		addr         = flag.String("addr", ":8080", "http listen address")
		worldID      = flag.String("world", "world_1", "world id")
		configDir    = flag.String("configs", "./configs", "config directory")
		dataDir      = flag.String("data", "./data", "runtime data directory")
		tuningPath   = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		scenarioPath = flag.String("scenario", "", "scenario yaml to seed the world with (optional)")
		paused       = flag.Bool("paused", false, "start with the simulation paused")
		disableDB    = flag.Bool("disable_db", false, "disable indexing (ticks + merges + config)")
		disableLogs  = flag.Bool("disable_logs", false, "disable the events/merges jsonl logs")
		cmdRate      = flag.Float64("cmd_rate", ws.DefaultCommandRate, "commands per second per session (0 disables the limit)")
		cmdBurst     = flag.Int("cmd_burst", ws.DefaultCommandBurst, "command burst per session")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	_ = os.MkdirAll(worldDir, 0o755)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}

	sc, err := scenario.Load(strings.TrimSpace(*scenarioPath))
	if err != nil {
		logger.Fatalf("load scenario: %v", err)
	}

	// Optional: read-model index backend (does not affect sim determinism).
	idx, err := openRuntimeIndex(worldDir, *disableDB)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.UpsertConfig(tune, sc); err != nil {
			logger.Printf("index backend: upsert config: %v", err)
		}
	}

	w, err := world.New(worldConfig(*worldID, tune))
	if err != nil {
		logger.Fatalf("world: %v", err)
	}
	if err := w.Seed(sc.Build(tune.Law(), tune.Dt)); err != nil {
		logger.Fatalf("seed world: %v", err)
	}
	logger.Printf("world=%s scenario=%q bodies=%d policy=%s", *worldID, sc.Name, len(sc.Bodies), w.Config().Engine.Policy)

	if !*disableLogs {
		tickLog := persistlog.NewTickLogger(worldDir)
		mergeLog := persistlog.NewMergeLogger(worldDir)
		defer tickLog.Close()
		defer mergeLog.Close()
		w.SetTickLogger(multiTickLogger{a: tickLog, b: idx})
		w.SetMergeLogger(multiMergeLogger{a: mergeLog, b: idx})
	} else if idx != nil {
		w.SetTickLogger(idx)
		w.SetMergeLogger(idx)
	}

	ctx, cancel := signalContext()
	defer cancel()

	if *paused {
		// Buffered; applied as soon as the loop starts.
		w.Control() <- world.ControlRequest{Op: world.ControlPause}
	}
	go func() {
		if err := w.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("world stopped: %v", err)
		}
	}()

	wsSrv := ws.NewServer(w, logger)
	wsSrv.SetCommandRate(*cmdRate, *cmdBurst)
	mux := newMux(w, wsSrv, idx, logger, envBool("GS_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP()), envBool("GS_ENABLE_PPROF_HTTP", false))

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

func worldConfig(id string, tune tuning.Tuning) world.WorldConfig {
	return world.WorldConfig{
		ID:               id,
		TickRateHz:       tune.TickRateHz,
		Dt:               tune.Dt,
		LaunchScale:      tune.LaunchScale,
		ProjectionSteps:  tune.Projection.Steps,
		ProjectionStride: tune.Projection.Stride,
		Engine:           tune.EngineConfig(),
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}

type multiTickLogger struct {
	a world.TickLogger
	b world.TickLogger
}

func (m multiTickLogger) WriteTick(entry world.TickLogEntry) error {
	if m.a != nil {
		_ = m.a.WriteTick(entry)
	}
	if m.b != nil {
		_ = m.b.WriteTick(entry)
	}
	return nil
}

type multiMergeLogger struct {
	a world.MergeLogger
	b world.MergeLogger
}

func (m multiMergeLogger) WriteMerge(entry world.MergeEntry) error {
	if m.a != nil {
		_ = m.a.WriteMerge(entry)
	}
	if m.b != nil {
		_ = m.b.WriteMerge(entry)
	}
	return nil
}
