package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"spancraft.ai/internal/persistence/indexdb"
	persistlog "spancraft.ai/internal/persistence/log"
	"spancraft.ai/internal/persistence/snapshot"
	"spancraft.ai/internal/sim/tuning"
	"spancraft.ai/internal/sim/world"
	"spancraft.ai/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml")
		logLevel   = flag.String("log_level", "info", "log level (debug, info, warn, error)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite index (ticks, results, scenes)")

		scenePath  = flag.String("scene", "", "path to a scene to load (optional)")
		loadLatest = flag.Bool("load_latest_scene", true, "load the latest autosaved scene from the data dir if present (when -scene is empty)")
		autosave   = flag.Bool("autosave", true, "write a scene to <data>/scenes on shutdown")
	)
	flag.Parse()

	logger := newLogger(*logLevel)

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatal().Err(err).Str("path", *tuningPath).Msg("load tuning")
		}
		logger.Warn().Str("path", *tuningPath).Msg("tuning not found; using defaults")
		tune = tuning.Defaults()
	}

	if err := os.MkdirAll(*dataDir, 0o755); err != nil {
		logger.Fatal().Err(err).Msg("create data dir")
	}

	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(*dataDir, "index", "world.sqlite"))
		if err != nil {
			logger.Fatal().Err(err).Msg("open index")
		}
		defer idx.Close()
		if err := idx.UpsertCatalogs(tune); err != nil {
			logger.Warn().Err(err).Msg("index: upsert catalogs")
		}
	}

	w, err := world.New(tune, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("world")
	}

	sceneToLoad := strings.TrimSpace(*scenePath)
	if sceneToLoad == "" && *loadLatest {
		sceneToLoad = latestScene(filepath.Join(*dataDir, "scenes"))
	}
	if sceneToLoad != "" {
		scene, err := snapshot.ReadScene(sceneToLoad)
		if err != nil {
			logger.Fatal().Err(err).Str("path", sceneToLoad).Msg("read scene")
		}
		if err := w.Import(scene); err != nil {
			logger.Fatal().Err(err).Msg("import scene")
		}
		logger.Info().Str("scene", filepath.Base(sceneToLoad)).Uint64("tick", w.CurrentTick()).Msg("resumed from scene")
	}

	tickLog := persistlog.NewTickLogger(*dataDir)
	resultLog := persistlog.NewResultLogger(*dataDir)
	defer tickLog.Close()
	defer resultLog.Close()
	if idx != nil {
		w.SetTickLogger(persistlog.TeeTicks(tickLog, idx))
		w.SetResultLogger(persistlog.TeeResults(resultLog, idx))
	} else {
		w.SetTickLogger(tickLog)
		w.SetResultLogger(resultLog)
	}

	ctx, cancel := signalContext()
	defer cancel()

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("world stopped")
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

		fmt.Fprintf(rw, "# HELP spancraft_world_tick Current world tick.\n")
		fmt.Fprintf(rw, "# TYPE spancraft_world_tick gauge\n")
		fmt.Fprintf(rw, "spancraft_world_tick %d\n", w.CurrentTick())

		if idx == nil {
			return
		}
		s := idx.Stats()
		fmt.Fprintf(rw, "# HELP spancraft_index_queue_depth Index writer backlog.\n")
		fmt.Fprintf(rw, "# TYPE spancraft_index_queue_depth gauge\n")
		fmt.Fprintf(rw, "spancraft_index_queue_depth %d\n", s.QueueDepth)

		fmt.Fprintf(rw, "# HELP spancraft_index_dropped_total Index writes dropped because the queue was full.\n")
		fmt.Fprintf(rw, "# TYPE spancraft_index_dropped_total counter\n")
		fmt.Fprintf(rw, "spancraft_index_dropped_total{kind=%q} %d\n", "tick", s.DropTickTotal)
		fmt.Fprintf(rw, "spancraft_index_dropped_total{kind=%q} %d\n", "result", s.DropResultTotal)
		fmt.Fprintf(rw, "spancraft_index_dropped_total{kind=%q} %d\n", "scene", s.DropSceneTotal)
	})
	mux.HandleFunc("/v1/results", func(rw http.ResponseWriter, r *http.Request) {
		if idx == nil {
			http.Error(rw, "index disabled", http.StatusNotFound)
			return
		}
		limit := 20
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				http.Error(rw, "bad limit", http.StatusBadRequest)
				return
			}
			limit = n
		}
		res, err := idx.Results(r.Context(), limit)
		if err != nil {
			http.Error(rw, err.Error(), http.StatusInternalServerError)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(res)
	})
	mux.HandleFunc("/v1/ws", ws.NewServer(w, logger).Handler())

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

	logger.Info().Str("addr", *addr).Uint64("tick", w.CurrentTick()).Msg("listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("ListenAndServe")
		cancel()
	}
	<-runDone

	// The run loop has exited, so the world is safe to read here.
	if *autosave {
		scene := w.Export()
		path := filepath.Join(*dataDir, "scenes", fmt.Sprintf("%d.scene.zst", scene.Header.Tick))
		if err := snapshot.WriteScene(path, scene); err != nil {
			logger.Error().Err(err).Msg("autosave scene")
			return
		}
		if idx != nil {
			idx.RecordScene(path, scene)
		}
		logger.Info().Str("path", path).Msg("scene saved")
	}
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	out := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	return zerolog.New(out).Level(lvl).With().Timestamp().Str("svc", "server").Logger()
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

func latestScene(dir string) string {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var best string
	var bestTick uint64
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".scene.zst") {
			continue
		}
		tick, err := strconv.ParseUint(strings.TrimSuffix(name, ".scene.zst"), 10, 64)
		if err != nil {
			continue
		}
		if best == "" || tick > bestTick {
			bestTick = tick
			best = filepath.Join(dir, name)
		}
	}
	return best
}
