// divergence-simd is the backtest daemon. It serves an HTTP API for starting
// bulk simulations, polling progress, and streaming run events over WebSocket.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/courtedge/nba-divergence/pkg/config"
	"github.com/courtedge/nba-divergence/pkg/sim"
	"github.com/courtedge/nba-divergence/pkg/sim/cache"
	"github.com/courtedge/nba-divergence/pkg/sim/metrics"
	"github.com/courtedge/nba-divergence/pkg/sim/service"
	"github.com/courtedge/nba-divergence/pkg/store"
	"github.com/courtedge/nba-divergence/pkg/streaming"
)

var (
	configDir = flag.String("config", ".", "Directory holding config.yaml")
	httpAddr  = flag.String("http", "", "HTTP listen address (overrides config)")
	verbose   = flag.Bool("verbose", false, "Debug logging")
)

func main() {
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("daemon failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := config.Load(*configDir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	addr := cfg.Server.Addr
	if *httpAddr != "" {
		addr = *httpAddr
	}
	if cfg.Database.DSN == "" {
		return errors.New("database.dsn is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gameStore, err := store.NewPostgres(ctx, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer gameStore.Close()

	var resultCache cache.Cache
	if cfg.Cache.Path != "" {
		resultCache, err = cache.NewSQLite(cfg.Cache.Path)
		if err != nil {
			logger.Warn("cache unavailable, running without", "path", cfg.Cache.Path, "error", err)
			resultCache = nil
		} else {
			defer resultCache.Close()
		}
	}

	m := metrics.New()
	svcCfg := service.Config{Workers: cfg.Simulation.Workers, CacheTTL: cfg.Cache.TTL}
	svc := service.New(svcCfg, gameStore, resultCache, m, logger)

	hub := streaming.NewHub(logger)
	go hub.Run(ctx)

	svc.OnProgress(func(requestID string, p service.Progress) {
		hub.BroadcastProgress(requestID, p)
	})
	svc.OnGameDone(func(requestID string, result *sim.GameResult) {
		hub.BroadcastGameResult(requestID, result)
	})
	svc.OnRunDone(func(requestID string, report *service.Report) {
		hub.BroadcastRunFinished(requestID, report)
	})

	d := &daemon{
		cfg:    cfg,
		svc:    svc,
		hub:    hub,
		logger: logger,
	}

	server := &http.Server{
		Addr:         addr,
		Handler:      d.routes(m),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", addr)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

type daemon struct {
	cfg    config.Config
	svc    *service.Service
	hub    *streaming.Hub
	logger *slog.Logger
}

func (d *daemon) routes(m *metrics.SimMetrics) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", d.handleHealth)
	mux.HandleFunc("POST /run", d.handleRun)
	mux.HandleFunc("GET /progress", d.handleProgress)
	mux.HandleFunc("GET /report", d.handleReport)
	mux.Handle("GET /metrics", promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{}))
	mux.HandleFunc("/ws", d.hub.ServeWS)
	return mux
}

func (d *daemon) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// runRequest is the POST /run body. Omitted parameters fall back to the
// configured defaults.
type runRequest struct {
	GameIDs        []string `json:"game_ids"`
	EntryThreshold *float64 `json:"entry_threshold,omitempty"`
	ExitThreshold  *float64 `json:"exit_threshold,omitempty"`
	BetSize        *float64 `json:"bet_size,omitempty"`
	ExcludeFirstS  *int     `json:"exclude_first_seconds,omitempty"`
	ExcludeLastS   *int     `json:"exclude_last_seconds,omitempty"`
	EnableFees     *bool    `json:"enable_fees,omitempty"`
}

func (d *daemon) handleRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if len(req.GameIDs) == 0 {
		writeError(w, http.StatusBadRequest, errors.New("game_ids is required"))
		return
	}

	params := d.cfg.Simulation.DefaultParams()
	if req.EntryThreshold != nil {
		params.EntryThreshold = *req.EntryThreshold
	}
	if req.ExitThreshold != nil {
		params.ExitThreshold = *req.ExitThreshold
	}
	if req.BetSize != nil {
		params.BetSize = *req.BetSize
	}
	if req.ExcludeFirstS != nil {
		params.ExcludeFirst = time.Duration(*req.ExcludeFirstS) * time.Second
	}
	if req.ExcludeLastS != nil {
		params.ExcludeLast = time.Duration(*req.ExcludeLastS) * time.Second
	}
	if req.EnableFees != nil {
		params.EnableFees = *req.EnableFees
	}

	// The run outlives the HTTP request; tie it to the server, not r.Context.
	requestID, err := d.svc.StartBulk(context.Background(), req.GameIDs, params)
	if err != nil {
		if errors.Is(err, sim.ErrInvalidParams) {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	d.hub.BroadcastRunStarted(requestID, len(req.GameIDs))
	writeJSON(w, http.StatusAccepted, map[string]string{"request_id": requestID})
}

func (d *daemon) handleProgress(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, errors.New("id is required"))
		return
	}
	p, ok := d.svc.GetProgress(id)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown request id %s", id))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (d *daemon) handleReport(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, errors.New("id is required"))
		return
	}
	report, ok := d.svc.GetReport(id)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("no report for request id %s", id))
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
