// divergence-backtest runs ESPN/Kalshi divergence backtests over historical
// NBA games, from a Postgres archive or a JSON fixture file.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/courtedge/nba-divergence/pkg/config"
	"github.com/courtedge/nba-divergence/pkg/report"
	"github.com/courtedge/nba-divergence/pkg/sim"
	"github.com/courtedge/nba-divergence/pkg/sim/cache"
	"github.com/courtedge/nba-divergence/pkg/sim/metrics"
	"github.com/courtedge/nba-divergence/pkg/sim/service"
	"github.com/courtedge/nba-divergence/pkg/store"
)

var (
	// Input flags
	configDir = flag.String("config", ".", "Directory holding config.yaml")
	dataFile  = flag.String("data", "", "JSON fixture file (overrides the database)")
	gamesFlag = flag.String("games", "", "Comma-separated game ids (default: all fixture games)")

	// Parameter overrides
	entryThreshold = flag.Float64("entry-threshold", 0, "Divergence required to open a position")
	exitThreshold  = flag.Float64("exit-threshold", -1, "Divergence below which a position closes")
	betSize        = flag.Float64("bet-size", 0, "Dollars committed per trade")
	enableFees     = flag.Bool("fees", false, "Apply the Kalshi fee schedule")
	noCache        = flag.Bool("no-cache", false, "Skip the result cache")

	// Output flags
	outputFile = flag.String("output", "", "Export file for results (.json or .csv)")
	verbose    = flag.Bool("verbose", false, "Print per-game results and debug logs")
)

func main() {
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("backtest failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := config.Load(*configDir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gameStore, gameIDs, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}

	params := buildParams(cfg)
	if err := params.Validate(); err != nil {
		return err
	}

	var resultCache cache.Cache
	if !*noCache && cfg.Cache.Path != "" {
		resultCache, err = cache.NewSQLite(cfg.Cache.Path)
		if err != nil {
			logger.Warn("cache unavailable, running without", "path", cfg.Cache.Path, "error", err)
			resultCache = nil
		} else {
			defer resultCache.Close()
		}
	}

	svcCfg := service.Config{Workers: cfg.Simulation.Workers, CacheTTL: cfg.Cache.TTL}
	svc := service.New(svcCfg, gameStore, resultCache, metrics.New(), logger)

	logger.Info("starting backtest",
		"games", len(gameIDs),
		"entry_threshold", params.EntryThreshold,
		"exit_threshold", params.ExitThreshold,
		"bet_size", params.BetSize,
		"fees", params.EnableFees,
	)

	result, err := svc.RunBulk(ctx, gameIDs, params)
	if err != nil {
		return err
	}

	report.WriteText(os.Stdout, result)
	if *verbose {
		report.WriteGames(os.Stdout, result)
	}

	if *outputFile != "" {
		if err := report.Export(result, *outputFile); err != nil {
			return fmt.Errorf("export results: %w", err)
		}
		logger.Info("results exported", "file", *outputFile)
	}

	return nil
}

// openStore picks the data source: a JSON fixture when -data is given,
// otherwise the configured Postgres archive.
func openStore(ctx context.Context, cfg config.Config) (store.GameStore, []string, error) {
	if *dataFile != "" {
		mem, ids, err := store.LoadFixture(*dataFile)
		if err != nil {
			return nil, nil, err
		}
		if requested := splitGames(); len(requested) > 0 {
			ids = requested
		}
		return mem, ids, nil
	}

	if cfg.Database.DSN == "" {
		return nil, nil, fmt.Errorf("no data source: set database.dsn or pass -data")
	}
	ids := splitGames()
	if len(ids) == 0 {
		return nil, nil, fmt.Errorf("-games is required when reading from the database")
	}

	pg, err := store.NewPostgres(ctx, cfg.Database.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	return pg, ids, nil
}

// buildParams layers flag overrides on top of the configured defaults.
func buildParams(cfg config.Config) sim.Params {
	params := cfg.Simulation.DefaultParams()
	if *entryThreshold > 0 {
		params.EntryThreshold = *entryThreshold
	}
	if *exitThreshold >= 0 {
		params.ExitThreshold = *exitThreshold
	}
	if *betSize > 0 {
		params.BetSize = *betSize
	}
	if *enableFees {
		params.EnableFees = true
	}
	return params
}

func splitGames() []string {
	if *gamesFlag == "" {
		return nil
	}
	parts := strings.Split(*gamesFlag, ",")
	ids := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			ids = append(ids, p)
		}
	}
	return ids
}
