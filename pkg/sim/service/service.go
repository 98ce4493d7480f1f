// Package service orchestrates simulations: per-game runs with caching, and
// bulk runs that fan out across a bounded worker pool.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/courtedge/nba-divergence/pkg/sim"
	"github.com/courtedge/nba-divergence/pkg/sim/align"
	"github.com/courtedge/nba-divergence/pkg/sim/cache"
	"github.com/courtedge/nba-divergence/pkg/sim/engine"
	"github.com/courtedge/nba-divergence/pkg/sim/metrics"
	"github.com/courtedge/nba-divergence/pkg/sim/pnl"
	"github.com/courtedge/nba-divergence/pkg/store"
)

// DefaultWorkers bounds bulk-run concurrency. The work is I/O-bound (data
// fetch latency dominates), not CPU-bound.
const DefaultWorkers = 8

// Config holds service configuration.
type Config struct {
	Workers  int
	CacheTTL time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Workers:  DefaultWorkers,
		CacheTTL: cache.DefaultTTL,
	}
}

// Service owns the cache, progress map and metrics for simulation runs. A
// fresh Service per test carries no hidden global state.
type Service struct {
	cfg     Config
	store   store.GameStore
	cache   cache.Cache
	metrics *metrics.SimMetrics
	logger  *slog.Logger

	mu       sync.Mutex
	progress map[string]*Progress
	reports  map[string]*Report

	onProgress func(requestID string, p Progress)
	onGameDone func(requestID string, result *sim.GameResult)
	onRunDone  func(requestID string, report *Report)
}

// New creates a simulation service. Cache may be nil to disable memoization;
// metrics may be nil to disable instrumentation.
func New(cfg Config, gameStore store.GameStore, resultCache cache.Cache, m *metrics.SimMetrics, logger *slog.Logger) *Service {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = cache.DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:      cfg,
		store:    gameStore,
		cache:    resultCache,
		metrics:  m,
		logger:   logger,
		progress: make(map[string]*Progress),
		reports:  make(map[string]*Report),
	}
}

// OnProgress sets a callback fired after every completed game in a bulk run.
func (s *Service) OnProgress(fn func(requestID string, p Progress)) {
	s.onProgress = fn
}

// OnGameDone sets a callback fired when a game simulation finishes.
func (s *Service) OnGameDone(fn func(requestID string, result *sim.GameResult)) {
	s.onGameDone = fn
}

// OnRunDone sets a callback fired with the final report of a bulk run.
func (s *Service) OnRunDone(fn func(requestID string, report *Report)) {
	s.onRunDone = fn
}

// RunGame simulates one game. Results for completed games are memoized by a
// deterministic parameter hash; in-progress games are always recomputed
// because their outcome can still change.
func (s *Service) RunGame(ctx context.Context, gameID string, params sim.Params) (*sim.GameResult, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	game, err := s.store.GetGame(ctx, gameID)
	if err != nil {
		s.countFailure("game_not_found")
		return nil, err
	}

	key := cache.Key(gameID, params)
	if game.Outcome.IsComplete && s.cache != nil {
		entry, hit, err := s.cache.Get(ctx, key)
		if err != nil {
			s.logger.Warn("cache read failed, recomputing", "game_id", gameID, "error", err)
		} else if hit {
			if s.metrics != nil {
				s.metrics.CacheHits.Inc()
				s.metrics.GamesSimulated.WithLabelValues("cache").Inc()
			}
			return resultFromEntry(game, entry), nil
		}
		if s.metrics != nil {
			s.metrics.CacheMisses.Inc()
		}
	}

	result, err := s.simulate(ctx, game, params)
	if err != nil {
		return nil, err
	}

	if game.Outcome.IsComplete && s.cache != nil {
		if err := s.cache.Set(ctx, key, entryFromResult(result), s.cfg.CacheTTL); err != nil {
			s.logger.Warn("cache write failed", "game_id", gameID, "error", err)
		}
	}
	if s.metrics != nil {
		s.metrics.GamesSimulated.WithLabelValues("computed").Inc()
	}
	return result, nil
}

// simulate runs the alignment engine and trade state machine for one game.
func (s *Service) simulate(ctx context.Context, game *store.Game, params sim.Params) (*sim.GameResult, error) {
	probs, err := s.store.GetProbabilitySeries(ctx, game.ID)
	if err != nil {
		s.countFailure("fetch_probabilities")
		return nil, fmt.Errorf("probability series for %s: %w", game.ID, err)
	}
	quotes, err := s.store.GetMarketQuotes(ctx, game.ID)
	if err != nil {
		s.countFailure("fetch_quotes")
		return nil, fmt.Errorf("market quotes for %s: %w", game.ID, err)
	}

	points, stats, err := align.Align(probs, quotes, game.StartTime, game.Duration, params.ExcludeFirst, params.ExcludeLast)
	if err != nil {
		s.countFailure("alignment")
		return nil, fmt.Errorf("align %s: %w", game.ID, err)
	}
	if s.metrics != nil {
		s.metrics.AlignedPoints.Observe(float64(stats.Aligned))
	}
	s.logger.Debug("aligned game",
		"game_id", game.ID,
		"aligned", stats.Aligned,
		"dropped_time_diff", stats.FilteredByTimeDiff,
		"dropped_window", stats.FilteredByWindow,
	)

	homeWon := provisionalOutcome(game, points)

	var costs pnl.CostModel
	if params.EnableFees {
		costs = pnl.DefaultKalshiFee()
	}
	settler := pnl.NewCalculator(params.BetSize, costs)

	trades, diag, err := engine.New(params, settler).Simulate(points, homeWon)
	if err != nil {
		s.countFailure("settlement")
		return nil, fmt.Errorf("simulate %s: %w", game.ID, err)
	}

	if s.metrics != nil {
		for _, t := range trades {
			s.metrics.TradesTotal.WithLabelValues(t.Position.String()).Inc()
		}
	}

	return assembleResult(game, trades, diag), nil
}

// provisionalOutcome settles against the recorded outcome when the game is
// final. In-progress games settle against the latest ESPN read; the result is
// provisional and is never cached.
func provisionalOutcome(game *store.Game, points []sim.AlignedPoint) bool {
	if game.Outcome.IsComplete && game.Outcome.HomeWon != nil {
		return *game.Outcome.HomeWon
	}
	if len(points) > 0 {
		return points[len(points)-1].EspnProb > 0.5
	}
	return false
}

func assembleResult(game *store.Game, trades []sim.Trade, diag sim.Diagnostics) *sim.GameResult {
	total := decimal.Zero
	wins := 0
	for _, t := range trades {
		total = total.Add(t.Profit)
		if t.Profit.GreaterThan(decimal.Zero) {
			wins++
		}
	}

	winRate := 0.0
	if len(trades) > 0 {
		winRate = float64(wins) / float64(len(trades))
	}

	return &sim.GameResult{
		GameID:      game.ID,
		GameDate:    game.Date,
		Trades:      trades,
		Diagnostics: diag,
		TotalProfit: total,
		NumTrades:   len(trades),
		WinRate:     winRate,
	}
}

func entryFromResult(r *sim.GameResult) *cache.Entry {
	return &cache.Entry{
		Trades:      r.Trades,
		Diagnostics: r.Diagnostics,
		TotalProfit: r.TotalProfit,
		NumTrades:   r.NumTrades,
		WinRate:     r.WinRate,
	}
}

func resultFromEntry(game *store.Game, e *cache.Entry) *sim.GameResult {
	return &sim.GameResult{
		GameID:      game.ID,
		GameDate:    game.Date,
		Trades:      e.Trades,
		Diagnostics: e.Diagnostics,
		TotalProfit: e.TotalProfit,
		NumTrades:   e.NumTrades,
		WinRate:     e.WinRate,
	}
}

func (s *Service) countFailure(reason string) {
	if s.metrics != nil {
		s.metrics.GameFailures.WithLabelValues(reason).Inc()
	}
}
