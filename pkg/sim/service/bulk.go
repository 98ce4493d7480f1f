package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/courtedge/nba-divergence/pkg/sim"
)

// gameOutcome carries one game's result (or failure) back from a worker.
type gameOutcome struct {
	gameID string
	result *sim.GameResult
	err    error
}

// RunBulk simulates a set of games concurrently and reduces them into one
// report. Individual game failures are collected, never fatal; cancellation
// stops dispatching new games but lets in-flight ones finish so the cache is
// never left half-written, and already-finished games still appear in the
// partial report.
func (s *Service) RunBulk(ctx context.Context, gameIDs []string, params sim.Params) (*Report, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	requestID := uuid.NewString()
	return s.runBulk(ctx, requestID, gameIDs, params)
}

// StartBulk launches a bulk run in the background and returns its request id
// for progress polling. The finished report is retrievable via GetReport.
func (s *Service) StartBulk(ctx context.Context, gameIDs []string, params sim.Params) (string, error) {
	if err := params.Validate(); err != nil {
		return "", err
	}

	requestID := uuid.NewString()
	s.initProgress(requestID, len(gameIDs))

	go func() {
		if _, err := s.runBulk(ctx, requestID, gameIDs, params); err != nil {
			s.logger.Error("bulk run failed", "request_id", requestID, "error", err)
		}
	}()

	return requestID, nil
}

func (s *Service) runBulk(ctx context.Context, requestID string, gameIDs []string, params sim.Params) (*Report, error) {
	start := time.Now()

	s.mu.Lock()
	if _, ok := s.progress[requestID]; !ok {
		s.progress[requestID] = &Progress{Total: len(gameIDs), Status: StatusRunning}
	}
	s.mu.Unlock()

	s.logger.Info("bulk run started",
		"request_id", requestID,
		"games", len(gameIDs),
		"workers", s.cfg.Workers,
	)

	jobs := make(chan string)
	outcomes := make(chan gameOutcome)

	// In-flight games run to completion even if the batch is cancelled.
	runCtx := context.WithoutCancel(ctx)

	var wg sync.WaitGroup
	for i := 0; i < s.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for gameID := range jobs {
				if s.metrics != nil {
					s.metrics.ActiveWorkers.Inc()
				}
				result, err := s.RunGame(runCtx, gameID, params)
				if s.metrics != nil {
					s.metrics.ActiveWorkers.Dec()
				}
				outcomes <- gameOutcome{gameID: gameID, result: result, err: err}
			}
		}()
	}

	// Dispatch until done or cancelled.
	cancelled := false
	go func() {
		defer close(jobs)
		for _, gameID := range gameIDs {
			select {
			case <-ctx.Done():
				return
			case jobs <- gameID:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	// Collect results as workers complete them, not in submission order.
	var results []*sim.GameResult
	var failures []GameFailure
	for outcome := range outcomes {
		if outcome.err != nil {
			failures = append(failures, GameFailure{GameID: outcome.gameID, Reason: outcome.err.Error()})
			s.logger.Warn("game failed", "request_id", requestID, "game_id", outcome.gameID, "error", outcome.err)
		} else {
			results = append(results, outcome.result)
			if s.onGameDone != nil {
				s.onGameDone(requestID, outcome.result)
			}
		}

		p := s.advanceProgress(requestID)
		if s.onProgress != nil {
			s.onProgress(requestID, p)
		}
	}

	if ctx.Err() != nil {
		cancelled = true
	}

	status := StatusComplete
	if cancelled {
		status = StatusCancelled
	}

	report := reduce(requestID, status, params, len(gameIDs), results, failures)
	report.Duration = time.Since(start)

	s.finishProgress(requestID, status, report)
	if s.onRunDone != nil {
		s.onRunDone(requestID, report)
	}
	if s.metrics != nil {
		s.metrics.BulkRuns.WithLabelValues(status).Inc()
		s.metrics.BulkDuration.Observe(report.Duration.Seconds())
	}

	s.logger.Info("bulk run finished",
		"request_id", requestID,
		"status", status,
		"games_simulated", len(results),
		"games_failed", len(failures),
		"trades", report.NumTrades,
		"total_profit", report.TotalProfit,
		"duration", report.Duration,
	)

	return report, nil
}
