package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/courtedge/nba-divergence/pkg/sim"
)

// Memory is an in-process GameStore for tests and fixture-driven runs.
type Memory struct {
	mu     sync.RWMutex
	games  map[string]*Game
	probs  map[string][]sim.ProbabilitySnapshot
	quotes map[string][]sim.MarketQuote
}

// NewMemory creates an empty store.
func NewMemory() *Memory {
	return &Memory{
		games:  make(map[string]*Game),
		probs:  make(map[string][]sim.ProbabilitySnapshot),
		quotes: make(map[string][]sim.MarketQuote),
	}
}

// AddGame registers a game with its data series.
func (m *Memory) AddGame(game *Game, probs []sim.ProbabilitySnapshot, quotes []sim.MarketQuote) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.games[game.ID] = game
	m.probs[game.ID] = probs
	m.quotes[game.ID] = quotes
}

func (m *Memory) GetGame(ctx context.Context, gameID string) (*Game, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	g, ok := m.games[gameID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrGameNotFound, gameID)
	}
	copied := *g
	return &copied, nil
}

func (m *Memory) GetProbabilitySeries(ctx context.Context, gameID string) ([]sim.ProbabilitySnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.probs[gameID], nil
}

func (m *Memory) GetMarketQuotes(ctx context.Context, gameID string) ([]sim.MarketQuote, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.quotes[gameID], nil
}
