// Package store provides read-only access to ingested game data: ESPN
// win-probability series, Kalshi quotes (already mapped to home-team win
// price by the ingestion side) and game outcomes.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/courtedge/nba-divergence/pkg/sim"
)

// ErrGameNotFound is returned when a game id has no metadata row.
var ErrGameNotFound = errors.New("game not found")

// Outcome is the realized result of a game. HomeWon is nil until the game is
// complete; a provisional result must never be treated as final.
type Outcome struct {
	IsComplete bool
	HomeWon    *bool
}

// Game is the metadata needed to run a simulation for one game.
type Game struct {
	ID        string
	Date      time.Time
	StartTime time.Time
	Duration  time.Duration
	Outcome   Outcome
}

// GameStore is the storage collaborator the simulation service reads from.
// Ticker resolution and home/away side mapping happen upstream; quotes arrive
// already expressed as home-team win prices.
type GameStore interface {
	GetGame(ctx context.Context, gameID string) (*Game, error)
	GetProbabilitySeries(ctx context.Context, gameID string) ([]sim.ProbabilitySnapshot, error)
	GetMarketQuotes(ctx context.Context, gameID string) ([]sim.MarketQuote, error)
}
