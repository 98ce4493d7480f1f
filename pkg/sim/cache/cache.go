// Package cache memoizes simulation results for completed games. A finished
// game's outcome and historical data never change, so its result can be kept
// for a long time; in-progress games must never be cached.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/courtedge/nba-divergence/pkg/sim"
)

// DefaultTTL keeps completed-game results for a year.
const DefaultTTL = 365 * 24 * time.Hour

// Entry is the cached shape of a GameResult. Game id and date are part of the
// key's derivation, not the value; the service re-attaches them on read.
type Entry struct {
	Trades      []sim.Trade     `json:"trades"`
	Diagnostics sim.Diagnostics `json:"diagnostics"`
	TotalProfit decimal.Decimal `json:"total_profit"`
	NumTrades   int             `json:"num_trades"`
	WinRate     float64         `json:"win_rate"`
}

// Cache stores simulation results keyed by Key output.
type Cache interface {
	Get(ctx context.Context, key string) (*Entry, bool, error)
	Set(ctx context.Context, key string, entry *Entry, ttl time.Duration) error
	Close() error
}

// keyTuple is the canonical parameter tuple hashed into a cache key. Field
// order is fixed so the JSON encoding is stable across runs.
type keyTuple struct {
	GameID         string  `json:"game_id"`
	EntryThreshold float64 `json:"entry_threshold"`
	ExitThreshold  float64 `json:"exit_threshold"`
	BetSize        float64 `json:"bet_size"`
	ExcludeFirstS  float64 `json:"exclude_first_s"`
	ExcludeLastS   float64 `json:"exclude_last_s"`
	EnableFees     bool    `json:"enable_fees"`
}

// Key derives the deterministic cache key: the first 16 hex characters of the
// sha256 digest of the canonical JSON parameter tuple.
func Key(gameID string, params sim.Params) string {
	tuple := keyTuple{
		GameID:         gameID,
		EntryThreshold: params.EntryThreshold,
		ExitThreshold:  params.ExitThreshold,
		BetSize:        params.BetSize,
		ExcludeFirstS:  params.ExcludeFirst.Seconds(),
		ExcludeLastS:   params.ExcludeLast.Seconds(),
		EnableFees:     params.EnableFees,
	}

	// Struct encoding preserves declaration order, so this is canonical.
	data, err := json.Marshal(tuple)
	if err != nil {
		// A struct of scalars cannot fail to marshal.
		panic(fmt.Sprintf("cache key marshal: %v", err))
	}

	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:16]
}
