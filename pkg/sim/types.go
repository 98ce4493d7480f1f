// Package sim defines the shared types for the divergence backtesting engine:
// aligned market/probability points, simulated trades, per-game results and
// the parameters that drive a simulation run.
package sim

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProbabilitySnapshot is a single ESPN win-probability reading for the home
// team, ordered by timestamp within a game.
type ProbabilitySnapshot struct {
	Timestamp   time.Time `json:"timestamp"`
	HomeWinProb float64   `json:"home_win_prob"`
}

// MarketQuote is a single Kalshi quote for the home-team "yes" contract.
// Bid and Ask are nil when that side of the book is empty.
type MarketQuote struct {
	Timestamp time.Time `json:"timestamp"`
	MidPrice  float64   `json:"mid_price"`
	Bid       *float64  `json:"bid,omitempty"`
	Ask       *float64  `json:"ask,omitempty"`
}

// AlignedPoint pairs an ESPN probability with the nearest Kalshi quote.
// Sequences of AlignedPoints are strictly ordered by timestamp.
type AlignedPoint struct {
	Timestamp   time.Time `json:"timestamp"`
	EspnProb    float64   `json:"espn_prob"`
	KalshiPrice float64   `json:"kalshi_price"`
	KalshiBid   *float64  `json:"kalshi_bid,omitempty"`
	KalshiAsk   *float64  `json:"kalshi_ask,omitempty"`
}

// Divergence is the trading signal: ESPN probability minus Kalshi price.
func (p AlignedPoint) Divergence() float64 {
	return p.EspnProb - p.KalshiPrice
}

// PositionType identifies which side of the divergence a trade is on.
type PositionType int

const (
	// PositionLongEspn buys "yes" when ESPN is more confident than the market.
	PositionLongEspn PositionType = iota
	// PositionShortEspn sells "yes" when the market is more confident than ESPN.
	PositionShortEspn
)

func (p PositionType) String() string {
	if p == PositionLongEspn {
		return "long_espn"
	}
	return "short_espn"
}

// Trade is an immutable record of one round trip produced by the state
// machine. Profit is in dollars, settled against the actual game outcome.
type Trade struct {
	EntryTime        time.Time       `json:"entry_time"`
	ExitTime         time.Time       `json:"exit_time"`
	Position         PositionType    `json:"position"`
	EntryEspnProb    float64         `json:"entry_espn_prob"`
	EntryKalshiPrice float64         `json:"entry_kalshi_price"`
	EntryBid         float64         `json:"entry_bid"`
	EntryAsk         float64         `json:"entry_ask"`
	ExitEspnProb     float64         `json:"exit_espn_prob"`
	ExitKalshiPrice  float64         `json:"exit_kalshi_price"`
	Profit           decimal.Decimal `json:"profit"`
	EndOfGameExit    bool            `json:"end_of_game_exit"`
}

// Diagnostics counts entry attempts during one simulation pass. Missed
// entries are expected in thin markets and are not errors.
type Diagnostics struct {
	SuccessfulEntries int `json:"successful_entries"`
	MissedLongNoAsk   int `json:"missed_long_no_ask"`
	MissedShortNoBid  int `json:"missed_short_no_bid"`
}

// GameResult is the outcome of simulating one game.
type GameResult struct {
	GameID      string          `json:"game_id"`
	GameDate    time.Time       `json:"game_date"`
	Trades      []Trade         `json:"trades"`
	Diagnostics Diagnostics     `json:"diagnostics"`
	TotalProfit decimal.Decimal `json:"total_profit"`
	NumTrades   int             `json:"num_trades"`
	WinRate     float64         `json:"win_rate"`
}

// Params drives one simulation run. The same Params on the same completed
// game must always produce the same GameResult.
type Params struct {
	EntryThreshold float64       `json:"entry_threshold"`
	ExitThreshold  float64       `json:"exit_threshold"`
	BetSize        float64       `json:"bet_size"`
	ExcludeFirst   time.Duration `json:"exclude_first"`
	ExcludeLast    time.Duration `json:"exclude_last"`
	EnableFees     bool          `json:"enable_fees"`
}

// Validate rejects nonsensical parameter combinations before any work starts.
func (p Params) Validate() error {
	switch {
	case p.EntryThreshold <= 0:
		return fmtInvalid("entry threshold must be positive, got %v", p.EntryThreshold)
	case p.ExitThreshold < 0:
		return fmtInvalid("exit threshold must be non-negative, got %v", p.ExitThreshold)
	case p.ExitThreshold >= p.EntryThreshold:
		return fmtInvalid("exit threshold %v must be below entry threshold %v", p.ExitThreshold, p.EntryThreshold)
	case p.BetSize <= 0:
		return fmtInvalid("bet size must be positive, got %v", p.BetSize)
	case p.ExcludeFirst < 0 || p.ExcludeLast < 0:
		return fmtInvalid("exclusion windows must be non-negative")
	}
	return nil
}
