package service

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/courtedge/nba-divergence/pkg/sim"
)

// GameFailure records why a game could not be simulated.
type GameFailure struct {
	GameID string `json:"game_id"`
	Reason string `json:"reason"`
}

// GameSummary is the per-game line item in a bulk report.
type GameSummary struct {
	GameID      string          `json:"game_id"`
	GameDate    time.Time       `json:"game_date"`
	NumTrades   int             `json:"num_trades"`
	TotalProfit decimal.Decimal `json:"total_profit"`
	WinRate     float64         `json:"win_rate"`
}

// PositionBreakdown splits aggregate stats by position type.
type PositionBreakdown struct {
	Count  int             `json:"count"`
	Profit decimal.Decimal `json:"profit"`
}

// Report is the aggregate reduction over a bulk run. It is recomputed on
// every run, never persisted.
type Report struct {
	RequestID string        `json:"request_id"`
	Status    string        `json:"status"`
	Params    sim.Params    `json:"params"`
	Duration  time.Duration `json:"duration"`

	GamesRequested int           `json:"games_requested"`
	GamesSimulated int           `json:"games_simulated"`
	FailedGames    []GameFailure `json:"failed_games"`

	TotalProfit  decimal.Decimal `json:"total_profit"`
	NumTrades    int             `json:"num_trades"`
	WinRate      float64         `json:"win_rate"`
	ROI          float64         `json:"roi"`
	MaxWin       decimal.Decimal `json:"max_win"`
	MaxLoss      decimal.Decimal `json:"max_loss"`
	StdDevProfit float64         `json:"std_dev_profit"`
	MedianProfit float64         `json:"median_profit"`

	Long  PositionBreakdown `json:"long"`
	Short PositionBreakdown `json:"short"`

	Diagnostics sim.Diagnostics `json:"diagnostics"`
	Games       []GameSummary   `json:"games"`
}

// reduce folds per-game results into aggregate statistics. Results arrive in
// worker-completion order, so everything is normalized (sorted by game id,
// trades by entry time) before any order-sensitive statistic is computed.
func reduce(requestID, status string, params sim.Params, requested int, results []*sim.GameResult, failures []GameFailure) *Report {
	sort.Slice(results, func(i, j int) bool { return results[i].GameID < results[j].GameID })
	sort.Slice(failures, func(i, j int) bool { return failures[i].GameID < failures[j].GameID })

	report := &Report{
		RequestID:      requestID,
		Status:         status,
		Params:         params,
		GamesRequested: requested,
		GamesSimulated: len(results),
		FailedGames:    failures,
		TotalProfit:    decimal.Zero,
		MaxWin:         decimal.Zero,
		MaxLoss:        decimal.Zero,
		Long:           PositionBreakdown{Profit: decimal.Zero},
		Short:          PositionBreakdown{Profit: decimal.Zero},
	}

	var trades []sim.Trade
	for _, r := range results {
		trades = append(trades, r.Trades...)
		report.Diagnostics.SuccessfulEntries += r.Diagnostics.SuccessfulEntries
		report.Diagnostics.MissedLongNoAsk += r.Diagnostics.MissedLongNoAsk
		report.Diagnostics.MissedShortNoBid += r.Diagnostics.MissedShortNoBid
		report.Games = append(report.Games, GameSummary{
			GameID:      r.GameID,
			GameDate:    r.GameDate,
			NumTrades:   r.NumTrades,
			TotalProfit: r.TotalProfit,
			WinRate:     r.WinRate,
		})
	}
	sort.SliceStable(trades, func(i, j int) bool { return trades[i].EntryTime.Before(trades[j].EntryTime) })

	report.NumTrades = len(trades)
	if len(trades) == 0 {
		return report
	}

	wins := 0
	profits := make([]float64, 0, len(trades))
	for i, t := range trades {
		report.TotalProfit = report.TotalProfit.Add(t.Profit)
		profits = append(profits, t.Profit.InexactFloat64())

		if t.Profit.GreaterThan(decimal.Zero) {
			wins++
		}
		if i == 0 || t.Profit.GreaterThan(report.MaxWin) {
			report.MaxWin = t.Profit
		}
		if i == 0 || t.Profit.LessThan(report.MaxLoss) {
			report.MaxLoss = t.Profit
		}

		switch t.Position {
		case sim.PositionLongEspn:
			report.Long.Count++
			report.Long.Profit = report.Long.Profit.Add(t.Profit)
		case sim.PositionShortEspn:
			report.Short.Count++
			report.Short.Profit = report.Short.Profit.Add(t.Profit)
		}
	}

	report.WinRate = float64(wins) / float64(len(trades))
	report.ROI = report.TotalProfit.InexactFloat64() / (float64(len(trades)) * params.BetSize)
	report.StdDevProfit = stdDev(profits)
	report.MedianProfit = median(profits)

	return report
}

func stdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	variance := 0.0
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	return math.Sqrt(variance / float64(len(values)))
}

// median sorts a copy; the caller's slice keeps its trade-time order.
func median(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
