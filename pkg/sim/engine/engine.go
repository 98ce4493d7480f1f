// Package engine walks an aligned probability/price sequence and produces
// discrete trades from divergence threshold crossings.
package engine

import (
	"fmt"

	"github.com/courtedge/nba-divergence/pkg/sim"
	"github.com/courtedge/nba-divergence/pkg/sim/pnl"
)

// Simulator runs the divergence trade state machine for fixed parameters.
type Simulator struct {
	entryThreshold float64
	exitThreshold  float64
	settler        *pnl.Calculator
}

// New creates a Simulator. Params must already be validated; the settler
// prices every exit.
func New(params sim.Params, settler *pnl.Calculator) *Simulator {
	return &Simulator{
		entryThreshold: params.EntryThreshold,
		exitThreshold:  params.ExitThreshold,
		settler:        settler,
	}
}

// openPosition tracks the entry while a position is held. It exists only for
// the duration of one pass and is discarded after the final close.
type openPosition struct {
	position sim.PositionType
	entry    sim.AlignedPoint
	entryBid float64
	entryAsk float64
}

// Simulate consumes the aligned sequence in order and returns the closed
// trades plus entry diagnostics. The machine always terminates flat: a
// position still open at the last point is force-closed there and the trade
// marked as an end-of-game exit.
//
// Threshold comparisons are strict: a divergence exactly equal to the entry
// threshold does not open a position.
func (s *Simulator) Simulate(points []sim.AlignedPoint, homeWon bool) ([]sim.Trade, sim.Diagnostics, error) {
	var (
		trades []sim.Trade
		diag   sim.Diagnostics
		open   *openPosition
	)

	for _, point := range points {
		div := point.Divergence()

		if open == nil {
			switch {
			case div > s.entryThreshold:
				// Long needs an executable ask; never guess at a price.
				if point.KalshiAsk == nil {
					diag.MissedLongNoAsk++
					continue
				}
				open = &openPosition{
					position: sim.PositionLongEspn,
					entry:    point,
					entryAsk: *point.KalshiAsk,
					entryBid: deref(point.KalshiBid),
				}
				diag.SuccessfulEntries++

			case div < -s.entryThreshold:
				if point.KalshiBid == nil {
					diag.MissedShortNoBid++
					continue
				}
				open = &openPosition{
					position: sim.PositionShortEspn,
					entry:    point,
					entryBid: *point.KalshiBid,
					entryAsk: deref(point.KalshiAsk),
				}
				diag.SuccessfulEntries++
			}
			continue
		}

		if abs(div) < s.exitThreshold {
			trade, err := s.close(open, point, homeWon, false)
			if err != nil {
				return nil, diag, err
			}
			trades = append(trades, trade)
			open = nil
		}
	}

	// Forced close at end of game using the last point's prices.
	if open != nil && len(points) > 0 {
		trade, err := s.close(open, points[len(points)-1], homeWon, true)
		if err != nil {
			return nil, diag, err
		}
		trades = append(trades, trade)
	}

	return trades, diag, nil
}

func (s *Simulator) close(open *openPosition, exit sim.AlignedPoint, homeWon, endOfGame bool) (sim.Trade, error) {
	profit, err := s.settler.Settle(pnl.Skeleton{
		Position: open.position,
		EntryBid: open.entryBid,
		EntryAsk: open.entryAsk,
	}, homeWon)
	if err != nil {
		return sim.Trade{}, fmt.Errorf("settle %s entered at %s: %w",
			open.position, open.entry.Timestamp.Format("15:04:05"), err)
	}

	return sim.Trade{
		EntryTime:        open.entry.Timestamp,
		ExitTime:         exit.Timestamp,
		Position:         open.position,
		EntryEspnProb:    open.entry.EspnProb,
		EntryKalshiPrice: open.entry.KalshiPrice,
		EntryBid:         open.entryBid,
		EntryAsk:         open.entryAsk,
		ExitEspnProb:     exit.EspnProb,
		ExitKalshiPrice:  exit.KalshiPrice,
		Profit:           profit,
		EndOfGameExit:    endOfGame,
	}, nil
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

func deref(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
