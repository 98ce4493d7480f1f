// Package pnl settles simulated trades in dollars against the realized game
// outcome, with a pluggable per-trade cost model.
package pnl

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/courtedge/nba-divergence/pkg/sim"
)

// Skeleton is the minimal trade shape needed to settle: which side was taken
// and the executable prices captured at entry.
type Skeleton struct {
	Position sim.PositionType
	EntryBid float64
	EntryAsk float64
}

// Calculator settles trades for a fixed bet size and cost model.
type Calculator struct {
	betSize decimal.Decimal
	costs   CostModel
}

// NewCalculator creates a settlement calculator. A nil cost model settles
// gross (no fees).
func NewCalculator(betSizeDollars float64, costs CostModel) *Calculator {
	if costs == nil {
		costs = ZeroCost{}
	}
	return &Calculator{
		betSize: decimal.NewFromFloat(betSizeDollars),
		costs:   costs,
	}
}

// Settle computes dollar profit for a closed trade.
//
// Long entries buy "yes" at the ask: contracts = bet/ask, cost = bet. A home
// win pays $1 per contract; a loss expires worthless.
//
// Short entries sell "yes" at the bid with risk-based sizing: the capital at
// risk per contract is 1-bid (the seller covers up to $1 if the home team
// wins), so contracts = bet/(1-bid) and premium = contracts*bid.
func (c *Calculator) Settle(skel Skeleton, homeWon bool) (decimal.Decimal, error) {
	one := decimal.NewFromInt(1)

	switch skel.Position {
	case sim.PositionLongEspn:
		if skel.EntryAsk <= 0 {
			return decimal.Zero, fmt.Errorf("%w: long entry ask %v", sim.ErrDegenerateQuote, skel.EntryAsk)
		}
		ask := decimal.NewFromFloat(skel.EntryAsk)
		contracts := c.betSize.Div(ask)

		var profit decimal.Decimal
		if homeWon {
			profit = contracts.Sub(c.betSize)
		} else {
			profit = c.betSize.Neg()
		}
		return profit.Sub(c.fees(skel.EntryAsk, contracts)), nil

	case sim.PositionShortEspn:
		if skel.EntryBid >= 1 {
			return decimal.Zero, fmt.Errorf("%w: short entry bid %v", sim.ErrDegenerateQuote, skel.EntryBid)
		}
		bid := decimal.NewFromFloat(skel.EntryBid)
		contracts := c.betSize.Div(one.Sub(bid))
		premium := contracts.Mul(bid)

		var profit decimal.Decimal
		if homeWon {
			profit = premium.Sub(contracts)
		} else {
			profit = premium
		}
		return profit.Sub(c.fees(skel.EntryBid, contracts)), nil

	default:
		return decimal.Zero, fmt.Errorf("unknown position type %d", skel.Position)
	}
}

// fees charges the cost model at both entry and exit on the entry price.
func (c *Calculator) fees(price float64, contracts decimal.Decimal) decimal.Decimal {
	entry := c.costs.Cost(price, contracts)
	exit := c.costs.Cost(price, contracts)
	return entry.Add(exit)
}
