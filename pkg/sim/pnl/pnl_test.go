package pnl

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/courtedge/nba-divergence/pkg/sim"
)

func TestSettleLongWin(t *testing.T) {
	calc := NewCalculator(20, nil)

	// contracts = 20/0.51 ~ 39.22; home won: profit = contracts - 20 ~ 19.22
	profit, err := calc.Settle(Skeleton{Position: sim.PositionLongEspn, EntryBid: 0.49, EntryAsk: 0.51}, true)
	if err != nil {
		t.Fatalf("Settle failed: %v", err)
	}

	want := decimal.NewFromInt(20).Div(decimal.NewFromFloat(0.51)).Sub(decimal.NewFromInt(20))
	if !profit.Equal(want) {
		t.Errorf("profit = %s, want %s", profit, want)
	}
	if profit.InexactFloat64() < 19.21 || profit.InexactFloat64() > 19.23 {
		t.Errorf("profit = %s, expected ~19.22", profit)
	}
}

func TestSettleLongLossIsExactlyBetSize(t *testing.T) {
	calc := NewCalculator(20, nil)

	profit, err := calc.Settle(Skeleton{Position: sim.PositionLongEspn, EntryBid: 0.49, EntryAsk: 0.51}, false)
	if err != nil {
		t.Fatalf("Settle failed: %v", err)
	}
	if !profit.Equal(decimal.NewFromInt(-20)) {
		t.Errorf("profit = %s, want exactly -20", profit)
	}
}

func TestSettleLongBoundedLoss(t *testing.T) {
	calc := NewCalculator(50, nil)

	for _, ask := range []float64{0.05, 0.30, 0.72, 0.99} {
		profit, err := calc.Settle(Skeleton{Position: sim.PositionLongEspn, EntryAsk: ask}, true)
		if err != nil {
			t.Fatalf("ask %v: %v", ask, err)
		}
		if !profit.GreaterThan(decimal.NewFromInt(-50)) {
			t.Errorf("ask %v: profit %s not bounded below by -bet", ask, profit)
		}
	}
}

func TestSettleShort(t *testing.T) {
	calc := NewCalculator(20, nil)
	skel := Skeleton{Position: sim.PositionShortEspn, EntryBid: 0.60, EntryAsk: 0.62}

	// contracts = 20/(1-0.60) = 50; premium = 50*0.60 = 30
	lose, err := calc.Settle(skel, true) // home won, seller pays out
	if err != nil {
		t.Fatalf("Settle failed: %v", err)
	}
	if !lose.Equal(decimal.NewFromInt(-20)) {
		t.Errorf("short losing profit = %s, want -20", lose)
	}

	win, err := calc.Settle(skel, false) // home lost, seller keeps premium
	if err != nil {
		t.Fatalf("Settle failed: %v", err)
	}
	if !win.Equal(decimal.NewFromInt(30)) {
		t.Errorf("short winning profit = %s, want 30", win)
	}
}

func TestSettleDegenerateQuotes(t *testing.T) {
	calc := NewCalculator(20, nil)

	_, err := calc.Settle(Skeleton{Position: sim.PositionLongEspn, EntryAsk: 0}, true)
	if !errors.Is(err, sim.ErrDegenerateQuote) {
		t.Errorf("zero ask: expected ErrDegenerateQuote, got %v", err)
	}

	_, err = calc.Settle(Skeleton{Position: sim.PositionShortEspn, EntryBid: 1.0}, true)
	if !errors.Is(err, sim.ErrDegenerateQuote) {
		t.Errorf("bid of 1: expected ErrDegenerateQuote, got %v", err)
	}
}

func TestSettleWithFees(t *testing.T) {
	gross := NewCalculator(20, nil)
	net := NewCalculator(20, DefaultKalshiFee())
	skel := Skeleton{Position: sim.PositionLongEspn, EntryBid: 0.49, EntryAsk: 0.51}

	g, err := gross.Settle(skel, true)
	if err != nil {
		t.Fatalf("gross settle: %v", err)
	}
	n, err := net.Settle(skel, true)
	if err != nil {
		t.Fatalf("net settle: %v", err)
	}

	if !n.LessThan(g) {
		t.Errorf("net profit %s should be below gross %s", n, g)
	}

	// fee per side = 0.07 * 0.51 * 0.49 per contract, charged twice
	contracts := decimal.NewFromInt(20).Div(decimal.NewFromFloat(0.51))
	fee := decimal.NewFromFloat(0.07 * 0.51 * 0.49).Mul(contracts).Mul(decimal.NewFromInt(2))
	if !g.Sub(n).Equal(fee) {
		t.Errorf("fee charged = %s, want %s", g.Sub(n), fee)
	}
}

func TestKalshiFeeShape(t *testing.T) {
	model := DefaultKalshiFee()
	contracts := decimal.NewFromInt(100)

	// Fee is maximal at p=0.5 and vanishes toward the extremes.
	mid := model.Cost(0.5, contracts)
	edge := model.Cost(0.95, contracts)
	if !mid.GreaterThan(edge) {
		t.Errorf("fee at 0.5 (%s) should exceed fee at 0.95 (%s)", mid, edge)
	}
}
