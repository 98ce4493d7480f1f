package pnl

import "github.com/shopspring/decimal"

// CostModel prices the per-side cost of executing a trade. price is the
// contract price in [0,1], contracts is the position size.
type CostModel interface {
	Cost(price float64, contracts decimal.Decimal) decimal.Decimal
}

// ZeroCost settles gross, with no trading costs. It is the default so that
// gross and net runs can be compared with the same settle path.
type ZeroCost struct{}

func (ZeroCost) Cost(price float64, contracts decimal.Decimal) decimal.Decimal {
	return decimal.Zero
}

// KalshiFee models the exchange fee schedule: rate * price * (1 - price) per
// contract, charged on each side of the trade. The standard rate is 7%.
type KalshiFee struct {
	Rate float64
}

// DefaultKalshiFee returns the exchange's published 7% fee model.
func DefaultKalshiFee() KalshiFee {
	return KalshiFee{Rate: 0.07}
}

func (f KalshiFee) Cost(price float64, contracts decimal.Decimal) decimal.Decimal {
	perContract := decimal.NewFromFloat(f.Rate * price * (1 - price))
	return perContract.Mul(contracts)
}
