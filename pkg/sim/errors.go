package sim

import (
	"errors"
	"fmt"
)

// Data-availability errors raised by the alignment engine. The orchestrator
// converts these into per-game failure records; they never abort a batch.
var (
	ErrNoEspnData        = errors.New("no espn probability data")
	ErrNoMarketData      = errors.New("no kalshi market data")
	ErrInvalidGameWindow = errors.New("invalid game window")
)

// ErrDegenerateQuote indicates an upstream data-quality bug: an ask of 0 or a
// bid of 1 would make contract sizing divide by zero.
var ErrDegenerateQuote = errors.New("degenerate quote")

// ErrInvalidParams is fatal: invalid parameters are rejected before any
// simulation work starts.
var ErrInvalidParams = errors.New("invalid simulation params")

func fmtInvalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidParams, fmt.Sprintf(format, args...))
}
