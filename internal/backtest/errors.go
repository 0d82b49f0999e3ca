package backtest

import "errors"

// Error taxonomy: InvalidInput is fatal at Run()'s precondition checks;
// OrderRejected errors are never fatal — they are reported through the
// order-update callback and Submit* simply returns (nil, err) so the run
// continues; ProgrammerError guards invariants that must never happen.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNoStrategy   = errors.New("invalid input: no strategy set")
	ErrNoEvents     = errors.New("invalid input: no events loaded")
	ErrOutOfOrder   = errors.New("invalid input: event timestamp precedes the clock")

	ErrInvalidAmount         = errors.New("order rejected: invalid amount")
	ErrInvalidPrice          = errors.New("order rejected: invalid price")
	ErrInsufficientMargin    = errors.New("order rejected: insufficient margin")
	ErrReduceOnlyNoPosition  = errors.New("order rejected: reduce-only without position")
	ErrReduceOnlySameSide    = errors.New("order rejected: reduce-only same side")
	ErrPostOnlyWouldCross    = errors.New("order rejected: post-only would fill immediately")
	ErrEmptyOrderBook        = errors.New("order rejected: empty order book")
	ErrInsufficientLiquidity = errors.New("order rejected: insufficient liquidity")

	ErrReleasedOrderReused = errors.New("programmer error: released order reused")
)
