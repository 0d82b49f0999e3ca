package backtest

// PriceLevel is a single rung of a ladder: a price and the quantity
// resting at it. Depth events replace the ladders wholesale, so levels
// are plain (price, qty) pairs rather than owned order queues — there is
// no incremental maintenance to do between snapshots.
type PriceLevel struct {
	Price float64
	Qty   float64
}

// PriceFill is one (price, quantity) leg consumed while sweeping a
// ladder.
type PriceFill struct {
	Price float64
	Qty   float64
}

// FillResult is the outcome of sweeping one side of the book for a given
// amount.
type FillResult struct {
	Success   bool
	AvgPrice  float64
	Fills     []PriceFill
	Slippage  float64
	Filled    float64
	Remaining float64
	Reason    string
}

// OrderBook holds the latest bid/ask ladder for one symbol. It owns no
// orders of its own; the matching engine's active set sweeps against it.
type OrderBook struct {
	Symbol        string
	Bids          []PriceLevel // descending by price
	Asks          []PriceLevel // ascending by price
	LastPrice     float64
	LastTradeTime int64
	UpdateTime    int64
}

func NewOrderBook(symbol string) *OrderBook {
	return &OrderBook{Symbol: symbol}
}

// Update wholly replaces both ladders. Callers are expected to hand in
// ladders already sorted at ingestion time (descending bids, ascending
// asks) — the book does no incremental maintenance.
func (b *OrderBook) Update(bids, asks []PriceLevel, t int64) {
	b.Bids = bids
	b.Asks = asks
	b.UpdateTime = t
}

func (b *OrderBook) BestBid() float64 {
	if len(b.Bids) == 0 {
		return 0
	}
	return b.Bids[0].Price
}

func (b *OrderBook) BestAsk() float64 {
	if len(b.Asks) == 0 {
		return 0
	}
	return b.Asks[0].Price
}

// Mid returns the average of best bid/ask, falling back to the last
// trade price when one side of the book is empty.
func (b *OrderBook) Mid() float64 {
	bid, ask := b.BestBid(), b.BestAsk()
	if bid > 0 && ask > 0 {
		return (bid + ask) / 2
	}
	return b.LastPrice
}

func (b *OrderBook) UpdateLast(price float64, t int64) {
	b.LastPrice = price
	b.LastTradeTime = t
}

// SimulateMarket consumes the opposing ladder level-by-level until amount
// is satisfied, mutating the ladder as it goes. If the ladder can't cover
// amount it leaves the ladder untouched and reports the reason rather
// than partially executing — the engine has no way to simulate deeper
// depth arriving later for the same order (§7).
func (b *OrderBook) SimulateMarket(side Side, amount float64) FillResult {
	levels := &b.Asks
	if side == Sell {
		levels = &b.Bids
	}

	if len(*levels) == 0 {
		return FillResult{Remaining: amount, Reason: "empty order book"}
	}

	initialPrice := (*levels)[0].Price

	var available float64
	for _, lvl := range *levels {
		available += lvl.Qty
	}
	if available+epsilon < amount {
		return FillResult{Filled: available, Remaining: amount - available, Reason: "insufficient liquidity"}
	}

	var fills []PriceFill
	remaining := amount
	consumed := 0
	for i := range *levels {
		if remaining <= epsilon {
			break
		}
		lvl := &(*levels)[i]
		take := lvl.Qty
		if remaining < take {
			take = remaining
		}
		lvl.Qty -= take
		remaining -= take
		fills = append(fills, PriceFill{Price: lvl.Price, Qty: take})
		if lvl.Qty <= epsilon {
			consumed = i + 1
		} else {
			consumed = i
			break
		}
	}
	*levels = (*levels)[consumed:]

	avgPrice := vwap(fills)
	slippage := 0.0
	if initialPrice != 0 {
		slippage = ((avgPrice - initialPrice) / initialPrice) * float64(side)
	}

	return FillResult{
		Success:  true,
		AvgPrice: avgPrice,
		Fills:    fills,
		Slippage: slippage,
		Filled:   amount,
	}
}

// Crosses reports whether a limit order on side at price would execute
// immediately against the current book, without consuming any depth.
// Used for the post-only probe, which must never have a side effect on
// the book it's merely inspecting.
func (b *OrderBook) Crosses(side Side, price float64) bool {
	switch side {
	case Buy:
		return price >= b.BestAsk() && b.BestAsk() > 0
	case Sell:
		return price <= b.BestBid() && b.BestBid() > 0
	default:
		return false
	}
}

// CheckLimit reports whether a limit order at price would cross the book
// and, if so, executes it via SimulateMarket — limit orders that cross
// take the swept levels, not their own limit price (no price
// improvement).
func (b *OrderBook) CheckLimit(side Side, price, amount float64) FillResult {
	if !b.Crosses(side, price) {
		return FillResult{Remaining: amount, Reason: "price not reached"}
	}
	return b.SimulateMarket(side, amount)
}

func vwap(fills []PriceFill) float64 {
	var notional, qty float64
	for _, f := range fills {
		notional += f.Price * f.Qty
		qty += f.Qty
	}
	if qty == 0 {
		return 0
	}
	return notional / qty
}
