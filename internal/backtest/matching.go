package backtest

import (
	"github.com/rs/zerolog/log"
	"github.com/tidwall/btree"
)

// OrderParams describes a new order at submission time.
type OrderParams struct {
	ClientID   string
	Symbol     string
	Side       Side
	Kind       OrderKind
	LimitPrice float64
	Amount     float64
	PostOnly   bool
	ReduceOnly bool
}

// Fill is published to both the strategy's fill callback and the trade
// ledger.
type Fill struct {
	OrderID     uint64
	Symbol      string
	Side        Side
	Price       float64
	Amount      float64
	Fee         float64
	RealizedPnL float64
	Slippage    float64
	Timestamp   int64
}

// MatchingEngine exclusively owns the order books and the active-order
// set. It validates, admits, matches, and cancels orders, dispatching
// fill and order-update callbacks as it goes.
type MatchingEngine struct {
	cfg     Config
	account *Account

	books  map[string]*OrderBook
	active *btree.BTreeG[*Order] // keyed by ID, ascending — deterministic iteration
	pool   *pool[Order]
	nextID uint64

	ledger []Fill

	onFill        func(Fill)
	onOrderUpdate func(*Order, string)
}

func NewMatchingEngine(account *Account, cfg Config) *MatchingEngine {
	return &MatchingEngine{
		cfg:     cfg,
		account: account,
		books:   make(map[string]*OrderBook),
		active: btree.NewBTreeG(func(a, b *Order) bool {
			return a.ID < b.ID
		}),
		pool: newPool(cfg.PreAllocateOrders, resetOrder),
	}
}

// Book returns symbol's order book, creating an empty one if this is the
// first time it's been referenced.
func (m *MatchingEngine) Book(symbol string) *OrderBook {
	b, ok := m.books[symbol]
	if !ok {
		b = NewOrderBook(symbol)
		m.books[symbol] = b
	}
	return b
}

// TradeLedger returns every fill recorded so far, in execution order.
func (m *MatchingEngine) TradeLedger() []Fill { return m.ledger }

func (m *MatchingEngine) dispatchOrderUpdate(o *Order, reason string) {
	if m.onOrderUpdate != nil {
		m.onOrderUpdate(o, reason)
	}
}

func (m *MatchingEngine) dispatchFill(f Fill) {
	m.ledger = append(m.ledger, f)
	if m.onFill != nil {
		m.onFill(f)
	}
}

// reject marks o rejected, dispatches the update callback with the
// rejection reason, and releases it back to the pool. Rejections are
// never surfaced as exceptional failures — the caller gets (nil, err)
// and the run continues (§7).
func (m *MatchingEngine) reject(o *Order, err error) (*Order, error) {
	o.Status = Rejected
	log.Debug().Str("symbol", o.Symbol).Str("side", o.Side.String()).Str("reason", err.Error()).Msg("order rejected")
	m.dispatchOrderUpdate(o, err.Error())
	m.pool.release(o)
	return nil, err
}

// SubmitOrder validates, and attempts to immediately execute, a new
// order at simulated time t.
func (m *MatchingEngine) SubmitOrder(p OrderParams, t int64) (*Order, error) {
	o := m.pool.acquire()
	m.nextID++
	o.ID = m.nextID
	o.ClientID = p.ClientID
	o.Symbol = p.Symbol
	o.Side = p.Side
	o.Kind = p.Kind
	o.LimitPrice = p.LimitPrice
	o.Amount = p.Amount
	o.Remaining = p.Amount
	o.PostOnly = p.PostOnly
	o.ReduceOnly = p.ReduceOnly
	o.Status = Pending
	o.CreatedAt = t
	o.UpdatedAt = t

	if p.Amount <= 0 {
		return m.reject(o, ErrInvalidAmount)
	}
	if p.Kind == Limit && p.LimitPrice <= 0 {
		return m.reject(o, ErrInvalidPrice)
	}

	book := m.Book(p.Symbol)

	if p.ReduceOnly {
		pos := m.account.GetOrCreatePosition(p.Symbol)
		if pos.Side == Flat {
			return m.reject(o, ErrReduceOnlyNoPosition)
		}
		if p.Side.positionSide() == pos.Side {
			return m.reject(o, ErrReduceOnlySameSide)
		}
		if o.Amount > pos.Size {
			o.Amount = pos.Size
			o.Remaining = pos.Size
		}
	} else {
		estPrice := p.LimitPrice
		if p.Kind == Market {
			if p.Side == Buy {
				estPrice = book.BestAsk()
			} else {
				estPrice = book.BestBid()
			}
		}
		leverage := m.account.GetOrCreatePosition(p.Symbol).Leverage
		required := o.Amount * estPrice / leverage
		if !m.account.HasEnoughMargin(required) {
			return m.reject(o, ErrInsufficientMargin)
		}
	}

	// A post-only limit must be rejected if it would execute on arrival,
	// so check crossing before any execution is attempted.
	if o.Kind == Limit && o.PostOnly {
		if book.Crosses(o.Side, o.LimitPrice) {
			return m.reject(o, ErrPostOnlyWouldCross)
		}
	}

	result := m.tryExecute(o, book, t)
	if o.Kind == Market && !result.Success {
		// The engine can't simulate deeper depth arriving later for the
		// same order, so an under-filled market order is rejected
		// outright rather than partially filled (§7).
		reason := ErrInsufficientLiquidity
		if result.Reason == "empty order book" {
			reason = ErrEmptyOrderBook
		}
		return m.reject(o, reason)
	}

	if o.Kind == Limit && o.Remaining > epsilon {
		o.Status = Open
		m.active.Set(o)
	}

	m.dispatchOrderUpdate(o, "")
	return o, nil
}

// tryExecute attempts the order's immediate fill against book and, if
// anything filled, runs it through fill processing.
func (m *MatchingEngine) tryExecute(o *Order, book *OrderBook, t int64) FillResult {
	// Top of book as it stands before the sweep below consumes it; the
	// fixed slippage model prices off this level.
	top := book.BestAsk()
	if o.Side == Sell {
		top = book.BestBid()
	}

	var result FillResult
	switch o.Kind {
	case Market:
		result = book.SimulateMarket(o.Side, o.Remaining)
	case Limit:
		result = book.CheckLimit(o.Side, o.LimitPrice, o.Remaining)
	}

	if m.cfg.SlippageModel == SlippageModelFixed && result.Success {
		result.Slippage = m.cfg.FixedSlippage * float64(o.Side)
		result.AvgPrice = top * (1 + result.Slippage)
	}

	if result.Filled > 0 {
		m.processFill(o, result, t)
	}
	return result
}

// processFill books one execution against o: updates the order's
// running VWAP/fee/status, updates the position, and settles fees and
// realized PnL into the account.
//
// Taker/maker classification follows the teacher's convention: a limit
// order that crosses on arrival is still Pending when this runs (it
// hasn't been promoted to Open yet); one re-matched later from the
// active set has already become Open. Market orders are always takers.
func (m *MatchingEngine) processFill(o *Order, result FillResult, t int64) {
	fillQty := result.Filled
	fillPx := result.AvgPrice

	isTaker := o.Kind == Market || o.Status == Pending
	rate := m.cfg.MakerFee
	if isTaker {
		rate = m.cfg.TakerFee
	}
	fee := fillQty * fillPx * rate

	newFilled := o.Filled + fillQty
	o.AvgPrice = (o.AvgPrice*o.Filled + fillPx*fillQty) / newFilled
	o.Filled = newFilled
	o.Remaining -= fillQty
	o.Fee += fee
	o.UpdatedAt = t
	if o.Remaining <= epsilon {
		o.Remaining = 0
		o.Status = Filled
	} else {
		o.Status = Partial
	}

	pos := m.account.GetOrCreatePosition(o.Symbol)
	realized := pos.Update(o.Side, fillQty, fillPx, m.cfg)
	m.account.DeductFee(fee)
	if realized != 0 {
		m.account.AddRealized(realized)
	}
	pos.TradingFee += fee
	o.RealizedPnL += realized

	m.dispatchFill(Fill{
		OrderID:     o.ID,
		Symbol:      o.Symbol,
		Side:        o.Side,
		Price:       fillPx,
		Amount:      fillQty,
		Fee:         fee,
		RealizedPnL: realized,
		Slippage:    result.Slippage,
		Timestamp:   t,
	})
}

// CancelOrder cancels an active order by id, returning false if it
// wasn't found (already terminal, or unknown).
func (m *MatchingEngine) CancelOrder(id uint64, t int64) bool {
	o, ok := m.active.Get(&Order{ID: id})
	if !ok {
		return false
	}
	o.Status = Canceled
	o.UpdatedAt = t
	m.active.Delete(o)
	m.dispatchOrderUpdate(o, "")
	m.pool.release(o)
	return true
}

// CancelAll cancels every active order matching symbol (nil means no
// filter — cancel everything), returning the count canceled.
func (m *MatchingEngine) CancelAll(symbol *string, t int64) int {
	var ids []uint64
	m.active.Scan(func(o *Order) bool {
		if symbol == nil || o.Symbol == *symbol {
			ids = append(ids, o.ID)
		}
		return true
	})
	count := 0
	for _, id := range ids {
		if m.CancelOrder(id, t) {
			count++
		}
	}
	return count
}

// UpdateBook replaces symbol's ladder and re-matches every resting limit
// order against the new depth, in ascending order-id order.
func (m *MatchingEngine) UpdateBook(symbol string, bids, asks []PriceLevel, t int64) {
	book := m.Book(symbol)
	book.Update(bids, asks, t)

	var ids []uint64
	m.active.Scan(func(o *Order) bool {
		if o.Symbol == symbol && o.Kind == Limit {
			ids = append(ids, o.ID)
		}
		return true
	})

	for _, id := range ids {
		o, ok := m.active.Get(&Order{ID: id})
		if !ok {
			continue // filled/canceled earlier in this same pass
		}
		result := book.CheckLimit(o.Side, o.LimitPrice, o.Remaining)
		if !result.Success || result.Filled <= 0 {
			continue
		}
		m.processFill(o, result, t)
		if o.Status == Filled {
			m.active.Delete(o)
			m.dispatchOrderUpdate(o, "")
			m.pool.release(o)
		} else {
			m.dispatchOrderUpdate(o, "")
		}
	}
}

// UpdateLast records a trade print on symbol's book and refreshes the
// mark price of any existing position.
func (m *MatchingEngine) UpdateLast(symbol string, price float64, t int64) {
	book := m.Book(symbol)
	book.UpdateLast(price, t)
	if pos, ok := m.account.positions[symbol]; ok {
		pos.UpdateMark(price, m.cfg)
	}
}

// ActiveOrders returns every resting order matching symbol (nil = all),
// in ascending order-id order.
func (m *MatchingEngine) ActiveOrders(symbol *string) []*Order {
	var out []*Order
	m.active.Scan(func(o *Order) bool {
		if symbol == nil || o.Symbol == *symbol {
			out = append(out, o)
		}
		return true
	})
	return out
}
