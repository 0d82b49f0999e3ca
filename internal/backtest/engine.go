package backtest

import (
	"time"

	"github.com/rs/zerolog/log"
)

// Engine is the single-threaded event scheduler: it owns the account,
// the matching engine, and the merged input stream, and drives a
// strategy's callbacks in timestamp order. Nothing here is safe for
// concurrent use — determinism depends on one goroutine owning the
// clock.
type Engine struct {
	cfg      Config
	account  *Account
	matching *MatchingEngine
	strategy Strategy
	metrics  MetricsSink

	events []Event
	clock  int64

	// fundingRates is the cache described in §4.9: populated only by
	// funding events, read only at the interval-gated settlement check.
	// lastFundingTime is a single global watermark, not per-symbol — the
	// settlement check fires for every non-flat position in the same
	// pass once the interval has elapsed since the last pass.
	fundingRates    map[string]float64
	lastFundingTime int64
	lastEquityTime  int64

	equityCurve []EquitySample

	eventsProcessed int
	ordersSubmitted int
	ordersFilled    int

	startWall time.Time
}

func NewEngine(cfg Config) *Engine {
	account := NewAccount(cfg)
	e := &Engine{
		cfg:          cfg,
		account:      account,
		matching:     NewMatchingEngine(account, cfg),
		metrics:      noopMetricsSink{},
		fundingRates: make(map[string]float64),
	}
	e.matching.onFill = e.handleFill
	e.matching.onOrderUpdate = e.handleOrderUpdate
	return e
}

// SetMetricsSink replaces the no-op metrics sink with a concrete one.
// The core never depends on a metrics backend directly — callers
// supply their own implementation of MetricsSink.
func (e *Engine) SetMetricsSink(m MetricsSink) {
	if m == nil {
		m = noopMetricsSink{}
	}
	e.metrics = m
}

func (e *Engine) SetStrategy(s Strategy) { e.strategy = s }

// LoadEvents appends pre-built events to the input stream. Events are
// sorted by timestamp once, in Run, not on every call.
func (e *Engine) LoadEvents(events ...Event) {
	e.events = append(e.events, events...)
}

func (e *Engine) LoadTrades(symbol string, rows []TradeRow) {
	for _, r := range rows {
		e.events = append(e.events, Event{
			Kind:      EventTrade,
			Timestamp: r.TimestampMs,
			Symbol:    symbol,
			Trade:     TradeEvent{Price: r.Price, Amount: r.Amount, Side: Side(r.Side)},
		})
	}
}

func (e *Engine) LoadDepth(symbol string, rows []DepthRow) {
	for _, r := range rows {
		e.events = append(e.events, Event{
			Kind:      EventDepth,
			Timestamp: r.TimestampMs,
			Symbol:    symbol,
			Depth:     DepthEvent{Bids: levelsFromPairs(r.Bids), Asks: levelsFromPairs(r.Asks)},
		})
	}
}

func (e *Engine) LoadFunding(symbol string, rows []FundingRow) {
	for _, r := range rows {
		e.events = append(e.events, Event{
			Kind:      EventFunding,
			Timestamp: r.TimestampMs,
			Symbol:    symbol,
			Funding:   FundingEvent{Rate: r.Rate},
		})
	}
}

func (e *Engine) LoadCandles(symbol string, rows []CandleRow) {
	for _, r := range rows {
		e.events = append(e.events, Event{
			Kind:      EventCandle,
			Timestamp: r.TimestampMs,
			Symbol:    symbol,
			Candle: CandleEvent{
				Open: r.Open, High: r.High, Low: r.Low, Close: r.Close, Volume: r.Volume,
			},
		})
	}
}

// Run drives the merged event stream to completion and returns the
// final result. It is the only blocking call in the package.
func (e *Engine) Run() (*Result, error) {
	if e.strategy == nil {
		return nil, ErrNoStrategy
	}
	if len(e.events) == 0 {
		return nil, ErrNoEvents
	}

	sortEvents(e.events)
	for i := 1; i < len(e.events); i++ {
		if e.events[i].Timestamp < e.events[i-1].Timestamp {
			return nil, ErrOutOfOrder
		}
	}

	e.startWall = time.Now()
	startTs := e.events[0].Timestamp
	e.clock = startTs
	e.lastEquityTime = startTs
	e.lastFundingTime = startTs

	log.Debug().Int("events", len(e.events)).Int64("start_ts", startTs).Msg("backtest run starting")

	e.strategy.OnInit(e)

	for _, ev := range e.events {
		e.clock = ev.Timestamp
		e.checkFundingSettlement(ev.Timestamp)
		e.checkLiquidations(ev.Timestamp)
		e.dispatch(ev)
		e.eventsProcessed++
		e.metrics.IncEventsProcessed()
		e.maybeSampleEquity(ev.Timestamp)
	}

	endTs := e.events[len(e.events)-1].Timestamp
	e.snapshotEquity(endTs)

	res := computeResult(e.cfg, e.account, e.equityCurve, e.matching.TradeLedger(),
		e.eventsProcessed, e.ordersSubmitted, e.ordersFilled,
		startTs, endTs, endTs-startTs)

	log.Debug().
		Float64("final_equity", res.FinalEquity).
		Int("liquidations", res.LiquidationCount).
		Dur("wall", time.Since(e.startWall)).
		Msg("backtest run complete")

	e.strategy.OnEnd(res)
	return res, nil
}

func (e *Engine) dispatch(ev Event) {
	switch ev.Kind {
	case EventTrade:
		e.matching.UpdateLast(ev.Symbol, ev.Trade.Price, ev.Timestamp)
		e.strategy.OnTrade(TradeView{
			Symbol: ev.Symbol, Price: ev.Trade.Price, Amount: ev.Trade.Amount,
			Side: ev.Trade.Side, Timestamp: ev.Timestamp,
		})
	case EventDepth:
		e.matching.UpdateBook(ev.Symbol, ev.Depth.Bids, ev.Depth.Asks, ev.Timestamp)
		e.strategy.OnDepth(DepthView{
			Symbol: ev.Symbol, Bids: ev.Depth.Bids, Asks: ev.Depth.Asks, Timestamp: ev.Timestamp,
		})
	case EventFunding:
		// Funding events only refresh the rate cache; settlement itself is
		// driven by the elapsed-interval check in checkFundingSettlement,
		// not by the arrival of this event.
		e.fundingRates[ev.Symbol] = ev.Funding.Rate
		e.strategy.OnFunding(FundingView{Symbol: ev.Symbol, Rate: ev.Funding.Rate, Timestamp: ev.Timestamp})
	case EventCandle:
		e.matching.UpdateLast(ev.Symbol, ev.Candle.Close, ev.Timestamp)
		e.strategy.OnKline(CandleView{
			Symbol: ev.Symbol, Open: ev.Candle.Open, High: ev.Candle.High,
			Low: ev.Candle.Low, Close: ev.Candle.Close, Volume: ev.Candle.Volume,
			Timestamp: ev.Timestamp,
		})
	}
}

// checkFundingSettlement fires once the funding interval has elapsed
// since the last settlement pass, independent of which event kind
// crossed that boundary. Every non-flat position is charged from the
// cached rate for its symbol (0, and skipped, if never observed).
func (e *Engine) checkFundingSettlement(t int64) {
	if t-e.lastFundingTime < e.cfg.FundingIntervalMs {
		return
	}
	for _, sym := range e.account.symbolOrder {
		pos := e.account.positions[sym]
		if pos.Side == Flat {
			continue
		}
		rate := e.fundingRates[sym]
		if rate == 0 {
			continue
		}
		fee := pos.ApplyFunding(rate)
		if fee != 0 {
			e.account.DeductFunding(fee)
		}
	}
	e.lastFundingTime = t
}

// checkLiquidations liquidates any position whose mark has crossed its
// liquidation price. Margin adequacy is validated only at order
// submission time; positions are never re-checked for margin on every
// tick outside of this liquidation test.
func (e *Engine) checkLiquidations(t int64) {
	for _, sym := range e.account.symbolOrder {
		pos := e.account.positions[sym]
		if pos.Side == Flat {
			continue
		}
		if pos.ShouldLiquidate(pos.Mark) {
			log.Warn().
				Str("symbol", sym).
				Str("side", pos.Side.String()).
				Float64("mark", pos.Mark).
				Float64("liquidation_price", pos.LiquidationPrice).
				Msg("position liquidated")
			e.account.Liquidate(pos, pos.Mark)
			e.matching.CancelAll(&sym, t)
			e.metrics.IncLiquidation()
		}
	}
}

func (e *Engine) maybeSampleEquity(t int64) {
	if e.cfg.EquitySamplingIntervalMs <= 0 {
		return
	}
	if t-e.lastEquityTime < e.cfg.EquitySamplingIntervalMs {
		return
	}
	e.snapshotEquity(t)
}

func (e *Engine) snapshotEquity(t int64) {
	e.account.Refresh()
	e.equityCurve = append(e.equityCurve, EquitySample{
		Timestamp:     t,
		Equity:        e.account.Equity,
		Balance:       e.account.Balance,
		UnrealizedPnL: e.account.Equity - e.account.Balance,
	})
	e.lastEquityTime = t
}

func (e *Engine) handleFill(f Fill) {
	e.ordersFilled++
	e.metrics.IncOrdersFilled()
	if e.strategy != nil {
		e.strategy.OnOrderFill(f)
	}
}

func (e *Engine) handleOrderUpdate(o *Order, reason string) {
	if e.strategy != nil {
		e.strategy.OnOrderUpdate(o, reason)
	}
}

// --- Strategy-facing convenience API ---

func (e *Engine) SubmitMarketOrder(symbol string, side Side, amount float64) (*Order, error) {
	e.ordersSubmitted++
	e.metrics.IncOrdersSubmitted()
	return e.matching.SubmitOrder(OrderParams{Symbol: symbol, Side: side, Kind: Market, Amount: amount}, e.clock)
}

func (e *Engine) SubmitLimitOrder(symbol string, side Side, price, amount float64, postOnly, reduceOnly bool) (*Order, error) {
	e.ordersSubmitted++
	e.metrics.IncOrdersSubmitted()
	return e.matching.SubmitOrder(OrderParams{
		Symbol: symbol, Side: side, Kind: Limit, LimitPrice: price, Amount: amount,
		PostOnly: postOnly, ReduceOnly: reduceOnly,
	}, e.clock)
}

func (e *Engine) CancelOrder(id uint64) bool           { return e.matching.CancelOrder(id, e.clock) }
func (e *Engine) CancelAll(symbol *string) int         { return e.matching.CancelAll(symbol, e.clock) }
func (e *Engine) ActiveOrders(symbol *string) []*Order { return e.matching.ActiveOrders(symbol) }

// CloseAllPositions submits reduce-only market orders to flatten every
// open position.
func (e *Engine) CloseAllPositions() {
	for _, sym := range e.account.symbolOrder {
		pos := e.account.positions[sym]
		if pos.Side == Flat {
			continue
		}
		side := Sell
		if pos.Side == Short {
			side = Buy
		}
		e.matching.SubmitOrder(OrderParams{
			Symbol: sym, Side: side, Kind: Market, Amount: pos.Size, ReduceOnly: true,
		}, e.clock)
	}
}

func (e *Engine) AccountSnapshot() AccountSnapshot { e.account.Refresh(); return e.account.Snapshot() }
func (e *Engine) Position(symbol string) Position  { return e.account.PositionSnapshot(symbol) }
func (e *Engine) Clock() int64                     { return e.clock }

func (e *Engine) TopOfBook(symbol string) (bid, ask float64) {
	b := e.matching.Book(symbol)
	return b.BestBid(), b.BestAsk()
}

// Reset clears all mutable run state so the engine can be reused for a
// fresh run with the same configuration and strategy.
func (e *Engine) Reset() {
	e.account.Reset()
	e.matching = NewMatchingEngine(e.account, e.cfg)
	e.matching.onFill = e.handleFill
	e.matching.onOrderUpdate = e.handleOrderUpdate
	e.events = nil
	e.clock = 0
	e.fundingRates = make(map[string]float64)
	e.lastFundingTime = 0
	e.lastEquityTime = 0
	e.equityCurve = nil
	e.eventsProcessed = 0
	e.ordersSubmitted = 0
	e.ordersFilled = 0
}
