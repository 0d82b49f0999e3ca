package backtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingStrategy struct {
	BaseStrategy
	fills  []Fill
	result *Result
	inited bool
}

func (s *recordingStrategy) OnInit(e *Engine)   { s.inited = true }
func (s *recordingStrategy) OnOrderFill(f Fill) { s.fills = append(s.fills, f) }
func (s *recordingStrategy) OnEnd(r *Result)    { s.result = r }

func TestEngineRunRejectsWithoutStrategy(t *testing.T) {
	e := NewEngine(DefaultConfig())
	e.LoadEvents(Event{Kind: EventTrade, Timestamp: 1, Symbol: "BTC-PERP", Trade: TradeEvent{Price: 100, Amount: 1, Side: Buy}})
	_, err := e.Run()
	assert.ErrorIs(t, err, ErrNoStrategy)
}

func TestEngineRunRejectsWithoutEvents(t *testing.T) {
	e := NewEngine(DefaultConfig())
	e.SetStrategy(&recordingStrategy{})
	_, err := e.Run()
	assert.ErrorIs(t, err, ErrNoEvents)
}

func TestEngineRunProducesFinalEquitySample(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InitialCapital = 10_000
	e := NewEngine(cfg)
	strat := &recordingStrategy{}
	e.SetStrategy(strat)

	e.LoadEvents(
		Event{Kind: EventDepth, Timestamp: 1, Symbol: "BTC-PERP", Depth: DepthEvent{
			Bids: []PriceLevel{{Price: 99, Qty: 10}},
			Asks: []PriceLevel{{Price: 101, Qty: 10}},
		}},
		Event{Kind: EventTrade, Timestamp: 2, Symbol: "BTC-PERP", Trade: TradeEvent{Price: 100, Amount: 1, Side: Buy}},
	)

	result, err := e.Run()
	require.NoError(t, err)
	require.True(t, strat.inited)
	require.NotNil(t, result)
	assert.Equal(t, 10_000.0, result.InitialCapital)
	assert.NotEmpty(t, result.EquityCurve)
	assert.Equal(t, 2, result.EventsProcessed)
	assert.Same(t, result, strat.result)
}

type submittingStrategy struct {
	recordingStrategy
	engine    *Engine
	submitted bool
}

func (s *submittingStrategy) OnDepth(v DepthView) {
	if s.submitted {
		return
	}
	s.submitted = true
	_, _ = s.engine.SubmitMarketOrder(v.Symbol, Buy, 1)
}

func TestEngineSubmitAndFillDispatchesCallback(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InitialCapital = 10_000
	e := NewEngine(cfg)
	strat := &submittingStrategy{engine: e}
	e.SetStrategy(strat)

	e.LoadEvents(Event{Kind: EventDepth, Timestamp: 1, Symbol: "BTC-PERP", Depth: DepthEvent{
		Bids: []PriceLevel{{Price: 99, Qty: 10}},
		Asks: []PriceLevel{{Price: 101, Qty: 10}},
	}})

	_, err := e.Run()
	require.NoError(t, err)
	require.Len(t, strat.fills, 1)
	assert.InDelta(t, 101, strat.fills[0].Price, 1e-9)
}

func TestEngineFundingSettlesOnIntervalNotOnArrival(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InitialCapital = 10_000
	e := NewEngine(cfg)
	strat := &submittingStrategy{engine: e}
	e.SetStrategy(strat)

	interval := cfg.FundingIntervalMs
	e.LoadEvents(
		Event{Kind: EventDepth, Timestamp: 0, Symbol: "BTC-PERP", Depth: DepthEvent{
			Bids: []PriceLevel{{Price: 99, Qty: 10}},
			Asks: []PriceLevel{{Price: 100, Qty: 10}},
		}},
		Event{Kind: EventTrade, Timestamp: 1, Symbol: "BTC-PERP", Trade: TradeEvent{Price: 100, Amount: 0, Side: Buy}},
		// Arrives before the interval elapses: only primes the rate
		// cache, settles nothing yet (the check at this very event uses
		// the still-empty cache).
		Event{Kind: EventFunding, Timestamp: 2, Symbol: "BTC-PERP", Funding: FundingEvent{Rate: 0.0001}},
		// Exactly at the interval boundary: settlement fires using the
		// cached rate and the mark established at t=1.
		Event{Kind: EventTrade, Timestamp: interval, Symbol: "BTC-PERP", Trade: TradeEvent{Price: 100, Amount: 0, Side: Buy}},
	)

	result, err := e.Run()
	require.NoError(t, err)
	require.NotNil(t, result)

	pos := e.Position("BTC-PERP")
	assert.InDelta(t, 1, pos.Size, 1e-9)
	assert.InDelta(t, 0.01, pos.FundingFee, 1e-9) // notional(100) * rate(0.0001)
	assert.InDelta(t, 0.01, result.TotalFundingFees, 1e-9)
}

func TestEngineLiquidationOnAdverseMarkPrice(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InitialCapital = 1000
	cfg.Leverage = 100
	cfg.MaintenanceMarginRate = 0.004
	e := NewEngine(cfg)
	strat := &submittingStrategy{engine: e}
	e.SetStrategy(strat)

	e.LoadEvents(
		Event{Kind: EventDepth, Timestamp: 1, Symbol: "BTC-PERP", Depth: DepthEvent{
			Bids: []PriceLevel{{Price: 99, Qty: 10}},
			Asks: []PriceLevel{{Price: 100, Qty: 10}},
		}},
		// Moves the mark to 99.2, below the 99.4 liquidation price. The
		// liquidation check runs before an event's own price update, so the
		// crossing is acted on at the next event.
		Event{Kind: EventTrade, Timestamp: 2, Symbol: "BTC-PERP", Trade: TradeEvent{Price: 99.2, Amount: 0, Side: Sell}},
		Event{Kind: EventTrade, Timestamp: 3, Symbol: "BTC-PERP", Trade: TradeEvent{Price: 99.2, Amount: 0, Side: Sell}},
	)

	result, err := e.Run()
	require.NoError(t, err)
	assert.Equal(t, 1, result.LiquidationCount)
	assert.Equal(t, Flat, e.Position("BTC-PERP").Side)
}
