package backtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleBook() *OrderBook {
	b := NewOrderBook("BTC-PERP")
	b.Update(
		[]PriceLevel{{Price: 100, Qty: 1}, {Price: 99, Qty: 2}, {Price: 98, Qty: 5}},
		[]PriceLevel{{Price: 101, Qty: 1}, {Price: 102, Qty: 2}, {Price: 103, Qty: 5}},
		1,
	)
	return b
}

func TestOrderBookBestBidAsk(t *testing.T) {
	b := sampleBook()
	assert.Equal(t, 100.0, b.BestBid())
	assert.Equal(t, 101.0, b.BestAsk())
	assert.InDelta(t, 100.5, b.Mid(), 1e-9)
}

func TestSimulateMarketConsumesMultipleLevels(t *testing.T) {
	b := sampleBook()
	result := b.SimulateMarket(Buy, 2.5)
	require.True(t, result.Success)
	assert.InDelta(t, 2.5, result.Filled, 1e-9)
	assert.Len(t, result.Fills, 2)
	assert.InDelta(t, 101.0, result.Fills[0].Price, 1e-9)
	assert.InDelta(t, 1.0, result.Fills[0].Qty, 1e-9)
	assert.InDelta(t, 102.0, result.Fills[1].Price, 1e-9)
	assert.InDelta(t, 1.5, result.Fills[1].Qty, 1e-9)

	expectedVwap := (101.0*1 + 102.0*1.5) / 2.5
	assert.InDelta(t, expectedVwap, result.AvgPrice, 1e-9)
}

func TestSimulateMarketInsufficientLiquidity(t *testing.T) {
	b := sampleBook()
	result := b.SimulateMarket(Buy, 100)
	assert.False(t, result.Success)
	assert.Equal(t, "insufficient liquidity", result.Reason)
}

func TestSimulateMarketEmptyBook(t *testing.T) {
	b := NewOrderBook("BTC-PERP")
	result := b.SimulateMarket(Buy, 1)
	assert.False(t, result.Success)
	assert.Equal(t, "empty order book", result.Reason)
}

func TestCheckLimitDoesNotCross(t *testing.T) {
	b := sampleBook()
	result := b.CheckLimit(Buy, 100.5, 1)
	assert.False(t, result.Success)
	assert.Equal(t, "price not reached", result.Reason)
}

func TestCheckLimitCrosses(t *testing.T) {
	b := sampleBook()
	result := b.CheckLimit(Buy, 101.5, 1)
	assert.True(t, result.Success)
	assert.InDelta(t, 1.0, result.Filled, 1e-9)
}
