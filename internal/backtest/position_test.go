package backtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.MaintenanceMarginRate = 0.004
	return cfg
}

func TestPositionOpenAndAverage(t *testing.T) {
	p := newPosition("BTC-PERP", 10)
	cfg := testConfig()

	realized := p.Update(Buy, 1, 100, cfg)
	assert.Zero(t, realized)
	assert.Equal(t, Long, p.Side)
	assert.InDelta(t, 100, p.Entry, 1e-9)

	realized = p.Update(Buy, 1, 110, cfg)
	assert.Zero(t, realized)
	assert.InDelta(t, 105, p.Entry, 1e-9)
	assert.InDelta(t, 2, p.Size, 1e-9)
}

func TestPositionPartialClose(t *testing.T) {
	p := newPosition("BTC-PERP", 10)
	cfg := testConfig()
	p.Update(Buy, 2, 100, cfg)

	realized := p.Update(Sell, 1, 110, cfg)
	assert.InDelta(t, 10, realized, 1e-9)
	assert.Equal(t, Long, p.Side)
	assert.InDelta(t, 1, p.Size, 1e-9)
	assert.InDelta(t, 100, p.Entry, 1e-9)
}

func TestPositionFullCloseToFlat(t *testing.T) {
	p := newPosition("BTC-PERP", 10)
	cfg := testConfig()
	p.Update(Buy, 2, 100, cfg)

	realized := p.Update(Sell, 2, 90, cfg)
	assert.InDelta(t, -20, realized, 1e-9)
	assert.Equal(t, Flat, p.Side)
	assert.Zero(t, p.Size)
}

func TestPositionCloseAndReverse(t *testing.T) {
	p := newPosition("BTC-PERP", 10)
	cfg := testConfig()
	p.Update(Buy, 2, 100, cfg)

	realized := p.Update(Sell, 3, 90, cfg)
	assert.InDelta(t, -20, realized, 1e-9)
	assert.Equal(t, Short, p.Side)
	assert.InDelta(t, 1, p.Size, 1e-9)
	assert.InDelta(t, 90, p.Entry, 1e-9)
}

func TestPositionLiquidationPriceLong(t *testing.T) {
	p := newPosition("BTC-PERP", 100)
	cfg := testConfig()
	p.Update(Buy, 1, 100, cfg)
	p.UpdateMark(100, cfg)

	expected := 100 * (1 - 1.0/100 + cfg.MaintenanceMarginRate)
	assert.InDelta(t, expected, p.LiquidationPrice, 1e-9)
	assert.False(t, p.ShouldLiquidate(expected+0.01))
	assert.True(t, p.ShouldLiquidate(expected-0.01))
}

func TestPositionFundingFlatPaysNothing(t *testing.T) {
	p := newPosition("BTC-PERP", 10)
	assert.Zero(t, p.ApplyFunding(0.001))
}

func TestPositionFundingLongPays(t *testing.T) {
	p := newPosition("BTC-PERP", 10)
	cfg := testConfig()
	p.Update(Buy, 1, 100, cfg)
	p.UpdateMark(100, cfg)

	fee := p.ApplyFunding(0.0001)
	assert.InDelta(t, 100*0.0001, fee, 1e-9)
	assert.InDelta(t, fee, p.FundingFee, 1e-9)
}
