package backtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAccountFeeAndRealizedBookkeeping(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InitialCapital = 1000
	a := NewAccount(cfg)

	a.DeductFee(1.5)
	a.AddRealized(20)
	a.DeductFunding(0.5)
	a.Refresh()

	assert.InDelta(t, 1000-1.5+20-0.5, a.Balance, 1e-9)
	assert.InDelta(t, 20, a.RealizedPnL, 1e-9)
	assert.InDelta(t, 1.5, a.TotalFees, 1e-9)
	assert.InDelta(t, 0.5, a.TotalFundingFees, 1e-9)
}

func TestAccountRefreshInvariants(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InitialCapital = 1000
	cfg.Leverage = 10
	a := NewAccount(cfg)

	pos := a.GetOrCreatePosition("BTC-PERP")
	pos.Update(Buy, 1, 100, cfg)
	pos.UpdateMark(110, cfg)
	a.Refresh()

	assert.InDelta(t, a.Balance+pos.UnrealizedPnL, a.Equity, 1e-9)
	assert.InDelta(t, pos.InitialMargin, a.UsedMargin, 1e-9)
	assert.InDelta(t, a.Equity-a.UsedMargin, a.Available, 1e-9)
}

func TestAccountLiquidationScenario(t *testing.T) {
	// Mirrors the documented worked example: 1000 capital, 100x leverage,
	// 0.4% maintenance margin rate, entry at 100, liquidated at 99.3.
	cfg := DefaultConfig()
	cfg.InitialCapital = 1000
	cfg.Leverage = 100
	cfg.MaintenanceMarginRate = 0.004
	cfg.LiquidationFeeRate = 0.006

	a := NewAccount(cfg)
	pos := a.GetOrCreatePosition("BTC-PERP")
	pos.Update(Buy, 1, 100, cfg)
	pos.UpdateMark(100, cfg)
	a.Refresh()

	balanceBefore := a.Balance
	a.Liquidate(pos, 99.3)

	assert.Equal(t, 1, a.LiquidationCount)
	assert.InDelta(t, balanceBefore-2.2958, a.Balance, 1e-4)
	assert.Equal(t, Flat, pos.Side)
}

func TestAccountResetRestoresInitialCapital(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InitialCapital = 500
	a := NewAccount(cfg)
	a.DeductFee(10)
	a.Reset()

	assert.InDelta(t, 500, a.Balance, 1e-9)
	assert.InDelta(t, 500, a.Equity, 1e-9)
	assert.Zero(t, a.TotalFees)
	assert.Empty(t, a.Symbols())
}
