package backtest

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeResultReturnsAndDrawdown(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InitialCapital = 1000
	acc := NewAccount(cfg)
	acc.Balance = 1100
	acc.Refresh()

	curve := []EquitySample{
		{Timestamp: 1, Equity: 1000},
		{Timestamp: 2, Equity: 1200},
		{Timestamp: 3, Equity: 900},
		{Timestamp: 4, Equity: 1100},
	}

	res := computeResult(cfg, acc, curve, nil, 4, 0, 0, 1, 4, 3)

	assert.InDelta(t, 0.1, res.TotalReturn, 1e-9)
	assert.InDelta(t, 0.25, res.MaxDrawdown, 1e-9) // (1200-900)/1200
}

func TestComputeResultTradeMetrics(t *testing.T) {
	cfg := DefaultConfig()
	acc := NewAccount(cfg)
	acc.Refresh()

	trades := []Fill{
		{RealizedPnL: 10},
		{RealizedPnL: -5},
		{RealizedPnL: 20},
		{RealizedPnL: -5},
	}

	res := computeResult(cfg, acc, nil, trades, 0, 0, 0, 0, 0, 0)

	assert.Equal(t, 4, res.TotalTrades)
	assert.Equal(t, 2, res.WinningTrades)
	assert.Equal(t, 2, res.LosingTrades)
	assert.InDelta(t, 0.5, res.WinRate, 1e-9)
	assert.InDelta(t, 15, res.AverageWin, 1e-9)
	assert.InDelta(t, -5, res.AverageLoss, 1e-9)
	assert.InDelta(t, 3.0, res.ProfitFactor, 1e-9) // 30 / 10
}

func TestComputeResultNoTradesIsZeroValued(t *testing.T) {
	cfg := DefaultConfig()
	acc := NewAccount(cfg)
	acc.Refresh()

	res := computeResult(cfg, acc, nil, nil, 0, 0, 0, 0, 0, 0)
	assert.Zero(t, res.TotalTrades)
	assert.Zero(t, res.WinRate)
	assert.Zero(t, res.ProfitFactor)
}

func TestComputeResultAllWinsIsInfiniteProfitFactor(t *testing.T) {
	cfg := DefaultConfig()
	acc := NewAccount(cfg)
	acc.Refresh()

	trades := []Fill{{RealizedPnL: 10}, {RealizedPnL: 5}}
	res := computeResult(cfg, acc, nil, trades, 0, 0, 0, 0, 0, 0)
	assert.True(t, math.IsInf(res.ProfitFactor, 1))
}
