package backtest

import "math"

// EquitySample is appended at a configurable cadence (default hourly)
// and always at the end of a run, even if the run is shorter than the
// sampling interval.
type EquitySample struct {
	Timestamp     int64
	Equity        float64
	Balance       float64
	UnrealizedPnL float64
}

// Result is returned by Run and passed to the strategy's OnEnd hook.
type Result struct {
	StartTime, EndTime int64
	DurationMs         int64

	InitialCapital float64
	FinalEquity    float64
	FinalBalance   float64
	TotalReturn    float64
	TotalReturnPct float64

	RealizedPnL      float64
	UnrealizedPnL    float64
	TotalFees        float64
	TotalFundingFees float64

	TotalTrades        int
	WinningTrades      int
	LosingTrades       int
	WinRate            float64
	AverageWin         float64
	AverageLoss        float64
	ProfitFactor       float64
	AverageTradeReturn float64

	MaxDrawdown    float64
	MaxDrawdownPct float64
	Sharpe         float64
	Sortino        float64
	Calmar         float64

	EventsProcessed  int
	OrdersSubmitted  int
	OrdersFilled     int
	LiquidationCount int

	EquityCurve []EquitySample
	TradeLedger []Fill
	Positions   map[string]Position
}

// annualizationFactor assumes hourly equity sampling, per the
// configuration's default cadence: sqrt(365 * 24 samples/year).
var annualizationFactor = math.Sqrt(365 * 24)

func computeResult(cfg Config, acc *Account, curve []EquitySample, trades []Fill,
	eventsProcessed, ordersSubmitted, ordersFilled int,
	startTs, endTs int64, duration int64) *Result {

	res := &Result{
		StartTime:        startTs,
		EndTime:          endTs,
		DurationMs:       duration,
		InitialCapital:   acc.InitialCapital,
		FinalEquity:      acc.Equity,
		FinalBalance:     acc.Balance,
		RealizedPnL:      acc.RealizedPnL,
		TotalFees:        acc.TotalFees,
		TotalFundingFees: acc.TotalFundingFees,
		EventsProcessed:  eventsProcessed,
		OrdersSubmitted:  ordersSubmitted,
		OrdersFilled:     ordersFilled,
		LiquidationCount: acc.LiquidationCount,
		EquityCurve:      curve,
		TradeLedger:      trades,
		Positions:        make(map[string]Position, len(acc.symbolOrder)),
	}

	for _, sym := range acc.symbolOrder {
		p := acc.positions[sym]
		res.Positions[sym] = *p
		res.UnrealizedPnL += p.UnrealizedPnL
	}

	if acc.InitialCapital != 0 {
		res.TotalReturn = (res.FinalEquity - acc.InitialCapital) / acc.InitialCapital
		res.TotalReturnPct = res.TotalReturn * 100
	}

	applyRiskMetrics(res, curve)
	applyTradeMetrics(res, trades)

	return res
}

func applyRiskMetrics(res *Result, curve []EquitySample) {
	if len(curve) == 0 {
		return
	}

	peak := curve[0].Equity
	maxDD := 0.0
	returns := make([]float64, 0, len(curve)-1)
	for i, s := range curve {
		if s.Equity > peak {
			peak = s.Equity
		}
		if peak > 0 {
			if dd := (peak - s.Equity) / peak; dd > maxDD {
				maxDD = dd
			}
		}
		if i > 0 && curve[i-1].Equity != 0 {
			returns = append(returns, (s.Equity-curve[i-1].Equity)/curve[i-1].Equity)
		}
	}
	res.MaxDrawdown = maxDD
	res.MaxDrawdownPct = maxDD * 100

	mean, stdev := meanStdev(returns)
	if stdev > 0 {
		res.Sharpe = mean / stdev * annualizationFactor
	}

	negReturns := make([]float64, 0, len(returns))
	for _, r := range returns {
		if r < 0 {
			negReturns = append(negReturns, r)
		}
	}
	_, negStdev := meanStdev(negReturns)
	if negStdev > 0 {
		res.Sortino = mean / negStdev * annualizationFactor
	}

	if maxDD > 0 {
		res.Calmar = res.TotalReturn / maxDD
	}
}

func applyTradeMetrics(res *Result, trades []Fill) {
	var wins, losses []float64
	for _, f := range trades {
		switch {
		case f.RealizedPnL > 0:
			wins = append(wins, f.RealizedPnL)
		case f.RealizedPnL < 0:
			losses = append(losses, f.RealizedPnL)
		}
	}

	res.WinningTrades = len(wins)
	res.LosingTrades = len(losses)
	res.TotalTrades = len(wins) + len(losses)
	if res.TotalTrades > 0 {
		res.WinRate = float64(len(wins)) / float64(res.TotalTrades)
	}

	sumWin, sumLoss := sum(wins), sum(losses)
	if len(wins) > 0 {
		res.AverageWin = sumWin / float64(len(wins))
	}
	if len(losses) > 0 {
		res.AverageLoss = sumLoss / float64(len(losses))
	}

	switch {
	case len(losses) == 0 && sumWin > 0:
		res.ProfitFactor = math.Inf(1)
	case sumWin == 0 && len(losses) == 0:
		res.ProfitFactor = 0
	default:
		res.ProfitFactor = sumWin / math.Abs(sumLoss)
	}

	if res.TotalTrades > 0 {
		res.AverageTradeReturn = (sumWin + sumLoss) / float64(res.TotalTrades)
	}
}

func sum(xs []float64) float64 {
	var total float64
	for _, x := range xs {
		total += x
	}
	return total
}

func meanStdev(xs []float64) (mean, stdev float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	mean = sum(xs) / float64(len(xs))
	var variance float64
	for _, x := range xs {
		d := x - mean
		variance += d * d
	}
	variance /= float64(len(xs))
	return mean, math.Sqrt(variance)
}
