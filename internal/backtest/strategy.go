package backtest

// TradeView is the read-only projection of a trade print handed to
// OnTrade.
type TradeView struct {
	Symbol    string
	Price     float64
	Amount    float64
	Side      Side
	Timestamp int64
}

// DepthView is the read-only projection of a depth snapshot handed to
// OnDepth.
type DepthView struct {
	Symbol    string
	Bids      []PriceLevel
	Asks      []PriceLevel
	Timestamp int64
}

// FundingView is the read-only projection of a funding print handed to
// OnFunding.
type FundingView struct {
	Symbol    string
	Rate      float64
	Timestamp int64
}

// CandleView is the read-only projection of a closed candle handed to
// OnKline.
type CandleView struct {
	Symbol                         string
	Open, High, Low, Close, Volume float64
	Timestamp                      int64
}

// Strategy is the callback contract a user implements to react to
// market data and order lifecycle events. Embed BaseStrategy to pick up
// no-op defaults for hooks that aren't relevant.
type Strategy interface {
	OnInit(e *Engine)
	OnTrade(v TradeView)
	OnDepth(v DepthView)
	OnFunding(v FundingView)
	OnKline(v CandleView)
	OnOrderFill(f Fill)
	OnOrderUpdate(o *Order, reason string)
	OnEnd(r *Result)
}

// BaseStrategy implements Strategy with no-op bodies, so a concrete
// strategy only needs to override the hooks it cares about.
type BaseStrategy struct{}

func (BaseStrategy) OnInit(e *Engine) {}
func (BaseStrategy) OnTrade(v TradeView) {}
func (BaseStrategy) OnDepth(v DepthView) {}
func (BaseStrategy) OnFunding(v FundingView) {}
func (BaseStrategy) OnKline(v CandleView) {}
func (BaseStrategy) OnOrderFill(f Fill) {}
func (BaseStrategy) OnOrderUpdate(o *Order, reason string) {}
func (BaseStrategy) OnEnd(r *Result) {}
