package backtest

// Position is one per-symbol leveraged position. size = 0 iff side =
// Flat. Liquidation prices follow:
//
//	long:  entry * (1 - 1/leverage + MMR)
//	short: entry * (1 + 1/leverage - MMR)
type Position struct {
	Symbol            string
	Side              PositionSide
	Size              float64
	Entry             float64
	Mark              float64
	Leverage          float64
	UnrealizedPnL     float64
	RealizedPnL       float64
	FundingFee        float64 // cumulative, signed: positive = paid
	TradingFee        float64
	Notional          float64
	InitialMargin     float64
	MaintenanceMargin float64
	LiquidationPrice  float64
}

func newPosition(symbol string, leverage float64) *Position {
	return &Position{Symbol: symbol, Leverage: leverage}
}

// Update applies a fill of qty at price on the given side and returns the
// realized PnL, if any. A fill in the opposite direction realizes PnL on
// the closed quantity and leaves any excess as the new entry.
func (p *Position) Update(side Side, qty, price float64, cfg Config) float64 {
	var realized float64
	fillSide := side.positionSide()

	switch {
	case p.Side == Flat:
		p.Side = fillSide
		p.Size = qty
		p.Entry = price
		// A position that has never been marked takes its opening fill
		// price as mark, so the liquidation check never sees a mark of 0.
		if p.Mark == 0 {
			p.Mark = price
		}

	case p.Side == fillSide:
		p.Entry = (p.Entry*p.Size + price*qty) / (p.Size + qty)
		p.Size += qty

	case qty < p.Size-epsilon:
		realized = (price - p.Entry) * qty * float64(p.Side)
		p.Size -= qty

	case qty <= p.Size+epsilon:
		realized = (price - p.Entry) * p.Size * float64(p.Side)
		p.Side = Flat
		p.Size = 0
		p.Entry = 0

	default: // qty > p.Size: close the existing position, open the reverse
		realized = (price - p.Entry) * p.Size * float64(p.Side)
		remainder := qty - p.Size
		p.Side = fillSide
		p.Size = remainder
		p.Entry = price
	}

	p.recomputeMargin(cfg)
	return realized
}

// UpdateMark sets the mark price and recomputes unrealized PnL, notional,
// and margin figures from it.
func (p *Position) UpdateMark(price float64, cfg Config) {
	p.Mark = price
	if p.Side != Flat {
		p.UnrealizedPnL = (price - p.Entry) * p.Size * float64(p.Side)
	} else {
		p.UnrealizedPnL = 0
	}
	p.recomputeMargin(cfg)
}

// ApplyFunding charges (or credits) the funding fee for the current
// interval and returns it; flat positions pay nothing.
func (p *Position) ApplyFunding(rate float64) float64 {
	if p.Side == Flat {
		return 0
	}
	fee := p.Notional * rate * float64(p.Side)
	p.FundingFee += fee
	return fee
}

// ShouldLiquidate reports whether mark has crossed the liquidation price.
func (p *Position) ShouldLiquidate(mark float64) bool {
	switch p.Side {
	case Long:
		return mark <= p.LiquidationPrice
	case Short:
		return mark >= p.LiquidationPrice
	default:
		return false
	}
}

// recomputeMargin recomputes initial margin (from entry), maintenance
// margin and notional (from mark), and the liquidation price. Initial
// margin is pinned to entry because that is the commitment made when the
// position was opened; notional shown to the caller tracks mark.
func (p *Position) recomputeMargin(cfg Config) {
	if p.Side == Flat {
		p.InitialMargin = 0
		p.MaintenanceMargin = 0
		p.LiquidationPrice = 0
		p.Notional = 0
		return
	}

	p.InitialMargin = (p.Size * p.Entry) / p.Leverage
	p.Notional = p.Size * p.Mark
	p.MaintenanceMargin = p.Notional * cfg.MaintenanceMarginRate

	switch p.Side {
	case Long:
		p.LiquidationPrice = p.Entry * (1 - 1/p.Leverage + cfg.MaintenanceMarginRate)
	case Short:
		p.LiquidationPrice = p.Entry * (1 + 1/p.Leverage - cfg.MaintenanceMarginRate)
	}
}
