package backtest

// AccountSnapshot is a deep-copy view of account state, safe for a
// strategy to retain.
type AccountSnapshot struct {
	InitialCapital   float64
	Balance          float64
	Equity           float64
	Available        float64
	UsedMargin       float64
	RealizedPnL      float64
	TotalFees        float64
	TotalFundingFees float64
	LiquidationCount int
	Positions        map[string]Position
}

// Account is the multi-symbol portfolio: balance, used margin, equity,
// realized PnL, fee accumulators, and the liquidation counter. It
// exclusively owns the position map.
type Account struct {
	cfg              Config
	InitialCapital   float64
	Balance          float64
	Equity           float64
	Available        float64
	UsedMargin       float64
	RealizedPnL      float64
	TotalFees        float64
	TotalFundingFees float64
	LiquidationCount int

	positions map[string]*Position
	// symbolOrder preserves first-touch order so funding settlement,
	// liquidation checks, and snapshots iterate deterministically
	// instead of over Go's randomized map order.
	symbolOrder []string

	ledger *ledger
}

func NewAccount(cfg Config) *Account {
	a := &Account{
		cfg:            cfg,
		InitialCapital: cfg.InitialCapital,
		Balance:        cfg.InitialCapital,
		Equity:         cfg.InitialCapital,
		Available:      cfg.InitialCapital,
		positions:      make(map[string]*Position),
		ledger:         newLedger(),
	}
	return a
}

// GetOrCreatePosition returns the position for symbol, creating a flat
// one if it doesn't exist yet — queries on an unknown symbol never fail.
func (a *Account) GetOrCreatePosition(symbol string) *Position {
	if p, ok := a.positions[symbol]; ok {
		return p
	}
	p := newPosition(symbol, a.cfg.Leverage)
	a.positions[symbol] = p
	a.symbolOrder = append(a.symbolOrder, symbol)
	return p
}

// Symbols returns the deterministic (first-touch) order in which
// positions were created.
func (a *Account) Symbols() []string { return a.symbolOrder }

func (a *Account) DeductFee(fee float64) {
	a.ledger.addFee(fee)
	a.Balance -= fee
}

func (a *Account) DeductFunding(fee float64) {
	a.ledger.addFunding(fee)
	a.Balance -= fee
}

func (a *Account) AddRealized(pnl float64) {
	a.ledger.addRealized(pnl)
	a.Balance += pnl
}

func (a *Account) HasEnoughMargin(required float64) bool {
	return a.Available >= required
}

// Liquidate forcibly closes a position at mark: the initial margin
// committed to it is forfeited, its current unrealized PnL is realized
// into balance, and a liquidation fee is charged on top.
func (a *Account) Liquidate(p *Position, mark float64) {
	p.UpdateMark(mark, a.cfg)
	fee := p.Notional * a.cfg.LiquidationFeeRate

	a.Balance += p.UnrealizedPnL
	a.Balance -= p.InitialMargin
	a.Balance -= fee
	a.ledger.addFee(fee)

	*p = Position{Symbol: p.Symbol, Leverage: p.Leverage, Mark: mark}
	a.LiquidationCount++
	a.Refresh()
}

// Refresh recomputes the account's aggregate invariants: equity = balance
// + sum(unrealized PnL), available = equity - used margin, used margin =
// sum(initial margin) over non-flat positions.
func (a *Account) Refresh() {
	var unrealized, usedMargin float64
	for _, sym := range a.symbolOrder {
		p := a.positions[sym]
		unrealized += p.UnrealizedPnL
		usedMargin += p.InitialMargin
	}
	a.Equity = a.Balance + unrealized
	a.UsedMargin = usedMargin
	a.Available = a.Equity - usedMargin
	a.RealizedPnL = a.ledger.totalRealized()
	a.TotalFees = a.ledger.totalFees()
	a.TotalFundingFees = a.ledger.totalFunding()
}

// Snapshot returns a deep-copy view of the account, safe to retain.
func (a *Account) Snapshot() AccountSnapshot {
	positions := make(map[string]Position, len(a.positions))
	for _, sym := range a.symbolOrder {
		positions[sym] = *a.positions[sym]
	}
	return AccountSnapshot{
		InitialCapital:   a.InitialCapital,
		Balance:          a.Balance,
		Equity:           a.Equity,
		Available:        a.Available,
		UsedMargin:       a.UsedMargin,
		RealizedPnL:      a.RealizedPnL,
		TotalFees:        a.TotalFees,
		TotalFundingFees: a.TotalFundingFees,
		LiquidationCount: a.LiquidationCount,
		Positions:        positions,
	}
}

// PositionSnapshot returns a value copy of symbol's position, creating an
// empty one first if it has never been touched.
func (a *Account) PositionSnapshot(symbol string) Position {
	return *a.GetOrCreatePosition(symbol)
}

// Reset restores the account to its freshly-capitalized state.
func (a *Account) Reset() {
	a.Balance = a.InitialCapital
	a.Equity = a.InitialCapital
	a.Available = a.InitialCapital
	a.UsedMargin = 0
	a.RealizedPnL = 0
	a.TotalFees = 0
	a.TotalFundingFees = 0
	a.LiquidationCount = 0
	a.positions = make(map[string]*Position)
	a.symbolOrder = nil
	a.ledger.reset()
}
