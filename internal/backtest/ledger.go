package backtest

import "github.com/shopspring/decimal"

// ledger accumulates the account's cumulative money columns (fees,
// funding, realized PnL) in decimal, so a long-running backtest's running
// totals don't pick up float drift across thousands of additions. The
// hot-path matching arithmetic (VWAP, slippage, margin, mark-to-market)
// stays plain float64 per the component design's numeric semantics —
// decimal is confined to these cumulative report columns.
type ledger struct {
	fees     decimal.Decimal
	funding  decimal.Decimal
	realized decimal.Decimal
}

func newLedger() *ledger { return &ledger{} }

func (l *ledger) addFee(f float64)      { l.fees = l.fees.Add(decimal.NewFromFloat(f)) }
func (l *ledger) addFunding(f float64)  { l.funding = l.funding.Add(decimal.NewFromFloat(f)) }
func (l *ledger) addRealized(f float64) { l.realized = l.realized.Add(decimal.NewFromFloat(f)) }

func (l *ledger) totalFees() float64 {
	v, _ := l.fees.Float64()
	return v
}

func (l *ledger) totalFunding() float64 {
	v, _ := l.funding.Float64()
	return v
}

func (l *ledger) totalRealized() float64 {
	v, _ := l.realized.Float64()
	return v
}

func (l *ledger) reset() { *l = ledger{} }
