package backtest

// Order is a pooled, fixed-shape record. filled + remaining = amount
// holds while the order is active; filled > 0 implies avgPrice > 0; once
// filled == amount the order's Status becomes Filled. A resting order
// filled by a later book update is then released back to the pool; an
// order filled at submission is returned to the caller and not released.
type Order struct {
	ID            uint64
	ClientID      string
	Symbol        string
	Side          Side
	Kind          OrderKind
	LimitPrice    float64
	Amount        float64
	Filled        float64
	Remaining     float64
	AvgPrice      float64
	Status        OrderStatus
	PostOnly      bool
	ReduceOnly    bool
	CreatedAt     int64
	UpdatedAt     int64
	Fee           float64
	RealizedPnL   float64
}

// resetOrder restores an Order to its canonical zero value before it is
// returned to the pool, so a reused record carries none of its previous
// occupant's state.
func resetOrder(o *Order) { *o = Order{} }
