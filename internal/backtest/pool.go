package backtest

// pool is a small slab of reusable fixed-shape records, generalized over
// the record type. Released records must not be retained by anyone; the
// only contract is release-before-reacquire (§4.1 of the design).
type pool[T any] struct {
	free  []*T
	reset func(*T)
	// outstanding tracks which records are currently acquired, so a
	// double-release — a programmer error, not a recoverable condition —
	// is caught instead of silently corrupting the free list.
	outstanding map[*T]bool
}

func newPool[T any](capacity int, reset func(*T)) *pool[T] {
	return &pool[T]{
		free:        make([]*T, 0, capacity),
		reset:       reset,
		outstanding: make(map[*T]bool, capacity),
	}
}

// acquire returns a zeroed record, constructing a new one if the pool is
// empty.
func (p *pool[T]) acquire() *T {
	var r *T
	if n := len(p.free); n > 0 {
		r = p.free[n-1]
		p.free = p.free[:n-1]
	} else {
		r = new(T)
	}
	p.outstanding[r] = true
	return r
}

// release resets all fields to their canonical zero value and pushes the
// record back onto the free list. Releasing a record twice without an
// intervening acquire is the released-order-reused invariant violation
// (§7) and panics rather than corrupting the free list.
func (p *pool[T]) release(r *T) {
	if !p.outstanding[r] {
		panic(ErrReleasedOrderReused)
	}
	delete(p.outstanding, r)
	p.reset(r)
	p.free = append(p.free, r)
}
