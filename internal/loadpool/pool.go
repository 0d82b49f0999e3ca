// Package loadpool concurrently loads per-symbol market data for
// multi-symbol backtests, supervised by a tomb so the batch's workers
// wind down cleanly once every symbol has been attempted.
package loadpool

import (
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

const taskChanSize = 100

// LoadFunc loads one symbol's data bundle.
type LoadFunc[T any] func(symbol string) (T, error)

// WorkerPool runs a fixed number of workers draining a task queue. A
// symbol whose loader errors is still reported in its Result rather than
// aborting the rest of the batch.
type WorkerPool[T any] struct {
	n     int
	tasks chan string
	work  LoadFunc[T]
}

func NewWorkerPool[T any](size int, work LoadFunc[T]) *WorkerPool[T] {
	return &WorkerPool[T]{
		n:     size,
		tasks: make(chan string, taskChanSize),
		work:  work,
	}
}

// Result pairs a symbol with its loaded bundle or load error.
type Result[T any] struct {
	Symbol string
	Data   T
	Err    error
}

// LoadAll loads every symbol in symbols concurrently across the pool's
// workers and returns one Result per symbol, in unspecified order. It
// blocks until every symbol has been attempted.
func (p *WorkerPool[T]) LoadAll(symbols []string) []Result[T] {
	t := &tomb.Tomb{}
	results := make(chan Result[T], len(symbols))

	go func() {
		for _, sym := range symbols {
			p.tasks <- sym
		}
		close(p.tasks)
	}()

	n := p.n
	if n > len(symbols) {
		n = len(symbols)
	}
	if n < 1 {
		n = 1
	}

	for i := 0; i < n; i++ {
		t.Go(func() error {
			return p.worker(results)
		})
	}

	go func() {
		t.Wait()
		close(results)
	}()

	out := make([]Result[T], 0, len(symbols))
	for r := range results {
		out = append(out, r)
	}
	return out
}

func (p *WorkerPool[T]) worker(results chan<- Result[T]) error {
	for sym := range p.tasks {
		data, err := p.work(sym)
		if err != nil {
			log.Error().Err(err).Str("symbol", sym).Msg("loader failed")
		}
		results <- Result[T]{Symbol: sym, Data: data, Err: err}
	}
	return nil
}
