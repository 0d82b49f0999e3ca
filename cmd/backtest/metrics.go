package main

import "github.com/prometheus/client_golang/prometheus"

// prometheusSink is the concrete backtest.MetricsSink wired only here —
// the core package never depends on Prometheus directly.
type prometheusSink struct {
	eventsProcessed prometheus.Counter
	ordersSubmitted prometheus.Counter
	ordersFilled    prometheus.Counter
	liquidations    prometheus.Counter
}

func newPrometheusSink(reg prometheus.Registerer) *prometheusSink {
	s := &prometheusSink{
		eventsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "perpbacktest_events_processed_total",
			Help: "Total market data events processed by the backtest engine.",
		}),
		ordersSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "perpbacktest_orders_submitted_total",
			Help: "Total orders submitted to the matching engine.",
		}),
		ordersFilled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "perpbacktest_orders_filled_total",
			Help: "Total order fills recorded.",
		}),
		liquidations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "perpbacktest_liquidations_total",
			Help: "Total positions force-closed by liquidation.",
		}),
	}
	reg.MustRegister(s.eventsProcessed, s.ordersSubmitted, s.ordersFilled, s.liquidations)
	return s
}

func (s *prometheusSink) IncEventsProcessed() { s.eventsProcessed.Inc() }
func (s *prometheusSink) IncOrdersSubmitted() { s.ordersSubmitted.Inc() }
func (s *prometheusSink) IncOrdersFilled()    { s.ordersFilled.Inc() }
func (s *prometheusSink) IncLiquidation()     { s.liquidations.Inc() }
