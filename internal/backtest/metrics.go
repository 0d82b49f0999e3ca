package backtest

// MetricsSink is the narrow seam through which a host process can
// observe engine activity without the core taking a hard dependency on
// any particular metrics backend. cmd/backtest wires a Prometheus-backed
// implementation; the core only ever calls this interface.
type MetricsSink interface {
	IncEventsProcessed()
	IncOrdersSubmitted()
	IncOrdersFilled()
	IncLiquidation()
}

type noopMetricsSink struct{}

func (noopMetricsSink) IncEventsProcessed() {}
func (noopMetricsSink) IncOrdersSubmitted() {}
func (noopMetricsSink) IncOrdersFilled()    {}
func (noopMetricsSink) IncLiquidation()     {}
