package backtest

// Config holds the recognized backtest options (§6), with the package
// defaults matching a typical BTC-perpetual venue.
type Config struct {
	InitialCapital float64
	Leverage       float64
	MaxLeverage    float64

	MakerFee float64
	TakerFee float64

	MaintenanceMarginRate float64
	LiquidationFeeRate    float64

	// SlippageModel is "depth" (quantity-weighted across the swept
	// ladder, the default) or "fixed" (a constant fractional slippage
	// applied to the top-of-book price regardless of depth).
	SlippageModel string
	FixedSlippage float64

	FundingIntervalMs        int64
	EventBatchSize           int
	PreAllocateOrders        int
	EquitySamplingIntervalMs int64
}

const (
	SlippageModelDepth = "depth"
	SlippageModelFixed = "fixed"
)

func DefaultConfig() Config {
	return Config{
		InitialCapital:           10_000,
		Leverage:                 10,
		MaxLeverage:              125,
		MakerFee:                 0.0002,
		TakerFee:                 0.0005,
		MaintenanceMarginRate:    0.004,
		LiquidationFeeRate:       0.006,
		SlippageModel:            SlippageModelDepth,
		FixedSlippage:            0.0001,
		FundingIntervalMs:        8 * 3600 * 1000,
		EventBatchSize:           10_000,
		PreAllocateOrders:        100_000,
		EquitySamplingIntervalMs: 3600 * 1000,
	}
}
