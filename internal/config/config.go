// Package config loads CLI-facing settings for cmd/backtest. The core
// backtest package never imports viper — it takes a plain
// backtest.Config value, built here from file and environment input.
package config

import (
	"fmt"
	"strings"

	"github.com/saiputravu/perpbacktest/internal/backtest"
	"github.com/spf13/viper"
)

// Settings is the on-disk/env shape for a backtest run: the simulation
// config plus the CLI's own data source and logging options.
type Settings struct {
	Backtest backtest.Config

	DataDir     string
	Symbol      string
	LogLevel    string
	MetricsAddr string
}

func defaults(v *viper.Viper) {
	dc := backtest.DefaultConfig()
	v.SetDefault("backtest.initial_capital", dc.InitialCapital)
	v.SetDefault("backtest.leverage", dc.Leverage)
	v.SetDefault("backtest.max_leverage", dc.MaxLeverage)
	v.SetDefault("backtest.maker_fee", dc.MakerFee)
	v.SetDefault("backtest.taker_fee", dc.TakerFee)
	v.SetDefault("backtest.maintenance_margin_rate", dc.MaintenanceMarginRate)
	v.SetDefault("backtest.liquidation_fee_rate", dc.LiquidationFeeRate)
	v.SetDefault("backtest.slippage_model", dc.SlippageModel)
	v.SetDefault("backtest.fixed_slippage", dc.FixedSlippage)
	v.SetDefault("backtest.funding_interval_ms", dc.FundingIntervalMs)
	v.SetDefault("backtest.event_batch_size", dc.EventBatchSize)
	v.SetDefault("backtest.preallocate_orders", dc.PreAllocateOrders)
	v.SetDefault("backtest.equity_sampling_interval_ms", dc.EquitySamplingIntervalMs)

	v.SetDefault("data_dir", "./data")
	v.SetDefault("symbol", "BTC-PERP")
	v.SetDefault("log_level", "info")
	v.SetDefault("metrics_addr", ":9090")
}

// Load reads settings from configPath (if non-empty), then environment
// variables prefixed PERPBACKTEST_, falling back to package defaults.
func Load(configPath string) (*Settings, error) {
	v := viper.New()
	defaults(v)

	v.SetEnvPrefix("perpbacktest")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", configPath, err)
		}
	}

	s := &Settings{
		Backtest: backtest.Config{
			InitialCapital:           v.GetFloat64("backtest.initial_capital"),
			Leverage:                 v.GetFloat64("backtest.leverage"),
			MaxLeverage:              v.GetFloat64("backtest.max_leverage"),
			MakerFee:                 v.GetFloat64("backtest.maker_fee"),
			TakerFee:                 v.GetFloat64("backtest.taker_fee"),
			MaintenanceMarginRate:    v.GetFloat64("backtest.maintenance_margin_rate"),
			LiquidationFeeRate:       v.GetFloat64("backtest.liquidation_fee_rate"),
			SlippageModel:            v.GetString("backtest.slippage_model"),
			FixedSlippage:            v.GetFloat64("backtest.fixed_slippage"),
			FundingIntervalMs:        v.GetInt64("backtest.funding_interval_ms"),
			EventBatchSize:           v.GetInt("backtest.event_batch_size"),
			PreAllocateOrders:        v.GetInt("backtest.preallocate_orders"),
			EquitySamplingIntervalMs: v.GetInt64("backtest.equity_sampling_interval_ms"),
		},
		DataDir:     v.GetString("data_dir"),
		Symbol:      v.GetString("symbol"),
		LogLevel:    v.GetString("log_level"),
		MetricsAddr: v.GetString("metrics_addr"),
	}

	return s, nil
}
