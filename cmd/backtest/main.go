package main

import (
	"flag"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/saiputravu/perpbacktest/internal/backtest"
	"github.com/saiputravu/perpbacktest/internal/config"
	"github.com/saiputravu/perpbacktest/internal/loadpool"
	"github.com/saiputravu/perpbacktest/internal/marketdata"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	dataDir := flag.String("data", "", "override the configured data directory")
	symbol := flag.String("symbol", "", "override the configured symbol")
	symbols := flag.String("symbols", "", "comma-separated symbols to load concurrently, overriding -symbol")
	loaderWorkers := flag.Int("loader-workers", 4, "concurrent symbol loaders when -symbols names more than one")
	serveMetrics := flag.Bool("metrics", false, "serve Prometheus metrics while the run executes")
	flag.Parse()

	settings, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("loading config")
	}
	if *dataDir != "" {
		settings.DataDir = *dataDir
	}
	if *symbol != "" {
		settings.Symbol = *symbol
	}

	level, err := zerolog.ParseLevel(settings.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	symbolList := []string{settings.Symbol}
	if *symbols != "" {
		symbolList = strings.Split(*symbols, ",")
	}

	loader := marketdata.NewLoader(settings.DataDir)
	eng := backtest.NewEngine(settings.Backtest)

	if len(symbolList) == 1 {
		bundle, err := loader.LoadBundle(symbolList[0])
		if err != nil {
			log.Fatal().Err(err).Str("symbol", symbolList[0]).Msg("loading market data")
		}
		loadBundleInto(eng, symbolList[0], bundle)
	} else {
		pool := loadpool.NewWorkerPool(*loaderWorkers, loader.LoadBundle)
		for _, res := range pool.LoadAll(symbolList) {
			if res.Err != nil {
				log.Fatal().Err(res.Err).Str("symbol", res.Symbol).Msg("loading market data")
			}
			loadBundleInto(eng, res.Symbol, res.Data)
		}
	}

	eng.SetStrategy(backtest.BaseStrategy{})

	if *serveMetrics {
		reg := prometheus.NewRegistry()
		eng.SetMetricsSink(newPrometheusSink(reg))

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		go func() {
			log.Info().Str("addr", settings.MetricsAddr).Msg("serving metrics")
			if err := http.ListenAndServe(settings.MetricsAddr, mux); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("metrics server stopped")
			}
		}()
	}

	// runID correlates this invocation's log lines and, when metrics are
	// served, its scrape window — it has no bearing on the deterministic
	// engine state itself.
	runID := uuid.New()
	log.Info().Stringer("run_id", runID).Strs("symbols", symbolList).Msg("starting run")

	result, err := eng.Run()
	if err != nil {
		log.Fatal().Stringer("run_id", runID).Err(err).Msg("run failed")
	}

	log.Info().
		Stringer("run_id", runID).
		Float64("final_equity", result.FinalEquity).
		Float64("total_return_pct", result.TotalReturnPct).
		Float64("max_drawdown_pct", result.MaxDrawdownPct).
		Float64("sharpe", result.Sharpe).
		Int("total_trades", result.TotalTrades).
		Int("liquidations", result.LiquidationCount).
		Msg("run complete")
}

func loadBundleInto(eng *backtest.Engine, symbol string, bundle marketdata.Bundle) {
	eng.LoadTrades(symbol, bundle.Trades)
	eng.LoadDepth(symbol, bundle.Depth)
	if len(bundle.Funding) > 0 {
		eng.LoadFunding(symbol, bundle.Funding)
	}
	if len(bundle.Candles) > 0 {
		eng.LoadCandles(symbol, bundle.Candles)
	}
}
