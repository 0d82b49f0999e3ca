// Command replay connects to a websocket fixture emitting recorded
// market data frames and prints each tick as it arrives. It exists to
// exercise internal/marketdata's live ingestion path independently of
// the deterministic backtest core, which never reads from a socket.
package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"github.com/saiputravu/perpbacktest/internal/marketdata"

	"github.com/rs/zerolog/log"
)

func main() {
	url := flag.String("url", "ws://localhost:8080/replay", "websocket URL to stream ticks from")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := marketdata.NewStreamClient(*url)
	err := client.Run(ctx, func(t marketdata.StreamTick) {
		log.Info().
			Str("type", t.Type).
			Str("symbol", t.Symbol).
			Int64("ts", t.TimestampMs).
			Float64("price", t.Price).
			Msg("tick")
	})
	if err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("replay stream ended")
	}
}
