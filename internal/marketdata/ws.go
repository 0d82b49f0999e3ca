package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// TickHandler receives one decoded message from a replay feed.
type TickHandler func(StreamTick)

// StreamTick is the wire shape for a single live/replayed market data
// message, decoded from JSON frames on the websocket connection.
type StreamTick struct {
	Type        string       `json:"type"` // "trade", "depth", "funding", "candle"
	Symbol      string       `json:"symbol"`
	TimestampMs int64        `json:"ts"`
	Price       float64      `json:"price,omitempty"`
	Amount      float64      `json:"amount,omitempty"`
	Side        string       `json:"side,omitempty"`
	Rate        float64      `json:"rate,omitempty"`
	Bids        [][2]float64 `json:"bids,omitempty"`
	Asks        [][2]float64 `json:"asks,omitempty"`
}

// StreamClient feeds cmd/replay from a websocket endpoint that emits
// StreamTick frames — e.g. a recorded session replayed by a separate
// fixture server. internal/backtest never imports this: it is strictly
// an alternative ingestion path for live-replay demos, not part of the
// deterministic core.
type StreamClient struct {
	url         string
	dialTimeout time.Duration
}

func NewStreamClient(url string) *StreamClient {
	return &StreamClient{url: url, dialTimeout: 5 * time.Second}
}

// Run connects and invokes handler for every decoded tick until ctx is
// canceled or the connection is closed by the peer.
func (c *StreamClient) Run(ctx context.Context, handler TickHandler) error {
	dialer := websocket.Dialer{HandshakeTimeout: c.dialTimeout}
	conn, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", c.url, err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		var tick StreamTick
		if err := conn.ReadJSON(&tick); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("reading stream frame: %w", err)
		}
		if !isKnownTickType(tick.Type) {
			logDrop("unrecognized type", tick)
			continue
		}
		handler(tick)
	}
}

func isKnownTickType(t string) bool {
	switch t {
	case "trade", "depth", "funding", "candle":
		return true
	default:
		return false
	}
}

// EncodeTick is used by a recording/fixture server to serialize a tick
// for replay; kept alongside the client since both sides of a replay
// fixture share this wire shape.
func EncodeTick(t StreamTick) ([]byte, error) {
	b, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("encoding stream tick: %w", err)
	}
	return b, nil
}

func logDrop(reason string, tick StreamTick) {
	log.Warn().Str("reason", reason).Str("type", tick.Type).Str("symbol", tick.Symbol).Msg("dropped stream tick")
}
