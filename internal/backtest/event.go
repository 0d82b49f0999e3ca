package backtest

import "sort"

type EventKind int8

const (
	EventTrade EventKind = iota
	EventDepth
	EventFunding
	EventCandle
)

type TradeEvent struct {
	Price  float64
	Amount float64
	Side   Side
}

type DepthEvent struct {
	Bids []PriceLevel
	Asks []PriceLevel
}

type FundingEvent struct {
	Rate float64
}

type CandleEvent struct {
	Open, High, Low, Close, Volume float64
}

// Event is a tagged record in the merged, time-sorted input stream. Only
// the field matching Kind is populated.
type Event struct {
	Kind      EventKind
	Timestamp int64
	Symbol    string
	Trade     TradeEvent
	Depth     DepthEvent
	Funding   FundingEvent
	Candle    CandleEvent
}

// Row schemas are the only ingestion contract the core needs — all
// timestamps are millisecond Unix epoch, all numeric fields double-
// precision floats.
type TradeRow struct {
	TimestampMs int64
	Price       float64
	Amount      float64
	Side        int8
}

type DepthRow struct {
	TimestampMs int64
	Bids        [][2]float64 // [price, qty], descending
	Asks        [][2]float64 // [price, qty], ascending
}

type FundingRow struct {
	TimestampMs int64
	Rate        float64
}

type CandleRow struct {
	TimestampMs                    int64
	Open, High, Low, Close, Volume float64
}

func levelsFromPairs(pairs [][2]float64) []PriceLevel {
	if len(pairs) == 0 {
		return nil
	}
	out := make([]PriceLevel, len(pairs))
	for i, p := range pairs {
		out[i] = PriceLevel{Price: p[0], Qty: p[1]}
	}
	return out
}

// sortEvents stable-sorts the merged stream by timestamp — the only
// ordering guarantee the scheduler needs, since dispatch discriminates by
// kind itself.
func sortEvents(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp < events[j].Timestamp
	})
}
