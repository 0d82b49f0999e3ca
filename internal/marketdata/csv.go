// Package marketdata loads historical trade, depth, funding, and candle
// records from CSV files into the row schemas internal/backtest
// consumes directly.
package marketdata

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/saiputravu/perpbacktest/internal/backtest"
)

// Loader reads the CSV layouts produced by a typical venue's historical
// data export: one header row, comma-separated, millisecond epoch
// timestamps in the first column.
type Loader struct {
	dir string
}

func NewLoader(dir string) *Loader { return &Loader{dir: dir} }

// Bundle holds every row kind loaded for one symbol.
type Bundle struct {
	Trades  []backtest.TradeRow
	Depth   []backtest.DepthRow
	Funding []backtest.FundingRow
	Candles []backtest.CandleRow
}

// LoadBundle reads all available row kinds for symbol. Missing funding
// or candle files are tolerated (a multi-symbol batch shouldn't fail
// entirely because one symbol lacks optional data); missing trades or
// depth files are not, since a run needs at least one of them.
func (l *Loader) LoadBundle(symbol string) (Bundle, error) {
	var b Bundle
	var err error

	b.Trades, err = l.Trades(symbol)
	if err != nil {
		return b, err
	}
	b.Depth, err = l.Depth(symbol)
	if err != nil {
		return b, err
	}
	b.Funding, _ = l.Funding(symbol)
	b.Candles, _ = l.Candles(symbol)
	return b, nil
}

func (l *Loader) open(name string) (*os.File, *csv.Reader, error) {
	path := l.dir + "/" + name
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening %s: %w", path, err)
	}
	r := csv.NewReader(f)
	r.ReuseRecord = true
	if _, err := r.Read(); err != nil { // discard header
		f.Close()
		return nil, nil, fmt.Errorf("reading header of %s: %w", path, err)
	}
	return f, r, nil
}

// Trades reads "<symbol>_trades.csv" with columns
// timestamp_ms,price,amount,side (side is "buy"/"sell").
func (l *Loader) Trades(symbol string) ([]backtest.TradeRow, error) {
	f, r, err := l.open(symbol + "_trades.csv")
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var rows []backtest.TradeRow
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading trades for %s: %w", symbol, err)
		}
		ts, price, amount, side, err := parseTradeRecord(rec)
		if err != nil {
			return nil, err
		}
		rows = append(rows, backtest.TradeRow{TimestampMs: ts, Price: price, Amount: amount, Side: side})
	}
	return rows, nil
}

func parseTradeRecord(rec []string) (ts int64, price, amount float64, side int8, err error) {
	if len(rec) < 4 {
		return 0, 0, 0, 0, fmt.Errorf("trade record has %d fields, want 4", len(rec))
	}
	if ts, err = strconv.ParseInt(rec[0], 10, 64); err != nil {
		return 0, 0, 0, 0, fmt.Errorf("parsing trade timestamp %q: %w", rec[0], err)
	}
	if price, err = strconv.ParseFloat(rec[1], 64); err != nil {
		return 0, 0, 0, 0, fmt.Errorf("parsing trade price %q: %w", rec[1], err)
	}
	if amount, err = strconv.ParseFloat(rec[2], 64); err != nil {
		return 0, 0, 0, 0, fmt.Errorf("parsing trade amount %q: %w", rec[2], err)
	}
	switch strings.ToLower(rec[3]) {
	case "buy":
		side = 1
	case "sell":
		side = -1
	default:
		return 0, 0, 0, 0, fmt.Errorf("unrecognized trade side %q", rec[3])
	}
	return ts, price, amount, side, nil
}

// Depth reads "<symbol>_depth.csv" with columns
// timestamp_ms,bids,asks where bids/asks are "price:qty|price:qty|...".
func (l *Loader) Depth(symbol string) ([]backtest.DepthRow, error) {
	f, r, err := l.open(symbol + "_depth.csv")
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var rows []backtest.DepthRow
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading depth for %s: %w", symbol, err)
		}
		if len(rec) < 3 {
			return nil, fmt.Errorf("depth record has %d fields, want 3", len(rec))
		}
		ts, err := strconv.ParseInt(rec[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing depth timestamp %q: %w", rec[0], err)
		}
		bids, err := parseLevels(rec[1])
		if err != nil {
			return nil, fmt.Errorf("parsing bids: %w", err)
		}
		asks, err := parseLevels(rec[2])
		if err != nil {
			return nil, fmt.Errorf("parsing asks: %w", err)
		}
		rows = append(rows, backtest.DepthRow{TimestampMs: ts, Bids: bids, Asks: asks})
	}
	return rows, nil
}

func parseLevels(field string) ([][2]float64, error) {
	if field == "" {
		return nil, nil
	}
	parts := strings.Split(field, "|")
	levels := make([][2]float64, 0, len(parts))
	for _, p := range parts {
		pq := strings.SplitN(p, ":", 2)
		if len(pq) != 2 {
			return nil, fmt.Errorf("malformed level %q", p)
		}
		price, err := strconv.ParseFloat(pq[0], 64)
		if err != nil {
			return nil, fmt.Errorf("parsing level price %q: %w", pq[0], err)
		}
		qty, err := strconv.ParseFloat(pq[1], 64)
		if err != nil {
			return nil, fmt.Errorf("parsing level qty %q: %w", pq[1], err)
		}
		levels = append(levels, [2]float64{price, qty})
	}
	return levels, nil
}

// Funding reads "<symbol>_funding.csv" with columns timestamp_ms,rate.
func (l *Loader) Funding(symbol string) ([]backtest.FundingRow, error) {
	f, r, err := l.open(symbol + "_funding.csv")
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var rows []backtest.FundingRow
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading funding for %s: %w", symbol, err)
		}
		if len(rec) < 2 {
			return nil, fmt.Errorf("funding record has %d fields, want 2", len(rec))
		}
		ts, err := strconv.ParseInt(rec[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing funding timestamp %q: %w", rec[0], err)
		}
		rate, err := strconv.ParseFloat(rec[1], 64)
		if err != nil {
			return nil, fmt.Errorf("parsing funding rate %q: %w", rec[1], err)
		}
		rows = append(rows, backtest.FundingRow{TimestampMs: ts, Rate: rate})
	}
	return rows, nil
}

// Candles reads "<symbol>_candles.csv" with columns
// timestamp_ms,open,high,low,close,volume.
func (l *Loader) Candles(symbol string) ([]backtest.CandleRow, error) {
	f, r, err := l.open(symbol + "_candles.csv")
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var rows []backtest.CandleRow
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading candles for %s: %w", symbol, err)
		}
		if len(rec) < 6 {
			return nil, fmt.Errorf("candle record has %d fields, want 6", len(rec))
		}
		ts, err := strconv.ParseInt(rec[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing candle timestamp %q: %w", rec[0], err)
		}
		vals := make([]float64, 5)
		for i := 0; i < 5; i++ {
			vals[i], err = strconv.ParseFloat(rec[i+1], 64)
			if err != nil {
				return nil, fmt.Errorf("parsing candle field %d %q: %w", i+1, rec[i+1], err)
			}
		}
		rows = append(rows, backtest.CandleRow{
			TimestampMs: ts, Open: vals[0], High: vals[1], Low: vals[2], Close: vals[3], Volume: vals[4],
		})
	}
	return rows, nil
}
