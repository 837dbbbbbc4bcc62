package models

import (
	"sort"
	"strconv"
	"time"
)

// Series is an ordered sequence of samples, oldest first.
type Series []float64

// Last returns the newest sample and whether the series is non-empty.
func (s Series) Last() (float64, bool) {
	if len(s) == 0 {
		return 0, false
	}
	return s[len(s)-1], true
}

// Candle is one OHLCV bucket.
type Candle struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// Side is the aggressor side of a trade.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Trade is a single fill as reported by the exchange.
type Trade struct {
	ID        string    `json:"id"`
	Price     float64   `json:"price"`
	Size      float64   `json:"size"`
	Side      Side      `json:"side"`
	Timestamp time.Time `json:"timestamp"`
}

// LiquidationCount aggregates filled forced closures over the lookback window.
type LiquidationCount struct {
	Long  int `json:"long"`
	Short int `json:"short"`
}

// MarketSnapshot holds everything one evaluation cycle reads from the
// exchange. All slices are chronological.
type MarketSnapshot struct {
	Instrument   string           `json:"instrument"`
	OpenInterest Series           `json:"open_interest"`
	Candles      []Candle         `json:"candles"`
	Trades       []Trade          `json:"trades"`
	Liquidations LiquidationCount `json:"liquidations"`
	LastPrice    float64          `json:"last_price"`
	FetchedAt    time.Time        `json:"fetched_at"`
}

// SortCandles orders candles oldest first. Exchanges usually return them
// newest first.
func SortCandles(candles []Candle) {
	sort.SliceStable(candles, func(i, j int) bool {
		return candles[i].Timestamp.Before(candles[j].Timestamp)
	})
}

// SortTrades orders trades oldest first. Trades in the same millisecond are
// ordered by numeric trade ID; non-numeric IDs keep their input order.
func SortTrades(trades []Trade) {
	sort.SliceStable(trades, func(i, j int) bool {
		a, b := trades[i], trades[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		ai, aerr := strconv.ParseUint(a.ID, 10, 64)
		bi, berr := strconv.ParseUint(b.ID, 10, 64)
		if aerr != nil || berr != nil {
			return false
		}
		return ai < bi
	})
}
