package okx

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"whalesignal/internal/models"
	"whalesignal/logger"
)

const (
	pathOpenInterest = "/api/v5/rubik/stat/contracts/open-interest-volume"
	pathCandles      = "/api/v5/market/history-candles"
	pathTrades       = "/api/v5/market/history-trades"
	pathLiquidations = "/api/v5/public/liquidation-orders"
	pathTicker       = "/api/v5/market/ticker"

	// OKX page size caps.
	maxCandlesPerPage      = 100
	maxTradesPerPage       = 100
	maxLiquidationsPerPage = 100
)

var errEmptyData = errors.New("empty data array")

// FetchOpenInterestSeries returns the most recent open-interest points for
// the instrument's currency, oldest first.
func (c *Client) FetchOpenInterestSeries(ctx context.Context, instrument string) (models.Series, error) {
	params := url.Values{}
	params.Set("ccy", c.currencyFor(instrument))
	params.Set("period", c.oiPeriod)

	var rows [][]string
	if err := c.get(ctx, SourceOpenInterest, instrument, pathOpenInterest, params, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fetchErr(SourceOpenInterest, instrument, errEmptyData)
	}

	type point struct {
		ts time.Time
		oi float64
	}
	points := make([]point, 0, len(rows))
	for _, row := range rows {
		if len(row) < 2 {
			return nil, fetchErr(SourceOpenInterest, instrument, fmt.Errorf("malformed row %v", row))
		}
		ts, err := parseMillis(row[0])
		if err != nil {
			return nil, fetchErr(SourceOpenInterest, instrument, err)
		}
		oi, err := parseNumber(row[1])
		if err != nil {
			return nil, fetchErr(SourceOpenInterest, instrument, err)
		}
		points = append(points, point{ts: ts, oi: oi})
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].ts.Before(points[j].ts) })
	if len(points) > c.oiPoints {
		points = points[len(points)-c.oiPoints:]
	}

	series := make(models.Series, len(points))
	for i, p := range points {
		series[i] = p.oi
	}
	c.dataFlow(SourceOpenInterest, len(series))
	return series, nil
}

// FetchRecentCandles returns up to count candles of the given bar, oldest
// first.
func (c *Client) FetchRecentCandles(ctx context.Context, instrument, interval string, count int) ([]models.Candle, error) {
	if count <= 0 || count > maxCandlesPerPage {
		count = maxCandlesPerPage
	}
	params := url.Values{}
	params.Set("instId", instrument)
	params.Set("bar", interval)
	params.Set("limit", strconv.Itoa(count))

	var rows [][]string
	if err := c.get(ctx, SourceCandles, instrument, pathCandles, params, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fetchErr(SourceCandles, instrument, errEmptyData)
	}

	candles := make([]models.Candle, 0, len(rows))
	for _, row := range rows {
		candle, err := parseCandle(row)
		if err != nil {
			return nil, fetchErr(SourceCandles, instrument, err)
		}
		candles = append(candles, candle)
	}
	models.SortCandles(candles)
	if len(candles) > count {
		candles = candles[len(candles)-count:]
	}
	c.dataFlow(SourceCandles, len(candles))
	return candles, nil
}

func parseCandle(row []string) (models.Candle, error) {
	if len(row) < 5 {
		return models.Candle{}, fmt.Errorf("malformed candle %v", row)
	}
	ts, err := parseMillis(row[0])
	if err != nil {
		return models.Candle{}, err
	}
	var ohlc [4]float64
	for i := range ohlc {
		if ohlc[i], err = parseNumber(row[i+1]); err != nil {
			return models.Candle{}, err
		}
	}
	candle := models.Candle{Timestamp: ts, Open: ohlc[0], High: ohlc[1], Low: ohlc[2], Close: ohlc[3]}
	if len(row) > 5 {
		if candle.Volume, err = parseNumber(row[5]); err != nil {
			return models.Candle{}, err
		}
	}
	return candle, nil
}

type tradeRecord struct {
	TradeID string `json:"tradeId"`
	Px      string `json:"px"`
	Sz      string `json:"sz"`
	Side    string `json:"side"`
	Ts      string `json:"ts"`
}

// FetchRecentTrades returns the most recent count trades, oldest first.
// History is paged backwards by trade ID when count exceeds one page.
func (c *Client) FetchRecentTrades(ctx context.Context, instrument string, count int) ([]models.Trade, error) {
	if count <= 0 {
		count = maxTradesPerPage
	}

	trades := make([]models.Trade, 0, count)
	after := ""
	for len(trades) < count {
		limit := count - len(trades)
		if limit > maxTradesPerPage {
			limit = maxTradesPerPage
		}
		params := url.Values{}
		params.Set("instId", instrument)
		params.Set("limit", strconv.Itoa(limit))
		if after != "" {
			params.Set("type", "1")
			params.Set("after", after)
		}

		var page []tradeRecord
		if err := c.get(ctx, SourceTrades, instrument, pathTrades, params, &page); err != nil {
			return nil, err
		}
		for _, rec := range page {
			tr, err := parseTrade(rec)
			if err != nil {
				return nil, fetchErr(SourceTrades, instrument, err)
			}
			trades = append(trades, tr)
		}
		if len(page) < limit {
			break
		}
		after = page[len(page)-1].TradeID
	}
	if len(trades) == 0 {
		return nil, fetchErr(SourceTrades, instrument, errEmptyData)
	}
	if len(trades) > count {
		trades = trades[:count]
	}

	// Pages are contiguous and newest first, so reversing yields trade order
	// even within one millisecond.
	for i, j := 0, len(trades)-1; i < j; i, j = i+1, j-1 {
		trades[i], trades[j] = trades[j], trades[i]
	}
	models.SortTrades(trades)
	c.dataFlow(SourceTrades, len(trades))
	return trades, nil
}

func parseTrade(rec tradeRecord) (models.Trade, error) {
	px, err := parseNumber(rec.Px)
	if err != nil {
		return models.Trade{}, err
	}
	sz, err := parseNumber(rec.Sz)
	if err != nil {
		return models.Trade{}, err
	}
	ts, err := parseMillis(rec.Ts)
	if err != nil {
		return models.Trade{}, err
	}
	side := models.Side(strings.ToLower(rec.Side))
	if side != models.SideBuy && side != models.SideSell {
		return models.Trade{}, fmt.Errorf("unknown trade side %q", rec.Side)
	}
	return models.Trade{ID: rec.TradeID, Price: px, Size: sz, Side: side, Timestamp: ts}, nil
}

type liquidationRecord struct {
	Details []struct {
		PosSide string `json:"posSide"`
		Side    string `json:"side"`
		Ts      string `json:"ts"`
	} `json:"details"`
}

// FetchFilledLiquidations counts long and short forced closures among the
// most recent lookback filled liquidation events of the underlying.
func (c *Client) FetchFilledLiquidations(ctx context.Context, instrument string, lookback int) (models.LiquidationCount, error) {
	if lookback <= 0 || lookback > maxLiquidationsPerPage {
		lookback = maxLiquidationsPerPage
	}
	params := url.Values{}
	params.Set("instType", c.instType)
	params.Set("uly", c.underlyingFor(instrument))
	params.Set("state", "filled")
	params.Set("limit", strconv.Itoa(lookback))

	var records []liquidationRecord
	if err := c.get(ctx, SourceLiquidations, instrument, pathLiquidations, params, &records); err != nil {
		return models.LiquidationCount{}, err
	}

	var count models.LiquidationCount
	seen := 0
	for _, rec := range records {
		for _, d := range rec.Details {
			if seen == lookback {
				break
			}
			switch liquidatedSide(d.PosSide, d.Side) {
			case "long":
				count.Long++
			case "short":
				count.Short++
			default:
				continue
			}
			seen++
		}
	}
	c.dataFlow(SourceLiquidations, seen)
	return count, nil
}

// liquidatedSide resolves which position a liquidation closed. Net-mode
// records carry no posSide; a forced sell closes a long, a forced buy a short.
func liquidatedSide(posSide, side string) string {
	switch strings.ToLower(posSide) {
	case "long", "short":
		return strings.ToLower(posSide)
	}
	switch strings.ToLower(side) {
	case "sell":
		return "long"
	case "buy":
		return "short"
	}
	return ""
}

// FetchLastPrice returns the last traded price of the instrument.
func (c *Client) FetchLastPrice(ctx context.Context, instrument string) (float64, error) {
	params := url.Values{}
	params.Set("instId", instrument)

	var tickers []struct {
		InstID string `json:"instId"`
		Last   string `json:"last"`
	}
	if err := c.get(ctx, SourceTicker, instrument, pathTicker, params, &tickers); err != nil {
		return 0, err
	}
	if len(tickers) == 0 {
		return 0, fetchErr(SourceTicker, instrument, errEmptyData)
	}
	last, err := parseNumber(tickers[0].Last)
	if err != nil {
		return 0, fetchErr(SourceTicker, instrument, err)
	}
	if last <= 0 {
		return 0, fetchErr(SourceTicker, instrument, fmt.Errorf("non-positive last price %v", last))
	}
	return last, nil
}

func (c *Client) dataFlow(source string, n int) {
	logger.LogDataFlowEntry(c.log.WithComponent("okx_reader"), "okx_api", source, n, source)
}
