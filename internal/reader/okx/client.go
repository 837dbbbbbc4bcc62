package okx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	appconfig "whalesignal/config"
	ratemetrics "whalesignal/internal/metrics/rate"
	"whalesignal/logger"
)

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 4 << 20

// Client reads the public OKX v5 REST endpoints the evaluator needs. It is
// safe for concurrent use; all requests share one rate limiter.
type Client struct {
	baseURL  string
	http     *http.Client
	limiter  *rate.Limiter
	log      *logger.Log
	instType string
	oiPeriod string
	oiPoints int

	// configured instrument and its underlying/currency overrides
	instID     string
	underlying string
	currency   string
}

// NewClient builds a client from the OKX source and lookback settings.
func NewClient(cfg *appconfig.Config) *Client {
	src := cfg.Source.Okx

	timeout := src.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	rps := src.RateLimit.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	burst := src.RateLimit.BurstSize
	if burst <= 0 {
		burst = 1
	}
	instType := cfg.Instrument.InstType
	if instType == "" {
		instType = "SWAP"
	}
	period := cfg.Lookback.OpenInterestPeriod
	if period == "" {
		period = "5m"
	}
	points := cfg.Lookback.OpenInterestPoints
	if points < 2 {
		points = 5
	}

	return &Client{
		baseURL: strings.TrimRight(src.BaseURL, "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: userAgentTransport{agent: src.UserAgent},
		},
		limiter:  rate.NewLimiter(rate.Limit(rps), burst),
		log:      logger.GetLogger(),
		instType: instType,
		oiPeriod: period,
		oiPoints: points,

		instID:     cfg.Instrument.InstID,
		underlying: strings.TrimSpace(cfg.Instrument.Underlying),
		currency:   strings.TrimSpace(cfg.Instrument.Currency),
	}
}

type envelope struct {
	Code string          `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// get performs one rate-limited GET and decodes the envelope's data array
// into out. Every failure is returned as a *FetchError.
func (c *Client) get(ctx context.Context, source, instrument, path string, params url.Values, out interface{}) error {
	log := c.log.WithComponent("okx_reader").WithFields(logger.Fields{
		"source":     source,
		"instrument": instrument,
	})

	if err := c.limiter.Wait(ctx); err != nil {
		return fetchErr(source, instrument, fmt.Errorf("rate limiter wait: %w", err))
	}

	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fetchErr(source, instrument, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fetchErr(source, instrument, fmt.Errorf("http request: %w", err))
	}
	defer resp.Body.Close()

	ratemetrics.ReportOkxUsedWeight(c.log, resp.Header, instrument, source)

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fetchErr(source, instrument, fmt.Errorf("read body: %w", err))
	}

	var env envelope
	decodeErr := json.Unmarshal(body, &env)

	if resp.StatusCode != http.StatusOK {
		ratemetrics.ReportOkxLimit(c.log, instrument, source, env.Code, env.Msg+" "+resp.Status)
		return fetchErr(source, instrument, fmt.Errorf("http status %s: %s", resp.Status, strings.TrimSpace(env.Msg)))
	}
	if decodeErr != nil {
		return fetchErr(source, instrument, fmt.Errorf("decode envelope: %w", decodeErr))
	}
	if env.Code != "0" {
		ratemetrics.ReportOkxLimit(c.log, instrument, source, env.Code, env.Msg)
		return fetchErr(source, instrument, fmt.Errorf("okx error code %s: %s", env.Code, env.Msg))
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fetchErr(source, instrument, fmt.Errorf("decode data: %w", err))
	}

	logger.LogPerformanceEntry(log, "okx_reader", "get "+path, time.Since(start), nil)
	return nil
}

func parseNumber(s string) (float64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("parse number %q: %w", s, err)
	}
	return d.InexactFloat64(), nil
}

func parseMillis(s string) (time.Time, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return time.UnixMilli(d.IntPart()).UTC(), nil
}

// underlyingFor returns the configured underlying for the configured
// instrument and derives it for any other.
func (c *Client) underlyingFor(instrument string) string {
	if instrument == c.instID && c.underlying != "" {
		return c.underlying
	}
	return underlyingOf(instrument)
}

func (c *Client) currencyFor(instrument string) string {
	if instrument == c.instID && c.currency != "" {
		return c.currency
	}
	return currencyOf(instrument)
}

// underlyingOf maps "SUI-USDT-SWAP" to "SUI-USDT".
func underlyingOf(instrument string) string {
	return strings.TrimSuffix(instrument, "-SWAP")
}

// currencyOf maps "SUI-USDT-SWAP" to "SUI".
func currencyOf(instrument string) string {
	return strings.SplitN(instrument, "-", 2)[0]
}
