// Package evaluator runs one evaluation cycle: it fans out the market-data
// fetches, joins them into a snapshot, and applies the strategy.
package evaluator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	appconfig "whalesignal/config"
	"whalesignal/internal/indicator"
	"whalesignal/internal/models"
	"whalesignal/internal/reader/okx"
	"whalesignal/internal/strategy"
	"whalesignal/logger"
)

// MarketData supplies the raw inputs of one cycle. Implementations must
// return slices in chronological order.
type MarketData interface {
	FetchOpenInterestSeries(ctx context.Context, instrument string) (models.Series, error)
	FetchRecentCandles(ctx context.Context, instrument, interval string, count int) ([]models.Candle, error)
	FetchFilledLiquidations(ctx context.Context, instrument string, lookback int) (models.LiquidationCount, error)
	FetchRecentTrades(ctx context.Context, instrument string, count int) ([]models.Trade, error)
	FetchLastPrice(ctx context.Context, instrument string) (float64, error)
}

// Evaluator is stateless between calls; every call rebuilds its inputs.
type Evaluator struct {
	source     MarketData
	instrument string
	interval   string
	candles    int
	trades     int
	liqs       int
	timeout    time.Duration
	params     strategy.Params
	log        *logger.Log
	now        func() time.Time
}

// New builds an Evaluator for the configured instrument.
func New(cfg *appconfig.Config, source MarketData) *Evaluator {
	return &Evaluator{
		source:     source,
		instrument: cfg.Instrument.InstID,
		interval:   cfg.Lookback.CandleInterval,
		candles:    cfg.Lookback.Candles,
		trades:     cfg.Lookback.Trades,
		liqs:       cfg.Lookback.Liquidations,
		timeout:    cfg.Scheduler.CycleTimeout,
		params: strategy.Params{
			LiquidationRatio: cfg.Strategy.LiquidationRatio,
			PriceTrendWindow: cfg.Lookback.PriceTrendWindow,
			Setup: strategy.SetupParams{
				ATRMultiplier:   cfg.Strategy.ATRMultiplier,
				RewardRiskRatio: cfg.Strategy.RewardRiskRatio,
			},
		},
		log: logger.GetLogger(),
		now: time.Now,
	}
}

// Instrument returns the identifier the evaluator watches.
func (e *Evaluator) Instrument() string { return e.instrument }

type cycleKey struct{}

// WithCycleID attaches a cycle identifier to ctx.
func WithCycleID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, cycleKey{}, id)
}

// CycleID returns the identifier carried by ctx, or a new one.
func CycleID(ctx context.Context) string {
	if id, ok := ctx.Value(cycleKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}

// Snapshot issues the five fetches concurrently and waits for all of them.
// The first failure cancels the others and aborts the snapshot.
func (e *Evaluator) Snapshot(ctx context.Context) (models.MarketSnapshot, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	snap := models.MarketSnapshot{Instrument: e.instrument}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		oi, err := e.source.FetchOpenInterestSeries(gctx, e.instrument)
		snap.OpenInterest = oi
		return e.wrap(okx.SourceOpenInterest, err)
	})
	g.Go(func() error {
		candles, err := e.source.FetchRecentCandles(gctx, e.instrument, e.interval, e.candles)
		snap.Candles = candles
		return e.wrap(okx.SourceCandles, err)
	})
	g.Go(func() error {
		liqs, err := e.source.FetchFilledLiquidations(gctx, e.instrument, e.liqs)
		snap.Liquidations = liqs
		return e.wrap(okx.SourceLiquidations, err)
	})
	g.Go(func() error {
		trades, err := e.source.FetchRecentTrades(gctx, e.instrument, e.trades)
		snap.Trades = trades
		return e.wrap(okx.SourceTrades, err)
	})
	g.Go(func() error {
		price, err := e.source.FetchLastPrice(gctx, e.instrument)
		snap.LastPrice = price
		return e.wrap(okx.SourceTicker, err)
	})

	if err := g.Wait(); err != nil {
		return models.MarketSnapshot{}, err
	}
	if snap.LastPrice <= 0 {
		return models.MarketSnapshot{}, e.wrap(okx.SourceTicker, fmt.Errorf("missing last price"))
	}

	models.SortCandles(snap.Candles)
	models.SortTrades(snap.Trades)
	snap.FetchedAt = e.now().UTC()
	return snap, nil
}

// wrap tags a fetch failure with its source unless the source already did.
func (e *Evaluator) wrap(source string, err error) error {
	if err == nil {
		return nil
	}
	var fe *okx.FetchError
	if errors.As(err, &fe) {
		return err
	}
	return &okx.FetchError{Source: source, Instrument: e.instrument, Err: err}
}

// EvaluateSignal fetches a fresh snapshot and classifies it.
func (e *Evaluator) EvaluateSignal(ctx context.Context) (models.SignalResult, error) {
	result, _, err := e.evaluate(ctx)
	return result, err
}

// BuildTradeSetup evaluates the signal and attaches a bracketed plan for
// LONG or SHORT. Degenerate volatility suppresses the plan but keeps the
// signal.
func (e *Evaluator) BuildTradeSetup(ctx context.Context) (models.TradeSetup, error) {
	result, snap, err := e.evaluate(ctx)
	if err != nil {
		return models.TradeSetup{}, err
	}

	setup, err := strategy.BuildTradeSetup(result, snap, e.params.Setup)
	if errors.Is(err, strategy.ErrDegenerateVolatility) {
		e.log.WithComponent("evaluator").WithCycle(result.CycleID).WithError(err).
			WithFields(logger.Fields{"signal": result.Signal, "atr": setup.ATR}).
			Warn("trade plan suppressed")
		return setup, nil
	}
	if err != nil {
		return models.TradeSetup{}, fmt.Errorf("build trade setup: %w", err)
	}
	return setup, nil
}

func (e *Evaluator) evaluate(ctx context.Context) (models.SignalResult, models.MarketSnapshot, error) {
	cycleID := CycleID(ctx)
	log := e.log.WithComponent("evaluator").WithCycle(cycleID).
		WithFields(logger.Fields{"instrument": e.instrument})

	start := time.Now()
	snap, err := e.Snapshot(ctx)
	if err != nil {
		return models.SignalResult{}, models.MarketSnapshot{}, err
	}
	logger.LogPerformanceEntry(log, "evaluator", "snapshot", time.Since(start), nil)

	if len(snap.OpenInterest) < 2 {
		log.WithError(indicator.ErrInsufficientData).WithFields(logger.Fields{"points": len(snap.OpenInterest)}).
			Debug("open interest series too short, trend degrades to neutral")
	}
	if len(snap.Trades) < 2 {
		log.WithError(indicator.ErrInsufficientData).WithFields(logger.Fields{"trades": len(snap.Trades)}).
			Debug("trade series too short, CVD degrades to neutral")
	}

	result := strategy.Evaluate(snap, e.params, e.now())
	result.CycleID = cycleID

	log.WithFields(logger.Fields{
		"signal":           result.Signal,
		"whale_trend":      result.WhaleTrend,
		"oi_trend":         result.OITrend,
		"cvd_signal":       result.CVDSignal,
		"liquidation_bias": result.LiquidationBias,
	}).Debug("signal evaluated")
	return result, snap, nil
}
