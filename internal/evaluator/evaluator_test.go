package evaluator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	appconfig "whalesignal/config"
	"whalesignal/internal/models"
	"whalesignal/internal/reader/okx"
	"whalesignal/internal/strategy"
)

type MockMarketData struct {
	mock.Mock
}

func (m *MockMarketData) FetchOpenInterestSeries(ctx context.Context, instrument string) (models.Series, error) {
	args := m.Called(ctx, instrument)
	return args.Get(0).(models.Series), args.Error(1)
}

func (m *MockMarketData) FetchRecentCandles(ctx context.Context, instrument, interval string, count int) ([]models.Candle, error) {
	args := m.Called(ctx, instrument, interval, count)
	return args.Get(0).([]models.Candle), args.Error(1)
}

func (m *MockMarketData) FetchFilledLiquidations(ctx context.Context, instrument string, lookback int) (models.LiquidationCount, error) {
	args := m.Called(ctx, instrument, lookback)
	return args.Get(0).(models.LiquidationCount), args.Error(1)
}

func (m *MockMarketData) FetchRecentTrades(ctx context.Context, instrument string, count int) ([]models.Trade, error) {
	args := m.Called(ctx, instrument, count)
	return args.Get(0).([]models.Trade), args.Error(1)
}

func (m *MockMarketData) FetchLastPrice(ctx context.Context, instrument string) (float64, error) {
	args := m.Called(ctx, instrument)
	return args.Get(0).(float64), args.Error(1)
}

const inst = "SUI-USDT-SWAP"

func testConfig() *appconfig.Config {
	cfg := appconfig.Default()
	cfg.Scheduler.CycleTimeout = time.Second
	return &cfg
}

// risingCandles returns n candles, newest first, with closes climbing by 0.01
// and a constant 0.1 range.
func risingCandles(n int) []models.Candle {
	base := time.Unix(1700000000, 0).UTC()
	out := make([]models.Candle, n)
	for i := 0; i < n; i++ {
		c := 2 + float64(i)*0.01
		out[n-1-i] = models.Candle{Timestamp: base.Add(time.Duration(i) * 15 * time.Minute), Open: c, High: c + 0.05, Low: c - 0.05, Close: c}
	}
	return out
}

func bullishSource() *MockMarketData {
	return sourceWithTrades([]models.Trade{
		{Size: 10, Side: models.SideBuy, Timestamp: time.Unix(1, 0)},
		{Size: 4, Side: models.SideSell, Timestamp: time.Unix(2, 0)},
		{Size: 6, Side: models.SideBuy, Timestamp: time.Unix(3, 0)},
	})
}

func sourceWithTrades(trades []models.Trade) *MockMarketData {
	m := &MockMarketData{}
	m.On("FetchOpenInterestSeries", mock.Anything, inst).Return(models.Series{100, 110, 120}, nil)
	m.On("FetchRecentCandles", mock.Anything, inst, "15m", 15).Return(risingCandles(15), nil)
	m.On("FetchFilledLiquidations", mock.Anything, inst, 100).Return(models.LiquidationCount{Long: 5, Short: 30}, nil)
	m.On("FetchRecentTrades", mock.Anything, inst, 200).Return(trades, nil)
	m.On("FetchLastPrice", mock.Anything, inst).Return(2.00, nil)
	return m
}

func TestSnapshotNormalisesOrder(t *testing.T) {
	src := bullishSource()
	e := New(testConfig(), src)

	snap, err := e.Snapshot(context.Background())
	require.NoError(t, err)
	src.AssertExpectations(t)

	assert.Equal(t, inst, snap.Instrument)
	assert.Len(t, snap.Candles, 15)
	assert.True(t, snap.Candles[0].Timestamp.Before(snap.Candles[14].Timestamp), "candles must be chronological")
	assert.Equal(t, 2.00, snap.LastPrice)
	assert.False(t, snap.FetchedAt.IsZero())
}

func TestSnapshotOrdersSameMillisecondTrades(t *testing.T) {
	ts := time.UnixMilli(1700000000500)
	src := sourceWithTrades([]models.Trade{
		{ID: "3", Size: 5, Side: models.SideSell, Timestamp: ts},
		{ID: "1", Size: 1, Side: models.SideBuy, Timestamp: ts.Add(-time.Millisecond)},
		{ID: "2", Size: 1, Side: models.SideBuy, Timestamp: ts},
	})
	e := New(testConfig(), src)

	snap, err := e.Snapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Trades, 3)
	assert.Equal(t, []string{"1", "2", "3"}, []string{snap.Trades[0].ID, snap.Trades[1].ID, snap.Trades[2].ID})

	result, err := e.EvaluateSignal(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.CVDBearish, result.CVDSignal, "last CVD step must come from the newest trade")
}

func TestBuildTradeSetupLong(t *testing.T) {
	e := New(testConfig(), bullishSource())

	ctx := WithCycleID(context.Background(), "cycle-1")
	setup, err := e.BuildTradeSetup(ctx)
	require.NoError(t, err)

	assert.Equal(t, "cycle-1", setup.CycleID)
	assert.Equal(t, models.SignalLong, setup.Signal)
	assert.Equal(t, strategy.CommentLong, setup.Comment)
	require.NotNil(t, setup.Plan)
	assert.Equal(t, 2.00, setup.Plan.Entry)
	assert.InDelta(t, 1.85, setup.Plan.StopLoss, 1e-9)
	assert.InDelta(t, 2.30, setup.Plan.TakeProfit, 1e-9)
	assert.InDelta(t, 2.0, setup.Plan.RiskReward, 1e-9)
}

func TestEvaluateSignalGeneratesCycleID(t *testing.T) {
	e := New(testConfig(), bullishSource())
	first, err := e.EvaluateSignal(context.Background())
	require.NoError(t, err)
	second, err := e.EvaluateSignal(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, first.CycleID)
	assert.NotEqual(t, first.CycleID, second.CycleID)
	assert.Equal(t, first.Indicators, second.Indicators)
	assert.Equal(t, first.Signal, second.Signal)
}

func TestFetchFailureAbortsCycle(t *testing.T) {
	src := &MockMarketData{}
	boom := errors.New("connection reset")
	src.On("FetchOpenInterestSeries", mock.Anything, inst).Return(models.Series{1, 2}, nil)
	src.On("FetchRecentCandles", mock.Anything, inst, "15m", 15).Return(risingCandles(15), nil)
	src.On("FetchFilledLiquidations", mock.Anything, inst, 100).Return(models.LiquidationCount{}, boom)
	src.On("FetchRecentTrades", mock.Anything, inst, 200).Return([]models.Trade{}, nil)
	src.On("FetchLastPrice", mock.Anything, inst).Return(2.0, nil)

	e := New(testConfig(), src)
	_, err := e.BuildTradeSetup(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, okx.ErrUpstream)
	assert.ErrorIs(t, err, boom)

	var fe *okx.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, okx.SourceLiquidations, fe.Source)
	assert.Equal(t, inst, fe.Instrument)
}

func TestMissingLastPriceIsUpstreamError(t *testing.T) {
	src := &MockMarketData{}
	src.On("FetchOpenInterestSeries", mock.Anything, inst).Return(models.Series{1, 2}, nil)
	src.On("FetchRecentCandles", mock.Anything, inst, "15m", 15).Return(risingCandles(15), nil)
	src.On("FetchFilledLiquidations", mock.Anything, inst, 100).Return(models.LiquidationCount{}, nil)
	src.On("FetchRecentTrades", mock.Anything, inst, 200).Return([]models.Trade{}, nil)
	src.On("FetchLastPrice", mock.Anything, inst).Return(0.0, nil)

	_, err := New(testConfig(), src).EvaluateSignal(context.Background())
	var fe *okx.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, okx.SourceTicker, fe.Source)
}

func TestShortSeriesDegradeToWait(t *testing.T) {
	src := &MockMarketData{}
	src.On("FetchOpenInterestSeries", mock.Anything, inst).Return(models.Series{100}, nil)
	src.On("FetchRecentCandles", mock.Anything, inst, "15m", 15).Return(risingCandles(15), nil)
	src.On("FetchFilledLiquidations", mock.Anything, inst, 100).Return(models.LiquidationCount{Short: 10}, nil)
	src.On("FetchRecentTrades", mock.Anything, inst, 200).Return([]models.Trade{}, nil)
	src.On("FetchLastPrice", mock.Anything, inst).Return(2.0, nil)

	setup, err := New(testConfig(), src).BuildTradeSetup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.SignalWait, setup.Signal)
	assert.Equal(t, models.TrendNeutral, setup.OITrend)
	assert.Equal(t, models.CVDNeutral, setup.CVDSignal)
	assert.Nil(t, setup.Plan)
}

func TestSingleCandleYieldsNoPlan(t *testing.T) {
	src := &MockMarketData{}
	src.On("FetchOpenInterestSeries", mock.Anything, inst).Return(models.Series{1, 2}, nil)
	src.On("FetchRecentCandles", mock.Anything, inst, "15m", 15).Return(risingCandles(1), nil)
	src.On("FetchFilledLiquidations", mock.Anything, inst, 100).Return(models.LiquidationCount{Short: 10}, nil)
	src.On("FetchRecentTrades", mock.Anything, inst, 200).Return([]models.Trade{}, nil)
	src.On("FetchLastPrice", mock.Anything, inst).Return(2.0, nil)

	setup, err := New(testConfig(), src).BuildTradeSetup(context.Background())
	require.NoError(t, err)
	assert.Nil(t, setup.Plan)
}

type slowSource struct {
	*MockMarketData
}

func (s slowSource) FetchLastPrice(ctx context.Context, instrument string) (float64, error) {
	<-ctx.Done()
	return 0, ctx.Err()
}

func TestSnapshotHonoursCycleTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.Scheduler.CycleTimeout = 20 * time.Millisecond
	e := New(cfg, slowSource{bullishSource()})

	start := time.Now()
	_, err := e.Snapshot(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}
