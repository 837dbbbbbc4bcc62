package models

import "time"

type Trend string

const (
	TrendIncreasing Trend = "increasing"
	TrendDecreasing Trend = "decreasing"
	TrendNeutral    Trend = "neutral"
)

type CVDSignal string

const (
	CVDBullish CVDSignal = "bullish"
	CVDBearish CVDSignal = "bearish"
	CVDNeutral CVDSignal = "neutral"
)

type LiquidationBias string

const (
	LiquidationLong  LiquidationBias = "long_liq"
	LiquidationShort LiquidationBias = "short_liq"
	LiquidationNone  LiquidationBias = "none"
)

type Signal string

const (
	SignalLong  Signal = "LONG"
	SignalShort Signal = "SHORT"
	SignalWait  Signal = "WAIT"
)

// Indicators is the tuple the decision rules read. It is recomputed every
// cycle.
type Indicators struct {
	WhaleTrend      Trend           `json:"whale_trend"`
	OITrend         Trend           `json:"oi_trend"`
	CVDSignal       CVDSignal       `json:"cvd_signal"`
	LiquidationBias LiquidationBias `json:"liquidation_bias"`
}

// SignalResult is the outcome of one evaluation cycle.
type SignalResult struct {
	CycleID    string    `json:"cycle_id,omitempty"`
	Instrument string    `json:"instrument"`
	Timestamp  time.Time `json:"timestamp"`
	Indicators
	Signal  Signal `json:"signal"`
	Comment string `json:"comment"`
}

// TradePlan brackets an entry with stop and target levels.
type TradePlan struct {
	Entry      float64 `json:"entry"`
	StopLoss   float64 `json:"stop_loss"`
	TakeProfit float64 `json:"take_profit"`
	RiskReward float64 `json:"risk_reward"`
}

// TradeSetup is a SignalResult plus the optional plan. Plan is nil when the
// signal is WAIT or volatility was too small to size a stop.
type TradeSetup struct {
	SignalResult
	Plan      *TradePlan `json:"plan,omitempty"`
	ATR       float64    `json:"atr"`
	LastPrice float64    `json:"last_price"`
}

// Actionable reports whether the setup carries a tradable plan.
func (s TradeSetup) Actionable() bool {
	return s.Signal != SignalWait && s.Plan != nil
}
