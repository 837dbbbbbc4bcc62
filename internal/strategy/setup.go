package strategy

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"whalesignal/internal/indicator"
	"whalesignal/internal/models"
)

// ErrDegenerateVolatility means the ATR cannot size a stop distance.
var ErrDegenerateVolatility = errors.New("degenerate volatility")

// SetupParams sizes the stop and target distances.
type SetupParams struct {
	ATRMultiplier   float64
	RewardRiskRatio float64
}

func DefaultSetupParams() SetupParams {
	return SetupParams{ATRMultiplier: 1.5, RewardRiskRatio: 2}
}

func (p SetupParams) withDefaults() SetupParams {
	def := DefaultSetupParams()
	if p.ATRMultiplier <= 0 {
		p.ATRMultiplier = def.ATRMultiplier
	}
	if p.RewardRiskRatio <= 0 {
		p.RewardRiskRatio = def.RewardRiskRatio
	}
	return p
}

// BuildTradePlan brackets entry with an ATR-sized stop and a target at
// RewardRiskRatio times the stop distance. WAIT yields no plan and no error.
// Arithmetic runs in decimal so the levels are exact for decimal inputs.
func BuildTradePlan(signal models.Signal, entry, atr float64, params SetupParams) (*models.TradePlan, error) {
	if signal != models.SignalLong && signal != models.SignalShort {
		return nil, nil
	}
	if !isFinitePositive(atr) {
		return nil, fmt.Errorf("atr %v: %w", atr, ErrDegenerateVolatility)
	}
	if !isFinitePositive(entry) {
		return nil, fmt.Errorf("entry price %v is not usable", entry)
	}
	params = params.withDefaults()

	px := decimal.NewFromFloat(entry)
	risk := decimal.NewFromFloat(atr).Mul(decimal.NewFromFloat(params.ATRMultiplier))
	reward := risk.Mul(decimal.NewFromFloat(params.RewardRiskRatio))

	var stop, target, rr decimal.Decimal
	if signal == models.SignalLong {
		stop = px.Sub(risk)
		target = px.Add(reward)
		rr = target.Sub(px).Div(px.Sub(stop))
	} else {
		stop = px.Add(risk)
		target = px.Sub(reward)
		rr = px.Sub(target).Div(stop.Sub(px))
	}

	return &models.TradePlan{
		Entry:      px.InexactFloat64(),
		StopLoss:   stop.InexactFloat64(),
		TakeProfit: target.InexactFloat64(),
		RiskReward: rr.InexactFloat64(),
	}, nil
}

// BuildTradeSetup combines a result with the plan sized from the snapshot's
// last price and candle ATR. When the plan cannot be sized the setup is still
// returned, without a plan, alongside the reason.
func BuildTradeSetup(result models.SignalResult, snap models.MarketSnapshot, params SetupParams) (models.TradeSetup, error) {
	setup := models.TradeSetup{SignalResult: result, LastPrice: snap.LastPrice}

	atr, atrErr := indicator.ComputeATR(snap.Candles)
	setup.ATR = atr
	if result.Signal == models.SignalWait {
		return setup, nil
	}
	if atrErr != nil {
		return setup, fmt.Errorf("atr over %d candles: %w: %w", len(snap.Candles), atrErr, ErrDegenerateVolatility)
	}

	plan, err := BuildTradePlan(result.Signal, snap.LastPrice, atr, params)
	if err != nil {
		return setup, err
	}
	setup.Plan = plan
	return setup, nil
}

func isFinitePositive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
