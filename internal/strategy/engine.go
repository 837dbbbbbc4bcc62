package strategy

import (
	"time"

	"whalesignal/internal/indicator"
	"whalesignal/internal/models"
)

const (
	CommentShort   = "Whale decreasing + OI increasing + CVD negative: favour SHORT."
	CommentLong    = "Whale increasing + OI increasing + CVD positive: favour LONG."
	CommentNeutral = "No clear divergence between whale positioning and OI."
	CommentNoSetup = "No clear setup yet."
)

// Params tunes indicator and trade-plan computation.
type Params struct {
	LiquidationRatio float64
	PriceTrendWindow int
	Setup            SetupParams
}

// DefaultParams returns the stock thresholds.
func DefaultParams() Params {
	return Params{
		LiquidationRatio: indicator.DefaultLiquidationRatio,
		PriceTrendWindow: indicator.DefaultPriceTrendWindow,
		Setup:            DefaultSetupParams(),
	}
}

// Decide applies the rule table. Rules run in order and later rules overwrite
// earlier ones, so the neutral rule always has the final word.
func Decide(ind models.Indicators) (models.Signal, string) {
	signal, comment := models.SignalWait, CommentNoSetup

	if ind.WhaleTrend == models.TrendDecreasing && ind.OITrend == models.TrendIncreasing {
		if ind.CVDSignal == models.CVDBearish || ind.LiquidationBias == models.LiquidationLong {
			signal, comment = models.SignalShort, CommentShort
		}
	}

	if ind.WhaleTrend == models.TrendIncreasing && ind.OITrend == models.TrendIncreasing {
		if ind.CVDSignal == models.CVDBullish || ind.LiquidationBias == models.LiquidationShort {
			signal, comment = models.SignalLong, CommentLong
		}
	}

	if ind.WhaleTrend == models.TrendNeutral || ind.OITrend == models.TrendNeutral {
		signal, comment = models.SignalWait, CommentNeutral
	}

	return signal, comment
}

// ComputeIndicators derives the four indicators from a chronological
// snapshot. Short series degrade to neutral labels.
func ComputeIndicators(snap models.MarketSnapshot, params Params) models.Indicators {
	bias := indicator.ClassifyLiquidationBias(snap.Liquidations, params.LiquidationRatio)
	oiTrend := indicator.ClassifyTrend(snap.OpenInterest)
	priceTrend := indicator.PriceTrend(snap.Candles, params.PriceTrendWindow)

	return models.Indicators{
		WhaleTrend:      indicator.EstimateWhaleTrend(priceTrend, oiTrend, bias),
		OITrend:         oiTrend,
		CVDSignal:       indicator.ClassifyCVD(indicator.ComputeCVD(snap.Trades)),
		LiquidationBias: bias,
	}
}

// Evaluate turns a snapshot into a SignalResult stamped with now.
func Evaluate(snap models.MarketSnapshot, params Params, now time.Time) models.SignalResult {
	ind := ComputeIndicators(snap, params)
	signal, comment := Decide(ind)
	return models.SignalResult{
		Instrument: snap.Instrument,
		Timestamp:  now.UTC(),
		Indicators: ind,
		Signal:     signal,
		Comment:    comment,
	}
}
