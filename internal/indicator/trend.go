package indicator

import "whalesignal/internal/models"

// ClassifyTrend compares the last two samples of a chronological series.
// Fewer than two samples yield TrendNeutral.
func ClassifyTrend(series models.Series) models.Trend {
	if len(series) < 2 {
		return models.TrendNeutral
	}
	last, prev := series[len(series)-1], series[len(series)-2]
	switch {
	case last > prev:
		return models.TrendIncreasing
	case last < prev:
		return models.TrendDecreasing
	default:
		return models.TrendNeutral
	}
}

// PriceTrend compares the close of the earliest and latest of the most recent
// window candles. Candles must be chronological.
func PriceTrend(candles []models.Candle, window int) models.Trend {
	if window < 2 {
		window = DefaultPriceTrendWindow
	}
	if len(candles) < 2 {
		return models.TrendNeutral
	}
	if len(candles) > window {
		candles = candles[len(candles)-window:]
	}
	return ClassifyTrend(models.Series{candles[0].Close, candles[len(candles)-1].Close})
}

// DefaultPriceTrendWindow is the number of recent candles PriceTrend spans.
const DefaultPriceTrendWindow = 5
