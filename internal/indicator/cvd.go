package indicator

import "whalesignal/internal/models"

// ComputeCVD accumulates signed trade size into a running total, one point per
// trade. Trades must be chronological; buys add, sells subtract.
func ComputeCVD(trades []models.Trade) models.Series {
	cvd := make(models.Series, 0, len(trades))
	var cum float64
	for _, tr := range trades {
		switch tr.Side {
		case models.SideBuy:
			cum += tr.Size
		case models.SideSell:
			cum -= tr.Size
		}
		cvd = append(cvd, cum)
	}
	return cvd
}

// ClassifyCVD maps the direction of the last CVD step to buy/sell pressure.
func ClassifyCVD(cvd models.Series) models.CVDSignal {
	switch ClassifyTrend(cvd) {
	case models.TrendIncreasing:
		return models.CVDBullish
	case models.TrendDecreasing:
		return models.CVDBearish
	default:
		return models.CVDNeutral
	}
}
