package indicator

import "whalesignal/internal/models"

// EstimateWhaleTrend infers large-participant positioning. Rising price and
// open interest while shorts are liquidated reads as accumulation; falling
// price and rising open interest while longs are liquidated reads as
// distribution. Anything short of a full match is neutral.
func EstimateWhaleTrend(priceTrend, oiTrend models.Trend, bias models.LiquidationBias) models.Trend {
	if oiTrend != models.TrendIncreasing {
		return models.TrendNeutral
	}
	switch {
	case priceTrend == models.TrendIncreasing && bias == models.LiquidationShort:
		return models.TrendIncreasing
	case priceTrend == models.TrendDecreasing && bias == models.LiquidationLong:
		return models.TrendDecreasing
	default:
		return models.TrendNeutral
	}
}
