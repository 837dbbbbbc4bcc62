package indicator

import "whalesignal/internal/models"

// DefaultLiquidationRatio is how lopsided liquidations must be before a side
// is considered dominant.
const DefaultLiquidationRatio = 1.5

// ClassifyLiquidationBias labels which side dominated forced closures. A side
// dominates when its count strictly exceeds the other side times ratio.
// A non-positive ratio falls back to DefaultLiquidationRatio.
func ClassifyLiquidationBias(count models.LiquidationCount, ratio float64) models.LiquidationBias {
	if ratio <= 0 {
		ratio = DefaultLiquidationRatio
	}
	long, short := float64(count.Long), float64(count.Short)
	switch {
	case long > short*ratio:
		return models.LiquidationLong
	case short > long*ratio:
		return models.LiquidationShort
	default:
		return models.LiquidationNone
	}
}
