package indicator

import (
	"math"

	"whalesignal/internal/models"
)

// ComputeATR returns the simple mean of true ranges over a chronological
// candle window. The first candle only seeds the previous close, so n candles
// produce n-1 true ranges. Fewer than two candles return 0 and
// ErrInsufficientData.
func ComputeATR(candles []models.Candle) (float64, error) {
	if len(candles) < 2 {
		return 0, ErrInsufficientData
	}
	var sum float64
	for i := 1; i < len(candles); i++ {
		sum += TrueRange(candles[i], candles[i-1].Close)
	}
	return sum / float64(len(candles)-1), nil
}

// TrueRange is the widest of the candle range and the gaps to prevClose.
func TrueRange(c models.Candle, prevClose float64) float64 {
	return math.Max(c.High-c.Low, math.Max(math.Abs(c.High-prevClose), math.Abs(c.Low-prevClose)))
}
