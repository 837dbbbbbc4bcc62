package indicator

import (
	"testing"

	"whalesignal/internal/models"
)

func TestEstimateWhaleTrend(t *testing.T) {
	up, down, flat := models.TrendIncreasing, models.TrendDecreasing, models.TrendNeutral
	cases := []struct {
		name  string
		price models.Trend
		oi    models.Trend
		bias  models.LiquidationBias
		want  models.Trend
	}{
		{"accumulation", up, up, models.LiquidationShort, up},
		{"distribution", down, up, models.LiquidationLong, down},
		{"price up wrong bias", up, up, models.LiquidationLong, flat},
		{"price up no bias", up, up, models.LiquidationNone, flat},
		{"oi falling", up, down, models.LiquidationShort, flat},
		{"oi flat", down, flat, models.LiquidationLong, flat},
		{"price flat", flat, up, models.LiquidationShort, flat},
		{"price down wrong bias", down, up, models.LiquidationShort, flat},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := EstimateWhaleTrend(tc.price, tc.oi, tc.bias); got != tc.want {
				t.Fatalf("EstimateWhaleTrend = %s, want %s", got, tc.want)
			}
		})
	}
}
