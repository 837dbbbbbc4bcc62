package indicator

import (
	"testing"

	"whalesignal/internal/models"
)

func TestClassifyLiquidationBias(t *testing.T) {
	cases := []struct {
		long, short int
		ratio       float64
		want        models.LiquidationBias
	}{
		{100, 50, 1.5, models.LiquidationLong},
		{151, 100, 1.5, models.LiquidationLong},
		{150, 100, 1.5, models.LiquidationNone},
		{100, 151, 1.5, models.LiquidationShort},
		{100, 150, 1.5, models.LiquidationNone},
		{0, 0, 1.5, models.LiquidationNone},
		{1, 0, 1.5, models.LiquidationLong},
		{0, 1, 1.5, models.LiquidationShort},
		{150, 100, 1.2, models.LiquidationLong},
		{150, 100, 2, models.LiquidationNone},
		{151, 100, 0, models.LiquidationLong},
		{150, 100, -1, models.LiquidationNone},
	}
	for _, tc := range cases {
		got := ClassifyLiquidationBias(models.LiquidationCount{Long: tc.long, Short: tc.short}, tc.ratio)
		if got != tc.want {
			t.Errorf("ClassifyLiquidationBias(%d, %d, %.1f) = %s, want %s", tc.long, tc.short, tc.ratio, got, tc.want)
		}
	}
}
