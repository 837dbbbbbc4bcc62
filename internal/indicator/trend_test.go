package indicator

import (
	"testing"
	"time"

	"whalesignal/internal/models"
)

func TestClassifyTrend(t *testing.T) {
	cases := []struct {
		name   string
		series models.Series
		want   models.Trend
	}{
		{"empty", nil, models.TrendNeutral},
		{"single", models.Series{42}, models.TrendNeutral},
		{"up", models.Series{1, 2}, models.TrendIncreasing},
		{"down", models.Series{2, 1}, models.TrendDecreasing},
		{"flat", models.Series{5, 5}, models.TrendNeutral},
		{"only last two count", models.Series{100, 1, 2}, models.TrendIncreasing},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifyTrend(tc.series); got != tc.want {
				t.Fatalf("ClassifyTrend(%v) = %s, want %s", tc.series, got, tc.want)
			}
		})
	}
}

func closes(values ...float64) []models.Candle {
	base := time.Unix(1700000000, 0)
	out := make([]models.Candle, len(values))
	for i, v := range values {
		out[i] = models.Candle{Timestamp: base.Add(time.Duration(i) * 15 * time.Minute), Open: v, High: v, Low: v, Close: v}
	}
	return out
}

func TestPriceTrendUsesMostRecentWindow(t *testing.T) {
	// The oldest candle is far above the rest. Only the last five matter.
	candles := closes(10, 1, 2, 3, 4, 5)
	if got := PriceTrend(candles, 5); got != models.TrendIncreasing {
		t.Fatalf("PriceTrend = %s, want increasing", got)
	}
	if got := PriceTrend(candles, 6); got != models.TrendDecreasing {
		t.Fatalf("PriceTrend over full window = %s, want decreasing", got)
	}
}

func TestPriceTrendOrderSensitive(t *testing.T) {
	chrono := closes(1, 2, 3, 4, 5)
	reversed := closes(5, 4, 3, 2, 1)
	if PriceTrend(chrono, 5) == PriceTrend(reversed, 5) {
		t.Fatalf("price trend must depend on candle order")
	}
}

func TestPriceTrendDegenerate(t *testing.T) {
	if got := PriceTrend(closes(3), 5); got != models.TrendNeutral {
		t.Fatalf("single candle should be neutral, got %s", got)
	}
	if got := PriceTrend(closes(3, 3, 3), 5); got != models.TrendNeutral {
		t.Fatalf("flat closes should be neutral, got %s", got)
	}
	if got := PriceTrend(closes(1, 2, 3, 4, 5, 6), 0); got != models.TrendIncreasing {
		t.Fatalf("invalid window should fall back to default, got %s", got)
	}
}
