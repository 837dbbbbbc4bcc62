package rate

import (
	"net/http"
	"testing"

	"whalesignal/internal/metrics"
	"whalesignal/logger"
)

func TestOkxUsedWeight(t *testing.T) {
	cases := []struct {
		name   string
		header http.Header
		want   int64
		ok     bool
	}{
		{"no headers", http.Header{}, 0, false},
		{"used header", http.Header{"Rate-Limit-Used": {"7"}}, 7, true},
		{
			"limit minus remaining",
			http.Header{"Rate-Limit-Limit": {"20"}, "Rate-Limit-Remaining": {"14"}},
			6, true,
		},
		{
			"windows kept apart",
			http.Header{
				"X-Ratelimit-Limit":     {"20;w=2, 100;w=60"},
				"X-Ratelimit-Remaining": {"19;w=2, 70;w=60"},
			},
			30, true,
		},
		{
			"used beats difference",
			http.Header{"Rate-Limit-Used": {"9"}, "Rate-Limit-Limit": {"20"}, "Rate-Limit-Remaining": {"15"}},
			9, true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := OkxUsedWeight(tc.header)
			if ok != tc.ok || got != tc.want {
				t.Fatalf("got (%d, %v), want (%d, %v)", got, ok, tc.want, tc.ok)
			}
		})
	}
}

func TestExtractOkxWindow(t *testing.T) {
	if got := extractOkxWindow("20;W=2"); got != "w=2" {
		t.Fatalf("unexpected window %q", got)
	}
	if got := extractOkxWindow("20"); got != "" {
		t.Fatalf("expected empty window, got %q", got)
	}
}

func TestReportOkxUsedWeightEmits(t *testing.T) {
	var got []metrics.Metric
	id := metrics.RegisterMetricHandler(func(m metrics.Metric) { got = append(got, m) })
	t.Cleanup(func() { metrics.UnregisterMetricHandler(id) })

	ReportOkxUsedWeight(logger.GetLogger(), http.Header{"Rate-Limit-Used": {"3"}}, "SUI-USDT-SWAP", "candles")
	ReportOkxUsedWeight(logger.GetLogger(), http.Header{}, "SUI-USDT-SWAP", "candles")

	if len(got) != 1 {
		t.Fatalf("expected one metric, got %d", len(got))
	}
	if got[0].Name != "used_weight" || got[0].Value != int64(3) || got[0].Fields["endpoint"] != "candles" {
		t.Fatalf("unexpected metric %+v", got[0])
	}
}

func TestDetectOkxLimit(t *testing.T) {
	cases := []struct {
		code, msg string
		rate, ban bool
	}{
		{"50011", "Rate limit reached. Please refer to API documentation", true, false},
		{"0", "Too Many Requests", true, false},
		{"50061", "", false, true},
		{"1", "IP has been blocked for 60 seconds", false, true},
		{"51001", "Instrument ID does not exist", false, false},
	}
	for _, c := range cases {
		rl, ban := DetectOkxLimit(c.code, c.msg)
		if rl != c.rate || ban != c.ban {
			t.Errorf("code %s msg %q: got (%v, %v), want (%v, %v)", c.code, c.msg, rl, ban, c.rate, c.ban)
		}
	}
}

func TestReportOkxLimit(t *testing.T) {
	if ReportOkxLimit(nil, "SUI-USDT-SWAP", "trades", "0", "ok") {
		t.Fatalf("benign message must not be recorded")
	}
	if !ReportOkxLimit(nil, "SUI-USDT-SWAP", "trades", "50011", "") {
		t.Fatalf("rate limit code must be recorded")
	}
}
