package rate

import (
	"net/http"
	"strings"

	"whalesignal/internal/metrics"
	"whalesignal/logger"
)

// ReportOkxUsedWeight parses the rate-limit headers of an OKX REST response
// and emits a `used_weight` gauge for the endpoint. Both the standard and the
// "X-" prefixed header variants are accepted. Responses without rate-limit
// headers emit nothing.
func ReportOkxUsedWeight(log *logger.Log, header http.Header, instrument, endpoint string) {
	used, ok := OkxUsedWeight(header)
	if !ok {
		return
	}
	metrics.EmitMetric(log, "okx_reader", "used_weight", used, "gauge", logger.Fields{
		"instrument": instrument,
		"endpoint":   endpoint,
	})
}

type okxRateEntry struct {
	value  int64
	window string
}

// OkxUsedWeight returns the highest request weight consumed in any window the
// headers describe. Used counts are taken directly; otherwise limit minus
// remaining is used.
func OkxUsedWeight(header http.Header) (int64, bool) {
	limits := windowValues(parseOkxRateEntries(header, "Rate-Limit-Limit", "X-RateLimit-Limit"))
	remaining := windowValues(parseOkxRateEntries(header, "Rate-Limit-Remaining", "X-RateLimit-Remaining"))
	used := windowValues(parseOkxRateEntries(header, "Rate-Limit-Used", "X-RateLimit-Used"))
	if len(limits) == 0 && len(remaining) == 0 && len(used) == 0 {
		return 0, false
	}

	best := int64(0)
	for _, v := range used {
		if v > best {
			best = v
		}
	}
	for window, limit := range limits {
		left, ok := remaining[window]
		if !ok {
			continue
		}
		if diff := limit - left; diff > best {
			best = diff
		}
	}
	return best, true
}

func windowValues(entries []okxRateEntry) map[string]int64 {
	m := make(map[string]int64)
	for _, e := range entries {
		if current, ok := m[e.window]; !ok || e.value > current {
			m[e.window] = e.value
		}
	}
	return m
}

func parseOkxRateEntries(header http.Header, names ...string) []okxRateEntry {
	var entries []okxRateEntry
	for _, name := range names {
		for _, raw := range header.Values(name) {
			for _, part := range strings.Split(raw, ",") {
				part = strings.TrimSpace(part)
				nums := extractInts(part)
				if len(nums) == 0 {
					continue
				}
				entries = append(entries, okxRateEntry{value: nums[0], window: extractOkxWindow(part)})
			}
		}
	}
	return entries
}

// extractOkxWindow returns the "window=..." or "w=..." qualifier of a header
// value, lower-cased, or "" when absent.
func extractOkxWindow(s string) string {
	lower := strings.ToLower(s)
	for _, prefix := range []string{"window=", "w="} {
		idx := strings.Index(lower, prefix)
		if idx == -1 {
			continue
		}
		end := strings.IndexAny(lower[idx:], "; ,")
		if end == -1 {
			return lower[idx:]
		}
		return lower[idx : idx+end]
	}
	return ""
}
