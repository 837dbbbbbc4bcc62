package rate

import (
	"strings"

	"whalesignal/internal/metrics"
	"whalesignal/logger"
)

// OKX error codes signalling throttling.
const (
	okxCodeTooManyRequests = "50011"
	okxCodeIPRestricted    = "50061"
)

// DetectOkxLimit inspects an OKX error code and message and reports whether it
// signals a rate limit or an IP restriction.
func DetectOkxLimit(code, msg string) (rateLimit bool, ipBan bool) {
	lower := strings.ToLower(msg)
	ipBan = code == okxCodeIPRestricted ||
		(strings.Contains(lower, "ip") && (strings.Contains(lower, "blocked") || strings.Contains(lower, "ban")))
	rateLimit = !ipBan && (code == okxCodeTooManyRequests ||
		strings.Contains(lower, "too many requests") || strings.Contains(lower, "frequency limit"))
	return
}

// ReportOkxLimit records a rate_limit_exceeded or ip_ban counter when the
// code or message matches. It returns true if anything was recorded.
func ReportOkxLimit(log *logger.Log, instrument, endpoint, code, msg string) bool {
	rateLimit, ipBan := DetectOkxLimit(code, msg)
	if !rateLimit && !ipBan {
		return false
	}
	if log == nil {
		log = logger.GetLogger()
	}
	fields := logger.Fields{"instrument": instrument, "endpoint": endpoint}
	entry := log.WithComponent("okx_reader").WithFields(fields)
	if ipBan {
		metrics.EmitMetric(log, "okx_reader", "ip_ban", int64(1), "counter", fields)
		entry.Error("ip banned")
		return true
	}
	metrics.EmitMetric(log, "okx_reader", "rate_limit_exceeded", int64(1), "counter", fields)
	entry.Warn("rate limit exceeded")
	return true
}
