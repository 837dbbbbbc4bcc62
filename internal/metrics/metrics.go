// Registers:
//
//	#whalesignal_cycles_total{outcome}
//	#whalesignal_signals_total{signal}
//	#whalesignal_fetch_errors_total{source}
//	#whalesignal_notification_failures_total{notifier}
//	#whalesignal_skipped_ticks_total
//	#whalesignal_cycle_duration_seconds
//	#go_* and process_* system metrics
//
// The dashboard exposes them on /metrics using the Prometheus HTTP handler.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Cycle outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomeTimeout = "timeout"
)

// Collectors groups the Prometheus instruments of the evaluation loop. A nil
// *Collectors is valid and records nothing.
type Collectors struct {
	cycles         *prometheus.CounterVec
	signals        *prometheus.CounterVec
	fetchErrors    *prometheus.CounterVec
	notifyFailures *prometheus.CounterVec
	skippedTicks   prometheus.Counter
	cycleDuration  prometheus.Histogram
}

var (
	once     sync.Once
	defaults *Collectors
)

// Init registers the collectors and the Go/process collectors on the default
// Prometheus registry. Subsequent calls return the same instance.
func Init() *Collectors {
	once.Do(func() {
		defaults = NewCollectors(prometheus.DefaultRegisterer)
		_ = prometheus.Register(collectors.NewGoCollector())
		_ = prometheus.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
	return defaults
}

// NewCollectors builds the instruments and registers them on reg.
func NewCollectors(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "whalesignal_cycles_total",
			Help: "Number of evaluation cycles by outcome",
		}, []string{"outcome"}),
		signals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "whalesignal_signals_total",
			Help: "Number of signals emitted by type",
		}, []string{"signal"}),
		fetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "whalesignal_fetch_errors_total",
			Help: "Number of failed upstream fetches by source",
		}, []string{"source"}),
		notifyFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "whalesignal_notification_failures_total",
			Help: "Number of undelivered notifications by notifier",
		}, []string{"notifier"}),
		skippedTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "whalesignal_skipped_ticks_total",
			Help: "Ticks skipped because the previous cycle was still running",
		}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "whalesignal_cycle_duration_seconds",
			Help:    "Wall time of one evaluation cycle",
			Buckets: prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		for _, col := range []prometheus.Collector{c.cycles, c.signals, c.fetchErrors, c.notifyFailures, c.skippedTicks, c.cycleDuration} {
			_ = reg.Register(col)
		}
	}
	return c
}

// ObserveCycle records the outcome and duration of one cycle.
func (c *Collectors) ObserveCycle(outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.cycles.WithLabelValues(outcome).Inc()
	c.cycleDuration.Observe(d.Seconds())
}

func (c *Collectors) ObserveSignal(signal string) {
	if c == nil {
		return
	}
	c.signals.WithLabelValues(signal).Inc()
}

func (c *Collectors) FetchError(source string) {
	if c == nil {
		return
	}
	c.fetchErrors.WithLabelValues(source).Inc()
}

func (c *Collectors) NotificationFailure(notifier string) {
	if c == nil {
		return
	}
	c.notifyFailures.WithLabelValues(notifier).Inc()
}

func (c *Collectors) SkippedTick() {
	if c == nil {
		return
	}
	c.skippedTicks.Inc()
}
