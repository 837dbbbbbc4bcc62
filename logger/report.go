package logger

import (
	"context"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

var (
	warnsFetch       int64
	errorsFetch      int64
	warnsCycle       int64
	errorsCycle      int64
	cyclesSucceeded  int64
	cyclesFailed     int64
	notificationsOK  int64
	notificationsErr int64
)

func recordWarn(component string) {
	switch {
	case strings.HasPrefix(component, "okx"):
		atomic.AddInt64(&warnsFetch, 1)
	case strings.Contains(component, "scheduler"), strings.Contains(component, "evaluator"):
		atomic.AddInt64(&warnsCycle, 1)
	}
}

func recordError(component string) {
	switch {
	case strings.HasPrefix(component, "okx"):
		atomic.AddInt64(&errorsFetch, 1)
	case strings.Contains(component, "scheduler"), strings.Contains(component, "evaluator"):
		atomic.AddInt64(&errorsCycle, 1)
	}
}

// RecordCycle counts a finished evaluation cycle for the runtime report.
func RecordCycle(ok bool) {
	if ok {
		atomic.AddInt64(&cyclesSucceeded, 1)
		return
	}
	atomic.AddInt64(&cyclesFailed, 1)
}

// RecordNotification counts an alert delivery attempt for the runtime report.
func RecordNotification(ok bool) {
	if ok {
		atomic.AddInt64(&notificationsOK, 1)
		return
	}
	atomic.AddInt64(&notificationsErr, 1)
}

// StartReport begins periodic logging of host and cycle statistics until ctx
// is cancelled.
func StartReport(ctx context.Context, log *Log, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				logReport(log)
			}
		}
	}()
}

func reportFields() Fields {
	return Fields{
		"warns_fetch":          atomic.LoadInt64(&warnsFetch),
		"errors_fetch":         atomic.LoadInt64(&errorsFetch),
		"warns_cycle":          atomic.LoadInt64(&warnsCycle),
		"errors_cycle":         atomic.LoadInt64(&errorsCycle),
		"cycles_succeeded":     atomic.LoadInt64(&cyclesSucceeded),
		"cycles_failed":        atomic.LoadInt64(&cyclesFailed),
		"notifications_sent":   atomic.LoadInt64(&notificationsOK),
		"notifications_failed": atomic.LoadInt64(&notificationsErr),
		"goroutines":           runtime.NumGoroutine(),
	}
}

func logReport(log *Log) {
	fields := reportFields()

	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		fields["cpu_percent"] = pct[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		fields["memory_mb"] = int64(vm.Used) / 1024 / 1024
	}

	log.WithComponent("report").WithFields(fields).Info("runtime report")
}
