package dashboard

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"whalesignal/internal/metrics"
	"whalesignal/logger"
)

// hostSample is one reading of host CPU, memory and disk usage.
type hostSample struct {
	Timestamp   time.Time `json:"timestamp"`
	CPUPercent  float64   `json:"cpu_percent"`
	MemoryUsed  uint64    `json:"memory_used"`
	MemoryTotal uint64    `json:"memory_total"`
	MemoryPct   float64   `json:"memory_percent"`
	DiskUsed    uint64    `json:"disk_used"`
	DiskTotal   uint64    `json:"disk_total"`
	DiskPct     float64   `json:"disk_percent"`
}

// hostSampler keeps a bounded ring of host samples and emits each one as
// percent gauges.
type hostSampler struct {
	ring     *ring[hostSample]
	interval time.Duration
	diskPath string
	log      *logger.Log

	cancel  context.CancelFunc
	running atomic.Bool
	wg      sync.WaitGroup
}

var (
	cpuPercentFn = func(ctx context.Context, interval time.Duration) ([]float64, error) {
		return cpu.PercentWithContext(ctx, interval, false)
	}
	memoryStatsFn = mem.VirtualMemoryWithContext
	diskUsageFn   = disk.UsageWithContext
)

func newHostSampler(limit int, interval time.Duration, diskPath string, log *logger.Log) *hostSampler {
	if interval <= 0 {
		interval = time.Second
	}
	if diskPath == "" {
		diskPath = "/"
	}
	return &hostSampler{
		ring:     newRing[hostSample](limit),
		interval: interval,
		diskPath: diskPath,
		log:      log,
	}
}

func (s *hostSampler) start(ctx context.Context) {
	if s == nil || s.running.Swap(true) {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Store(false)
		for ctx.Err() == nil {
			sample, ok := s.sample(ctx)
			if !ok {
				select {
				case <-ctx.Done():
				case <-time.After(s.interval):
				}
				continue
			}
			s.ring.push(sample)
			s.emit(sample)
		}
	}()
}

func (s *hostSampler) stop() {
	if s == nil {
		return
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *hostSampler) snapshot() []hostSample {
	if s == nil {
		return nil
	}
	return s.ring.snapshot()
}

// sample blocks for one CPU measuring interval.
func (s *hostSampler) sample(ctx context.Context) (hostSample, bool) {
	log := s.log.WithComponent("host_sampler")

	cpuSamples, err := cpuPercentFn(ctx, s.interval)
	if err != nil {
		log.WithError(err).Debug("failed to sample cpu usage")
		return hostSample{}, false
	}
	memStats, err := memoryStatsFn(ctx)
	if err != nil {
		log.WithError(err).Debug("failed to sample memory usage")
		return hostSample{}, false
	}
	diskStats, err := diskUsageFn(ctx, s.diskPath)
	if err != nil {
		log.WithError(err).Debug("failed to sample disk usage")
		return hostSample{}, false
	}

	out := hostSample{
		Timestamp:   time.Now(),
		MemoryUsed:  memStats.Used,
		MemoryTotal: memStats.Total,
		MemoryPct:   memStats.UsedPercent,
		DiskUsed:    diskStats.Used,
		DiskTotal:   diskStats.Total,
		DiskPct:     diskStats.UsedPercent,
	}
	if len(cpuSamples) > 0 {
		out.CPUPercent = cpuSamples[0]
	}
	return out, true
}

func (s *hostSampler) emit(sample hostSample) {
	fields := logger.Fields{"unit": "percent"}
	metrics.EmitMetric(s.log, "host_sampler", "cpu_percent", sample.CPUPercent, "gauge", fields)
	metrics.EmitMetric(s.log, "host_sampler", "memory_percent", sample.MemoryPct, "gauge", fields)
	metrics.EmitMetric(s.log, "host_sampler", "disk_percent", sample.DiskPct, "gauge", fields)
}
