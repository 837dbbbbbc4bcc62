package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	appconfig "whalesignal/config"
	"whalesignal/internal/evaluator"
	"whalesignal/internal/metrics"
	"whalesignal/internal/models"
	"whalesignal/internal/reader/okx"
	"whalesignal/logger"
)

// SetupBuilder produces one trade setup per call.
type SetupBuilder interface {
	Instrument() string
	BuildTradeSetup(ctx context.Context) (models.TradeSetup, error)
}

// Sink receives every successfully built setup. Sinks must not block for
// longer than their own delivery timeout and handle their own failures.
type Sink interface {
	Publish(ctx context.Context, setup models.TradeSetup)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, setup models.TradeSetup)

func (f SinkFunc) Publish(ctx context.Context, setup models.TradeSetup) { f(ctx, setup) }

// Scheduler re-runs the evaluation on a fixed interval. At most one cycle
// runs at a time; ticks that arrive while a cycle is in flight are skipped.
type Scheduler struct {
	builder  SetupBuilder
	sinks    []Sink
	interval time.Duration
	timeout  time.Duration
	metrics  *metrics.Collectors
	log      *logger.Log

	// deliveryTimeout bounds sink delivery, separately from the fetch phase.
	deliveryTimeout time.Duration

	running atomic.Bool
	wg      sync.WaitGroup

	mu   sync.RWMutex
	last *models.TradeSetup
}

// New creates a scheduler. collectors may be nil.
func New(cfg *appconfig.Config, builder SetupBuilder, collectors *metrics.Collectors, sinks ...Sink) *Scheduler {
	interval := cfg.Scheduler.Interval
	if interval <= 0 {
		interval = 60 * time.Second
	}
	timeout := cfg.Scheduler.CycleTimeout
	if timeout <= 0 || timeout > interval {
		timeout = interval
	}
	return &Scheduler{
		builder:  builder,
		sinks:    sinks,
		interval: interval,
		timeout:  timeout,
		metrics:  collectors,
		log:      logger.GetLogger(),

		deliveryTimeout: timeout,
	}
}

// Run executes one cycle immediately and then one per tick until ctx is
// cancelled. It waits for the in-flight cycle before returning.
func (s *Scheduler) Run(ctx context.Context) error {
	log := s.log.WithComponent("scheduler").WithFields(logger.Fields{
		"instrument": s.builder.Instrument(),
		"interval":   s.interval.String(),
	})
	log.Info("scheduler started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.trigger(ctx)
	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			log.Info("scheduler stopped")
			return nil
		case <-ticker.C:
			s.trigger(ctx)
		}
	}
}

func (s *Scheduler) trigger(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		s.metrics.SkippedTick()
		s.log.WithComponent("scheduler").Warn("previous cycle still running, skipping tick")
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Store(false)
		s.RunCycle(ctx)
	}()
}

// RunCycle performs a single evaluation with its own timeout and cycle ID.
// Failures are logged and counted; they never propagate.
func (s *Scheduler) RunCycle(parent context.Context) {
	cycleID := uuid.NewString()
	ctx, cancel := context.WithTimeout(evaluator.WithCycleID(parent, cycleID), s.timeout)
	defer cancel()

	log := s.log.WithComponent("scheduler").WithCycle(cycleID).WithFields(logger.Fields{
		"instrument": s.builder.Instrument(),
	})

	start := time.Now()
	setup, err := s.builder.BuildTradeSetup(ctx)
	elapsed := time.Since(start)

	if err != nil {
		outcome := metrics.OutcomeError
		if errors.Is(err, context.DeadlineExceeded) {
			outcome = metrics.OutcomeTimeout
		}
		fields := logger.Fields{"outcome": outcome, "duration_ms": elapsed.Milliseconds()}
		var fe *okx.FetchError
		if errors.As(err, &fe) {
			fields["source"] = fe.Source
			s.metrics.FetchError(fe.Source)
		}
		log.WithError(err).WithFields(fields).Error("evaluation cycle failed")
		s.finish(outcome, elapsed)
		return
	}

	s.mu.Lock()
	s.last = &setup
	s.mu.Unlock()

	s.metrics.ObserveSignal(string(setup.Signal))
	metrics.EmitMetric(s.log, "scheduler", "signal", int64(1), "counter", logger.Fields{"signal": string(setup.Signal)})

	s.publish(parent, cycleID, setup)

	log.WithFields(logger.Fields{
		"signal":      setup.Signal,
		"actionable":  setup.Actionable(),
		"duration_ms": elapsed.Milliseconds(),
	}).Info("evaluation cycle completed")
	s.finish(metrics.OutcomeSuccess, elapsed)
}

// publish hands the setup to every sink under a fresh delivery budget, so a
// slow fetch phase cannot starve alert delivery.
func (s *Scheduler) publish(parent context.Context, cycleID string, setup models.TradeSetup) {
	ctx, cancel := context.WithTimeout(evaluator.WithCycleID(parent, cycleID), s.deliveryTimeout)
	defer cancel()
	for _, sink := range s.sinks {
		sink.Publish(ctx, setup)
	}
}

func (s *Scheduler) finish(outcome string, elapsed time.Duration) {
	logger.RecordCycle(outcome == metrics.OutcomeSuccess)
	s.metrics.ObserveCycle(outcome, elapsed)
	metrics.EmitMetric(s.log, "scheduler", "cycle_duration", elapsed.Milliseconds(), "gauge", logger.Fields{
		"outcome": outcome,
		"unit":    "milliseconds",
	})
}

// Last returns the most recent successful setup.
func (s *Scheduler) Last() (models.TradeSetup, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return models.TradeSetup{}, false
	}
	return *s.last, true
}
