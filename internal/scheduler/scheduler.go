// Package scheduler turns periodic ticks, manual requests and post-mutation
// invalidations into refresh runs. Runs never overlap; triggers that arrive
// while a run is in progress collapse into a single follow-up run.
package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"pontopology/internal/metrics"
)

// Trigger reasons.
const (
	ReasonStartup  = "startup"
	ReasonTick     = "tick"
	ReasonManual   = "manual"
	ReasonMutation = "mutation"
)

// Refresher is the piece of the pipeline the scheduler drives.
type Refresher interface {
	Run(ctx context.Context) error
	Invalidate()
}

// RefreshFunc adapts a function to Refresher with a no-op Invalidate.
type RefreshFunc func(ctx context.Context) error

func (f RefreshFunc) Run(ctx context.Context) error { return f(ctx) }
func (RefreshFunc) Invalidate()                     {}

type Scheduler struct {
	refresher Refresher
	interval  time.Duration
	pending   chan string
	metrics   *metrics.Registry
	log       *zap.Logger

	// OnError receives refresh failures; they are logged either way.
	OnError func(reason string, err error)
}

// New returns a scheduler ticking every interval. A non-positive interval
// disables the periodic tick; explicit triggers still work.
func New(r Refresher, interval time.Duration, m *metrics.Registry, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		refresher: r,
		interval:  interval,
		pending:   make(chan string, 1),
		metrics:   m,
		log:       log.Named("scheduler"),
	}
}

// Trigger requests a refresh. It never blocks; it reports false when a
// refresh was already pending and this request was merged into it.
func (s *Scheduler) Trigger(reason string) bool {
	select {
	case s.pending <- reason:
		s.record(reason, false)
		return true
	default:
		s.record(reason, true)
		s.log.Debug("refresh already pending, coalescing", zap.String("reason", reason))
		return false
	}
}

// InvalidateAndTrigger drops the cached snapshot and requests a rebuild. Used
// after the underlying entities were mutated.
func (s *Scheduler) InvalidateAndTrigger() bool {
	s.refresher.Invalidate()
	return s.Trigger(ReasonMutation)
}

// Run blocks until ctx is done. It refreshes once at startup, on every tick
// and on every trigger.
func (s *Scheduler) Run(ctx context.Context) error {
	var tick <-chan time.Time
	if s.interval > 0 {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	s.log.Info("scheduler started", zap.Duration("interval", s.interval))
	s.run(ctx, ReasonStartup)

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return ctx.Err()
		case <-tick:
			s.record(ReasonTick, false)
			s.run(ctx, ReasonTick)
		case reason := <-s.pending:
			s.run(ctx, reason)
		}
	}
}

func (s *Scheduler) run(ctx context.Context, reason string) {
	started := time.Now()
	err := s.refresher.Run(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.log.Error("scheduled refresh failed", zap.String("reason", reason), zap.Error(err))
		if s.OnError != nil {
			s.OnError(reason, err)
		}
		return
	}
	s.log.Debug("scheduled refresh done", zap.String("reason", reason), zap.Duration("took", time.Since(started)))
}

func (s *Scheduler) record(reason string, coalesced bool) {
	if s.metrics != nil {
		s.metrics.RecordTrigger(reason, coalesced)
	}
}
