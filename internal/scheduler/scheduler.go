// Package scheduler fires watering cycles at cron-computed times and
// carries the skip-next flag.
package scheduler

import (
	"context"
	"errors"
	"log"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bedwetter/bedwetter/internal/coordinator"
	"github.com/bedwetter/bedwetter/internal/metrics"
	"github.com/bedwetter/bedwetter/internal/model"
	"github.com/bedwetter/bedwetter/internal/notify"
)

// DefaultPollInterval bounds how long cancellation can go unobserved
// during the coarse phase of the sleep loop.
const DefaultPollInterval = 10 * time.Second

// Decider produces a fresh Decision for one occurrence.
type Decider interface {
	Decide(ctx context.Context, now time.Time) model.Decision
}

// CycleRunner executes one scheduled cycle.
type CycleRunner interface {
	RunScheduledCycle(ctx context.Context, d model.Decision) error
}

// Scheduler wakes close to each cron fire time and either runs a cycle
// or consumes the skip flag. One long-lived Run goroutine per process.
type Scheduler struct {
	sched   cron.Schedule
	decider Decider
	runner  CycleRunner
	sink    notify.Sink
	mx      *metrics.Metrics
	poll    time.Duration
	skip    atomic.Bool

	now func() time.Time
}

func New(sched cron.Schedule, decider Decider, runner CycleRunner, sink notify.Sink, mx *metrics.Metrics, poll time.Duration) *Scheduler {
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	return &Scheduler{
		sched:   sched,
		decider: decider,
		runner:  runner,
		sink:    sink,
		mx:      mx,
		poll:    poll,
		now:     time.Now,
	}
}

// SkipNext marks the next occurrence to be skipped. Idempotent: calling
// it repeatedly before the next fire has the effect of calling it once.
func (s *Scheduler) SkipNext() {
	s.skip.Store(true)
}

// Run is the background loop. It recomputes the time until the next
// occurrence on every iteration (coarse polls, then one fine sleep) so
// cancellation is observed within the poll interval and clock drift
// during long sleeps cannot push the firing far off target.
func (s *Scheduler) Run(ctx context.Context) {
	log.Printf("scheduler: started (poll %v)", s.poll)
	for {
		if ctx.Err() != nil {
			log.Println("scheduler: stopped")
			return
		}
		now := s.now()
		next := s.sched.Next(now)
		if next.IsZero() {
			log.Println("scheduler: schedule has no future occurrence, stopping")
			return
		}
		remaining := next.Sub(now)
		if remaining > s.poll {
			if !sleep(ctx, s.poll) {
				log.Println("scheduler: stopped")
				return
			}
			continue
		}

		log.Printf("scheduler: next fire in %v", remaining)
		if !sleep(ctx, remaining) {
			log.Println("scheduler: stopped")
			return
		}
		s.fire(ctx)
	}
}

func (s *Scheduler) fire(ctx context.Context) {
	if s.skip.CompareAndSwap(true, false) {
		log.Println("scheduler: skipping this occurrence")
		s.mx.Skip()
		if err := s.sink.Send(model.EventWateringSkipped, "Watering skipped"); err != nil {
			log.Printf("scheduler: skip notification failed: %v", err)
		}
		return
	}

	d := s.decider.Decide(ctx, s.now())
	if err := s.runner.RunScheduledCycle(ctx, d); err != nil {
		if errors.Is(err, coordinator.ErrBusy) {
			log.Println("scheduler: cycle already in flight, occurrence dropped")
			return
		}
		log.Printf("scheduler: cycle failed: %v", err)
	}
}

// sleep waits for d or until ctx is cancelled. Returns false on cancel.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
