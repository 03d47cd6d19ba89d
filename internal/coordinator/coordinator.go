// Package coordinator owns the single watering state machine. Every
// relay actuation in the process goes through it, so the scheduler and
// the command listener can never race on the valve.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bedwetter/bedwetter/internal/ledger"
	"github.com/bedwetter/bedwetter/internal/metrics"
	"github.com/bedwetter/bedwetter/internal/model"
	"github.com/bedwetter/bedwetter/internal/notify"
	"github.com/bedwetter/bedwetter/internal/relay"
)

// ErrBusy is returned when a start or stop arrives while a cycle is
// already in flight. Overlapping waterings are rejected, never queued.
var ErrBusy = errors.New("coordinator: watering already in progress")

// ErrNotWatering is returned by StopManual when no cycle is running.
var ErrNotWatering = errors.New("coordinator: not watering")

// State of the watering machine.
type State int

const (
	StateIdle State = iota
	StateWatering
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateWatering:
		return "watering"
	case StateStopping:
		return "stopping"
	default:
		return "idle"
	}
}

// Coordinator sequences one watering cycle at a time: relay on, wait out
// the duration (or an early stop), relay off, verify, persist, report.
type Coordinator struct {
	valve relay.Driver
	sink  notify.Sink
	led   ledger.Ledger
	mx    *metrics.Metrics

	mu        sync.Mutex
	state     State
	startedAt time.Time
	planned   time.Duration
	stopCh    chan struct{}
	done      chan struct{}

	now   func() time.Time
	newID func() string
}

func New(valve relay.Driver, sink notify.Sink, led ledger.Ledger, mx *metrics.Metrics) *Coordinator {
	return &Coordinator{
		valve: valve,
		sink:  sink,
		led:   led,
		mx:    mx,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// State reports the machine's current state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// RunScheduledCycle executes one cycle for a scheduler decision. A
// decision not to water emits a single wateringSkipped event and touches
// no hardware. Returns ErrBusy if a cycle is already in flight.
func (c *Coordinator) RunScheduledCycle(ctx context.Context, d model.Decision) error {
	if !d.ShouldWater {
		msg := "Not watering today."
		if d.Reason == model.ReasonForecastUnavailable {
			msg = "Not watering today: forecast unavailable."
		}
		if err := c.sink.Send(model.EventWateringSkipped, msg); err != nil {
			log.Printf("coordinator: skip notification failed: %v", err)
		}
		return nil
	}
	return c.runCycle(ctx, d.Duration)
}

// StartManual runs a watering cycle outside the schedule. It blocks for
// the full duration; callers that must stay responsive run it in its own
// goroutine. Returns ErrBusy if a cycle is already in flight.
func (c *Coordinator) StartManual(ctx context.Context, duration time.Duration) error {
	return c.runCycle(ctx, duration)
}

// StopManual interrupts an in-flight cycle. The interrupted cycle emits
// its own terminal event. Returns ErrBusy while a previous stop is still
// settling and ErrNotWatering when idle.
func (c *Coordinator) StopManual() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case StateWatering:
		c.state = StateStopping
		close(c.stopCh)
		return nil
	case StateStopping:
		return ErrBusy
	default:
		return ErrNotWatering
	}
}

// Wait blocks until the in-flight cycle, if any, has finished its side
// effects and emitted its terminal event. Returns immediately when idle.
// Shutdown calls it so a cycle started from a command goroutine is not
// abandoned mid-report.
func (c *Coordinator) Wait() {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done != nil {
		<-done
	}
}

// ForceOff turns the valve off and verifies it, outside any cycle. Used
// as the final safety step during shutdown.
func (c *Coordinator) ForceOff() error {
	if err := c.valve.Deactivate(); err != nil {
		return fmt.Errorf("coordinator: force off: %w", err)
	}
	on, err := c.valve.IsActive()
	if err != nil {
		return fmt.Errorf("coordinator: verify off: %w", err)
	}
	if on {
		return errors.New("coordinator: valve still reports on")
	}
	return nil
}

func (c *Coordinator) runCycle(ctx context.Context, duration time.Duration) error {
	if duration <= 0 {
		return fmt.Errorf("coordinator: invalid duration %v", duration)
	}

	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return ErrBusy
	}
	id := c.newID()
	stop := make(chan struct{})
	done := make(chan struct{})
	c.state = StateWatering
	c.startedAt = c.now()
	c.planned = duration
	c.stopCh = stop
	c.done = done
	c.mu.Unlock()

	outcome, persistErr := c.water(ctx, id, duration, stop)

	c.mu.Lock()
	c.state = StateIdle
	c.stopCh = nil
	c.mu.Unlock()

	c.report(outcome, persistErr)

	// done closes only after the terminal event is out, so Wait covers
	// the full cycle including reporting. A new cycle may already have
	// installed its own done channel by now.
	c.mu.Lock()
	if c.done == done {
		c.done = nil
	}
	c.mu.Unlock()
	close(done)
	return nil
}

// water performs the strictly ordered side effects of one cycle:
// relay-on, wait (interruptible), relay-off, verify, persist.
func (c *Coordinator) water(ctx context.Context, id string, duration time.Duration, stop <-chan struct{}) (model.CycleOutcome, error) {
	out := model.CycleOutcome{CycleID: id}

	if err := c.valve.Activate(); err != nil {
		log.Printf("coordinator: activate failed: %v", err)
		return out, nil
	}
	on, err := c.valve.IsActive()
	if err != nil || !on {
		log.Printf("coordinator: valve did not report on (on=%v err=%v)", on, err)
		if err := c.valve.Deactivate(); err != nil {
			log.Printf("coordinator: deactivate after failed start: %v", err)
		}
		return out, nil
	}
	out.Started = true
	log.Printf("coordinator: watering for %v (cycle %s)", duration, id)
	if err := c.sink.Send(model.EventWateringStarted, fmt.Sprintf("Watering for %d seconds (cycle %s)", int(duration.Seconds()), id)); err != nil {
		log.Printf("coordinator: start notification failed: %v", err)
	}

	timer := time.NewTimer(duration)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-stop:
		out.Stopped = true
		log.Printf("coordinator: cycle %s stopped early", id)
	case <-ctx.Done():
		out.Stopped = true
		log.Printf("coordinator: cycle %s interrupted by shutdown", id)
	}

	if err := c.valve.Deactivate(); err != nil {
		log.Printf("coordinator: deactivate failed: %v", err)
	}
	still, err := c.valve.IsActive()
	if err != nil {
		log.Printf("coordinator: verify after deactivate failed: %v", err)
		return out, nil
	}
	if still {
		// Runaway: the relay refuses to confirm off. Surfaced, not retried.
		return out, nil
	}
	out.Succeeded = true

	if err := c.led.Set(c.now()); err != nil {
		return out, err
	}
	return out, nil
}

// report emits exactly one terminal event for the cycle.
func (c *Coordinator) report(out model.CycleOutcome, persistErr error) {
	event := out.Event()
	var msg string
	switch event {
	case model.EventWateringSuccess:
		msg = fmt.Sprintf("Watering succeeded (cycle %s)", out.CycleID)
		if out.Stopped {
			msg = fmt.Sprintf("Watering stopped early (cycle %s)", out.CycleID)
		}
	case model.EventWateringRunaway:
		msg = fmt.Sprintf("Watering failed to stop! (cycle %s)", out.CycleID)
	default:
		msg = fmt.Sprintf("Watering failed (cycle %s)", out.CycleID)
	}
	if persistErr != nil {
		// The watering itself happened; only the ledger write failed.
		event = model.EventWateringFailure
		msg = fmt.Sprintf("Watering completed but last-watered update failed: %v (cycle %s)", persistErr, out.CycleID)
	}

	c.mx.Cycle(event)
	if err := c.sink.Send(event, msg); err != nil {
		log.Printf("coordinator: outcome notification failed: %v", err)
	}
}
