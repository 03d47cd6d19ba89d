package listener

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bedwetter/bedwetter/internal/coordinator"
	"github.com/bedwetter/bedwetter/pkg/mqttbus"
)

type fakeControls struct {
	mu        sync.Mutex
	starts    []time.Duration
	stops     int
	startErr  error
	stopErr   error
	startedCh chan struct{}
}

func (f *fakeControls) StartManual(ctx context.Context, d time.Duration) error {
	f.mu.Lock()
	f.starts = append(f.starts, d)
	f.mu.Unlock()
	if f.startedCh != nil {
		f.startedCh <- struct{}{}
	}
	return f.startErr
}

func (f *fakeControls) StopManual() error {
	f.mu.Lock()
	f.stops++
	f.mu.Unlock()
	return f.stopErr
}

func (f *fakeControls) startDurations() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]time.Duration, len(f.starts))
	copy(out, f.starts)
	return out
}

type fakeSkipper struct {
	mu    sync.Mutex
	skips int
}

func (f *fakeSkipper) SkipNext() {
	f.mu.Lock()
	f.skips++
	f.mu.Unlock()
}

func (f *fakeSkipper) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.skips
}

type fakeConsumer struct {
	mu         sync.Mutex
	handler    mqttbus.Handler
	consumeErr error
}

func (f *fakeConsumer) SetHandler(h mqttbus.Handler) {
	f.mu.Lock()
	f.handler = h
	f.mu.Unlock()
}

func (f *fakeConsumer) Consume(ctx context.Context) error {
	if f.consumeErr != nil {
		return f.consumeErr
	}
	<-ctx.Done()
	return nil
}

// deliver feeds one message through the wired handler, the way the real
// consumer does from its subscription callback.
func (f *fakeConsumer) deliver(topic string, payload []byte) error {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	return h(topic, payload)
}

func (f *fakeConsumer) wired() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handler != nil
}

func newTestListener(t *testing.T, controls *fakeControls, skipper *fakeSkipper) (*Listener, *fakeConsumer, context.CancelFunc) {
	t.Helper()
	consumer := &fakeConsumer{}
	l := New(consumer, controls, skipper, nil, 90*time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	go l.Start(ctx)
	// Wait for the handler to be wired.
	deadline := time.Now().Add(time.Second)
	for !consumer.wired() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if !consumer.wired() {
		t.Fatal("handler never wired")
	}
	return l, consumer, cancel
}

func TestStartWithDefaultDuration(t *testing.T) {
	controls := &fakeControls{startedCh: make(chan struct{}, 1)}
	skipper := &fakeSkipper{}
	_, consumer, cancel := newTestListener(t, controls, skipper)
	defer cancel()

	consumer.deliver("garden/bedwetter/cmd/wateringStart", nil)

	select {
	case <-controls.startedCh:
	case <-time.After(time.Second):
		t.Fatal("StartManual never called")
	}
	got := controls.startDurations()
	if len(got) != 1 || got[0] != 90*time.Second {
		t.Errorf("starts = %v, want one start of 90s", got)
	}
}

func TestStartWithExplicitDuration(t *testing.T) {
	controls := &fakeControls{startedCh: make(chan struct{}, 1)}
	_, consumer, cancel := newTestListener(t, controls, &fakeSkipper{})
	defer cancel()

	consumer.deliver("garden/bedwetter/cmd/wateringStart", []byte("30"))

	select {
	case <-controls.startedCh:
	case <-time.After(time.Second):
		t.Fatal("StartManual never called")
	}
	got := controls.startDurations()
	if len(got) != 1 || got[0] != 30*time.Second {
		t.Errorf("starts = %v, want one start of 30s", got)
	}
}

func TestMalformedStartPayloadIgnored(t *testing.T) {
	controls := &fakeControls{}
	_, consumer, cancel := newTestListener(t, controls, &fakeSkipper{})
	defer cancel()

	consumer.deliver("garden/bedwetter/cmd/wateringStart", []byte("soon"))
	consumer.deliver("garden/bedwetter/cmd/wateringStart", []byte("-5"))
	consumer.deliver("garden/bedwetter/cmd/wateringStart", []byte("0"))

	time.Sleep(50 * time.Millisecond)
	if got := controls.startDurations(); len(got) != 0 {
		t.Errorf("starts = %v, want none for malformed payloads", got)
	}
}

func TestStop(t *testing.T) {
	controls := &fakeControls{}
	_, consumer, cancel := newTestListener(t, controls, &fakeSkipper{})
	defer cancel()

	consumer.deliver("garden/bedwetter/cmd/wateringStop", nil)

	if controls.stops != 1 {
		t.Errorf("stops = %d, want 1", controls.stops)
	}
}

func TestStopErrorsAreSwallowed(t *testing.T) {
	controls := &fakeControls{stopErr: coordinator.ErrNotWatering}
	_, consumer, cancel := newTestListener(t, controls, &fakeSkipper{})
	defer cancel()

	if err := consumer.deliver("garden/bedwetter/cmd/wateringStop", nil); err != nil {
		t.Errorf("handler returned %v, want nil", err)
	}
}

func TestSkip(t *testing.T) {
	skipper := &fakeSkipper{}
	_, consumer, cancel := newTestListener(t, &fakeControls{}, skipper)
	defer cancel()

	consumer.deliver("garden/bedwetter/cmd/wateringSkip", nil)

	if got := skipper.count(); got != 1 {
		t.Errorf("skips = %d, want 1", got)
	}
}

func TestDuplicateDeliveryDropped(t *testing.T) {
	// An identical message arriving again inside the redelivery window
	// is treated as a QoS 1 redelivery, not a second command.
	skipper := &fakeSkipper{}
	_, consumer, cancel := newTestListener(t, &fakeControls{}, skipper)
	defer cancel()

	consumer.deliver("garden/bedwetter/cmd/wateringSkip", nil)
	consumer.deliver("garden/bedwetter/cmd/wateringSkip", nil)

	if got := skipper.count(); got != 1 {
		t.Errorf("skips = %d, want 1 after duplicate delivery", got)
	}
}

func TestUnknownCommandIgnored(t *testing.T) {
	controls := &fakeControls{}
	skipper := &fakeSkipper{}
	_, consumer, cancel := newTestListener(t, controls, skipper)
	defer cancel()

	if err := consumer.deliver("garden/bedwetter/cmd/wateringDance", []byte("x")); err != nil {
		t.Errorf("handler returned %v, want nil", err)
	}
	time.Sleep(20 * time.Millisecond)
	if len(controls.startDurations()) != 0 || controls.stops != 0 || skipper.count() != 0 {
		t.Error("unknown command triggered an action")
	}
}

func TestBusyStartLoggedNotFatal(t *testing.T) {
	controls := &fakeControls{startErr: coordinator.ErrBusy, startedCh: make(chan struct{}, 1)}
	_, consumer, cancel := newTestListener(t, controls, &fakeSkipper{})
	defer cancel()

	if err := consumer.deliver("garden/bedwetter/cmd/wateringStart", []byte("10")); err != nil {
		t.Errorf("handler returned %v, want nil", err)
	}
	select {
	case <-controls.startedCh:
	case <-time.After(time.Second):
		t.Fatal("StartManual never called")
	}
}

func TestSubscribeFailureSurfaces(t *testing.T) {
	consumer := &fakeConsumer{consumeErr: errors.New("subscribe refused")}
	l := New(consumer, &fakeControls{}, &fakeSkipper{}, nil, time.Second)

	if err := l.Start(context.Background()); err == nil {
		t.Fatal("expected error when the subscription fails")
	}
}
