package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bedwetter/bedwetter/internal/model"
)

type fakeSource struct {
	data  model.ForecastData
	err   error
	calls int
}

func (f *fakeSource) Fetch(ctx context.Context) (model.ForecastData, error) {
	f.calls++
	return f.data, f.err
}

type fakeLedger struct {
	last time.Time
	err  error
}

func (f *fakeLedger) Get() (time.Time, error) { return f.last, f.err }
func (f *fakeLedger) Set(t time.Time) error   { f.last = t; return nil }

var now = time.Date(2024, time.June, 14, 6, 0, 0, 0, time.UTC)

func newEngine(src *fakeSource, led *fakeLedger, thresholdDays, thresholdPercent int) *Engine {
	return New(Config{
		ThresholdDays:    thresholdDays,
		ThresholdPercent: thresholdPercent,
		Duration:         90 * time.Second,
		FetchTimeout:     time.Second,
	}, src, led, nil)
}

func TestDrySpellShortCircuitsForecast(t *testing.T) {
	// 4 days since last watering with a 3-day threshold: the forecast
	// source must not even be queried.
	src := &fakeSource{data: model.ForecastData{PrecipProbability: 0}}
	led := &fakeLedger{last: now.Add(-4 * 24 * time.Hour)}
	e := newEngine(src, led, 3, 50)

	d := e.Decide(context.Background(), now)
	if !d.ShouldWater || d.Reason != model.ReasonScheduled {
		t.Fatalf("got %+v, want scheduled watering", d)
	}
	if src.calls != 0 {
		t.Errorf("forecast queried %d times, want 0", src.calls)
	}
	if d.Duration != 90*time.Second {
		t.Errorf("duration = %v, want 90s", d.Duration)
	}
}

func TestDrySpellWinsEvenWhenForecastUnreachable(t *testing.T) {
	src := &fakeSource{err: errors.New("timeout")}
	led := &fakeLedger{last: now.Add(-4 * 24 * time.Hour)}
	e := newEngine(src, led, 3, 50)

	d := e.Decide(context.Background(), now)
	if !d.ShouldWater || d.Reason != model.ReasonScheduled {
		t.Fatalf("got %+v, want scheduled watering", d)
	}
	if src.calls != 0 {
		t.Errorf("forecast queried %d times, want 0", src.calls)
	}
}

func TestUnsetLedgerForcesScheduled(t *testing.T) {
	src := &fakeSource{}
	led := &fakeLedger{} // zero time: never watered
	e := newEngine(src, led, 30, 50)

	d := e.Decide(context.Background(), now)
	if !d.ShouldWater || d.Reason != model.ReasonScheduled {
		t.Fatalf("got %+v, want scheduled watering", d)
	}
	if src.calls != 0 {
		t.Errorf("forecast queried %d times, want 0", src.calls)
	}
}

func TestLowRainProbabilityWaters(t *testing.T) {
	// Rain unlikely (10% < 50%): water.
	src := &fakeSource{data: model.ForecastData{PrecipProbability: 10, PrecipKind: "rain"}}
	led := &fakeLedger{last: now.Add(-24 * time.Hour)}
	e := newEngine(src, led, 30, 50)

	d := e.Decide(context.Background(), now)
	if !d.ShouldWater || d.Reason != model.ReasonForecast {
		t.Fatalf("got %+v, want forecast watering", d)
	}
}

func TestHighRainProbabilitySkips(t *testing.T) {
	src := &fakeSource{data: model.ForecastData{PrecipProbability: 80, PrecipKind: "rain"}}
	led := &fakeLedger{last: now.Add(-24 * time.Hour)}
	e := newEngine(src, led, 30, 50)

	d := e.Decide(context.Background(), now)
	if d.ShouldWater || d.Reason != model.ReasonForecast {
		t.Fatalf("got %+v, want forecast skip", d)
	}
}

func TestProbabilityAtThresholdSkips(t *testing.T) {
	src := &fakeSource{data: model.ForecastData{PrecipProbability: 50}}
	led := &fakeLedger{last: now.Add(-24 * time.Hour)}
	e := newEngine(src, led, 30, 50)

	if d := e.Decide(context.Background(), now); d.ShouldWater {
		t.Fatalf("got %+v, want no watering at exact threshold", d)
	}
}

func TestForecastErrorFailsClosed(t *testing.T) {
	src := &fakeSource{err: errors.New("connection refused")}
	led := &fakeLedger{last: now.Add(-24 * time.Hour)}
	e := newEngine(src, led, 30, 50)

	d := e.Decide(context.Background(), now)
	if d.ShouldWater {
		t.Fatal("watered on unavailable forecast")
	}
	if d.Reason != model.ReasonForecastUnavailable {
		t.Errorf("reason = %v, want forecastUnavailable", d.Reason)
	}
}

func TestLedgerErrorTreatedAsNeverWatered(t *testing.T) {
	src := &fakeSource{}
	led := &fakeLedger{err: errors.New("io error")}
	e := newEngine(src, led, 3, 50)

	d := e.Decide(context.Background(), now)
	if !d.ShouldWater || d.Reason != model.ReasonScheduled {
		t.Fatalf("got %+v, want scheduled watering on ledger error", d)
	}
}
