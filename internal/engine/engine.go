// Package engine decides whether to water on a given cycle.
package engine

import (
	"context"
	"log"
	"time"

	"github.com/bedwetter/bedwetter/internal/forecast"
	"github.com/bedwetter/bedwetter/internal/ledger"
	"github.com/bedwetter/bedwetter/internal/metrics"
	"github.com/bedwetter/bedwetter/internal/model"
)

// Config carries the two thresholds and the standard watering duration.
type Config struct {
	// ThresholdDays forces a watering once this many days have passed
	// since the last one, regardless of forecast.
	ThresholdDays int

	// ThresholdPercent is the precipitation-probability cutoff. A
	// forecast probability BELOW it means rain is unlikely, so we water.
	ThresholdPercent int

	// Duration is how long a scheduled watering runs.
	Duration time.Duration

	// FetchTimeout bounds the forecast lookup.
	FetchTimeout time.Duration
}

// Engine evaluates the watering rules. Decide never fails: forecast
// trouble degrades to a fail-closed "do not water" decision.
type Engine struct {
	cfg     Config
	source  forecast.Source
	ledger  ledger.Ledger
	metrics *metrics.Metrics
}

func New(cfg Config, src forecast.Source, led ledger.Ledger, m *metrics.Metrics) *Engine {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 10 * time.Second
	}
	return &Engine{cfg: cfg, source: src, ledger: led, metrics: m}
}

// Decide evaluates the rules at the given instant.
//
// The days rule is checked first and short-circuits the forecast lookup:
// a long dry spell wins even when rain is likely. An unset last-watered
// timestamp counts as infinitely long ago.
func (e *Engine) Decide(ctx context.Context, now time.Time) model.Decision {
	d := e.decide(ctx, now)
	e.metrics.Decision(string(d.Reason))
	return d
}

func (e *Engine) decide(ctx context.Context, now time.Time) model.Decision {
	last, err := e.ledger.Get()
	if err != nil {
		log.Printf("engine: ledger read failed, treating as never watered: %v", err)
		last = time.Time{}
	}

	dry := last.IsZero() || now.Sub(last) > time.Duration(e.cfg.ThresholdDays)*24*time.Hour
	if dry {
		log.Printf("engine: more than %d days since last watering, time to water", e.cfg.ThresholdDays)
		return model.Decision{ShouldWater: true, Reason: model.ReasonScheduled, Duration: e.cfg.Duration}
	}

	fctx, cancel := context.WithTimeout(ctx, e.cfg.FetchTimeout)
	defer cancel()
	fc, err := e.source.Fetch(fctx)
	if err != nil {
		// Fail closed: do not water on uncertain forecast data.
		log.Printf("engine: forecast unavailable: %v", err)
		return model.Decision{ShouldWater: false, Reason: model.ReasonForecastUnavailable}
	}

	// A LOW chance of rain means no water is coming, so we water.
	if fc.PrecipProbability < e.cfg.ThresholdPercent {
		log.Printf("engine: %d%% chance of precipitation in the next day, time to water", fc.PrecipProbability)
		return model.Decision{ShouldWater: true, Reason: model.ReasonForecast, Duration: e.cfg.Duration}
	}

	log.Printf("engine: %d%% chance of %s, not watering", fc.PrecipProbability, kindOrPrecip(fc.PrecipKind))
	return model.Decision{ShouldWater: false, Reason: model.ReasonForecast}
}

func kindOrPrecip(kind string) string {
	if kind == "" {
		return "precipitation"
	}
	return kind
}
