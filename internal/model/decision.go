package model

import "time"

// Reason explains why a Decision came out the way it did.
type Reason string

const (
	// ReasonScheduled means the days-since-last-watering rule fired.
	ReasonScheduled Reason = "scheduled"
	// ReasonForecast means the precipitation forecast drove the decision.
	ReasonForecast Reason = "forecast"
	// ReasonForecastUnavailable means the forecast could not be fetched
	// and the controller fell back to not watering.
	ReasonForecastUnavailable Reason = "forecastUnavailable"
)

// Decision is the outcome of one evaluation of the watering rules.
// It is produced fresh per cycle and never persisted.
type Decision struct {
	ShouldWater bool
	Reason      Reason
	Duration    time.Duration
}

// ForecastData is the precipitation signal returned by a forecast
// provider: probability of precipitation (0-100) for the current day and
// a categorical kind ("rain", "snow", ...) when the provider reports one.
type ForecastData struct {
	PrecipProbability int
	PrecipKind        string
}
