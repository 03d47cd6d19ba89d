// Package forecast fetches the short-range precipitation outlook the
// decision engine consumes.
package forecast

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/bedwetter/bedwetter/internal/model"
)

// Source returns today's precipitation signal or fails. Errors never
// carry partial data; callers fail closed on them.
type Source interface {
	Fetch(ctx context.Context) (model.ForecastData, error)
}

// DefaultBaseURL is the WeatherFlow REST endpoint.
const DefaultBaseURL = "https://swd.weatherflow.com/swd/rest/better_forecast"

type wfDaily struct {
	DayNum            int     `json:"day_num"`
	PrecipProbability float64 `json:"precip_probability"`
	PrecipType        string  `json:"precip_type"`
}

type wfResponse struct {
	Forecast struct {
		Daily []wfDaily `json:"daily"`
	} `json:"forecast"`
}

// WeatherFlowClient queries the WeatherFlow better_forecast API. A
// circuit breaker sits in front of the HTTP call so a flapping API trips
// open instead of burning the timeout on every cycle.
type WeatherFlowClient struct {
	baseURL string
	apiKey  string
	lat     float64
	lon     float64
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	now     func() time.Time
}

// NewWeatherFlowClient builds a client with the given station settings.
// timeout bounds each request end to end.
func NewWeatherFlowClient(apiKey string, lat, lon float64, timeout time.Duration) *WeatherFlowClient {
	return &WeatherFlowClient{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		lat:     lat,
		lon:     lon,
		http:    &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "weatherflow",
			Timeout: 2 * time.Minute,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 3
			},
		}),
		now: time.Now,
	}
}

// Fetch returns the precipitation signal for the current day.
func (c *WeatherFlowClient) Fetch(ctx context.Context) (model.ForecastData, error) {
	res, err := c.breaker.Execute(func() (any, error) {
		return c.fetchToday(ctx)
	})
	if err != nil {
		return model.ForecastData{}, err
	}
	return res.(model.ForecastData), nil
}

func (c *WeatherFlowClient) fetchToday(ctx context.Context) (model.ForecastData, error) {
	if c.apiKey == "" {
		return model.ForecastData{}, fmt.Errorf("weatherflow: missing api key")
	}
	url := fmt.Sprintf("%s?api_key=%s&lat=%f&lon=%f", c.baseURL, c.apiKey, c.lat, c.lon)
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	resp, err := c.http.Do(req)
	if err != nil {
		return model.ForecastData{}, fmt.Errorf("weatherflow: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return model.ForecastData{}, fmt.Errorf("weatherflow: status %d: %s", resp.StatusCode, string(b))
	}

	var out wfResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return model.ForecastData{}, fmt.Errorf("weatherflow: decode: %w", err)
	}

	day := c.now().Day()
	for _, d := range out.Forecast.Daily {
		if d.DayNum == day {
			return model.ForecastData{
				PrecipProbability: int(d.PrecipProbability),
				PrecipKind:        d.PrecipType,
			}, nil
		}
	}
	return model.ForecastData{}, fmt.Errorf("weatherflow: no daily entry for day %d", day)
}
