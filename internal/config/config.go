// Package config loads and validates the controller configuration from
// a YAML file, with environment overrides for secrets.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bedwetter/bedwetter/internal/scheduler"
)

// DefaultPath is where the config lives on the device.
const DefaultPath = "/etc/bedwetter/bedwetter.yaml"

type MQTT struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
}

type Watering struct {
	CronSchedule        string `yaml:"cron_schedule"`
	UTC                 bool   `yaml:"utc"`
	ThresholdDays       int    `yaml:"threshold_days"`
	ThresholdPercent    int    `yaml:"threshold_percent"`
	DurationSeconds     int    `yaml:"duration_seconds"`
	PollIntervalSeconds int    `yaml:"poll_interval_seconds"`
}

type WeatherFlow struct {
	APIKey         string  `yaml:"api_key"`
	Latitude       float64 `yaml:"latitude"`
	Longitude      float64 `yaml:"longitude"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
}

type Notify struct {
	OnSuccess  bool `yaml:"on_success"`
	OnFailure  bool `yaml:"on_failure"`
	OnInaction bool `yaml:"on_inaction"`
	OnService  bool `yaml:"on_service"`
}

type Relay struct {
	Chip string `yaml:"chip"`
	Pin  int    `yaml:"pin"`
}

type Ledger struct {
	Path string `yaml:"path"`
}

type HTTP struct {
	Addr string `yaml:"addr"`
}

type Influx struct {
	URL         string `yaml:"url"`
	Token       string `yaml:"token"`
	Org         string `yaml:"org"`
	Bucket      string `yaml:"bucket"`
	Measurement string `yaml:"measurement"`
}

type Config struct {
	MQTT        MQTT        `yaml:"mqtt"`
	Watering    Watering    `yaml:"watering"`
	WeatherFlow WeatherFlow `yaml:"weatherflow"`
	Notify      Notify      `yaml:"notify"`
	Relay       Relay       `yaml:"relay"`
	Ledger      Ledger      `yaml:"ledger"`
	HTTP        HTTP        `yaml:"http"`
	Influx      Influx      `yaml:"influx"`
}

// Load reads, defaults, overrides and validates the config at path.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	host, _ := os.Hostname()
	return &Config{
		MQTT: MQTT{
			Port:     1883,
			Topic:    "garden/bedwetter",
			ClientID: fmt.Sprintf("bedwetter-%s", host),
		},
		Watering: Watering{
			ThresholdDays:       3,
			ThresholdPercent:    50,
			DurationSeconds:     90,
			PollIntervalSeconds: 10,
		},
		WeatherFlow: WeatherFlow{TimeoutSeconds: 10},
		Notify:      Notify{OnSuccess: true, OnFailure: true, OnService: true},
		Relay:       Relay{Chip: "gpiochip0", Pin: 13},
		Ledger:      Ledger{Path: "/var/lib/bedwetter/last_water"},
		HTTP:        HTTP{Addr: ":9090"},
		Influx:      Influx{Measurement: "bedwetter_event"},
	}
}

// applyEnv lets secrets come from the environment instead of the file.
func (c *Config) applyEnv() {
	if v := os.Getenv("BEDWETTER_MQTT_PASSWORD"); v != "" {
		c.MQTT.Password = v
	}
	if v := os.Getenv("BEDWETTER_WEATHERFLOW_API_KEY"); v != "" {
		c.WeatherFlow.APIKey = v
	}
	if v := os.Getenv("BEDWETTER_INFLUX_TOKEN"); v != "" {
		c.Influx.Token = v
	}
}

func (c *Config) validate() error {
	if c.MQTT.Host == "" {
		return fmt.Errorf("config: mqtt.host is required")
	}
	if c.MQTT.Port <= 0 || c.MQTT.Port > 65535 {
		return fmt.Errorf("config: mqtt.port %d out of range", c.MQTT.Port)
	}
	if c.MQTT.Topic == "" {
		return fmt.Errorf("config: mqtt.topic is required")
	}
	if c.Watering.CronSchedule == "" {
		return fmt.Errorf("config: watering.cron_schedule is required")
	}
	if _, err := scheduler.ParseSchedule(c.Watering.CronSchedule, c.Watering.UTC); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Watering.ThresholdDays <= 0 {
		return fmt.Errorf("config: watering.threshold_days must be positive")
	}
	if c.Watering.ThresholdPercent < 0 || c.Watering.ThresholdPercent > 100 {
		return fmt.Errorf("config: watering.threshold_percent %d out of range", c.Watering.ThresholdPercent)
	}
	if c.Watering.DurationSeconds <= 0 {
		return fmt.Errorf("config: watering.duration_seconds must be positive")
	}
	if c.WeatherFlow.APIKey == "" {
		return fmt.Errorf("config: weatherflow.api_key is required (or BEDWETTER_WEATHERFLOW_API_KEY)")
	}
	if c.Ledger.Path == "" {
		return fmt.Errorf("config: ledger.path is required")
	}
	return nil
}

// Duration returns the standard watering duration.
func (w Watering) Duration() time.Duration {
	return time.Duration(w.DurationSeconds) * time.Second
}

// PollInterval returns the scheduler's coarse poll interval.
func (w Watering) PollInterval() time.Duration {
	return time.Duration(w.PollIntervalSeconds) * time.Second
}

// Timeout returns the forecast request timeout.
func (wf WeatherFlow) Timeout() time.Duration {
	return time.Duration(wf.TimeoutSeconds) * time.Second
}

// HistoryEnabled reports whether the Influx recorder should run.
func (i Influx) HistoryEnabled() bool {
	return i.URL != ""
}
