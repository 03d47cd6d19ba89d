// Package history records controller events to InfluxDB so watering
// activity can be charted next to the rest of the garden telemetry. The
// recorder listens on the controller's own event topic; it is optional
// and the control loop never depends on it.
package history

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/bedwetter/bedwetter/pkg/mqttbus"
)

// InfluxConfig carries the InfluxDB connection settings.
type InfluxConfig struct {
	URL         string
	Token       string
	Org         string
	Bucket      string
	Measurement string
}

// Recorder subscribes to event messages and writes one point per event.
type Recorder struct {
	consumer    mqttbus.Consumer
	writeAPI    api.WriteAPIBlocking
	measurement string
	now         func() time.Time
}

func NewRecorder(consumer mqttbus.Consumer, cfg InfluxConfig) (*Recorder, error) {
	if cfg.URL == "" || cfg.Token == "" || cfg.Org == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("history: influx config incomplete")
	}
	measurement := cfg.Measurement
	if measurement == "" {
		measurement = "bedwetter_event"
	}

	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &Recorder{
		consumer:    consumer,
		writeAPI:    client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		measurement: measurement,
		now:         time.Now,
	}, nil
}

// Start consumes events until ctx is cancelled.
func (r *Recorder) Start(ctx context.Context) error {
	r.consumer.SetHandler(func(topic string, payload []byte) error {
		event := topic[strings.LastIndex(topic, "/")+1:]
		if event == "" {
			log.Printf("history: odd event topic %q, skipping", topic)
			return nil
		}

		point := influxdb2.NewPoint(
			r.measurement,
			map[string]string{"event": event},
			map[string]interface{}{"message": string(payload)},
			r.now(),
		)
		if err := r.writeAPI.WritePoint(ctx, point); err != nil {
			log.Printf("history: write error: %v", err)
			return err
		}
		log.Printf("history: recorded %s", event)
		return nil
	})
	return r.consumer.Consume(ctx)
}
