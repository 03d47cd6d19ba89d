// Package listener bridges inbound MQTT commands to the coordinator.
// It arbitrates nothing itself; all exclusion lives in the coordinator.
package listener

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/bedwetter/bedwetter/internal/coordinator"
	"github.com/bedwetter/bedwetter/internal/metrics"
	"github.com/bedwetter/bedwetter/pkg/dedup"
	"github.com/bedwetter/bedwetter/pkg/mqttbus"
)

// redeliveryWindow bounds how long an identical command is treated as a
// broker redelivery rather than a deliberate repeat.
const redeliveryWindow = 10 * time.Second

// Command topic suffixes under <base>/cmd/.
const (
	CmdStart = "wateringStart"
	CmdStop  = "wateringStop"
	CmdSkip  = "wateringSkip"
)

// Controls is the coordinator surface the listener drives.
type Controls interface {
	StartManual(ctx context.Context, duration time.Duration) error
	StopManual() error
}

// Skipper defers the next scheduled occurrence.
type Skipper interface {
	SkipNext()
}

// Listener subscribes to the command topic and maps messages to
// coordinator calls. Malformed or unknown commands are logged and
// ignored; nothing inbound can take the listener down.
type Listener struct {
	consumer        mqttbus.Consumer
	controls        Controls
	skipper         Skipper
	mx              *metrics.Metrics
	defaultDuration time.Duration
	window          *dedup.Window
}

func New(consumer mqttbus.Consumer, controls Controls, skipper Skipper, mx *metrics.Metrics, defaultDuration time.Duration) *Listener {
	return &Listener{
		consumer:        consumer,
		controls:        controls,
		skipper:         skipper,
		mx:              mx,
		defaultDuration: defaultDuration,
		window:          dedup.NewWindow(redeliveryWindow, 1024),
	}
}

// Start consumes commands until ctx is cancelled. A subscription
// failure is returned so the caller can surface it at startup.
func (l *Listener) Start(ctx context.Context) error {
	l.consumer.SetHandler(func(topic string, payload []byte) error {
		return l.handle(ctx, topic, payload)
	})
	return l.consumer.Consume(ctx)
}

func (l *Listener) handle(ctx context.Context, topic string, payload []byte) error {
	// Commands arrive at QoS 1; drop redeliveries of the same message.
	h := sha256.Sum256(append([]byte(topic+"|"), payload...))
	if l.window.Seen(hex.EncodeToString(h[:])) {
		log.Printf("listener: duplicate delivery on %s, ignoring", topic)
		return nil
	}

	cmd := topic[strings.LastIndex(topic, "/")+1:]
	switch cmd {
	case CmdStart:
		l.mx.Command(CmdStart)
		l.handleStart(ctx, payload)
	case CmdStop:
		l.mx.Command(CmdStop)
		l.handleStop()
	case CmdSkip:
		l.mx.Command(CmdSkip)
		log.Println("listener: skipping the next automatic watering")
		l.skipper.SkipNext()
	default:
		log.Printf("listener: unrecognized command %q, ignoring", cmd)
	}
	return nil
}

func (l *Listener) handleStart(ctx context.Context, payload []byte) {
	duration := l.defaultDuration
	if s := strings.TrimSpace(string(payload)); s != "" {
		secs, err := strconv.Atoi(s)
		if err != nil || secs <= 0 {
			log.Printf("listener: bad wateringStart payload %q, ignoring", s)
			return
		}
		duration = time.Duration(secs) * time.Second
	}

	// StartManual blocks for the watering duration; run it off the MQTT
	// callback so a wateringStop can still be received mid-cycle.
	go func() {
		err := l.controls.StartManual(ctx, duration)
		switch {
		case errors.Is(err, coordinator.ErrBusy):
			log.Println("listener: wateringStart rejected, already watering")
		case err != nil:
			log.Printf("listener: wateringStart failed: %v", err)
		}
	}()
}

func (l *Listener) handleStop() {
	err := l.controls.StopManual()
	switch {
	case errors.Is(err, coordinator.ErrNotWatering):
		log.Println("listener: wateringStop received while idle, nothing to stop")
	case errors.Is(err, coordinator.ErrBusy):
		log.Println("listener: wateringStop rejected, stop already in progress")
	case err != nil:
		log.Printf("listener: wateringStop failed: %v", err)
	}
}
