// Package notify delivers controller events over MQTT. Delivery is
// best-effort: failures are logged and surfaced to /healthz, never
// propagated into a watering cycle.
package notify

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/bedwetter/bedwetter/internal/model"
	"github.com/bedwetter/bedwetter/pkg/mqttbus"
)

// Sink sends one named event with a human-readable message.
type Sink interface {
	Send(event, message string) error
}

// Gates controls which event classes are actually published. Gated-off
// events are still logged locally.
type Gates struct {
	Success  bool
	Failure  bool
	Inaction bool
	Service  bool
}

// AllowAll enables every event class.
func AllowAll() Gates {
	return Gates{Success: true, Failure: true, Inaction: true, Service: true}
}

func (g Gates) allows(event string) bool {
	switch event {
	case model.EventWateringSuccess, model.EventWateringStarted:
		return g.Success
	case model.EventWateringFailure, model.EventWateringRunaway:
		return g.Failure
	case model.EventWateringSkipped:
		return g.Inaction
	case model.EventStartingUp, model.EventShuttingDown:
		return g.Service
	default:
		return true
	}
}

// MQTTNotifier publishes events to <baseTopic>/event/<name> at QoS 0.
type MQTTNotifier struct {
	pub       mqttbus.Publisher
	baseTopic string
	gates     Gates

	mu      sync.RWMutex
	lastErr time.Time
}

func NewMQTTNotifier(pub mqttbus.Publisher, baseTopic string, gates Gates) *MQTTNotifier {
	return &MQTTNotifier{
		pub:       pub,
		baseTopic: baseTopic,
		gates:     gates,
		lastErr:   time.Now().Add(-24 * time.Hour),
	}
}

func (n *MQTTNotifier) Send(event, message string) error {
	log.Printf("notify: %s: %s", event, message)
	if !n.gates.allows(event) {
		return nil
	}
	topic := fmt.Sprintf("%s/event/%s", n.baseTopic, event)
	if err := n.pub.Publish(topic, 0, false, message); err != nil {
		n.mu.Lock()
		n.lastErr = time.Now()
		n.mu.Unlock()
		return fmt.Errorf("notify: %w", err)
	}
	return nil
}

// LastErrorAge reports how long ago the last publish failure happened.
func (n *MQTTNotifier) LastErrorAge() time.Duration {
	n.mu.RLock()
	t := n.lastErr
	n.mu.RUnlock()
	return time.Since(t)
}
