package mqttbus

import (
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Publisher publishes payloads to MQTT topics.
type Publisher interface {
	Publish(topic string, qos byte, retain bool, payload string) error
	IsConnected() bool
}

type publisher struct {
	client mqtt.Client
}

// NewPublisher wraps a shared MQTT client as a Publisher.
func NewPublisher(client mqtt.Client) Publisher {
	return &publisher{client: client}
}

func (p *publisher) Publish(topic string, qos byte, retain bool, payload string) error {
	token := p.client.Publish(topic, qos, retain, payload)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("publish to %s: %w", topic, token.Error())
	}
	return nil
}

func (p *publisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}
