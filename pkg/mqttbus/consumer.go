package mqttbus

import (
	"context"
	"fmt"
	"log"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Handler processes one inbound message. Returning an error only logs;
// it never tears down the subscription.
type Handler func(topic string, payload []byte) error

// Consumer subscribes to a topic filter and dispatches messages to an
// injected handler. Consume blocks until the context is cancelled and
// returns an error if the subscription could not be established.
type Consumer interface {
	SetHandler(h Handler)
	Consume(ctx context.Context) error
}

type consumer struct {
	client  mqtt.Client
	filter  string
	qos     byte
	handler Handler
}

// NewConsumer creates a consumer for the given topic filter. Commands are
// subscribed at QoS 1 so a broker reconnect does not drop them.
func NewConsumer(client mqtt.Client, filter string, qos byte, h Handler) Consumer {
	return &consumer{client: client, filter: filter, qos: qos, handler: h}
}

func (c *consumer) SetHandler(h Handler) {
	c.handler = h
}

func (c *consumer) Consume(ctx context.Context) error {
	token := c.client.Subscribe(c.filter, c.qos, func(_ mqtt.Client, msg mqtt.Message) {
		if c.handler == nil {
			log.Printf("mqttbus: no handler for %s", c.filter)
			return
		}
		if err := c.handler(msg.Topic(), msg.Payload()); err != nil {
			log.Printf("mqttbus: handler error on %s: %v", msg.Topic(), err)
		}
	})
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqttbus: subscribe %s: %w", c.filter, token.Error())
	}
	log.Printf("mqttbus: subscribed to %s", c.filter)

	<-ctx.Done()

	unsub := c.client.Unsubscribe(c.filter)
	unsub.Wait()
	return nil
}
