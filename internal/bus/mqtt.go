package bus

import (
	"github.com/stflabs/warehouse-core/internal/infrastructure/mqtt"
)

// MQTTBus adapts the infrastructure MQTT client to the Bus interface so the
// cell can run against a real broker without changing controller or
// simulator code.
type MQTTBus struct {
	client *mqtt.Client
	qos    byte
}

// NewMQTTBus wraps a connected MQTT client as a hardware bus.
// QoS 1 gives the at-least-once delivery the bus contract requires.
func NewMQTTBus(client *mqtt.Client, qos byte) *MQTTBus {
	return &MQTTBus{client: client, qos: qos}
}

// Publish sends the payload over the broker.
func (b *MQTTBus) Publish(topic string, payload []byte) error {
	return b.client.Publish(topic, payload, b.qos, false)
}

// Subscribe registers a broker subscription. The paho client invokes
// handlers on its own goroutines with per-topic ordering preserved.
func (b *MQTTBus) Subscribe(topic string, handler Handler) (func(), error) {
	err := b.client.Subscribe(topic, b.qos, func(topic string, payload []byte) error {
		handler(topic, payload)
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Unsubscribing individual handlers is not needed during normal
	// operation; the whole client disconnects at shutdown.
	return func() {}, nil
}

// Close disconnects from the broker.
func (b *MQTTBus) Close() error {
	return b.client.Close()
}
