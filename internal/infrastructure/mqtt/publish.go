package mqtt

import (
	"fmt"
)

// maxPayloadSize caps MQTT payloads (1MB).
// Device status and command payloads are tiny; anything larger is a bug.
const maxPayloadSize = 1 << 20

// Publish sends a message to the specified bus topic.
//
// QoS levels: 0 at most once, 1 at least once, 2 exactly once. The hardware
// bus contract is at-least-once, so commands and status use QoS 1.
//
// Retained messages: the broker stores the last message per topic and
// delivers it to new subscribers immediately. Use for status topics, never
// for commands.
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	return nil
}

// PublishRetained publishes a retained message with the configured default QoS.
//
// Use for state updates where new subscribers should receive the current state.
func (c *Client) PublishRetained(topic string, payload []byte) error {
	return c.Publish(topic, payload, byte(c.cfg.QoS), true)
}
