package mqtt

import "fmt"

// maxPayloadSize caps outbound payloads at 1MB, in line with the default
// message limit of common brokers.
const maxPayloadSize = 1 << 20

// Publish sends payload to topic and waits for the acknowledgement the
// requested QoS calls for. Retained messages replace the broker's stored
// copy for the topic; use them for state, never for events or commands.
//
// Arguments are validated before the connection is consulted, so a bad
// call fails the same way connected or not.
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if err := validTopicQoS(topic, qos); err != nil {
		return err
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload %d bytes exceeds %d", ErrPublishFailed, len(payload), maxPayloadSize)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	if err := wait(c.paho.Publish(topic, qos, retained, payload), publishTimeout); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// PublishString publishes a string payload.
func (c *Client) PublishString(topic, payload string, qos byte, retained bool) error {
	return c.Publish(topic, []byte(payload), qos, retained)
}

// PublishRetained publishes a retained message at the client's configured
// default QoS.
func (c *Client) PublishRetained(topic string, payload []byte) error {
	return c.Publish(topic, payload, c.qos, true)
}

func validTopicQoS(topic string, qos byte) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	return nil
}
