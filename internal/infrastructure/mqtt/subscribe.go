package mqtt

import "fmt"

// MessageHandler receives one inbound message. Handlers run on paho's
// router goroutine, so they should hand off anything slow; a returned
// error is logged (see SetLogger) and does not affect acknowledgement.
type MessageHandler func(topic string, payload []byte) error

type subscription struct {
	topic   string
	qos     byte
	handler MessageHandler
}

// Subscribe registers handler for topic and remembers the subscription so
// it survives reconnects (the clean session drops it broker-side). The
// usual MQTT wildcards apply: "+" matches one level, "#" the rest.
//
// The subscription is tracked only once the broker accepts it, so the
// tracked set never contains topics the broker refused.
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	if err := validTopicQoS(topic, qos); err != nil {
		return err
	}
	if handler == nil {
		return fmt.Errorf("%w: nil handler", ErrSubscribeFailed)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	if err := wait(c.paho.Subscribe(topic, qos, c.dispatch(handler)), publishTimeout); err != nil {
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}

	c.mu.Lock()
	c.subs[topic] = subscription{topic: topic, qos: qos, handler: handler}
	c.mu.Unlock()
	return nil
}

// Unsubscribe stops delivery for a topic. It is dropped from the tracked
// set first, so even a failed broker call stops the reconnect restore;
// messages already in flight may still reach the handler.
func (c *Client) Unsubscribe(topic string) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.mu.Lock()
	delete(c.subs, topic)
	c.mu.Unlock()

	if err := wait(c.paho.Unsubscribe(topic), publishTimeout); err != nil {
		return fmt.Errorf("%w: %w", ErrUnsubscribeFailed, err)
	}
	return nil
}

// SubscriptionCount returns the number of tracked subscriptions.
func (c *Client) SubscriptionCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

// HasSubscription reports whether topic is tracked. Exact string match
// only; no wildcard expansion.
func (c *Client) HasSubscription(topic string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.subs[topic]
	return ok
}
