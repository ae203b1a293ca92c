package mqtt

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/icesealed/wyvern/internal/infrastructure/config"
)

// Client is the daemon's connection to the MQTT broker. It layers three
// things on top of paho: subscriptions that survive reconnects, a retained
// status topic with an LWT for crash detection, and a bounded wait on every
// broker call so a dead broker cannot hang the daemon.
//
// All methods are safe for concurrent use. The zero value behaves as a
// permanently disconnected client.
type Client struct {
	paho   pahomqtt.Client
	topics Topics
	qos    byte
	id     string

	// online flips in the paho connect/connection-lost handlers. Cleared
	// on Close so a queued reconnect cannot resurrect the client.
	online atomic.Bool

	mu           sync.Mutex
	subs         map[string]subscription
	onConnect    func()
	onDisconnect func(err error)
	logger       Logger
}

// Logger receives handler failures and recovered panics. logging.Logger
// satisfies it.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Connect dials the broker and blocks until the session is established or
// connectTimeout passes. The returned client keeps itself connected: paho
// retries with backoff between cfg.Reconnect.InitialDelay and MaxDelay, and
// subscriptions are re-established on every reconnect.
func Connect(cfg config.MQTTConfig) (*Client, error) {
	c := &Client{
		topics: Topics{Prefix: cfg.TopicPrefix},
		qos:    byte(cfg.QoS),
		id:     cfg.Broker.ClientID,
		subs:   make(map[string]subscription),
	}

	opts := clientOptions(cfg)
	opts.SetBinaryWill(c.topics.Status(), c.statusPayload(statusOffline, "unexpected_disconnect"), 1, true)
	opts.SetOnConnectHandler(func(pahomqtt.Client) { c.connected() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.connectionLost(err) })

	c.paho = pahomqtt.NewClient(opts)
	if err := wait(c.paho.Connect(), connectTimeout); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// The on-connect handler runs on paho's goroutine and may not have
	// fired yet. Mark the client usable now so an immediate Publish does
	// not race it.
	c.online.Store(true)
	return c, nil
}

// Topics returns the topic builder for this client's configured prefix.
func (c *Client) Topics() Topics {
	return c.topics
}

// connected runs on the initial connect and on every reconnect.
func (c *Client) connected() {
	c.online.Store(true)

	c.mu.Lock()
	subs := make([]subscription, 0, len(c.subs))
	for _, s := range c.subs {
		subs = append(subs, s)
	}
	notify := c.onConnect
	c.mu.Unlock()

	// The clean session dropped our subscriptions broker-side, so put
	// them back, then overwrite whatever the status topic holds (the
	// broker fires the LWT if the previous session died). Best effort;
	// a failure here surfaces on the next explicit call.
	for _, s := range subs {
		c.paho.Subscribe(s.topic, s.qos, c.dispatch(s.handler))
	}
	c.paho.Publish(c.topics.Status(), c.qos, true, c.statusPayload(statusOnline, ""))

	if notify != nil {
		notify()
	}
}

func (c *Client) connectionLost(err error) {
	c.online.Store(false)

	c.mu.Lock()
	notify := c.onDisconnect
	c.mu.Unlock()

	if notify != nil {
		notify(err)
	}
}

// Close publishes a retained offline status so watchers can tell a clean
// shutdown from a crash (the LWT reports the latter), then disconnects,
// giving in-flight messages disconnectQuiesce milliseconds to drain.
func (c *Client) Close() error {
	if c.paho == nil {
		return nil
	}
	if c.IsConnected() {
		token := c.paho.Publish(c.topics.Status(), c.qos, true, c.statusPayload(statusOffline, "shutdown"))
		token.WaitTimeout(publishTimeout)
	}
	c.online.Store(false)
	c.paho.Disconnect(disconnectQuiesce)
	return nil
}

// HealthCheck reports whether the broker session is currently usable.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected reports whether publishes would currently reach the broker.
// It is false while paho is between reconnect attempts.
func (c *Client) IsConnected() bool {
	return c.online.Load() && c.paho != nil && c.paho.IsConnectionOpen()
}

// SetOnConnect registers a callback invoked after every successful connect,
// including reconnects. Pass nil to clear it.
func (c *Client) SetOnConnect(fn func()) {
	c.mu.Lock()
	c.onConnect = fn
	c.mu.Unlock()
}

// SetOnDisconnect registers a callback invoked with the cause each time the
// connection drops. Pass nil to clear it.
func (c *Client) SetOnDisconnect(fn func(err error)) {
	c.mu.Lock()
	c.onDisconnect = fn
	c.mu.Unlock()
}

// SetLogger routes handler errors and recovered panics somewhere visible.
// Without one they are dropped.
func (c *Client) SetLogger(logger Logger) {
	c.mu.Lock()
	c.logger = logger
	c.mu.Unlock()
}

func (c *Client) currentLogger() Logger {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.logger
}

// dispatch adapts a MessageHandler to paho's callback signature. A handler
// panic must not take down paho's router goroutine, so it is caught here.
func (c *Client) dispatch(h MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				if l := c.currentLogger(); l != nil {
					l.Error("mqtt handler panic", "topic", msg.Topic(), "panic", r)
				}
			}
		}()

		if err := h(msg.Topic(), msg.Payload()); err != nil {
			if l := c.currentLogger(); l != nil {
				l.Warn("mqtt handler error", "topic", msg.Topic(), "error", err)
			}
		}
	}
}

// wait blocks on a paho token, bounded. Every broker call in this package
// goes through it; an unresponsive broker turns into an error, not a hang.
func wait(token pahomqtt.Token, timeout time.Duration) error {
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("timeout after %v", timeout)
	}
	return token.Error()
}
