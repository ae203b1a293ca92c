// Package bridge connects the register engine to an MQTT broker. It
// consumes JSON commands published under the command hierarchy and
// publishes telemetry samples, apply events and error events back, so
// dashboards and automations can drive the controller without touching
// the HTTP API.
//
// Command handlers never return an error to the MQTT layer. A failed
// command is logged and answered with an ErrorEvent on the error topic;
// from the broker's point of view every message is consumed.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/icesealed/wyvern/internal/audit"
	"github.com/icesealed/wyvern/internal/engine"
	"github.com/icesealed/wyvern/internal/infrastructure/influxdb"
	"github.com/icesealed/wyvern/internal/infrastructure/mqtt"
	"github.com/icesealed/wyvern/internal/monitor"
	"github.com/icesealed/wyvern/internal/profile"
)

// MQTTClient is the subset of the broker client the bridge uses.
// Declared here so tests can substitute a fake without a broker.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	IsConnected() bool
}

// Logger is the interface for structured logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Broadcaster pushes apply events to WebSocket subscribers.
type Broadcaster interface {
	Broadcast(channel string, payload any)
}

// Options holds the collaborators for creating a Bridge.
type Options struct {
	// Store resolves profiles, address maps and the reserved
	// hardware sections.
	Store *profile.Store

	// Engine executes the register reads and writes.
	Engine *engine.Engine

	// MQTT is the broker client.
	MQTT MQTTClient

	// Topics builds topic strings. The zero value uses the default
	// prefix.
	Topics mqtt.Topics

	// QoS is applied to the command subscription and every publish.
	QoS byte

	// Audit is optional mutation history storage. If nil, the bridge
	// operates without recording.
	Audit audit.Repository

	// Influx is optional time-series storage; applies are recorded as
	// ec_apply points when set.
	Influx *influxdb.Client

	// Broadcaster is optional WebSocket fan-out for apply events.
	Broadcaster Broadcaster

	// Host tags InfluxDB points. Defaults to the OS hostname.
	Host string

	// Logger receives bridge activity. Nil silences it.
	Logger Logger
}

// Bridge subscribes to command topics and executes them against the
// embedded controller.
type Bridge struct {
	store  *profile.Store
	engine *engine.Engine
	mqtt   MQTTClient
	topics mqtt.Topics
	qos    byte

	audit       audit.Repository
	influx      *influxdb.Client
	broadcaster Broadcaster
	host        string
	logger      Logger

	// ctx bounds audit writes and is cancelled by Stop.
	ctx       context.Context
	ctxCancel context.CancelFunc
	stopOnce  sync.Once
}

// New creates a bridge. Call Start to begin consuming commands.
func New(opts Options) (*Bridge, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("profile store is required")
	}
	if opts.Engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if opts.MQTT == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}

	host := opts.Host
	if host == "" {
		if h, err := os.Hostname(); err == nil {
			host = h
		}
	}

	ctx, ctxCancel := context.WithCancel(context.Background())

	return &Bridge{
		store:       opts.Store,
		engine:      opts.Engine,
		mqtt:        opts.MQTT,
		topics:      opts.Topics,
		qos:         opts.QoS,
		audit:       opts.Audit,       // May be nil (optional)
		influx:      opts.Influx,      // May be nil (optional)
		broadcaster: opts.Broadcaster, // May be nil (optional)
		host:        host,
		logger:      opts.Logger, // May be nil (optional)
		ctx:         ctx,
		ctxCancel:   ctxCancel,
	}, nil
}

// Start subscribes to the command hierarchy. The subscription is
// tracked by the MQTT client and survives reconnects.
func (b *Bridge) Start() error {
	topic := b.topics.AllCommands()
	if err := b.mqtt.Subscribe(topic, b.qos, b.handleCommand); err != nil {
		return fmt.Errorf("subscribing to commands: %w", err)
	}
	b.logInfo("subscribed to commands", "topic", topic)
	return nil
}

// Stop shuts the bridge down. Safe to call more than once.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		b.ctxCancel()
		b.logInfo("bridge stopped")
	})
}

// PublishTelemetry sends one monitor sample to the telemetry topic.
// Wired as a monitor observer. Samples are dropped while the broker is
// unreachable rather than queued.
func (b *Bridge) PublishTelemetry(s monitor.Sample) {
	if !b.mqtt.IsConnected() {
		return
	}
	payload, err := json.Marshal(s)
	if err != nil {
		return
	}
	if err := b.mqtt.Publish(b.topics.Telemetry(), payload, b.qos, false); err != nil {
		b.logError("publishing telemetry", err)
	}
}

// handleCommand runs on the MQTT client's receive path. Failures are
// resolved here, never returned: the command is answered with an error
// event and the message counts as consumed.
func (b *Bridge) handleCommand(topic string, payload []byte) error {
	op := b.topics.CommandOp(topic)
	b.logDebug("command received", "op", op, "bytes", len(payload))

	var cmd CommandMessage
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &cmd); err != nil {
			b.fail(op, fmt.Errorf("parsing command payload: %w", err))
			return nil
		}
	}

	if err := b.execute(op, cmd); err != nil {
		b.fail(op, err)
	}
	return nil
}

func (b *Bridge) execute(op string, cmd CommandMessage) error {
	switch op {
	case "apply":
		return b.executeApply(cmd)
	case "boost":
		return b.executeBoost(cmd)
	case "backlight":
		return b.executeBacklight(cmd)
	case "battery":
		return b.executeBattery(cmd)
	default:
		return fmt.Errorf("unknown command %q", op)
	}
}

func (b *Bridge) executeApply(cmd CommandMessage) error {
	if cmd.Profile == "" {
		return fmt.Errorf("apply: profile is required")
	}

	p, err := b.store.Profile(cmd.Profile)
	if err != nil {
		return err
	}
	am, err := b.store.AddressMapFor(cmd.Profile)
	if err != nil {
		return err
	}
	if err := b.engine.Apply(am, p); err != nil {
		return err
	}

	b.record(audit.ActionApply, p.Name, map[string]any{
		"fan_mode": p.FanMode.String(),
	})
	b.announceApply(p)
	b.logInfo("profile applied", "profile", p.Name)
	return nil
}

func (b *Bridge) executeBoost(cmd CommandMessage) error {
	if cmd.State != "on" && cmd.State != "off" {
		return fmt.Errorf("boost: state must be \"on\" or \"off\", got %q", cmd.State)
	}

	cb, err := b.store.CoolerBoost()
	if err != nil {
		return err
	}
	am, err := b.store.AddressMap(cb.AddressProfile)
	if err != nil {
		return err
	}

	value := cb.Off
	if cmd.State == "on" {
		value = cb.On
	}
	if err := b.engine.SetBoost(am, value); err != nil {
		return err
	}

	b.record(audit.ActionBoost, cmd.State, map[string]any{"value": int(value)})
	b.logInfo("cooler boost set", "state", cmd.State)
	return nil
}

func (b *Bridge) executeBacklight(cmd CommandMessage) error {
	ub, err := b.store.USBBacklight()
	if err != nil {
		return err
	}

	var value byte
	switch cmd.Level {
	case "off":
		value = ub.Off
	case "half":
		value = ub.Half
	case "full":
		value = ub.Full
	default:
		return fmt.Errorf("backlight: level must be \"off\", \"half\" or \"full\", got %q", cmd.Level)
	}

	am, err := b.store.AddressMap(ub.AddressProfile)
	if err != nil {
		return err
	}
	if err := b.engine.SetBacklight(am, value); err != nil {
		return err
	}

	b.record(audit.ActionBacklight, cmd.Level, map[string]any{"value": int(value)})
	b.logInfo("usb backlight set", "level", cmd.Level)
	return nil
}

func (b *Bridge) executeBattery(cmd CommandMessage) error {
	if cmd.Threshold == nil {
		return fmt.Errorf("battery: threshold is required")
	}
	pct := *cmd.Threshold

	am, err := b.store.AddressMap(profile.SectionAddressDefault)
	if err != nil {
		return err
	}
	if err := b.engine.SetBatteryThreshold(am, pct); err != nil {
		return err
	}

	b.record(audit.ActionBattery, strconv.Itoa(pct), nil)
	b.logInfo("battery threshold set", "percent", pct)
	return nil
}

// fail logs a command failure and answers it with an error event.
func (b *Bridge) fail(op string, err error) {
	b.logError("command failed", err, "op", op)
	b.publishErrorEvent(op, err)
}

// announceApply fans a successful apply out to every configured sink:
// the event topic, WebSocket subscribers and InfluxDB.
func (b *Bridge) announceApply(p *profile.Profile) {
	evt := ApplyEvent{
		Profile:   p.Name,
		FanMode:   p.FanMode.String(),
		Source:    audit.ActorMQTT,
		Timestamp: time.Now().UTC(),
	}

	if payload, err := json.Marshal(evt); err == nil {
		if err := b.mqtt.Publish(b.topics.Event(EventApply), payload, b.qos, false); err != nil {
			b.logError("publishing apply event", err)
		}
	}
	if b.broadcaster != nil {
		b.broadcaster.Broadcast("ec.applied", evt)
	}
	if b.influx != nil {
		b.influx.WriteApplyEvent(b.host, p.Name, evt.Source, engine.ApplyWrites(p))
	}
}

func (b *Bridge) publishErrorEvent(op string, cmdErr error) {
	evt := ErrorEvent{
		Op:        op,
		Error:     cmdErr.Error(),
		Timestamp: time.Now().UTC(),
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return
	}
	if err := b.mqtt.Publish(b.topics.Event(EventError), payload, b.qos, false); err != nil {
		b.logError("publishing error event", err)
	}
}

// record writes an audit entry when a repository is configured.
func (b *Bridge) record(action, target string, details map[string]any) {
	if b.audit == nil {
		return
	}
	entry := &audit.Entry{
		Action:  action,
		Target:  target,
		Actor:   audit.ActorMQTT,
		Details: details,
	}
	if err := b.audit.Create(b.ctx, entry); err != nil {
		b.logError("recording audit entry", err)
	}
}

// Nil-safe logging helpers; Options.Logger may be absent.

func (b *Bridge) logInfo(msg string, keysAndValues ...any) {
	if b.logger != nil {
		b.logger.Info(msg, keysAndValues...)
	}
}

func (b *Bridge) logError(msg string, err error, keysAndValues ...any) {
	if b.logger != nil {
		kv := append([]any{"error", err}, keysAndValues...)
		b.logger.Error(msg, kv...)
	}
}

func (b *Bridge) logDebug(msg string, keysAndValues ...any) {
	if b.logger != nil {
		b.logger.Debug(msg, keysAndValues...)
	}
}
