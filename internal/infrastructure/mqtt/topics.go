package mqtt

import (
	"fmt"
	"strings"
)

// DefaultTopicPrefix is the root of the topic hierarchy when the
// configuration does not override it.
const DefaultTopicPrefix = "wyvern"

// Topics builds MQTT topic strings rooted at a configurable prefix. A
// zero Topics uses DefaultTopicPrefix:
//
//	var t mqtt.Topics
//	t.Telemetry() // "wyvern/telemetry"
//
// The daemon constructs one from config so several machines can share a
// broker without colliding:
//
//	t := mqtt.Topics{Prefix: cfg.TopicPrefix}
type Topics struct {
	Prefix string
}

func (t Topics) prefix() string {
	if t.Prefix == "" {
		return DefaultTopicPrefix
	}
	return t.Prefix
}

// Telemetry returns the topic for periodic telemetry samples.
//
// Example: wyvern/telemetry
func (t Topics) Telemetry() string {
	return fmt.Sprintf("%s/telemetry", t.prefix())
}

// Status returns the retained online/offline status topic. The broker
// publishes the LWT here if the daemon dies without a clean shutdown.
//
// Example: wyvern/status
func (t Topics) Status() string {
	return fmt.Sprintf("%s/status", t.prefix())
}

// Event returns the topic for daemon events of the given kind.
//
// Example: wyvern/event/apply
func (t Topics) Event(kind string) string {
	return fmt.Sprintf("%s/event/%s", t.prefix(), kind)
}

// Command returns the topic for a single inbound command operation.
//
// Example: wyvern/cmd/boost
func (t Topics) Command(op string) string {
	return fmt.Sprintf("%s/cmd/%s", t.prefix(), op)
}

// AllCommands returns the subscription pattern covering every command topic.
//
// Pattern: wyvern/cmd/#
func (t Topics) AllCommands() string {
	return fmt.Sprintf("%s/cmd/#", t.prefix())
}

// CommandOp extracts the operation segment from a command topic.
// It returns "" when the topic is not under this prefix's cmd/ hierarchy.
// The remainder may contain further slashes; dispatchers reject operations
// they do not recognise.
func (t Topics) CommandOp(topic string) string {
	op, ok := strings.CutPrefix(topic, t.prefix()+"/cmd/")
	if !ok {
		return ""
	}
	return op
}
