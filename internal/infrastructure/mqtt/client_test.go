package mqtt

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
)

// Everything here runs without a broker: validation paths, zero-value
// behaviour, and the topic builders. Delivery behaviour needs a live
// broker and lives in integration_test.go behind the integration tag.

func TestZeroValueClient(t *testing.T) {
	var c Client

	if c.IsConnected() {
		t.Error("IsConnected on zero value = true, want false")
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close on zero value: %v", err)
	}
	if n := c.SubscriptionCount(); n != 0 {
		t.Errorf("SubscriptionCount = %d, want 0", n)
	}
	if c.HasSubscription("wyvern/cmd/#") {
		t.Error("HasSubscription on zero value = true, want false")
	}
}

func TestHealthCheckDisconnected(t *testing.T) {
	c := &Client{}

	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck = %v, want ErrNotConnected", err)
	}
}

func TestHealthCheckCancelledContext(t *testing.T) {
	c := &Client{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := c.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck = %v, want context.Canceled", err)
	}
}

func TestPublishValidation(t *testing.T) {
	c := &Client{}

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		wantErr error
	}{
		{"empty topic", "", []byte("x"), 1, ErrInvalidTopic},
		{"qos too high", "wyvern/telemetry", []byte("x"), 3, ErrInvalidQoS},
		{"oversized payload", "wyvern/telemetry", make([]byte, maxPayloadSize+1), 1, ErrPublishFailed},
		{"disconnected", "wyvern/telemetry", []byte("x"), 1, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Publish(tt.topic, tt.payload, tt.qos, false)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Publish = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestPublishStringDisconnected(t *testing.T) {
	c := &Client{}

	if err := c.PublishString("wyvern/telemetry", "x", 1, false); !errors.Is(err, ErrNotConnected) {
		t.Errorf("PublishString = %v, want ErrNotConnected", err)
	}
}

func TestSubscribeValidation(t *testing.T) {
	c := &Client{}
	handler := func(string, []byte) error { return nil }

	tests := []struct {
		name    string
		topic   string
		qos     byte
		handler MessageHandler
		wantErr error
	}{
		{"empty topic", "", 1, handler, ErrInvalidTopic},
		{"qos too high", "wyvern/cmd/#", 3, handler, ErrInvalidQoS},
		{"nil handler", "wyvern/cmd/#", 1, nil, ErrSubscribeFailed},
		{"disconnected", "wyvern/cmd/#", 1, handler, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Subscribe(tt.topic, tt.qos, tt.handler)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Subscribe = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestUnsubscribeValidation(t *testing.T) {
	c := &Client{}

	if err := c.Unsubscribe(""); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Unsubscribe(\"\") = %v, want ErrInvalidTopic", err)
	}
	if err := c.Unsubscribe("wyvern/cmd/#"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Unsubscribe = %v, want ErrNotConnected", err)
	}
}

func TestCallbackRegistration(t *testing.T) {
	c := &Client{}

	c.SetOnConnect(func() {})
	c.SetOnDisconnect(func(error) {})

	// Clearing must be accepted too; the handlers nil-check before calling.
	c.SetOnConnect(nil)
	c.SetOnDisconnect(nil)
}

func TestSetLogger(t *testing.T) {
	c := &Client{}

	c.SetLogger(&mockLogger{})
	if c.currentLogger() == nil {
		t.Error("currentLogger = nil after SetLogger")
	}

	c.SetLogger(nil)
	if c.currentLogger() != nil {
		t.Error("currentLogger != nil after SetLogger(nil)")
	}
}

func TestStatusPayload(t *testing.T) {
	c := &Client{id: "wyvern-gs66"}

	got := string(c.statusPayload(statusOnline, ""))
	for _, want := range []string{`"status":"online"`, `"client_id":"wyvern-gs66"`, `"timestamp":"`} {
		if !strings.Contains(got, want) {
			t.Errorf("online payload %s missing %s", got, want)
		}
	}
	if strings.Contains(got, `"reason"`) {
		t.Errorf("online payload %s carries a reason", got)
	}

	got = string(c.statusPayload(statusOffline, "shutdown"))
	for _, want := range []string{`"status":"offline"`, `"reason":"shutdown"`} {
		if !strings.Contains(got, want) {
			t.Errorf("offline payload %s missing %s", got, want)
		}
	}
}

func TestTopics(t *testing.T) {
	def := Topics{}
	lab := Topics{Prefix: "lab/gs66"}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"telemetry", def.Telemetry(), "wyvern/telemetry"},
		{"status", def.Status(), "wyvern/status"},
		{"event apply", def.Event("apply"), "wyvern/event/apply"},
		{"event error", def.Event("error"), "wyvern/event/error"},
		{"command", def.Command("boost"), "wyvern/cmd/boost"},
		{"all commands", def.AllCommands(), "wyvern/cmd/#"},
		{"custom prefix telemetry", lab.Telemetry(), "lab/gs66/telemetry"},
		{"custom prefix all commands", lab.AllCommands(), "lab/gs66/cmd/#"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestCommandOp(t *testing.T) {
	tests := []struct {
		name   string
		topics Topics
		topic  string
		want   string
	}{
		{"boost", Topics{}, "wyvern/cmd/boost", "boost"},
		{"battery", Topics{}, "wyvern/cmd/battery", "battery"},
		{"not a command topic", Topics{}, "wyvern/telemetry", ""},
		{"foreign prefix", Topics{}, "other/cmd/boost", ""},
		{"empty operation", Topics{}, "wyvern/cmd/", ""},
		{"custom prefix", Topics{Prefix: "lab/gs66"}, "lab/gs66/cmd/apply", "apply"},
		{"custom prefix rejects default", Topics{Prefix: "lab/gs66"}, "wyvern/cmd/apply", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.topics.CommandOp(tt.topic); got != tt.want {
				t.Errorf("CommandOp(%q) = %q, want %q", tt.topic, got, tt.want)
			}
		})
	}
}

// mockLogger records messages so tests can assert handler failures were
// surfaced. Also used by the integration tests.
type mockLogger struct {
	mu     sync.Mutex
	errors []string
	warns  []string
}

func (l *mockLogger) Error(msg string, args ...any) {
	l.mu.Lock()
	l.errors = append(l.errors, msg)
	l.mu.Unlock()
}

func (l *mockLogger) Warn(msg string, args ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	l.mu.Unlock()
}

func (l *mockLogger) warnCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.warns)
}
