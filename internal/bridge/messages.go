package bridge

import "time"

// Event kinds published under the event hierarchy.
const (
	EventApply = "apply"
	EventError = "error"
)

// CommandMessage is the JSON payload carried by command topics. Each
// operation reads one field and ignores the rest:
//
//	cmd/apply      {"profile": "gaming"}
//	cmd/boost      {"state": "on"}
//	cmd/backlight  {"level": "half"}
//	cmd/battery    {"threshold": 80}
type CommandMessage struct {
	// Profile names the profile an apply command writes.
	Profile string `json:"profile,omitempty"`

	// State is "on" or "off" for boost commands.
	State string `json:"state,omitempty"`

	// Level is "off", "half" or "full" for backlight commands.
	Level string `json:"level,omitempty"`

	// Threshold is the charge-limit percentage for battery commands.
	// A pointer so an absent field is distinguishable from zero.
	Threshold *int `json:"threshold,omitempty"`
}

// ApplyEvent announces a successful profile apply on event/apply.
type ApplyEvent struct {
	Profile   string    `json:"profile"`
	FanMode   string    `json:"fan_mode"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorEvent reports a failed command on event/error.
type ErrorEvent struct {
	Op        string    `json:"op"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}
