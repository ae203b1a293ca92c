package mqtt

import (
	"encoding/json"
	"time"
)

// Values of the "status" field on the retained status topic.
const (
	statusOnline  = "online"
	statusOffline = "offline"
)

type statusMessage struct {
	Status    string `json:"status"`
	ClientID  string `json:"client_id"`
	Reason    string `json:"reason,omitempty"`
	Timestamp string `json:"timestamp"`
}

// statusPayload renders one retained status message. Note the LWT variant
// is stamped when the will is registered, not when the broker fires it.
func (c *Client) statusPayload(status, reason string) []byte {
	b, _ := json.Marshal(statusMessage{
		Status:    status,
		ClientID:  c.id,
		Reason:    reason,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	return b
}
