package mqtt

import "errors"

// Sentinel errors for client operations. Failures wrap the relevant
// sentinel around the underlying cause; match with errors.Is.
var (
	ErrConnectionFailed  = errors.New("mqtt: connection failed")
	ErrNotConnected      = errors.New("mqtt: client not connected")
	ErrPublishFailed     = errors.New("mqtt: publish failed")
	ErrSubscribeFailed   = errors.New("mqtt: subscribe failed")
	ErrUnsubscribeFailed = errors.New("mqtt: unsubscribe failed")
	ErrInvalidQoS        = errors.New("mqtt: qos must be 0, 1, or 2")
	ErrInvalidTopic      = errors.New("mqtt: empty topic")
)
