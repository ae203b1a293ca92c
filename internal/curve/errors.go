package curve

import "errors"

var (
	// ErrThresholdRange indicates a threshold temperature outside [1,99].
	ErrThresholdRange = errors.New("curve: threshold out of range")

	// ErrThresholdOrder indicates thresholds that are not strictly increasing.
	ErrThresholdOrder = errors.New("curve: thresholds not strictly increasing")

	// ErrSpeedRange indicates a fan speed outside [0,100].
	ErrSpeedRange = errors.New("curve: speed out of range")

	// ErrIndex indicates a threshold index outside [0,5].
	ErrIndex = errors.New("curve: threshold index out of range")
)
