// Package curve models the monotonic step-function fan curve shared by
// profile loading, live edits and the register write path.
//
// A curve is six strictly increasing temperature thresholds paired with
// seven fan speed points: one base speed below the first threshold and
// one speed at or above each threshold. Thresholds live in [1,99]; 0
// and 100 are the curve's implicit open boundaries and are never
// settable. Speeds carry no ordering constraint; only the thresholds
// must stay ordered.
//
// The package is shape-validating only: it never reads or writes
// hardware. Anything that reaches the profile engine has passed
// through here first, so the engine re-validates nothing.
package curve

import "fmt"

// Curve dimensions and threshold bounds.
const (
	// NumThresholds is the number of temperature thresholds.
	NumThresholds = 6

	// NumSpeeds is the number of fan speed points: base + one per threshold.
	NumSpeeds = 7

	// MinThreshold and MaxThreshold bound settable threshold
	// temperatures. 0 and 100 are reserved as the implicit boundaries.
	MinThreshold = 1
	MaxThreshold = 99

	// MinSpeed and MaxSpeed bound fan speed percentages.
	MinSpeed = 0
	MaxSpeed = 100
)

// Curve is a 6-threshold/7-speed step function.
//
// Temps[i] is the i-th threshold temperature in °C, ordered lowest to
// highest. Speeds[0] is the fan speed below Temps[0]; Speeds[i+1] is
// the speed at and above Temps[i].
type Curve struct {
	Temps  [NumThresholds]int `json:"temps"`
	Speeds [NumSpeeds]int     `json:"speeds"`
}

// Validate checks the curve shape: every threshold in [1,99], strictly
// increasing, and every speed in [0,100].
func (c *Curve) Validate() error {
	for i, temp := range c.Temps {
		if temp < MinThreshold || temp > MaxThreshold {
			return fmt.Errorf("%w: threshold %d is %d", ErrThresholdRange, i, temp)
		}
		if i > 0 && temp <= c.Temps[i-1] {
			return fmt.Errorf("%w: threshold %d (%d) not above threshold %d (%d)",
				ErrThresholdOrder, i, temp, i-1, c.Temps[i-1])
		}
	}
	for i, speed := range c.Speeds {
		if speed < MinSpeed || speed > MaxSpeed {
			return fmt.Errorf("%w: speed %d is %d", ErrSpeedRange, i, speed)
		}
	}
	return nil
}

// MoveThreshold moves threshold i to a candidate temperature and sets
// its paired speed (Speeds[i+1]), preserving strict ordering.
//
// The temperature is clamped to the exclusive range between the
// neighbouring thresholds, with the implicit boundaries 0 and 100 at
// the ends, so a single-point move can never break ordering. The speed
// is clamped to [0,100]. This mirrors the drag rule a curve editor
// applies point by point.
func (c *Curve) MoveThreshold(i, temp, speed int) error {
	if i < 0 || i >= NumThresholds {
		return fmt.Errorf("%w: threshold index %d", ErrIndex, i)
	}

	lo := MinThreshold
	if i > 0 {
		lo = c.Temps[i-1] + 1
	}
	hi := MaxThreshold
	if i < NumThresholds-1 {
		hi = c.Temps[i+1] - 1
	}

	c.Temps[i] = clamp(temp, lo, hi)
	c.Speeds[i+1] = clamp(speed, MinSpeed, MaxSpeed)
	return nil
}

// SetBaseSpeed sets the speed below the first threshold (Speeds[0]).
// The base point moves vertically only; its temperature is the
// implicit 0 boundary and is never stored as a threshold.
func (c *Curve) SetBaseSpeed(speed int) {
	c.Speeds[0] = clamp(speed, MinSpeed, MaxSpeed)
}

// SpeedAt evaluates the step function at the given temperature:
// Speeds[0] below Temps[0], Speeds[i+1] in [Temps[i], Temps[i+1]), and
// Speeds[6] at or above Temps[5].
func (c *Curve) SpeedAt(temp int) int {
	for i := NumThresholds - 1; i >= 0; i-- {
		if temp >= c.Temps[i] {
			return c.Speeds[i+1]
		}
	}
	return c.Speeds[0]
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
