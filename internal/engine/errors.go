package engine

import "errors"

// ErrBatteryRange indicates a direct battery threshold command outside
// [20,100]. Apply never returns this; an out-of-range threshold in a
// profile is a skip, not an error.
var ErrBatteryRange = errors.New("engine: battery threshold out of range")
