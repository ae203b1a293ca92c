package ec

import (
	"fmt"
	"strconv"
	"strings"
)

// Encoding constants shared with the original isw configuration format.
// These must match the EC firmware exactly for interoperability.
const (
	// RPMDivisor converts the raw fan tachometer word to RPM.
	RPMDivisor = 478000

	// BatteryOffset is added to the user percentage before it is written
	// to the battery charging threshold register.
	BatteryOffset = 128

	// BatteryMin and BatteryMax bound the valid charging threshold
	// percentage. Values outside this range are "unset" and never
	// written to hardware.
	BatteryMin = 20
	BatteryMax = 100

	// NumThresholds is the number of temperature thresholds per fan curve.
	NumThresholds = 6

	// NumFanSpeeds is the number of fan speed points per curve: one base
	// speed below the first threshold plus one per threshold.
	NumFanSpeeds = 7

	// boostEngagedFloor is the lowest raw byte that reads as CoolerBoost
	// engaged. The on/off bytes are configuration-supplied, so decoding
	// uses a loose threshold rather than exact equality.
	boostEngagedFloor = 128
)

// FanMode is the EC fan control mode register value.
type FanMode byte

// Fan mode register values.
const (
	FanModeAuto     FanMode = 12
	FanModeBasic    FanMode = 76
	FanModeAdvanced FanMode = 140
)

// Valid reports whether m is one of the three modes the EC accepts.
// Invalid modes are display-only and must never be written.
func (m FanMode) Valid() bool {
	switch m {
	case FanModeAuto, FanModeBasic, FanModeAdvanced:
		return true
	default:
		return false
	}
}

func (m FanMode) String() string {
	switch m {
	case FanModeAuto:
		return "Auto"
	case FanModeBasic:
		return "Basic"
	case FanModeAdvanced:
		return "Advanced"
	default:
		return "Unknown"
	}
}

// DecodeFanMode interprets a raw fan mode register byte. It is total:
// unrecognised bytes decode to a FanMode whose Valid() is false and
// whose String() is "Unknown", never an error.
func DecodeFanMode(b byte) FanMode {
	return FanMode(b)
}

// DecodeRPM converts a raw tachometer word to RPM. A raw zero is the
// firmware's sentinel for "fan stopped or unreadable" and decodes to 0
// rather than a division error.
func DecodeRPM(raw int) int {
	if raw <= 0 {
		return 0
	}
	return RPMDivisor / raw
}

// EncodeBatteryThreshold converts a percentage to the register byte.
// Defined only for pct in [BatteryMin, BatteryMax]; the codec does not
// clamp, callers check the domain first.
func EncodeBatteryThreshold(pct int) byte {
	return byte(pct + BatteryOffset)
}

// DecodeBatteryThreshold interprets a raw battery threshold byte.
// ok is false outside the valid byte range [148,228], meaning no
// threshold is set; that is not an error.
func DecodeBatteryThreshold(b byte) (pct int, ok bool) {
	if int(b) < BatteryMin+BatteryOffset || int(b) > BatteryMax+BatteryOffset {
		return 0, false
	}
	return int(b) - BatteryOffset, true
}

// DecodeBoost reports whether a raw CoolerBoost register byte reads as
// engaged. Any value at or above 128 counts.
func DecodeBoost(b byte) bool {
	return b >= boostEngagedFloor
}

// ParseAddress parses a register offset written in hex, with or
// without a 0x prefix. User-facing surfaces accept both forms.
func ParseAddress(s string) (uint32, error) {
	raw := s
	if cut, ok := strings.CutPrefix(raw, "0x"); ok {
		raw = cut
	} else if cut, ok := strings.CutPrefix(raw, "0X"); ok {
		raw = cut
	}
	v, err := strconv.ParseUint(raw, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("ec: invalid register address %q", s)
	}
	return uint32(v), nil
}
