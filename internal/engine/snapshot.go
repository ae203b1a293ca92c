package engine

import (
	"github.com/icesealed/wyvern/internal/curve"
	"github.com/icesealed/wyvern/internal/ec"
)

// RegisterSnapshot is the raw state of the 28 profile registers. The
// curves are whatever hardware held, not validated; the fan-mode and
// battery bytes stay raw because hardware can legitimately hold values
// no profile would (an Unknown mode, an unset battery register).
type RegisterSnapshot struct {
	RawFanMode byte        `json:"raw_fan_mode"`
	RawBattery byte        `json:"raw_battery"`
	CPU        curve.Curve `json:"cpu"`
	GPU        curve.Curve `json:"gpu"`
}

// FanMode decodes the raw fan-mode byte.
func (s *RegisterSnapshot) FanMode() ec.FanMode {
	return ec.DecodeFanMode(s.RawFanMode)
}

// BatteryThreshold decodes the raw battery byte. ok is false when the
// register holds no threshold.
func (s *RegisterSnapshot) BatteryThreshold() (pct int, ok bool) {
	return ec.DecodeBatteryThreshold(s.RawBattery)
}

// Realtime is one fully decoded sensor reading.
type Realtime struct {
	CPUTemp     int `json:"cpu_temp"`
	CPUFanSpeed int `json:"cpu_fan_speed"`
	CPUFanRPM   int `json:"cpu_fan_rpm"`
	GPUTemp     int `json:"gpu_temp"`
	GPUFanSpeed int `json:"gpu_fan_speed"`
	GPUFanRPM   int `json:"gpu_fan_rpm"`
}

// BoostState is the decoded boost register.
type BoostState struct {
	Raw     byte `json:"raw"`
	Engaged bool `json:"engaged"`
}

// BatteryState is the decoded battery threshold register. Set is false
// when the byte is outside the encoded range, meaning no limit is
// programmed.
type BatteryState struct {
	Raw     byte `json:"raw"`
	Percent int  `json:"percent"`
	Set     bool `json:"set"`
}
