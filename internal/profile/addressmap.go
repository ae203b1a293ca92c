package profile

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/icesealed/wyvern/internal/curve"
)

// AddressMap holds the EC register offsets for one hardware variant.
// It is built once from a configuration section and immutable after;
// many profiles may reference the same map by section name.
type AddressMap struct {
	FanMode          uint32
	CoolerBoost      uint32
	USBBacklight     uint32
	BatteryThreshold uint32

	CPUTemp     [curve.NumThresholds]uint32
	CPUFanSpeed [curve.NumSpeeds]uint32
	GPUTemp     [curve.NumThresholds]uint32
	GPUFanSpeed [curve.NumSpeeds]uint32

	// Realtime sensor offsets. The RPM offsets address 2-byte
	// big-endian words; the rest are single bytes.
	RealtimeCPUTemp     uint32
	RealtimeCPUFanSpeed uint32
	RealtimeCPUFanRPM   uint32
	RealtimeGPUTemp     uint32
	RealtimeGPUFanSpeed uint32
	RealtimeGPUFanRPM   uint32
}

// BuildAddressMap parses a section of hex-string register offsets into
// an AddressMap. Every key is required; a missing or malformed key
// fails with an error naming the key and the section, and no partial
// map is ever returned.
func BuildAddressMap(section string, data map[string]string) (*AddressMap, error) {
	am := &AddressMap{}

	singles := []struct {
		key string
		dst *uint32
	}{
		{"fan_mode_address", &am.FanMode},
		{"cooler_boost_address", &am.CoolerBoost},
		{"usb_backlight_address", &am.USBBacklight},
		{"battery_charging_threshold_address", &am.BatteryThreshold},
		{"realtime_cpu_temp_address", &am.RealtimeCPUTemp},
		{"realtime_cpu_fan_speed_address", &am.RealtimeCPUFanSpeed},
		{"realtime_cpu_fan_rpm_address", &am.RealtimeCPUFanRPM},
		{"realtime_gpu_temp_address", &am.RealtimeGPUTemp},
		{"realtime_gpu_fan_speed_address", &am.RealtimeGPUFanSpeed},
		{"realtime_gpu_fan_rpm_address", &am.RealtimeGPUFanRPM},
	}
	for _, s := range singles {
		v, err := parseHex(section, data, s.key)
		if err != nil {
			return nil, err
		}
		*s.dst = v
	}

	var err error
	for i := range am.CPUTemp {
		if am.CPUTemp[i], err = parseHex(section, data, fmt.Sprintf("cpu_temp_address_%d", i)); err != nil {
			return nil, err
		}
	}
	for i := range am.CPUFanSpeed {
		if am.CPUFanSpeed[i], err = parseHex(section, data, fmt.Sprintf("cpu_fan_speed_address_%d", i)); err != nil {
			return nil, err
		}
	}
	for i := range am.GPUTemp {
		if am.GPUTemp[i], err = parseHex(section, data, fmt.Sprintf("gpu_temp_address_%d", i)); err != nil {
			return nil, err
		}
	}
	for i := range am.GPUFanSpeed {
		if am.GPUFanSpeed[i], err = parseHex(section, data, fmt.Sprintf("gpu_fan_speed_address_%d", i)); err != nil {
			return nil, err
		}
	}

	return am, nil
}

// parseHex reads a base-16 register offset. Values may carry an
// optional 0x prefix; config files in the wild use both forms.
func parseHex(section string, data map[string]string, key string) (uint32, error) {
	raw, ok := data[key]
	if !ok {
		return 0, missingKey(section, key)
	}
	s := raw
	if cut, ok := strings.CutPrefix(s, "0x"); ok {
		s = cut
	} else if cut, ok := strings.CutPrefix(s, "0X"); ok {
		s = cut
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %s = %q in section %q", ErrInvalidValue, key, raw, section)
	}
	return uint32(v), nil
}

func parseDec(section string, data map[string]string, key string) (int, error) {
	raw, ok := data[key]
	if !ok {
		return 0, missingKey(section, key)
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s = %q in section %q", ErrInvalidValue, key, raw, section)
	}
	return v, nil
}

func parseByte(section string, data map[string]string, key string) (byte, error) {
	v, err := parseDec(section, data, key)
	if err != nil {
		return 0, err
	}
	if v < 0 || v > 0xff {
		return 0, fmt.Errorf("%w: %s = %d in section %q", ErrInvalidValue, key, v, section)
	}
	return byte(v), nil
}
