// Package profile models the configuration side of the controller: the
// register address maps for each hardware variant, the user fan
// profiles that reference them, and the INI store both live in.
//
// A Profile names its AddressMap by section name (address_profile) and
// the reference is resolved every time a map is needed, never cached,
// so edits to the configuration file take effect on the next
// operation. AddressMap and Profile values are immutable once built
// and safe to share without synchronization.
package profile

import (
	"fmt"

	"github.com/icesealed/wyvern/internal/curve"
	"github.com/icesealed/wyvern/internal/ec"
)

// keyAddressProfile names the AddressMap section a profile resolves at
// use time.
const keyAddressProfile = "address_profile"

// Profile is a named user fan configuration: target fan mode, battery
// charging limit, and one step curve per fan.
type Profile struct {
	Name           string     `json:"name"`
	AddressProfile string     `json:"address_profile"`
	FanMode        ec.FanMode `json:"fan_mode"`

	// BatteryThreshold is a charge-limit percentage. Values outside
	// [20,100] mean "leave the register alone" and are legal here;
	// the apply path skips them.
	BatteryThreshold int `json:"battery_charging_threshold"`

	CPU curve.Curve `json:"cpu"`
	GPU curve.Curve `json:"gpu"`
}

// BuildProfile parses a section of decimal-string values into a
// Profile. Every key except the battery threshold's domain is
// validated here so the write path can trust its input: the fan mode
// must be one of the three writable modes, and both curves must pass
// their shape checks. Any missing key is an error.
func BuildProfile(name string, data map[string]string) (*Profile, error) {
	ap, ok := data[keyAddressProfile]
	if !ok {
		return nil, missingKey(name, keyAddressProfile)
	}
	p := &Profile{Name: name, AddressProfile: ap}

	mode, err := parseByte(name, data, "fan_mode")
	if err != nil {
		return nil, err
	}
	p.FanMode = ec.FanMode(mode)

	if p.BatteryThreshold, err = parseDec(name, data, "battery_charging_threshold"); err != nil {
		return nil, err
	}

	for i := range p.CPU.Temps {
		if p.CPU.Temps[i], err = parseDec(name, data, fmt.Sprintf("cpu_temp_%d", i)); err != nil {
			return nil, err
		}
	}
	for i := range p.CPU.Speeds {
		if p.CPU.Speeds[i], err = parseDec(name, data, fmt.Sprintf("cpu_fan_speed_%d", i)); err != nil {
			return nil, err
		}
	}
	for i := range p.GPU.Temps {
		if p.GPU.Temps[i], err = parseDec(name, data, fmt.Sprintf("gpu_temp_%d", i)); err != nil {
			return nil, err
		}
	}
	for i := range p.GPU.Speeds {
		if p.GPU.Speeds[i], err = parseDec(name, data, fmt.Sprintf("gpu_fan_speed_%d", i)); err != nil {
			return nil, err
		}
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks the writable fields. An Unknown fan mode is
// display-only and never written, so it is rejected here; the battery
// threshold deliberately is not checked (out-of-domain means "skip").
func (p *Profile) Validate() error {
	if !p.FanMode.Valid() {
		return fmt.Errorf("%w: fan_mode = %d in section %q", ErrInvalidValue, byte(p.FanMode), p.Name)
	}
	if err := p.CPU.Validate(); err != nil {
		return fmt.Errorf("profile %q: cpu curve: %w", p.Name, err)
	}
	if err := p.GPU.Validate(); err != nil {
		return fmt.Errorf("profile %q: gpu curve: %w", p.Name, err)
	}
	return nil
}
