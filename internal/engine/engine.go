// Package engine joins an address map, a profile and the EC transport
// into the read and write operations everything else is built on.
//
// All register I/O is strictly sequential: one seek+read or seek+write
// per register, no batching, no transaction, no retry. A write that
// fails partway through Apply leaves the controller partially
// programmed; the engine reports the failure immediately and the
// caller must re-read before trusting hardware state again. Profiles
// reaching the engine have already been shape-validated, so the only
// value check here is the battery skip rule.
package engine

import (
	"fmt"

	"github.com/icesealed/wyvern/internal/curve"
	"github.com/icesealed/wyvern/internal/ec"
	"github.com/icesealed/wyvern/internal/infrastructure/logging"
	"github.com/icesealed/wyvern/internal/profile"
)

// DumpSize is the span of EC memory returned by Dump.
const DumpSize = 256

// Engine performs register reads and writes against one transport.
// It holds no mutable state of its own; the transport is the single
// shared resource and serializes individual register accesses, so an
// Engine may be shared across goroutines. Multi-register operations
// are not atomic against each other, matching the hardware.
type Engine struct {
	tr  ec.Transport
	log *logging.Logger
}

// New returns an Engine over the given transport. The logger must be
// non-nil.
func New(tr ec.Transport, log *logging.Logger) *Engine {
	return &Engine{tr: tr, log: log.With("component", "engine")}
}

// Transport returns the underlying transport.
func (e *Engine) Transport() ec.Transport { return e.tr }

// ReadLive reads the 28 profile registers into a snapshot: raw fan
// mode and battery bytes plus both curves. Battery and fan-mode
// decoding is left to the caller via the codec; a snapshot is raw
// hardware state, not a validated profile.
func (e *Engine) ReadLive(am *profile.AddressMap) (*RegisterSnapshot, error) {
	snap := &RegisterSnapshot{}

	var err error
	if snap.RawFanMode, err = e.tr.ReadByte(am.FanMode); err != nil {
		return nil, err
	}
	if snap.RawBattery, err = e.tr.ReadByte(am.BatteryThreshold); err != nil {
		return nil, err
	}

	for i, addr := range am.CPUTemp {
		b, err := e.tr.ReadByte(addr)
		if err != nil {
			return nil, err
		}
		snap.CPU.Temps[i] = int(b)
	}
	for i, addr := range am.CPUFanSpeed {
		b, err := e.tr.ReadByte(addr)
		if err != nil {
			return nil, err
		}
		snap.CPU.Speeds[i] = int(b)
	}
	for i, addr := range am.GPUTemp {
		b, err := e.tr.ReadByte(addr)
		if err != nil {
			return nil, err
		}
		snap.GPU.Temps[i] = int(b)
	}
	for i, addr := range am.GPUFanSpeed {
		b, err := e.tr.ReadByte(addr)
		if err != nil {
			return nil, err
		}
		snap.GPU.Speeds[i] = int(b)
	}

	return snap, nil
}

// ReadRealtime reads the six live sensor values. RPM words are decoded
// immediately; this data is display-only and never written back.
func (e *Engine) ReadRealtime(am *profile.AddressMap) (Realtime, error) {
	var rt Realtime

	reads := []struct {
		addr uint32
		dst  *int
	}{
		{am.RealtimeCPUTemp, &rt.CPUTemp},
		{am.RealtimeCPUFanSpeed, &rt.CPUFanSpeed},
		{am.RealtimeGPUTemp, &rt.GPUTemp},
		{am.RealtimeGPUFanSpeed, &rt.GPUFanSpeed},
	}
	for _, r := range reads {
		b, err := e.tr.ReadByte(r.addr)
		if err != nil {
			return Realtime{}, err
		}
		*r.dst = int(b)
	}

	cpuRaw, err := e.tr.ReadWord(am.RealtimeCPUFanRPM)
	if err != nil {
		return Realtime{}, err
	}
	rt.CPUFanRPM = ec.DecodeRPM(int(cpuRaw))

	gpuRaw, err := e.tr.ReadWord(am.RealtimeGPUFanRPM)
	if err != nil {
		return Realtime{}, err
	}
	rt.GPUFanRPM = ec.DecodeRPM(int(gpuRaw))

	return rt, nil
}

type regWrite struct {
	addr  uint32
	value byte
}

// Apply writes a profile to hardware in the fixed register order: fan
// mode, battery threshold (skipped without error when the percentage
// is outside [20,100]), CPU temps, CPU speeds, GPU temps, GPU speeds.
// There is no rollback: on a mid-sequence failure the registers
// already written keep their new values and the error says how far the
// sequence got.
func (e *Engine) Apply(am *profile.AddressMap, p *profile.Profile) error {
	writes := make([]regWrite, 0, 2+2*(curve.NumThresholds+curve.NumSpeeds))

	writes = append(writes, regWrite{am.FanMode, byte(p.FanMode)})
	if p.BatteryThreshold >= ec.BatteryMin && p.BatteryThreshold <= ec.BatteryMax {
		writes = append(writes, regWrite{am.BatteryThreshold, ec.EncodeBatteryThreshold(p.BatteryThreshold)})
	} else {
		e.log.Debug("battery threshold out of range, register untouched",
			"profile", p.Name, "percent", p.BatteryThreshold)
	}
	for i, addr := range am.CPUTemp {
		writes = append(writes, regWrite{addr, byte(p.CPU.Temps[i])})
	}
	for i, addr := range am.CPUFanSpeed {
		writes = append(writes, regWrite{addr, byte(p.CPU.Speeds[i])})
	}
	for i, addr := range am.GPUTemp {
		writes = append(writes, regWrite{addr, byte(p.GPU.Temps[i])})
	}
	for i, addr := range am.GPUFanSpeed {
		writes = append(writes, regWrite{addr, byte(p.GPU.Speeds[i])})
	}

	for n, w := range writes {
		if err := e.tr.WriteByte(w.addr, w.value); err != nil {
			return fmt.Errorf("engine: apply %q stopped after %d of %d writes: %w",
				p.Name, n, len(writes), err)
		}
	}

	e.log.Info("profile applied",
		"profile", p.Name,
		"fan_mode", p.FanMode.String(),
		"writes", len(writes))
	return nil
}

// ApplyWrites reports how many register writes Apply issues for p: fan
// mode plus both curves, and the battery byte when its percentage is
// in range.
func ApplyWrites(p *profile.Profile) int {
	n := 1 + 2*(curve.NumThresholds+curve.NumSpeeds)
	if p.BatteryThreshold >= ec.BatteryMin && p.BatteryThreshold <= ec.BatteryMax {
		n++
	}
	return n
}

// SetBoost writes one of the configured boost bytes.
func (e *Engine) SetBoost(am *profile.AddressMap, value byte) error {
	if err := e.tr.WriteByte(am.CoolerBoost, value); err != nil {
		return err
	}
	e.log.Info("cooler boost set", "value", value)
	return nil
}

// ReadBoost reads the boost register and decodes its engaged state.
func (e *Engine) ReadBoost(am *profile.AddressMap) (BoostState, error) {
	b, err := e.tr.ReadByte(am.CoolerBoost)
	if err != nil {
		return BoostState{}, err
	}
	return BoostState{Raw: b, Engaged: ec.DecodeBoost(b)}, nil
}

// SetBacklight writes one of the configured backlight level bytes.
func (e *Engine) SetBacklight(am *profile.AddressMap, value byte) error {
	if err := e.tr.WriteByte(am.USBBacklight, value); err != nil {
		return err
	}
	e.log.Info("usb backlight set", "value", value)
	return nil
}

// ReadBacklight reads the raw backlight register byte. Matching it to
// a level name is the caller's job since the level bytes come from
// configuration.
func (e *Engine) ReadBacklight(am *profile.AddressMap) (byte, error) {
	return e.tr.ReadByte(am.USBBacklight)
}

// SetBatteryThreshold encodes and writes a charge limit. Unlike
// Apply's silent skip, a direct command with an out-of-range
// percentage is rejected: the user asked for this exact value.
func (e *Engine) SetBatteryThreshold(am *profile.AddressMap, pct int) error {
	if pct < ec.BatteryMin || pct > ec.BatteryMax {
		return fmt.Errorf("%w: %d", ErrBatteryRange, pct)
	}
	if err := e.tr.WriteByte(am.BatteryThreshold, ec.EncodeBatteryThreshold(pct)); err != nil {
		return err
	}
	e.log.Info("battery threshold set", "percent", pct)
	return nil
}

// ReadBattery reads and decodes the battery threshold register.
func (e *Engine) ReadBattery(am *profile.AddressMap) (BatteryState, error) {
	b, err := e.tr.ReadByte(am.BatteryThreshold)
	if err != nil {
		return BatteryState{}, err
	}
	pct, ok := ec.DecodeBatteryThreshold(b)
	return BatteryState{Raw: b, Percent: pct, Set: ok}, nil
}

// WriteRegister writes one raw byte at an explicit address, bypassing
// the address map. Address and value always travel together; there is
// no partial or accumulated state between calls.
func (e *Engine) WriteRegister(addr uint32, value byte) error {
	if err := e.tr.WriteByte(addr, value); err != nil {
		return err
	}
	e.log.Info("register written", "address", fmt.Sprintf("%#04x", addr), "value", value)
	return nil
}

// Dump returns the first 256 bytes of EC memory. Transports backed by
// a real file serve this as one range read; anything else is read byte
// by byte.
func (e *Engine) Dump() ([]byte, error) {
	type ranger interface {
		ReadRange(addr uint32, length int) ([]byte, error)
	}
	if r, ok := e.tr.(ranger); ok {
		return r.ReadRange(0, DumpSize)
	}

	buf := make([]byte, DumpSize)
	for i := range buf {
		b, err := e.tr.ReadByte(uint32(i))
		if err != nil {
			return nil, err
		}
		buf[i] = b
	}
	return buf, nil
}
