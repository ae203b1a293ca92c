package profile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/icesealed/wyvern/internal/curve"
	"github.com/icesealed/wyvern/internal/ec"
)

// confTemplate mirrors a stock configuration file: one default address
// map, the two reserved feature sections, and two laptop profiles. The
// verb is the fan_mode_address value so reload tests can vary it.
const confTemplate = `[MSI_ADDRESS_DEFAULT]
fan_mode_address = %s
cooler_boost_address = 98
usb_backlight_address = f7
battery_charging_threshold_address = ef
cpu_temp_address_0 = 6a
cpu_temp_address_1 = 6b
cpu_temp_address_2 = 6c
cpu_temp_address_3 = 6d
cpu_temp_address_4 = 6e
cpu_temp_address_5 = 6f
cpu_fan_speed_address_0 = 72
cpu_fan_speed_address_1 = 73
cpu_fan_speed_address_2 = 74
cpu_fan_speed_address_3 = 75
cpu_fan_speed_address_4 = 76
cpu_fan_speed_address_5 = 77
cpu_fan_speed_address_6 = 78
gpu_temp_address_0 = 82
gpu_temp_address_1 = 83
gpu_temp_address_2 = 84
gpu_temp_address_3 = 85
gpu_temp_address_4 = 86
gpu_temp_address_5 = 87
gpu_fan_speed_address_0 = 8a
gpu_fan_speed_address_1 = 8b
gpu_fan_speed_address_2 = 8c
gpu_fan_speed_address_3 = 8d
gpu_fan_speed_address_4 = 8e
gpu_fan_speed_address_5 = 8f
gpu_fan_speed_address_6 = 90
realtime_cpu_temp_address = 68
realtime_cpu_fan_speed_address = 71
realtime_cpu_fan_rpm_address = cc
realtime_gpu_temp_address = 80
realtime_gpu_fan_speed_address = 89
realtime_gpu_fan_rpm_address = ca

[COOLER_BOOST]
address_profile = MSI_ADDRESS_DEFAULT
cooler_boost_off = 0
cooler_boost_on = 128

[USB_BACKLIGHT]
address_profile = MSI_ADDRESS_DEFAULT
usb_backlight_off = 128
usb_backlight_half = 193
usb_backlight_full = 129

[16S3EMS1]
address_profile = MSI_ADDRESS_DEFAULT
fan_mode = 140
battery_charging_threshold = 80
cpu_temp_0 = 50
cpu_temp_1 = 56
cpu_temp_2 = 62
cpu_temp_3 = 70
cpu_temp_4 = 75
cpu_temp_5 = 80
cpu_fan_speed_0 = 0
cpu_fan_speed_1 = 40
cpu_fan_speed_2 = 48
cpu_fan_speed_3 = 56
cpu_fan_speed_4 = 66
cpu_fan_speed_5 = 76
cpu_fan_speed_6 = 86
gpu_temp_0 = 55
gpu_temp_1 = 60
gpu_temp_2 = 65
gpu_temp_3 = 70
gpu_temp_4 = 75
gpu_temp_5 = 80
gpu_fan_speed_0 = 0
gpu_fan_speed_1 = 45
gpu_fan_speed_2 = 54
gpu_fan_speed_3 = 62
gpu_fan_speed_4 = 70
gpu_fan_speed_5 = 78
gpu_fan_speed_6 = 86

[1782EMS1]
address_profile = MSI_ADDRESS_DEFAULT
fan_mode = 12
battery_charging_threshold = 150
cpu_temp_0 = 45
cpu_temp_1 = 52
cpu_temp_2 = 60
cpu_temp_3 = 68
cpu_temp_4 = 76
cpu_temp_5 = 84
cpu_fan_speed_0 = 0
cpu_fan_speed_1 = 30
cpu_fan_speed_2 = 40
cpu_fan_speed_3 = 50
cpu_fan_speed_4 = 60
cpu_fan_speed_5 = 70
cpu_fan_speed_6 = 80
gpu_temp_0 = 50
gpu_temp_1 = 55
gpu_temp_2 = 62
gpu_temp_3 = 69
gpu_temp_4 = 77
gpu_temp_5 = 85
gpu_fan_speed_0 = 0
gpu_fan_speed_1 = 35
gpu_fan_speed_2 = 45
gpu_fan_speed_3 = 55
gpu_fan_speed_4 = 65
gpu_fan_speed_5 = 75
gpu_fan_speed_6 = 85
`

func defaultConf() string {
	return fmt.Sprintf(confTemplate, "f4")
}

func writeConf(t *testing.T, content string) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "isw.conf")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write conf: %v", err)
	}
	return NewStore(path)
}

func TestStoreNames(t *testing.T) {
	st := writeConf(t, defaultConf())

	names, err := st.Names()
	if err != nil {
		t.Fatalf("Names() error: %v", err)
	}
	want := []string{"16S3EMS1", "1782EMS1"}
	if len(names) != len(want) {
		t.Fatalf("Names() = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("Names() = %v, want %v", names, want)
		}
	}
}

func TestStoreProfile(t *testing.T) {
	st := writeConf(t, defaultConf())

	p, err := st.Profile("16S3EMS1")
	if err != nil {
		t.Fatalf("Profile() error: %v", err)
	}
	if p.FanMode != ec.FanModeAdvanced {
		t.Errorf("FanMode = %d, want %d", p.FanMode, ec.FanModeAdvanced)
	}
	if p.BatteryThreshold != 80 {
		t.Errorf("BatteryThreshold = %d, want 80", p.BatteryThreshold)
	}
	if p.GPU.Speeds != [curve.NumSpeeds]int{0, 45, 54, 62, 70, 78, 86} {
		t.Errorf("GPU.Speeds = %v", p.GPU.Speeds)
	}

	if _, err := st.Profile("missing"); !errors.Is(err, ErrSectionNotFound) {
		t.Fatalf("Profile(missing) = %v, want %v", err, ErrSectionNotFound)
	}
}

func TestStoreAddressMapFor(t *testing.T) {
	st := writeConf(t, defaultConf())

	// Through a profile's address_profile reference.
	am, err := st.AddressMapFor("16S3EMS1")
	if err != nil {
		t.Fatalf("AddressMapFor(profile) error: %v", err)
	}
	if am.FanMode != 0xf4 {
		t.Errorf("FanMode = %#x, want 0xf4", am.FanMode)
	}

	// Reserved names and the empty string are parsed directly.
	for _, name := range []string{"", SectionAddressDefault} {
		am, err := st.AddressMapFor(name)
		if err != nil {
			t.Fatalf("AddressMapFor(%q) error: %v", name, err)
		}
		if am.CoolerBoost != 0x98 {
			t.Errorf("AddressMapFor(%q).CoolerBoost = %#x, want 0x98", name, am.CoolerBoost)
		}
	}

	if _, err := st.AddressMapFor("missing"); !errors.Is(err, ErrSectionNotFound) {
		t.Fatalf("AddressMapFor(missing) = %v, want %v", err, ErrSectionNotFound)
	}
}

func TestStoreAddressMapForRereadsFile(t *testing.T) {
	st := writeConf(t, defaultConf())

	am, err := st.AddressMapFor("16S3EMS1")
	if err != nil {
		t.Fatalf("AddressMapFor() error: %v", err)
	}
	if am.FanMode != 0xf4 {
		t.Fatalf("FanMode = %#x, want 0xf4", am.FanMode)
	}

	// The reference is resolved per call, so an edited file wins on
	// the next operation.
	if err := os.WriteFile(st.Path(), []byte(fmt.Sprintf(confTemplate, "d4")), 0o644); err != nil {
		t.Fatalf("rewrite conf: %v", err)
	}
	am, err = st.AddressMapFor("16S3EMS1")
	if err != nil {
		t.Fatalf("AddressMapFor() after rewrite error: %v", err)
	}
	if am.FanMode != 0xd4 {
		t.Errorf("FanMode = %#x after rewrite, want 0xd4", am.FanMode)
	}
}

func TestStoreAddressMapForDanglingReference(t *testing.T) {
	conf := strings.Replace(defaultConf(),
		"[16S3EMS1]\naddress_profile = MSI_ADDRESS_DEFAULT",
		"[16S3EMS1]\naddress_profile = MSI_ADDRESS_16S3", 1)
	st := writeConf(t, conf)

	_, err := st.AddressMapFor("16S3EMS1")
	if !errors.Is(err, ErrSectionNotFound) {
		t.Fatalf("AddressMapFor() = %v, want %v", err, ErrSectionNotFound)
	}
	if !strings.Contains(err.Error(), "MSI_ADDRESS_16S3") {
		t.Errorf("error %q does not name the dangling section", err)
	}
}

func TestStoreCoolerBoost(t *testing.T) {
	st := writeConf(t, defaultConf())

	cb, err := st.CoolerBoost()
	if err != nil {
		t.Fatalf("CoolerBoost() error: %v", err)
	}
	if cb.AddressProfile != SectionAddressDefault || cb.Off != 0 || cb.On != 128 {
		t.Errorf("CoolerBoost() = %+v", cb)
	}
}

func TestStoreUSBBacklight(t *testing.T) {
	st := writeConf(t, defaultConf())

	ub, err := st.USBBacklight()
	if err != nil {
		t.Fatalf("USBBacklight() error: %v", err)
	}
	if ub.Off != 128 || ub.Half != 193 || ub.Full != 129 {
		t.Errorf("USBBacklight() = %+v", ub)
	}
}

func TestStoreSaveProfilePreservesOtherSections(t *testing.T) {
	st := writeConf(t, defaultConf())

	p, err := st.Profile("16S3EMS1")
	if err != nil {
		t.Fatalf("Profile() error: %v", err)
	}
	p.BatteryThreshold = 90
	p.CPU.Temps[0] = 48
	if err := st.SaveProfile(p); err != nil {
		t.Fatalf("SaveProfile() error: %v", err)
	}

	got, err := st.Profile("16S3EMS1")
	if err != nil {
		t.Fatalf("Profile() after save error: %v", err)
	}
	if got.BatteryThreshold != 90 || got.CPU.Temps[0] != 48 {
		t.Errorf("saved profile = battery %d, temp0 %d; want 90, 48", got.BatteryThreshold, got.CPU.Temps[0])
	}

	other, err := st.Profile("1782EMS1")
	if err != nil {
		t.Fatalf("Profile(1782EMS1) after save error: %v", err)
	}
	if other.CPU.Temps[0] != 45 {
		t.Errorf("untouched profile mutated: %v", other.CPU.Temps)
	}
	if _, err := st.CoolerBoost(); err != nil {
		t.Errorf("CoolerBoost() after save error: %v", err)
	}
	if _, err := st.AddressMap(""); err != nil {
		t.Errorf("AddressMap() after save error: %v", err)
	}
}

func TestStoreSaveProfileCreatesSection(t *testing.T) {
	st := writeConf(t, defaultConf())

	p, err := st.Profile("16S3EMS1")
	if err != nil {
		t.Fatalf("Profile() error: %v", err)
	}
	p.Name = "CUSTOM1"
	if err := st.SaveProfile(p); err != nil {
		t.Fatalf("SaveProfile() error: %v", err)
	}

	names, err := st.Names()
	if err != nil {
		t.Fatalf("Names() error: %v", err)
	}
	found := false
	for _, n := range names {
		if n == "CUSTOM1" {
			found = true
		}
	}
	if !found {
		t.Fatalf("Names() = %v, want CUSTOM1 included", names)
	}
	if _, err := st.Profile("CUSTOM1"); err != nil {
		t.Fatalf("Profile(CUSTOM1) error: %v", err)
	}
}

func TestStoreSaveProfileRejectsInvalid(t *testing.T) {
	st := writeConf(t, defaultConf())

	p, err := st.Profile("16S3EMS1")
	if err != nil {
		t.Fatalf("Profile() error: %v", err)
	}
	p.CPU.Temps[3] = p.CPU.Temps[2]
	if err := st.SaveProfile(p); !errors.Is(err, curve.ErrThresholdOrder) {
		t.Fatalf("SaveProfile() = %v, want %v", err, curve.ErrThresholdOrder)
	}

	// Nothing may have been written.
	got, err := st.Profile("16S3EMS1")
	if err != nil {
		t.Fatalf("Profile() error: %v", err)
	}
	if got.CPU.Temps[3] != 70 {
		t.Errorf("CPU.Temps[3] = %d, file was rewritten", got.CPU.Temps[3])
	}
}

func TestStoreMissingFile(t *testing.T) {
	st := NewStore(filepath.Join(t.TempDir(), "absent.conf"))
	if _, err := st.Names(); err == nil {
		t.Fatal("Names() on a missing file succeeded")
	}
}

func TestReservedSection(t *testing.T) {
	for _, name := range []string{SectionAddressDefault, SectionCoolerBoost, SectionUSBBacklight} {
		if !ReservedSection(name) {
			t.Errorf("ReservedSection(%q) = false", name)
		}
	}
	if ReservedSection("16S3EMS1") {
		t.Error(`ReservedSection("16S3EMS1") = true`)
	}
}
