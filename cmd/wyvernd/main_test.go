package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/icesealed/wyvern/internal/profile"
)

// testConf is a minimal but complete isw.conf: the default address
// section, both reserved hardware sections and one profile.
const testConf = `[MSI_ADDRESS_DEFAULT]
fan_mode_address = f4
cooler_boost_address = 98
usb_backlight_address = f7
battery_charging_threshold_address = ef
realtime_cpu_temp_address = 68
realtime_cpu_fan_speed_address = 71
realtime_cpu_fan_rpm_address = cc
realtime_gpu_temp_address = 80
realtime_gpu_fan_speed_address = 89
realtime_gpu_fan_rpm_address = ca
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

[COOLER_BOOST]
address_profile = MSI_ADDRESS_DEFAULT
cooler_boost_off = 0
cooler_boost_on = 128

[USB_BACKLIGHT]
address_profile = MSI_ADDRESS_DEFAULT
usb_backlight_off = 0
usb_backlight_half = 128
usb_backlight_full = 192

[silent]
address_profile = MSI_ADDRESS_DEFAULT
fan_mode = 12
battery_charging_threshold = 80
cpu_temp_0 = 50
cpu_temp_1 = 56
cpu_temp_2 = 62
cpu_temp_3 = 70
cpu_temp_4 = 75
cpu_temp_5 = 80
cpu_fan_speed_0 = 0
cpu_fan_speed_1 = 30
cpu_fan_speed_2 = 40
cpu_fan_speed_3 = 50
cpu_fan_speed_4 = 60
cpu_fan_speed_5 = 70
cpu_fan_speed_6 = 80
gpu_temp_0 = 50
gpu_temp_1 = 56
gpu_temp_2 = 62
gpu_temp_3 = 70
gpu_temp_4 = 75
gpu_temp_5 = 80
gpu_fan_speed_0 = 0
gpu_fan_speed_1 = 30
gpu_fan_speed_2 = 40
gpu_fan_speed_3 = 50
gpu_fan_speed_4 = 60
gpu_fan_speed_5 = 70
gpu_fan_speed_6 = 86
`

// writeDaemonFixtures lays out a complete local environment: config
// YAML, isw.conf, a fake 256-byte register file and a database path.
// Returns the YAML config path.
func writeDaemonFixtures(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()

	confPath := filepath.Join(tmpDir, "isw.conf")
	if err := os.WriteFile(confPath, []byte(testConf), 0o600); err != nil {
		t.Fatalf("writing isw.conf: %v", err)
	}

	ioPath := filepath.Join(tmpDir, "io")
	if err := os.WriteFile(ioPath, make([]byte, 256), 0o600); err != nil {
		t.Fatalf("writing register file: %v", err)
	}

	configContent := `
logging:
  level: error
  format: text
  output: stdout

ec:
  io_path: "` + ioPath + `"
  conf_path: "` + confPath + `"

database:
  path: "` + filepath.Join(tmpDir, "wyvern.db") + `"
  wal_mode: true
  busy_timeout: 5

monitor:
  enabled: true
  interval_seconds: 1
  history_size: 10
  persist: true
  retention_days: 1

mqtt:
  enabled: false

influxdb:
  enabled: false

api:
  enabled: false
`
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(configContent), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return configPath
}

func TestGetConfigPath_Default(t *testing.T) {
	t.Setenv("WYVERN_CONFIG", "")

	if got := getConfigPath(); got != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", got, defaultConfigPath)
	}
}

func TestGetConfigPath_EnvOverride(t *testing.T) {
	t.Setenv("WYVERN_CONFIG", "/custom/path/config.yaml")

	if got := getConfigPath(); got != "/custom/path/config.yaml" {
		t.Errorf("getConfigPath() = %q, want /custom/path/config.yaml", got)
	}
}

// TestRun_InvalidConfigPath verifies run fails when the config file
// cannot be read.
func TestRun_InvalidConfigPath(t *testing.T) {
	t.Setenv("WYVERN_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with an unreadable config path")
	}
}

// TestRun_BrokenProfileConfig verifies a missing isw.conf is fatal at
// startup rather than surfacing on first request.
func TestRun_BrokenProfileConfig(t *testing.T) {
	configPath := writeDaemonFixtures(t)

	// Point conf_path at a file that does not exist via env override.
	t.Setenv("WYVERN_CONFIG", configPath)
	t.Setenv("WYVERN_EC_CONF_PATH", filepath.Join(t.TempDir(), "missing.conf"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail when isw.conf is missing")
	}
	if !errors.Is(err, profile.ErrLoadFailed) {
		t.Errorf("run() error = %v, want profile.ErrLoadFailed in chain", err)
	}
}

// TestRun_StartupAndShutdown starts the daemon against purely local
// fixtures (no broker, no API) and expects a clean shutdown when the
// context expires.
func TestRun_StartupAndShutdown(t *testing.T) {
	configPath := writeDaemonFixtures(t)
	t.Setenv("WYVERN_CONFIG", configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := run(ctx); err != nil {
		t.Fatalf("run() = %v, want clean shutdown", err)
	}
}
