package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/icesealed/wyvern/internal/audit"
	"github.com/icesealed/wyvern/internal/ec"
	"github.com/icesealed/wyvern/internal/engine"
	"github.com/icesealed/wyvern/internal/infrastructure/config"
	"github.com/icesealed/wyvern/internal/infrastructure/logging"
	"github.com/icesealed/wyvern/internal/monitor"
	"github.com/icesealed/wyvern/internal/profile"
)

const apiConf = `[MSI_ADDRESS_DEFAULT]
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
cpu_fan_speed_1 = 40
cpu_fan_speed_2 = 48
cpu_fan_speed_3 = 56
cpu_fan_speed_4 = 64
cpu_fan_speed_5 = 72
cpu_fan_speed_6 = 80
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
`

type regWrite struct {
	addr  uint32
	value byte
}

// memTransport is a map-backed transport recording every write.
type memTransport struct {
	mu       sync.Mutex
	regs     map[uint32]byte
	writes   []regWrite
	avail    bool
	readErr  error
	writeErr error
}

func newMemTransport() *memTransport {
	return &memTransport{regs: make(map[uint32]byte), avail: true}
}

func (m *memTransport) ReadByte(addr uint32) (byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return 0, m.readErr
	}
	return m.regs[addr], nil
}

func (m *memTransport) ReadWord(addr uint32) (uint16, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return 0, m.readErr
	}
	return uint16(m.regs[addr])<<8 | uint16(m.regs[addr+1]), nil
}

func (m *memTransport) WriteByte(addr uint32, value byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.regs[addr] = value
	m.writes = append(m.writes, regWrite{addr, value})
	return nil
}

func (m *memTransport) Available() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.avail
}

func (m *memTransport) get(addr uint32) byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.regs[addr]
}

func (m *memTransport) set(addr uint32, value byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.regs[addr] = value
}

func (m *memTransport) writeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.writes)
}

func testLogger() *logging.Logger {
	return logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")
}

func testStore(t *testing.T) *profile.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "isw.conf")
	if err := os.WriteFile(path, []byte(apiConf), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	return profile.NewStore(path)
}

func testAuditRepo(t *testing.T) audit.Repository {
	t.Helper()
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schema := `
		CREATE TABLE audit_entries (
			id TEXT PRIMARY KEY,
			action TEXT NOT NULL,
			target TEXT,
			actor TEXT NOT NULL,
			details TEXT,
			created_at TEXT NOT NULL
		) STRICT;
		CREATE INDEX idx_audit_entries_created_at ON audit_entries (created_at);
		CREATE INDEX idx_audit_entries_action ON audit_entries (action);
	`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("creating schema: %v", err)
	}
	return audit.NewSQLiteRepository(db)
}

func testAPIConfig() config.APIConfig {
	return config.APIConfig{
		Enabled: true,
		Host:    "127.0.0.1",
		Timeouts: config.APITimeoutConfig{
			Read: 5, Write: 5, Idle: 10,
		},
		Auth: config.AuthConfig{TokenTTLMinutes: 15},
		WebSocket: config.WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
	}
}

type serverOption func(*Deps)

func withAuth(password, secret string) serverOption {
	return func(d *Deps) {
		d.Config.Auth.Enabled = true
		d.Config.Auth.Password = password
		d.Config.Auth.JWTSecret = secret
	}
}

func withAudit(repo audit.Repository) serverOption {
	return func(d *Deps) { d.Audit = repo }
}

func withHistory(h monitor.SampleHistory) serverOption {
	return func(d *Deps) { d.History = h }
}

// newTestServer builds a server over an in-memory transport and the
// INI fixture. The router is exercised directly; no listener binds.
func newTestServer(t *testing.T, tr ec.Transport, opts ...serverOption) (*Server, http.Handler) {
	t.Helper()

	deps := Deps{
		Config:  testAPIConfig(),
		Logger:  testLogger(),
		Store:   testStore(t),
		Engine:  engine.New(tr, testLogger()),
		Version: "test",
	}
	for _, o := range opts {
		o(&deps)
	}

	srv, err := New(deps)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// Handlers queue audit entries; drain them like Start would.
	if srv.audit != nil {
		ctx, cancel := context.WithCancel(context.Background())
		go srv.drainAuditLog(ctx)
		t.Cleanup(cancel)
	}

	return srv, srv.buildRouter()
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshalling body: %v", err)
		}
		rd = bytes.NewReader(raw)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
}

// waitForAudit polls until the filter matches at least want entries.
// Audit writes are asynchronous, so tests cannot assert immediately.
func waitForAudit(t *testing.T, repo audit.Repository, filter audit.Filter, want int) *audit.ListResult {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		res, err := repo.List(context.Background(), filter)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if res.Total >= want {
			return res
		}
		if time.Now().After(deadline) {
			t.Fatalf("audit entries = %d, want at least %d", res.Total, want)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestNewRequiresDeps(t *testing.T) {
	valid := func(t *testing.T) Deps {
		return Deps{
			Config: testAPIConfig(),
			Logger: testLogger(),
			Store:  testStore(t),
			Engine: engine.New(newMemTransport(), testLogger()),
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Deps)
		wantErr string
	}{
		{"no logger", func(d *Deps) { d.Logger = nil }, "logger is required"},
		{"no store", func(d *Deps) { d.Store = nil }, "profile store is required"},
		{"no engine", func(d *Deps) { d.Engine = nil }, "engine is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := valid(t)
			tt.mutate(&deps)
			_, err := New(deps)
			if err == nil || err.Error() != tt.wantErr {
				t.Fatalf("New error = %v, want %q", err, tt.wantErr)
			}
		})
	}

	if _, err := New(valid(t)); err != nil {
		t.Fatalf("New with valid deps: %v", err)
	}
}

func TestHealth(t *testing.T) {
	_, h := newTestServer(t, newMemTransport())

	rec := doJSON(t, h, http.MethodGet, "/api/v1/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body map[string]any
	decodeBody(t, rec, &body)
	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
	if body["version"] != "test" {
		t.Errorf("version = %v, want test", body["version"])
	}
	if body["ec_available"] != true {
		t.Errorf("ec_available = %v, want true", body["ec_available"])
	}
}

func TestHealthReportsMissingHardware(t *testing.T) {
	tr := newMemTransport()
	tr.avail = false
	_, h := newTestServer(t, tr)

	rec := doJSON(t, h, http.MethodGet, "/api/v1/health", nil)
	var body map[string]any
	decodeBody(t, rec, &body)
	if body["ec_available"] != false {
		t.Errorf("ec_available = %v, want false", body["ec_available"])
	}
}

func TestVersion(t *testing.T) {
	_, h := newTestServer(t, newMemTransport())

	rec := doJSON(t, h, http.MethodGet, "/api/v1/version", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]string
	decodeBody(t, rec, &body)
	if body["service"] != "wyvernd" || body["version"] != "test" {
		t.Errorf("body = %v", body)
	}
}

func TestAuthDisabledAllowsRequests(t *testing.T) {
	_, h := newTestServer(t, newMemTransport())

	rec := doJSON(t, h, http.MethodGet, "/api/v1/profiles", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 without a token", rec.Code)
	}
}

func TestAuthRequiredWhenEnabled(t *testing.T) {
	_, h := newTestServer(t, newMemTransport(),
		withAuth("hunter2", "0123456789abcdef0123456789abcdef"))

	rec := doJSON(t, h, http.MethodGet, "/api/v1/profiles", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status without token = %d, want 401", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/profiles", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec2 := httptest.NewRecorder()
	h.ServeHTTP(rec2, req)
	if rec2.Code != http.StatusUnauthorized {
		t.Fatalf("status with garbage token = %d, want 401", rec2.Code)
	}
}

func TestLoginIssuesWorkingToken(t *testing.T) {
	_, h := newTestServer(t, newMemTransport(),
		withAuth("hunter2", "0123456789abcdef0123456789abcdef"))

	rec := doJSON(t, h, http.MethodPost, "/api/v1/auth/login", map[string]string{"password": "wrong"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password status = %d, want 401", rec.Code)
	}

	rec = doJSON(t, h, http.MethodPost, "/api/v1/auth/login", map[string]string{"password": "hunter2"})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var login loginResponse
	decodeBody(t, rec, &login)
	if login.AccessToken == "" || login.TokenType != "Bearer" {
		t.Fatalf("login response = %+v", login)
	}
	if login.ExpiresIn != 15*60 {
		t.Errorf("ExpiresIn = %d, want %d", login.ExpiresIn, 15*60)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/profiles", nil)
	req.Header.Set("Authorization", "Bearer "+login.AccessToken)
	rec2 := httptest.NewRecorder()
	h.ServeHTTP(rec2, req)
	if rec2.Code != http.StatusOK {
		t.Fatalf("status with token = %d, want 200", rec2.Code)
	}
}

func TestLoginWithAuthDisabled(t *testing.T) {
	_, h := newTestServer(t, newMemTransport())

	rec := doJSON(t, h, http.MethodPost, "/api/v1/auth/login", map[string]string{"password": "x"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var e Error
	decodeBody(t, rec, &e)
	if !strings.Contains(e.Message, "disabled") {
		t.Errorf("message = %q, want mention of disabled auth", e.Message)
	}
}

func TestListProfiles(t *testing.T) {
	_, h := newTestServer(t, newMemTransport())

	rec := doJSON(t, h, http.MethodGet, "/api/v1/profiles", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body profileListResponse
	decodeBody(t, rec, &body)
	if len(body.Profiles) != 1 || body.Profiles[0] != "silent" {
		t.Errorf("profiles = %v, want [silent]", body.Profiles)
	}
}

func TestGetProfile(t *testing.T) {
	_, h := newTestServer(t, newMemTransport())

	rec := doJSON(t, h, http.MethodGet, "/api/v1/profiles/silent", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var p profile.Profile
	decodeBody(t, rec, &p)
	if p.Name != "silent" {
		t.Errorf("Name = %q, want silent", p.Name)
	}
	if p.FanMode != ec.FanModeAuto {
		t.Errorf("FanMode = %d, want %d", p.FanMode, ec.FanModeAuto)
	}
	if p.CPU.Temps[0] != 50 || p.GPU.Speeds[6] != 86 {
		t.Errorf("curves not decoded: cpu temps %v, gpu speeds %v", p.CPU.Temps, p.GPU.Speeds)
	}
}

func TestGetProfileNotFound(t *testing.T) {
	_, h := newTestServer(t, newMemTransport())

	rec := doJSON(t, h, http.MethodGet, "/api/v1/profiles/nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	var e Error
	decodeBody(t, rec, &e)
	if e.Code != ErrCodeNotFound {
		t.Errorf("code = %q, want %q", e.Code, ErrCodeNotFound)
	}
}

func TestSaveProfile(t *testing.T) {
	repo := testAuditRepo(t)
	srv, h := newTestServer(t, newMemTransport(), withAudit(repo))

	body := map[string]any{
		"fan_mode":                   76,
		"battery_charging_threshold": 60,
		"cpu": map[string]any{
			"temps":  []int{50, 56, 62, 70, 75, 80},
			"speeds": []int{0, 40, 48, 56, 64, 72, 80},
		},
		"gpu": map[string]any{
			"temps":  []int{55, 60, 65, 70, 75, 80},
			"speeds": []int{0, 45, 54, 62, 70, 78, 86},
		},
	}
	rec := doJSON(t, h, http.MethodPut, "/api/v1/profiles/gaming", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	p, err := srv.store.Profile("gaming")
	if err != nil {
		t.Fatalf("reading saved profile: %v", err)
	}
	if p.FanMode != ec.FanModeBasic {
		t.Errorf("FanMode = %d, want %d", p.FanMode, ec.FanModeBasic)
	}
	if p.AddressProfile != profile.SectionAddressDefault {
		t.Errorf("AddressProfile = %q, want default", p.AddressProfile)
	}

	res := waitForAudit(t, repo, audit.Filter{Action: audit.ActionProfileSave}, 1)
	if res.Entries[0].Target != "gaming" {
		t.Errorf("audit target = %q, want gaming", res.Entries[0].Target)
	}

	// The original sections survive the rewrite.
	if _, err := srv.store.Profile("silent"); err != nil {
		t.Errorf("silent profile lost after save: %v", err)
	}
}

func TestSaveProfileRejectsReservedName(t *testing.T) {
	_, h := newTestServer(t, newMemTransport())

	rec := doJSON(t, h, http.MethodPut, "/api/v1/profiles/COOLER_BOOST", map[string]any{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestSaveProfileRejectsBadCurve(t *testing.T) {
	_, h := newTestServer(t, newMemTransport())

	body := map[string]any{
		"fan_mode": 12,
		"cpu": map[string]any{
			// Not strictly increasing.
			"temps":  []int{50, 50, 62, 70, 75, 80},
			"speeds": []int{0, 40, 48, 56, 64, 72, 80},
		},
		"gpu": map[string]any{
			"temps":  []int{55, 60, 65, 70, 75, 80},
			"speeds": []int{0, 45, 54, 62, 70, 78, 86},
		},
	}
	rec := doJSON(t, h, http.MethodPut, "/api/v1/profiles/bad", body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", rec.Code, rec.Body.String())
	}
	var e Error
	decodeBody(t, rec, &e)
	if e.Code != ErrCodeInvalidConfig {
		t.Errorf("code = %q, want %q", e.Code, ErrCodeInvalidConfig)
	}
}

func TestApplyProfile(t *testing.T) {
	tr := newMemTransport()
	repo := testAuditRepo(t)
	_, h := newTestServer(t, tr, withAudit(repo))

	rec := doJSON(t, h, http.MethodPost, "/api/v1/profiles/silent/apply", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var result applyResult
	decodeBody(t, rec, &result)
	if result.Profile != "silent" || result.FanMode != "Auto" || result.Source != "api" {
		t.Errorf("result = %+v", result)
	}
	if result.Writes != 28 {
		t.Errorf("Writes = %d, want 28", result.Writes)
	}

	if tr.writeCount() != 28 {
		t.Errorf("register writes = %d, want 28", tr.writeCount())
	}
	if got := tr.get(0xf4); got != 12 {
		t.Errorf("fan mode register = %d, want 12", got)
	}
	if got := tr.get(0xef); got != 208 {
		t.Errorf("battery register = %d, want 208", got)
	}
	if got := tr.get(0x90); got != 86 {
		t.Errorf("last gpu speed register = %d, want 86", got)
	}

	res := waitForAudit(t, repo, audit.Filter{Action: audit.ActionApply}, 1)
	e := res.Entries[0]
	if e.Target != "silent" || e.Actor != audit.ActorAPI {
		t.Errorf("audit entry = %+v", e)
	}
	if e.Details["fan_mode"] != "Auto" {
		t.Errorf("audit fan_mode = %v, want Auto", e.Details["fan_mode"])
	}
}

func TestApplyProfileNotFound(t *testing.T) {
	tr := newMemTransport()
	_, h := newTestServer(t, tr)

	rec := doJSON(t, h, http.MethodPost, "/api/v1/profiles/nope/apply", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if tr.writeCount() != 0 {
		t.Errorf("writes = %d, want 0", tr.writeCount())
	}
}

func TestSnapshot(t *testing.T) {
	tr := newMemTransport()
	tr.set(0xf4, 12)
	tr.set(0xef, 208)
	tr.set(0x6a, 50)
	tr.set(0x90, 86)
	_, h := newTestServer(t, tr)

	rec := doJSON(t, h, http.MethodGet, "/api/v1/ec/snapshot", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var body map[string]any
	decodeBody(t, rec, &body)
	if body["raw_fan_mode"] != float64(12) {
		t.Errorf("raw_fan_mode = %v, want 12", body["raw_fan_mode"])
	}
	if body["fan_mode"] != "Auto" {
		t.Errorf("fan_mode = %v, want Auto", body["fan_mode"])
	}
	battery, ok := body["battery"].(map[string]any)
	if !ok {
		t.Fatalf("battery missing: %v", body)
	}
	if battery["percent"] != float64(80) || battery["set"] != true {
		t.Errorf("battery = %v, want percent 80 set true", battery)
	}
}

func TestSnapshotUnknownProfile(t *testing.T) {
	_, h := newTestServer(t, newMemTransport())

	rec := doJSON(t, h, http.MethodGet, "/api/v1/ec/snapshot?profile=nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestSnapshotHardwareUnavailable(t *testing.T) {
	tr := newMemTransport()
	tr.avail = false
	tr.readErr = fmt.Errorf("%w: %s", ec.ErrNotAvailable, "/sys/kernel/debug/ec/ec0/io")
	_, h := newTestServer(t, tr)

	rec := doJSON(t, h, http.MethodGet, "/api/v1/ec/snapshot", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503: %s", rec.Code, rec.Body.String())
	}
	var e Error
	decodeBody(t, rec, &e)
	if e.Code != ErrCodeHardwareUnavailable {
		t.Errorf("code = %q, want %q", e.Code, ErrCodeHardwareUnavailable)
	}
	if !strings.Contains(e.Message, "modprobe ec_sys") {
		t.Errorf("message = %q, want the module hint", e.Message)
	}
}

func TestSnapshotIOFailure(t *testing.T) {
	tr := newMemTransport()
	tr.readErr = fmt.Errorf("%w: address 0xf4: short read", ec.ErrReadFailed)
	_, h := newTestServer(t, tr)

	rec := doJSON(t, h, http.MethodGet, "/api/v1/ec/snapshot", nil)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502: %s", rec.Code, rec.Body.String())
	}
	var e Error
	decodeBody(t, rec, &e)
	if e.Code != ErrCodeECIOFailure {
		t.Errorf("code = %q, want %q", e.Code, ErrCodeECIOFailure)
	}
	if !strings.Contains(e.Message, "0xf4") {
		t.Errorf("message = %q, want the failing address", e.Message)
	}
}

func TestRealtime(t *testing.T) {
	tr := newMemTransport()
	tr.set(0x68, 61)
	tr.set(0x71, 45)
	tr.set(0xcc, 0)
	tr.set(0xcd, 100)
	tr.set(0x80, 52)
	tr.set(0x89, 30)
	tr.set(0xca, 0)
	tr.set(0xcb, 200)
	_, h := newTestServer(t, tr)

	rec := doJSON(t, h, http.MethodGet, "/api/v1/ec/realtime", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var rt engine.Realtime
	decodeBody(t, rec, &rt)
	if rt.CPUTemp != 61 || rt.CPUFanSpeed != 45 {
		t.Errorf("cpu = %+v", rt)
	}
	if rt.CPUFanRPM != 4780 {
		t.Errorf("CPUFanRPM = %d, want 4780", rt.CPUFanRPM)
	}
	if rt.GPUFanRPM != 2390 {
		t.Errorf("GPUFanRPM = %d, want 2390", rt.GPUFanRPM)
	}
}

func TestDump(t *testing.T) {
	tr := newMemTransport()
	tr.set(0x00, 0xe7)
	tr.set(0xff, 0x42)
	_, h := newTestServer(t, tr)

	rec := doJSON(t, h, http.MethodGet, "/api/v1/ec/dump", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var body dumpResponse
	decodeBody(t, rec, &body)
	if body.Size != 256 {
		t.Errorf("Size = %d, want 256", body.Size)
	}
	if len(body.Rows) != 16 {
		t.Fatalf("rows = %d, want 16", len(body.Rows))
	}
	if !strings.HasPrefix(body.Rows[0], "0x00: e7") {
		t.Errorf("first row = %q", body.Rows[0])
	}
	if !strings.HasSuffix(body.Rows[15], "42") {
		t.Errorf("last row = %q", body.Rows[15])
	}
}

func TestBoost(t *testing.T) {
	tr := newMemTransport()
	repo := testAuditRepo(t)
	_, h := newTestServer(t, tr, withAudit(repo))

	rec := doJSON(t, h, http.MethodPost, "/api/v1/ec/boost", map[string]string{"state": "on"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if got := tr.get(0x98); got != 128 {
		t.Errorf("boost register = %d, want 128", got)
	}

	rec = doJSON(t, h, http.MethodPost, "/api/v1/ec/boost", map[string]string{"state": "off"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := tr.get(0x98); got != 0 {
		t.Errorf("boost register = %d, want 0", got)
	}

	res := waitForAudit(t, repo, audit.Filter{Action: audit.ActionBoost}, 2)
	if res.Total != 2 {
		t.Errorf("audit total = %d, want 2", res.Total)
	}
}

func TestBoostInvalidState(t *testing.T) {
	tr := newMemTransport()
	_, h := newTestServer(t, tr)

	rec := doJSON(t, h, http.MethodPost, "/api/v1/ec/boost", map[string]string{"state": "max"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if tr.writeCount() != 0 {
		t.Errorf("writes = %d, want 0", tr.writeCount())
	}
}

func TestBacklight(t *testing.T) {
	tr := newMemTransport()
	_, h := newTestServer(t, tr)

	levels := []struct {
		level string
		value byte
	}{
		{"half", 128},
		{"full", 192},
		{"off", 0},
	}
	for _, l := range levels {
		rec := doJSON(t, h, http.MethodPost, "/api/v1/ec/backlight", map[string]string{"level": l.level})
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status = %d, want 200: %s", l.level, rec.Code, rec.Body.String())
		}
		if got := tr.get(0xf7); got != l.value {
			t.Errorf("%s: backlight register = %d, want %d", l.level, got, l.value)
		}
	}

	rec := doJSON(t, h, http.MethodPost, "/api/v1/ec/backlight", map[string]string{"level": "dim"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid level status = %d, want 400", rec.Code)
	}
}

func TestBattery(t *testing.T) {
	tr := newMemTransport()
	repo := testAuditRepo(t)
	_, h := newTestServer(t, tr, withAudit(repo))

	rec := doJSON(t, h, http.MethodPost, "/api/v1/ec/battery", map[string]int{"threshold": 80})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if got := tr.get(0xef); got != 208 {
		t.Errorf("battery register = %d, want 208", got)
	}

	res := waitForAudit(t, repo, audit.Filter{Action: audit.ActionBattery}, 1)
	if res.Entries[0].Target != "80" {
		t.Errorf("audit target = %q, want 80", res.Entries[0].Target)
	}
}

func TestBatteryOutOfRange(t *testing.T) {
	tr := newMemTransport()
	_, h := newTestServer(t, tr)

	rec := doJSON(t, h, http.MethodPost, "/api/v1/ec/battery", map[string]int{"threshold": 10})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", rec.Code, rec.Body.String())
	}
	var e Error
	decodeBody(t, rec, &e)
	if e.Code != ErrCodeInvalidConfig {
		t.Errorf("code = %q, want %q", e.Code, ErrCodeInvalidConfig)
	}
	if tr.writeCount() != 0 {
		t.Errorf("writes = %d, want 0", tr.writeCount())
	}
}

func TestBatteryMissingThreshold(t *testing.T) {
	_, h := newTestServer(t, newMemTransport())

	rec := doJSON(t, h, http.MethodPost, "/api/v1/ec/battery", map[string]string{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var e Error
	decodeBody(t, rec, &e)
	if !strings.Contains(e.Message, "threshold is required") {
		t.Errorf("message = %q", e.Message)
	}
}

func TestRegisterWrite(t *testing.T) {
	tr := newMemTransport()
	repo := testAuditRepo(t)
	_, h := newTestServer(t, tr, withAudit(repo))

	rec := doJSON(t, h, http.MethodPost, "/api/v1/ec/register",
		map[string]any{"address": "0x98", "value": 128})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if got := tr.get(0x98); got != 128 {
		t.Errorf("register = %d, want 128", got)
	}

	var body map[string]any
	decodeBody(t, rec, &body)
	if body["address"] != "0x98" {
		t.Errorf("address = %v, want 0x98", body["address"])
	}

	res := waitForAudit(t, repo, audit.Filter{Action: audit.ActionRegisterWrite}, 1)
	if res.Entries[0].Target != "0x98" {
		t.Errorf("audit target = %q, want 0x98", res.Entries[0].Target)
	}
}

func TestRegisterWriteValidation(t *testing.T) {
	tr := newMemTransport()
	_, h := newTestServer(t, tr)

	tests := []struct {
		name string
		body map[string]any
	}{
		{"missing address", map[string]any{"value": 1}},
		{"missing value", map[string]any{"address": "0x98"}},
		{"bad address", map[string]any{"address": "zz", "value": 1}},
		{"value too large", map[string]any{"address": "0x98", "value": 300}},
		{"negative value", map[string]any{"address": "0x98", "value": -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, h, http.MethodPost, "/api/v1/ec/register", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400: %s", rec.Code, rec.Body.String())
			}
		})
	}
	if tr.writeCount() != 0 {
		t.Errorf("writes = %d, want 0", tr.writeCount())
	}
}

func TestRegisterWriteReadOnlyTransport(t *testing.T) {
	tr := newMemTransport()
	tr.writeErr = fmt.Errorf("%w: address 0x98", ec.ErrReadOnly)
	_, h := newTestServer(t, tr)

	rec := doJSON(t, h, http.MethodPost, "/api/v1/ec/register",
		map[string]any{"address": "0x98", "value": 1})
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502: %s", rec.Code, rec.Body.String())
	}
}

func TestTelemetryHistory(t *testing.T) {
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "samples.db"))
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	schema := `
		CREATE TABLE telemetry_samples (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			sampled_at TEXT NOT NULL,
			cpu_temp INTEGER NOT NULL,
			cpu_fan_speed INTEGER NOT NULL,
			cpu_fan_rpm INTEGER NOT NULL,
			gpu_temp INTEGER NOT NULL,
			gpu_fan_speed INTEGER NOT NULL,
			gpu_fan_rpm INTEGER NOT NULL
		) STRICT;
		CREATE INDEX idx_telemetry_samples_sampled_at ON telemetry_samples (sampled_at);
	`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("creating schema: %v", err)
	}
	history := monitor.NewSQLiteSampleHistory(db)

	base := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		s := monitor.Sample{Time: base.Add(time.Duration(i) * time.Second)}
		s.CPUTemp = 50 + i
		if err := history.Record(context.Background(), s); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	_, h := newTestServer(t, newMemTransport(), withHistory(history))

	rec := doJSON(t, h, http.MethodGet, "/api/v1/telemetry/history?limit=2", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var body telemetryHistoryResponse
	decodeBody(t, rec, &body)
	if body.Count != 2 || body.Source != "sqlite" {
		t.Fatalf("count = %d source = %q, want 2/sqlite", body.Count, body.Source)
	}
	// Newest first.
	if body.Samples[0].CPUTemp != 52 || body.Samples[1].CPUTemp != 51 {
		t.Errorf("samples out of order: %d, %d", body.Samples[0].CPUTemp, body.Samples[1].CPUTemp)
	}
}

func TestTelemetryHistoryBadLimit(t *testing.T) {
	_, h := newTestServer(t, newMemTransport())

	rec := doJSON(t, h, http.MethodGet, "/api/v1/telemetry/history?limit=x", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestTelemetryHistoryUnconfigured(t *testing.T) {
	_, h := newTestServer(t, newMemTransport())

	rec := doJSON(t, h, http.MethodGet, "/api/v1/telemetry/history", nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestRecentFromRing(t *testing.T) {
	ring := make([]monitor.Sample, 5)
	for i := range ring {
		ring[i].CPUTemp = i
	}

	got := recentFromRing(ring, 3)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[0].CPUTemp != 4 || got[2].CPUTemp != 2 {
		t.Errorf("order = %d..%d, want newest first", got[0].CPUTemp, got[2].CPUTemp)
	}

	if got := recentFromRing(ring, 0); len(got) != 5 {
		t.Errorf("limit 0 len = %d, want all 5", len(got))
	}
	if got := recentFromRing(nil, 10); len(got) != 0 {
		t.Errorf("empty ring len = %d, want 0", len(got))
	}
}

func TestListAudit(t *testing.T) {
	repo := testAuditRepo(t)
	for _, e := range []*audit.Entry{
		{Action: audit.ActionApply, Target: "silent", Actor: audit.ActorMQTT},
		{Action: audit.ActionBoost, Target: "on", Actor: audit.ActorAPI},
	} {
		if err := repo.Create(context.Background(), e); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	_, h := newTestServer(t, newMemTransport(), withAudit(repo))

	rec := doJSON(t, h, http.MethodGet, "/api/v1/audit", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var res audit.ListResult
	decodeBody(t, rec, &res)
	if res.Total != 2 {
		t.Errorf("total = %d, want 2", res.Total)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/v1/audit?action=apply", nil)
	decodeBody(t, rec, &res)
	if res.Total != 1 || res.Entries[0].Action != audit.ActionApply {
		t.Errorf("filtered result = %+v", res)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/v1/audit?limit=banana", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want 400", rec.Code)
	}
}

func TestListAuditUnconfigured(t *testing.T) {
	_, h := newTestServer(t, newMemTransport())

	rec := doJSON(t, h, http.MethodGet, "/api/v1/audit", nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestMalformedJSONBody(t *testing.T) {
	_, h := newTestServer(t, newMemTransport())

	for _, path := range []string{
		"/api/v1/ec/boost",
		"/api/v1/ec/backlight",
		"/api/v1/ec/battery",
		"/api/v1/ec/register",
	} {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader("{not json"))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", path, rec.Code)
		}
	}
}

func TestRequestIDHeader(t *testing.T) {
	_, h := newTestServer(t, newMemTransport())

	rec := doJSON(t, h, http.MethodGet, "/api/v1/health", nil)
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header missing")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "my-id")
	rec2 := httptest.NewRecorder()
	h.ServeHTTP(rec2, req)
	if got := rec2.Header().Get("X-Request-ID"); got != "my-id" {
		t.Errorf("X-Request-ID = %q, want my-id", got)
	}
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t, newMemTransport())
	srv.cfg.CORS.AllowedOrigins = []string{"http://localhost:3000"}
	h := srv.buildRouter()

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Allow-Origin = %q", got)
	}

	// Unlisted origins get no CORS headers.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("unexpected CORS header for unlisted origin")
	}
}

func TestWriteDomainErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"hardware unavailable", fmt.Errorf("%w: no file", ec.ErrNotAvailable), http.StatusServiceUnavailable, ErrCodeHardwareUnavailable},
		{"read failed", fmt.Errorf("%w: address 0x68", ec.ErrReadFailed), http.StatusBadGateway, ErrCodeECIOFailure},
		{"write failed", fmt.Errorf("%w: address 0xf4", ec.ErrWriteFailed), http.StatusBadGateway, ErrCodeECIOFailure},
		{"section missing", fmt.Errorf("%w: %q", profile.ErrSectionNotFound, "x"), http.StatusNotFound, ErrCodeNotFound},
		{"missing key", fmt.Errorf("%w: fan_mode", profile.ErrMissingKey), http.StatusBadRequest, ErrCodeInvalidConfig},
		{"battery range", fmt.Errorf("%w: 10", engine.ErrBatteryRange), http.StatusBadRequest, ErrCodeInvalidConfig},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, ErrCodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeDomainError(rec, tt.err)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var e Error
			if err := json.Unmarshal(rec.Body.Bytes(), &e); err != nil {
				t.Fatalf("decoding: %v", err)
			}
			if e.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", e.Code, tt.wantCode)
			}
		})
	}
}
