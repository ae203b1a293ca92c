package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/icesealed/wyvern/internal/audit"
	"github.com/icesealed/wyvern/internal/ec"
	"github.com/icesealed/wyvern/internal/engine"
	"github.com/icesealed/wyvern/internal/profile"
)

// snapshotResponse pairs the raw register bytes with their decoded
// view, so callers do not reimplement the codec.
type snapshotResponse struct {
	*engine.RegisterSnapshot
	FanModeName string              `json:"fan_mode"`
	Battery     engine.BatteryState `json:"battery"`
}

type dumpResponse struct {
	Size int      `json:"size"`
	Rows []string `json:"rows"`
}

type boostRequest struct {
	State string `json:"state"`
}

type backlightRequest struct {
	Level string `json:"level"`
}

type batteryRequest struct {
	// Threshold is a pointer so an absent field is distinguishable
	// from an explicit zero.
	Threshold *int `json:"threshold"`
}

type registerWriteRequest struct {
	Address string `json:"address"`
	Value   *int   `json:"value"`
}

// handleSnapshot reads the 28 profile registers through the address
// map of ?profile= (the default map when absent).
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	am, err := s.store.AddressMapFor(r.URL.Query().Get("profile"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	snap, err := s.engine.ReadLive(am)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	pct, set := snap.BatteryThreshold()
	writeJSON(w, http.StatusOK, snapshotResponse{
		RegisterSnapshot: snap,
		FanModeName:      snap.FanMode().String(),
		Battery:          engine.BatteryState{Raw: snap.RawBattery, Percent: pct, Set: set},
	})
}

func (s *Server) handleRealtime(w http.ResponseWriter, r *http.Request) {
	am, err := s.store.AddressMapFor(r.URL.Query().Get("profile"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	rt, err := s.engine.ReadRealtime(am)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rt)
}

func (s *Server) handleDump(w http.ResponseWriter, r *http.Request) {
	buf, err := s.engine.Dump()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dumpResponse{Size: len(buf), Rows: hexRows(buf)})
}

// hexRows renders a dump as od-style rows of sixteen bytes.
func hexRows(buf []byte) []string {
	const width = 16
	rows := make([]string, 0, (len(buf)+width-1)/width)
	for off := 0; off < len(buf); off += width {
		end := off + width
		if end > len(buf) {
			end = len(buf)
		}
		var b strings.Builder
		fmt.Fprintf(&b, "%#04x:", off)
		for _, v := range buf[off:end] {
			fmt.Fprintf(&b, " %02x", v)
		}
		rows = append(rows, b.String())
	}
	return rows
}

func (s *Server) handleBoost(w http.ResponseWriter, r *http.Request) {
	var req boostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.State != "on" && req.State != "off" {
		writeBadRequest(w, fmt.Sprintf("state must be %q or %q, got %q", "on", "off", req.State))
		return
	}

	cb, err := s.store.CoolerBoost()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	value := cb.Off
	if req.State == "on" {
		value = cb.On
	}

	am, err := s.store.AddressMap(cb.AddressProfile)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := s.engine.SetBoost(am, value); err != nil {
		writeDomainError(w, err)
		return
	}

	s.auditLog(audit.ActionBoost, req.State, map[string]any{"value": int(value)})
	writeJSON(w, http.StatusOK, map[string]any{"state": req.State, "value": int(value)})
}

func (s *Server) handleBacklight(w http.ResponseWriter, r *http.Request) {
	var req backlightRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	ub, err := s.store.USBBacklight()
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var value byte
	switch req.Level {
	case "off":
		value = ub.Off
	case "half":
		value = ub.Half
	case "full":
		value = ub.Full
	default:
		writeBadRequest(w, fmt.Sprintf("level must be %q, %q or %q, got %q", "off", "half", "full", req.Level))
		return
	}

	am, err := s.store.AddressMap(ub.AddressProfile)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := s.engine.SetBacklight(am, value); err != nil {
		writeDomainError(w, err)
		return
	}

	s.auditLog(audit.ActionBacklight, req.Level, map[string]any{"value": int(value)})
	writeJSON(w, http.StatusOK, map[string]any{"level": req.Level, "value": int(value)})
}

// handleBattery writes the charge limit through the default address
// map. Unlike a profile apply, an out-of-range percentage here is an
// error, not a skip.
func (s *Server) handleBattery(w http.ResponseWriter, r *http.Request) {
	var req batteryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Threshold == nil {
		writeBadRequest(w, "threshold is required")
		return
	}

	am, err := s.store.AddressMap(profile.SectionAddressDefault)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := s.engine.SetBatteryThreshold(am, *req.Threshold); err != nil {
		writeDomainError(w, err)
		return
	}

	s.auditLog(audit.ActionBattery, strconv.Itoa(*req.Threshold), nil)
	writeJSON(w, http.StatusOK, map[string]int{"threshold": *req.Threshold})
}

// handleRegisterWrite pokes one raw byte. Address and value travel in
// the same request; there is no set-then-commit state to leak between
// calls.
func (s *Server) handleRegisterWrite(w http.ResponseWriter, r *http.Request) {
	var req registerWriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Address == "" {
		writeBadRequest(w, "address is required")
		return
	}
	if req.Value == nil {
		writeBadRequest(w, "value is required")
		return
	}

	addr, err := ec.ParseAddress(req.Address)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if *req.Value < 0 || *req.Value > 0xff {
		writeBadRequest(w, fmt.Sprintf("value must be in 0..255, got %d", *req.Value))
		return
	}

	if err := s.engine.WriteRegister(addr, byte(*req.Value)); err != nil {
		writeDomainError(w, err)
		return
	}

	target := fmt.Sprintf("%#04x", addr)
	s.auditLog(audit.ActionRegisterWrite, target, map[string]any{"value": *req.Value})
	writeJSON(w, http.StatusOK, map[string]any{"address": target, "value": *req.Value})
}
