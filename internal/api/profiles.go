package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/icesealed/wyvern/internal/audit"
	"github.com/icesealed/wyvern/internal/engine"
	"github.com/icesealed/wyvern/internal/profile"
)

type profileListResponse struct {
	Profiles []string `json:"profiles"`

	// Detected is the profile matching this machine's DMI board name,
	// empty when no section matches.
	Detected string `json:"detected,omitempty"`
}

// applyResult is the apply response body and the payload broadcast on
// the ec.applied channel.
type applyResult struct {
	Profile   string    `json:"profile"`
	FanMode   string    `json:"fan_mode"`
	Source    string    `json:"source"`
	Writes    int       `json:"writes"`
	AppliedAt time.Time `json:"applied_at"`
}

func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	names, err := s.store.Names()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	resp := profileListResponse{Profiles: names}
	if detected, ok := profile.DetectProfile(names); ok {
		resp.Detected = detected
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.Profile(chi.URLParam(r, "name"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handleSaveProfile validates and writes a profile section. The name
// in the path wins over any name in the body, and a missing
// address_profile falls back to the default map.
func (s *Server) handleSaveProfile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if profile.ReservedSection(name) {
		writeBadRequest(w, "section name is reserved")
		return
	}

	var p profile.Profile
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	p.Name = name
	if p.AddressProfile == "" {
		p.AddressProfile = profile.SectionAddressDefault
	}

	if err := s.store.SaveProfile(&p); err != nil {
		writeDomainError(w, err)
		return
	}

	s.auditLog(audit.ActionProfileSave, name, nil)
	s.log.Info("profile saved", "profile", name)
	writeJSON(w, http.StatusOK, map[string]string{"saved": name})
}

// handleApplyProfile loads the named profile, resolves its address
// map and writes it to the EC. Successful applies are audited,
// broadcast to WebSocket clients and mirrored to InfluxDB.
func (s *Server) handleApplyProfile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	p, err := s.store.Profile(name)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	am, err := s.store.AddressMapFor(name)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := s.engine.Apply(am, p); err != nil {
		writeDomainError(w, err)
		return
	}

	result := applyResult{
		Profile:   p.Name,
		FanMode:   p.FanMode.String(),
		Source:    audit.ActorAPI,
		Writes:    engine.ApplyWrites(p),
		AppliedAt: time.Now().UTC(),
	}

	s.auditLog(audit.ActionApply, p.Name, map[string]any{"fan_mode": result.FanMode})
	if s.hub != nil {
		s.hub.Broadcast(ChannelECApplied, result)
	}
	if s.influx != nil {
		s.influx.WriteApplyEvent(s.host, p.Name, result.Source, result.Writes)
	}

	s.log.Info("profile applied", "profile", p.Name, "fan_mode", result.FanMode)
	writeJSON(w, http.StatusOK, result)
}
