package api

import (
	"net/http"
	"strconv"

	"github.com/icesealed/wyvern/internal/monitor"
)

type telemetryHistoryResponse struct {
	Samples []monitor.Sample `json:"samples"`
	Count   int              `json:"count"`

	// Source is "sqlite" or "memory", so callers know whether the
	// window survives a daemon restart.
	Source string `json:"source"`
}

// handleTelemetryHistory returns recent samples newest first. The
// persistent store is preferred; without one the monitor's in-memory
// ring serves a shorter window.
func (s *Server) handleTelemetryHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeBadRequest(w, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	switch {
	case s.history != nil:
		samples, err := s.history.Recent(r.Context(), limit)
		if err != nil {
			writeInternalError(w, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, telemetryHistoryResponse{
			Samples: samples, Count: len(samples), Source: "sqlite",
		})
	case s.monitor != nil:
		samples := recentFromRing(s.monitor.History(), limit)
		writeJSON(w, http.StatusOK, telemetryHistoryResponse{
			Samples: samples, Count: len(samples), Source: "memory",
		})
	default:
		writeInternalError(w, "telemetry history not configured")
	}
}

// recentFromRing reverses the chronological ring into the newest-first
// order the persistent store uses, clamped to limit.
func recentFromRing(ring []monitor.Sample, limit int) []monitor.Sample {
	if limit <= 0 || limit > len(ring) {
		limit = len(ring)
	}
	out := make([]monitor.Sample, 0, limit)
	for i := len(ring) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, ring[i])
	}
	return out
}
