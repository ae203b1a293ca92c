package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/icesealed/wyvern/internal/curve"
	"github.com/icesealed/wyvern/internal/ec"
	"github.com/icesealed/wyvern/internal/engine"
	"github.com/icesealed/wyvern/internal/profile"
)

// Error is the standard API error response body.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Machine-readable error codes.
const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeNotFound     = "not_found"
	ErrCodeInternal     = "internal_error"

	// ErrCodeHardwareUnavailable means the EC debugfs interface is
	// absent: the module is not loaded or the daemon lacks root.
	ErrCodeHardwareUnavailable = "hardware_unavailable"

	// ErrCodeECIOFailure means a register read or write failed after
	// the interface opened. The message names address and direction.
	ErrCodeECIOFailure = "ec_io_failure"

	// ErrCodeInvalidConfig covers malformed sections, out-of-domain
	// values and an unreadable configuration file.
	ErrCodeInvalidConfig = "invalid_config"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{Status: status, Code: code, Message: message})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeDomainError maps controller and store failures onto HTTP
// statuses. A missing EC interface is 503 with the kernel module to
// load, an I/O failure mid-operation is 502 (the message already
// names the failing address and direction), configuration problems
// are 400 and unknown sections 404.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ec.ErrNotAvailable):
		writeError(w, http.StatusServiceUnavailable, ErrCodeHardwareUnavailable,
			err.Error()+"; load the kernel module: modprobe ec_sys write_support=1")
	case errors.Is(err, ec.ErrReadFailed),
		errors.Is(err, ec.ErrWriteFailed),
		errors.Is(err, ec.ErrReadOnly):
		writeError(w, http.StatusBadGateway, ErrCodeECIOFailure, err.Error())
	case errors.Is(err, profile.ErrSectionNotFound):
		writeNotFound(w, err.Error())
	case errors.Is(err, profile.ErrMissingKey),
		errors.Is(err, profile.ErrInvalidValue),
		errors.Is(err, profile.ErrLoadFailed),
		errors.Is(err, engine.ErrBatteryRange),
		errors.Is(err, curve.ErrThresholdRange),
		errors.Is(err, curve.ErrThresholdOrder),
		errors.Is(err, curve.ErrSpeedRange):
		writeError(w, http.StatusBadRequest, ErrCodeInvalidConfig, err.Error())
	default:
		writeInternalError(w, err.Error())
	}
}
