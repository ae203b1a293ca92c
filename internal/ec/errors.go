package ec

import "errors"

// Domain errors for EC transport access.
var (
	// ErrNotAvailable is returned when the EC interface file does not
	// exist. Callers should surface a setup hint (load ec_sys with
	// write_support=1, run as root) rather than a generic I/O error.
	ErrNotAvailable = errors.New("ec: controller interface not available")

	// ErrReadFailed is returned when a register read fails mid-operation.
	// The wrapped message names the failing address.
	ErrReadFailed = errors.New("ec: register read failed")

	// ErrWriteFailed is returned when a register write fails mid-operation.
	// The wrapped message names the failing address.
	ErrWriteFailed = errors.New("ec: register write failed")

	// ErrReadOnly is returned when writing through a transport that was
	// opened read-only (firmware images, dumps).
	ErrReadOnly = errors.New("ec: transport is read-only")
)
