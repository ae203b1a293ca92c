package profile

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingKey indicates a required key absent from a section.
	// Curve and address values are never defaulted; a half-populated
	// curve would silently corrupt hardware state.
	ErrMissingKey = errors.New("profile: missing configuration key")

	// ErrInvalidValue indicates a key whose value failed to parse or
	// is outside its domain.
	ErrInvalidValue = errors.New("profile: invalid configuration value")

	// ErrSectionNotFound indicates a section name absent from the store.
	ErrSectionNotFound = errors.New("profile: section not found")

	// ErrLoadFailed indicates the configuration file itself could not
	// be read or parsed. Callers distinguish it from a missing section:
	// the former is a deployment problem, the latter a caller typo.
	ErrLoadFailed = errors.New("profile: configuration load failed")
)

func missingKey(section, key string) error {
	return fmt.Errorf("%w: %q in section %q", ErrMissingKey, key, section)
}
