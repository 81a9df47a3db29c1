package pagepost

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyRequest rejects a request with no caption and no images.
	ErrEmptyRequest = errors.New("caption or at least one image is required")
	// ErrNoDestinations rejects a request that resolves to no pages.
	ErrNoDestinations = errors.New("no destination pages selected")
	// ErrStorageUnavailable is returned when a backing file cannot be parsed.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// MissingConfigError is returned when required configuration is missing.
type MissingConfigError struct {
	Component string
	Fields    []string
}

func (e MissingConfigError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("%s not configured", e.Component)
	}
	return fmt.Sprintf("%s not configured (missing %s)", e.Component, strings.Join(e.Fields, ", "))
}

// ValidationError captures a request rejected before any remote call.
type ValidationError struct {
	Reason error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %v", e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Reason }
