package orchestrator

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks malformed input. It is the only failure
	// ProcessMessage surfaces for input problems.
	ErrValidation = errors.New("validation failed")

	// ErrUpstreamUnavailable marks a failed or refused generation call. It is
	// recovered by falling back to FastPath and never returned to callers.
	ErrUpstreamUnavailable = errors.New("generation upstream unavailable")
)

// ValidationError describes one rejected request field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Unwrap lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
