package models

import (
	"errors"
	"fmt"
)

// ErrNotFound covers both a missing thread and a thread owned by someone
// else. Handlers must not distinguish the two.
var ErrNotFound = errors.New("not found")

// ErrMissingAPIKey means no provider credential was resolvable for the
// request. Surfaced to users with a prompt to configure one, never as a
// generic failure.
var ErrMissingAPIKey = errors.New("provider API key not configured")

// ValidationError reports malformed input. Rejected before any network
// or provider call; user-correctable.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

// Validation builds a ValidationError for a field.
func Validation(field, msg string) error {
	return &ValidationError{Field: field, Msg: msg}
}

// StreamError is a provider or transport failure mid-generation. The
// offending turn is retryable; earlier messages stay intact.
type StreamError struct {
	Msg string
	Err error
}

func (e *StreamError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "stream failed"
}

func (e *StreamError) Unwrap() error { return e.Err }
