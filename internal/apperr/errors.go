// Package apperr defines the error classes shared by services and handlers.
package apperr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNotFound means the session, interaction, user or progress row does not exist
	ErrNotFound = errors.New("not found")
	// ErrForbidden means the caller is authenticated but does not own the resource
	ErrForbidden = errors.New("forbidden")
	// ErrConflict means the request clashes with the current state (duplicate email, session already ended)
	ErrConflict = errors.New("conflict")
	// ErrUnauthorized means credentials are missing or invalid
	ErrUnauthorized = errors.New("unauthorized")
)

// ValidationError carries one message per offending field
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError returns a ValidationError with a single field message
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

// Add records a message for field, keeping the first message per field
func (e *ValidationError) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, exists := e.Fields[field]; !exists {
		e.Fields[field] = message
	}
}

// HasErrors reports whether any field failed
func (e *ValidationError) HasErrors() bool {
	return e != nil && len(e.Fields) > 0
}

// OrNil returns e as an error when it has field messages, nil otherwise
func (e *ValidationError) OrNil() error {
	if e.HasErrors() {
		return e
	}
	return nil
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// NotFound wraps ErrNotFound with the kind of thing that was missing
func NotFound(what string) error {
	return fmt.Errorf("%s %w", what, ErrNotFound)
}

// Forbidden wraps ErrForbidden with a reason
func Forbidden(reason string) error {
	return fmt.Errorf("%w: %s", ErrForbidden, reason)
}

// Conflict wraps ErrConflict with a reason
func Conflict(reason string) error {
	return fmt.Errorf("%w: %s", ErrConflict, reason)
}
