package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/openai/openai-go/v3"
)

// Failure classes attached to a ProviderError. Match them with errors.Is.
var (
	ErrRateLimited         = errors.New("rate limited")
	ErrQuotaExceeded       = errors.New("quota exceeded")
	ErrProviderTimeout     = errors.New("provider timed out")
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrNoProviders means no AI provider is configured
	ErrNoProviders = errors.New("no AI provider configured")
)

// UpstreamProviderError is returned when every provider in the chain failed.
// Provider names the last provider tried.
type UpstreamProviderError struct {
	Provider string
	Err      error
}

func (e *UpstreamProviderError) Error() string {
	return fmt.Sprintf("AI provider %s failed: %v", e.Provider, e.Err)
}

func (e *UpstreamProviderError) Unwrap() error {
	return e.Err
}

// ProviderError is one provider's failed completion
type ProviderError struct {
	Provider   string
	StatusCode int
	Code       string

	// Kind is one of the failure classes above, or nil when the failure is not classified
	Kind error
	Err  error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s completion failed (status %d): %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s completion failed: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() []error {
	if e.Kind == nil {
		return []error{e.Err}
	}
	return []error{e.Kind, e.Err}
}

// classifyError wraps a client error with its HTTP status and failure class
func classifyError(provider string, err error) *ProviderError {
	pe := &ProviderError{Provider: provider, Err: err}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		pe.StatusCode = apiErr.StatusCode
		pe.Code = apiErr.Code
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		pe.Kind = ErrProviderTimeout
	case pe.Code == "insufficient_quota" || pe.StatusCode == http.StatusPaymentRequired:
		pe.Kind = ErrQuotaExceeded
	case pe.StatusCode == http.StatusTooManyRequests:
		pe.Kind = ErrRateLimited
	case pe.StatusCode >= http.StatusInternalServerError:
		pe.Kind = ErrProviderUnavailable
	}
	return pe
}

// IsRateLimitError reports whether a provider throttled the request
func IsRateLimitError(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// IsQuotaError reports whether a provider's quota or billing is exhausted
func IsQuotaError(err error) bool {
	return errors.Is(err, ErrQuotaExceeded)
}
