package llm

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions.
var (
	// ErrNoAPIKey is returned when the API key is missing.
	ErrNoAPIKey = errors.New("llm: API key required")

	// ErrStreamClosed is returned when reading from a closed stream.
	ErrStreamClosed = errors.New("llm: stream closed")

	// ErrProviderUnavailable is returned when no provider is available.
	ErrProviderUnavailable = errors.New("llm: provider unavailable")

	// ErrEmptyResponse is returned when the API produced no choices.
	ErrEmptyResponse = errors.New("llm: empty response")
)

// ProviderError wraps an error with provider context.
type ProviderError struct {
	Provider string
	Err      error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	return fmt.Sprintf("llm [%s]: %v", e.Provider, e.Err)
}

// Unwrap returns the underlying error.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// WrapError wraps an error with provider context.
func WrapError(provider string, err error) error {
	if err == nil {
		return nil
	}
	return &ProviderError{Provider: provider, Err: err}
}
