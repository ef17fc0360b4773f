package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")
)

// NetworkError reports that the backing provider could not be reached at the
// transport level (DNS failure, connection refused). It is distinct from an
// HTTP error status: the request never produced a response.
type NetworkError struct {
	Endpoint string
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("provider unreachable: %s: %v", e.Endpoint, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// AuthError reports rejected credentials or an invalid session. The message
// must not reveal whether the email exists or the password was wrong.
type AuthError struct {
	Message    string
	StatusCode int
}

func (e *AuthError) Error() string {
	return e.Message
}

// ValidationError reports malformed input caught before any network call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// RetryableError is the normalized shape for provider failures. A status
// below 500 marks a client error and is never retried; 5xx or an unknown
// status is treated as transient.
type RetryableError struct {
	Message    string
	Code       string
	StatusCode int
	Details    string
}

func (e *RetryableError) Error() string {
	return e.Message
}

// Retryable reports whether an automatic retry may help.
func (e *RetryableError) Retryable() bool {
	return e.StatusCode == 0 || e.StatusCode >= 500
}

// ConfigurationError reports missing or malformed collaborator configuration.
// It is fatal for the current operation and must carry actionable guidance.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return e.Message
}
