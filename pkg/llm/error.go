// Package llm provides internal representations of LLM completion API
// requests and responses, and a single-attempt client for issuing them.
package llm

import (
	"errors"
	"fmt"
)

// ErrorResponse represents an error payload from the completion API.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the upstream-reported error fields.
type ErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type,omitempty"`
	Code    string `json:"code,omitempty"`
}

// ErrNoCredential is returned when no API credential was resolved for the
// request. The client never attempts a network call in this case.
var ErrNoCredential = errors.New("no API credential available")

// ProviderError indicates the completion endpoint rejected the request.
// Message is the upstream-provided message when present, otherwise a fixed
// fallback.
type ProviderError struct {
	Status  int
	Message string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider returned %d: %s", e.Status, e.Message)
}

// TransportError indicates no response reached the client (timeout, DNS
// failure, connection refused).
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "completion request failed: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
