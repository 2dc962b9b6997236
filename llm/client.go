// Package llm defines the text generation client used by workflow nodes,
// with an iris-backed implementation and a retry decorator.
package llm

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies a generation failure for retry and API mapping.
type ErrorKind string

const (
	// KindTransient marks failures worth retrying, such as timeouts or
	// provider overload.
	KindTransient ErrorKind = "transient"

	// KindRejected marks failures the provider will repeat on retry,
	// such as an invalid API key or an unknown model.
	KindRejected ErrorKind = "rejected"

	// KindMalformedResponse marks a provider response that arrived but
	// could not be used, such as empty output.
	KindMalformedResponse ErrorKind = "malformed_response"
)

// ServiceError is a classified generation failure.
type ServiceError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	return fmt.Sprintf("llm %s (%s): %v", e.Op, e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Transient reports whether the error is worth retrying.
func (e *ServiceError) Transient() bool {
	return e.Kind == KindTransient
}

// NewServiceError creates a classified error for the given operation.
func NewServiceError(kind ErrorKind, op string, err error) *ServiceError {
	return &ServiceError{Kind: kind, Op: op, Err: err}
}

// IsTransient reports whether err wraps a transient ServiceError.
func IsTransient(err error) bool {
	var se *ServiceError
	return errors.As(err, &se) && se.Transient()
}

// GenerateRequest is a single-turn text generation request.
type GenerateRequest struct {
	// System is the system prompt, optional.
	System string

	// Prompt is the user prompt.
	Prompt string

	// Temperature controls sampling randomness.
	Temperature float32

	// MaxTokens caps the response length; zero means provider default.
	MaxTokens int
}

// TextClient produces text for a prompt. Implementations must be safe for
// concurrent use.
type TextClient interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// GenerateFunc adapts a function to the TextClient interface.
type GenerateFunc func(ctx context.Context, req GenerateRequest) (string, error)

// Generate implements TextClient.
func (f GenerateFunc) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	return f(ctx, req)
}
