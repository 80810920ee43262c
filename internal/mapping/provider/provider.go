// Package provider defines the model-provider collaborator the mapping
// resolver consumes, and the error classification the retry loop keys on.
//
// A Provider failure is either transport-level (timeout, rate limit,
// 5xx) — wrapped in TransientError so the resolver retries with backoff — or
// permanent (bad credentials, unknown model). A success whose content does
// not parse is NOT a provider error; the resolver's parser handles that
// separately.
package provider

import (
	"context"
	"errors"
	"net"
)

// Request is one completion request.
type Request struct {
	// System is the system instruction constraining the model's output.
	System string
	// User is the user prompt (the serialized field profile).
	User string
	// Model is the provider-specific model identifier.
	Model string

	MaxTokens   int
	Temperature float64
}

// Provider is the text-generation collaborator.
type Provider interface {
	// Name identifies the provider in progress events ("openai",
	// "anthropic").
	Name() string

	// Complete sends the request and returns the raw completion text.
	// Transport failures that are worth retrying must be wrapped in
	// TransientError.
	Complete(ctx context.Context, req Request) (string, error)
}

// TransientError marks a provider failure as retryable.
//
// The resolver retries transient failures with exponential backoff before
// failing over to the next model; permanent errors skip the retry budget.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	if e == nil || e.Err == nil {
		return "transient provider error"
	}
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsTransient reports whether err should count against the retry budget
// rather than abort the current model immediately.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	return false
}
