package types

import (
	"errors"
	"fmt"
)

// Domain errors for type validation
var (
	ErrMissingSource = errors.New("source ID is required")
	ErrEmptyHeader   = errors.New("header cannot be empty")
	ErrEmptyContent  = errors.New("content cannot be empty")
	ErrUnknownRoute  = errors.New("unknown strategy")
)

// BackendErrorKind classifies a failed call to an external backend.
// Only some kinds are eligible for fallback to another strategy.
type BackendErrorKind int

const (
	// KindUnavailable means the backend could not be reached or returned a server error
	KindUnavailable BackendErrorKind = iota
	// KindRateLimited means the backend refused the call because of throttling
	KindRateLimited
	// KindInvalidRequest means the backend rejected the request itself
	KindInvalidRequest
)

func (k BackendErrorKind) String() string {
	switch k {
	case KindUnavailable:
		return "unavailable"
	case KindRateLimited:
		return "rate_limited"
	case KindInvalidRequest:
		return "invalid_request"
	default:
		return "unknown"
	}
}

// BackendError is returned by every backend adapter (generation, embedding, web search)
type BackendError struct {
	Backend string
	Kind    BackendErrorKind
	Err     error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s backend %s: %v", e.Backend, e.Kind, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// Retryable reports whether another strategy may be tried after this failure
func (e *BackendError) Retryable() bool {
	return e.Kind == KindUnavailable || e.Kind == KindRateLimited
}

// NewBackendError wraps err with backend and kind
func NewBackendError(backend string, kind BackendErrorKind, err error) *BackendError {
	return &BackendError{Backend: backend, Kind: kind, Err: err}
}

// KindForStatus maps an HTTP status code to a backend error kind
func KindForStatus(status int) BackendErrorKind {
	switch {
	case status == 429:
		return KindRateLimited
	case status >= 500:
		return KindUnavailable
	default:
		return KindInvalidRequest
	}
}

// IsFallbackEligible reports whether err is a backend failure that allows
// falling back to the next strategy
func IsFallbackEligible(err error) bool {
	var be *BackendError
	if errors.As(err, &be) {
		return be.Retryable()
	}
	return false
}
