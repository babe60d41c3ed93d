// Package provider defines the shared failure taxonomy for the speech,
// language, and synthesis provider clients.
//
// Every client wraps its transport-level failures in an [Error] carrying a
// [FailureKind], so the turn controller can log what broke (timeout, bad
// status, garbage payload) without inspecting provider-specific error types.
// All provider failures are recoverable: the controller drops the turn or
// substitutes a fallback, never crashes the call.
package provider

import (
	"context"
	"errors"
	"fmt"
)

// FailureKind classifies why a provider call failed.
type FailureKind string

const (
	// KindTimeout covers deadline expiry and context cancellation during
	// the provider call.
	KindTimeout FailureKind = "timeout"

	// KindStatus covers non-2xx HTTP responses.
	KindStatus FailureKind = "status"

	// KindMalformed covers responses that arrived but could not be decoded.
	KindMalformed FailureKind = "malformed"

	// KindUnavailable covers connection-level failures: DNS, refused
	// connections, closed sockets.
	KindUnavailable FailureKind = "unavailable"
)

// Error is the typed failure returned by all provider clients.
type Error struct {
	// Provider names the client that failed (e.g. "whisper", "elevenlabs").
	Provider string

	// Kind classifies the failure.
	Kind FailureKind

	// Err is the underlying cause.
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Errf wraps err as a provider [Error] with printf-style context.
func Errf(name string, kind FailureKind, format string, args ...any) *Error {
	return &Error{Provider: name, Kind: kind, Err: fmt.Errorf(format, args...)}
}

// Classify wraps err with the kind inferred from standard error values:
// context deadline/cancellation maps to [KindTimeout], everything else to
// [KindUnavailable]. Use it for transport-level errors where no HTTP status
// is available.
func Classify(name string, err error) *Error {
	kind := KindUnavailable
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		kind = KindTimeout
	}
	return &Error{Provider: name, Kind: kind, Err: err}
}

// KindOf extracts the [FailureKind] from err, or "" when err is not a
// provider [Error].
func KindOf(err error) FailureKind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}
