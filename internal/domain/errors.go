package domain

import (
	"errors"
	"fmt"
)

// ErrorKind discriminates the closed set of failure categories this
// subsystem reports. Callers branch on the kind, never on message strings.
type ErrorKind string

const (
	// ErrValidation marks malformed or missing input. Never retried.
	ErrValidation ErrorKind = "validation"
	// ErrAuthentication marks missing or invalid provider credentials.
	// A configuration problem, never retried.
	ErrAuthentication ErrorKind = "authentication"
	// ErrRateLimit marks a locally denied admission. The caller decides
	// whether to queue or drop; this layer never auto-retries it.
	ErrRateLimit ErrorKind = "rate_limit"
	// ErrProviderAPI marks a network or provider failure. Retried with
	// backoff and subject to circuit breaking.
	ErrProviderAPI ErrorKind = "provider_api"
)

// Error is the typed error carried across the subsystem boundary. Code and
// Subcode hold the provider's own error identifiers when present.
type Error struct {
	Kind    ErrorKind
	Message string
	Code    int
	Subcode int
	wrapped error
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s: %s (code %d)", e.Kind, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.wrapped }

// NewValidationError reports malformed or missing input.
func NewValidationError(msg string) *Error {
	return &Error{Kind: ErrValidation, Message: msg}
}

// NewAuthenticationError reports a credential/configuration problem.
func NewAuthenticationError(msg string) *Error {
	return &Error{Kind: ErrAuthentication, Message: msg}
}

// NewRateLimitError reports a denied admission for the given key.
func NewRateLimitError(key string) *Error {
	return &Error{Kind: ErrRateLimit, Message: "rate limit exceeded for " + key}
}

// NewProviderError reports a provider/network failure, wrapping the cause.
func NewProviderError(msg string, cause error) *Error {
	return &Error{Kind: ErrProviderAPI, Message: msg, wrapped: cause}
}

// NewProviderAPIError reports a provider-side rejection carrying the
// provider's error code and subcode.
func NewProviderAPIError(msg string, code, subcode int) *Error {
	return &Error{Kind: ErrProviderAPI, Message: msg, Code: code, Subcode: subcode}
}

// KindOf extracts the ErrorKind from err, unwrapping as needed. Errors that
// did not originate in this subsystem are treated as provider failures, the
// only place foreign errors can enter.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrProviderAPI
}

// IsRetryable reports whether err represents a transient condition worth
// retrying. Validation and authentication failures are permanent; rate
// limits are the caller's problem, not the retry loop's.
func IsRetryable(err error) bool {
	return KindOf(err) == ErrProviderAPI
}
