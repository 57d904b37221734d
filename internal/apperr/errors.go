package apperr

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Kind classifies an Error.
type Kind string

const (
	KindOffline            Kind = "offline"
	KindMissingCredentials Kind = "missing_credentials"
	KindRateLimited        Kind = "rate_limited"
	KindUnavailable        Kind = "unavailable"
	KindTimeout            Kind = "timeout"
	KindCancelled          Kind = "cancelled"
	KindInvalidRequest     Kind = "invalid_request"
	KindInvalidResponse    Kind = "invalid_response"
	KindDecodingFailed     Kind = "decoding_failed"
	KindInvalidModelOutput Kind = "invalid_model_output"
	KindCircuitOpen        Kind = "circuit_open"
	KindStorage            Kind = "storage"
	KindValidation         Kind = "validation"
	KindUnknown            Kind = "unknown"
)

// Retriable reports whether the pipeline may schedule one delayed retry
// for this kind of failure.
func (k Kind) Retriable() bool {
	switch k {
	case KindRateLimited, KindCircuitOpen, KindUnavailable, KindTimeout:
		return true
	}
	return false
}

// Error is the typed failure carried through the system.
type Error struct {
	Kind     Kind
	Provider string
	// RetryAfter is the server supplied hint for KindRateLimited, zero if absent.
	RetryAfter time.Duration
	// Cooldown is the remaining open time for KindCircuitOpen.
	Cooldown time.Duration
	Reason   string
	Cause    error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Provider != "" {
		msg += " (" + e.Provider + ")"
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Banner returns the short user facing message for the error.
func (e *Error) Banner() string {
	switch e.Kind {
	case KindOffline:
		return "Offline - showing cache when possible"
	case KindMissingCredentials:
		return fmt.Sprintf("Missing API key for %s. Add it to the config file.", e.Provider)
	case KindRateLimited:
		if secs := wholeSeconds(e.RetryAfter); secs > 0 {
			return fmt.Sprintf("Provider busy - retrying in %ds", secs)
		}
		return "Provider busy - retrying shortly"
	case KindUnavailable:
		return "Provider unavailable - try again"
	case KindTimeout:
		return "Request timed out - try again"
	case KindCancelled:
		return "Cancelled"
	case KindInvalidRequest:
		return "Invalid request - " + e.Reason
	case KindInvalidResponse:
		return "Invalid response from provider"
	case KindDecodingFailed:
		return "Failed to decode response"
	case KindInvalidModelOutput:
		return "LLM output invalid - using MT only"
	case KindCircuitOpen:
		secs := wholeSeconds(e.Cooldown)
		if secs < 1 {
			secs = 1
		}
		return fmt.Sprintf("LLM paused (%s) - auto-retry in %ds", e.Provider, secs)
	case KindStorage:
		return "Storage error - operation skipped"
	case KindValidation:
		if e.Reason != "" {
			return e.Reason
		}
		return "Validation failed"
	}
	if e.Reason != "" {
		return e.Reason
	}
	return "Something went wrong"
}

func wholeSeconds(d time.Duration) int {
	return int(d / time.Second)
}

// Offline returns a KindOffline error.
func Offline(cause error) *Error {
	return &Error{Kind: KindOffline, Cause: cause}
}

// MissingCredentials returns a KindMissingCredentials error for provider.
func MissingCredentials(provider string) *Error {
	return &Error{Kind: KindMissingCredentials, Provider: provider}
}

// RateLimited returns a KindRateLimited error. retryAfter may be zero.
func RateLimited(provider string, retryAfter time.Duration, cause error) *Error {
	return &Error{Kind: KindRateLimited, Provider: provider, RetryAfter: retryAfter, Cause: cause}
}

// Unavailable returns a KindUnavailable error.
func Unavailable(provider string, cause error) *Error {
	return &Error{Kind: KindUnavailable, Provider: provider, Cause: cause}
}

// Timeout returns a KindTimeout error.
func Timeout(provider string, cause error) *Error {
	return &Error{Kind: KindTimeout, Provider: provider, Cause: cause}
}

// Cancelled returns a KindCancelled error.
func Cancelled(cause error) *Error {
	return &Error{Kind: KindCancelled, Cause: cause}
}

// InvalidRequest returns a KindInvalidRequest error.
func InvalidRequest(reason string) *Error {
	return &Error{Kind: KindInvalidRequest, Reason: reason}
}

// InvalidResponse returns a KindInvalidResponse error.
func InvalidResponse(provider string, cause error) *Error {
	return &Error{Kind: KindInvalidResponse, Provider: provider, Cause: cause}
}

// DecodingFailed returns a KindDecodingFailed error.
func DecodingFailed(provider string, cause error) *Error {
	return &Error{Kind: KindDecodingFailed, Provider: provider, Cause: cause}
}

// InvalidModelOutput returns a KindInvalidModelOutput error.
func InvalidModelOutput(provider string, cause error) *Error {
	return &Error{Kind: KindInvalidModelOutput, Provider: provider, Cause: cause}
}

// CircuitOpen returns a KindCircuitOpen error with the remaining cooldown.
func CircuitOpen(provider string, cooldown time.Duration) *Error {
	return &Error{Kind: KindCircuitOpen, Provider: provider, Cooldown: cooldown}
}

// Storage wraps a persistence failure.
func Storage(cause error) *Error {
	return &Error{Kind: KindStorage, Cause: cause}
}

// Validation returns a KindValidation error whose banner is reason.
func Validation(reason string) *Error {
	return &Error{Kind: KindValidation, Reason: reason}
}

// Unknown wraps any other failure.
func Unknown(cause error) *Error {
	e := &Error{Kind: KindUnknown, Cause: cause}
	if cause != nil {
		e.Reason = cause.Error()
	}
	return e
}

// Classifier is implemented by transport errors that know their own
// taxonomy entry.
type Classifier interface {
	AppError() *Error
}

// As returns the *Error in err's chain, if any.
func As(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// KindOf returns the kind of err, KindUnknown when err is not classified.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindUnknown
}

// From maps any error into the taxonomy. It returns nil for nil.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := As(err); ok {
		return e
	}
	var c Classifier
	if errors.As(err, &c) {
		if e := c.AppError(); e != nil {
			return e
		}
	}
	switch {
	case errors.Is(err, context.Canceled):
		return Cancelled(err)
	case errors.Is(err, context.DeadlineExceeded):
		return Timeout("", err)
	}
	return Unknown(err)
}
