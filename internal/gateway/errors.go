package gateway

import (
	"fmt"
	"net/http"
)

// Class is the closed set of error classes the fallback executor reasons
// about. It is a sum type in spirit: every class the executor ever switches
// on is declared here and nowhere else.
type Class string

const (
	ClassAuth                Class = "auth"
	ClassRateLimit           Class = "rate_limit"
	ClassProviderUnavailable Class = "provider_unavailable"
	ClassTimeout             Class = "timeout"
	ClassInvalidRequest      Class = "invalid_request"
	ClassContentPolicy       Class = "content_policy"
	ClassEmptyResponse       Class = "empty_response"
	ClassSerializationError  Class = "serialization_error"
	ClassTemplate            Class = "template"
	ClassDbLoggingError      Class = "db_logging_error"
	ClassFallbackExhausted   Class = "fallback_exhausted"
	ClassChatMessagesInput   Class = "chat_messages_input"
	// ClassAll is a sentinel usable only inside FallbackTarget.Catch; it
	// matches any of the classes above.
	ClassAll Class = "all"
)

// retryable reports whether an error of this class is eligible for
// exponential-backoff retry within a single target (§7: "Per-attempt
// retries... only apply to RateLimit, ProviderUnavailable, and Timeout").
func (c Class) retryable() bool {
	switch c {
	case ClassRateLimit, ClassProviderUnavailable, ClassTimeout:
		return true
	default:
		return false
	}
}

// fallbackEligible reports whether an error of this class may ever trigger
// a fallback target, independent of whether any configured target actually
// catches it.
func (c Class) fallbackEligible() bool {
	switch c {
	case ClassAuth, ClassRateLimit, ClassProviderUnavailable, ClassTimeout, ClassContentPolicy, ClassEmptyResponse:
		return true
	default:
		return false
	}
}

// HTTPStatus maps a Class to the HTTP status the gateway's own boundary
// should return for an unrecovered error of that class (§7 "User-visible
// failure").
func (c Class) HTTPStatus() int {
	switch c {
	case ClassAuth:
		return http.StatusUnauthorized
	case ClassRateLimit:
		return http.StatusTooManyRequests
	case ClassInvalidRequest, ClassChatMessagesInput:
		return http.StatusBadRequest
	case ClassContentPolicy:
		return http.StatusUnprocessableEntity
	case ClassTimeout:
		return http.StatusGatewayTimeout
	case ClassProviderUnavailable, ClassEmptyResponse, ClassFallbackExhausted:
		return http.StatusBadGateway
	case ClassDbLoggingError, ClassSerializationError, ClassTemplate:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Error is the gateway's uniform error type. It wraps an underlying cause
// with a Class so the executor and the HTTP boundary can dispatch on it via
// errors.As, following the standard library's wrap convention.
type Error struct {
	Class Class
	Cause error
}

func New(class Class, cause error) *Error {
	return &Error{Class: class, Cause: cause}
}

func Newf(class Class, format string, args ...any) *Error {
	return &Error{Class: class, Cause: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return string(e.Class)
	}

	return fmt.Sprintf("%s: %s", e.Class, e.Cause.Error())
}

func (e *Error) Unwrap() error { return e.Cause }

// ClassOf extracts the Class of err, defaulting to ClassProviderUnavailable
// for an error that was never classified (treated as an opaque upstream
// failure, which is the safest fallback-eligible default).
func ClassOf(err error) Class {
	var gErr *Error
	if asError(err, &gErr) {
		return gErr.Class
	}

	return ClassProviderUnavailable
}

// asError is errors.As without importing it at call sites that only need
// this one shape; kept as a tiny indirection so the package has a single
// classification chokepoint.
func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}

		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}

		err = u.Unwrap()
	}

	return false
}

// ProviderModelKey identifies one attempted (provider, model) pair.
type ProviderModelKey struct {
	Provider ProviderKind
	Model    string
}

// AttemptError records one failed attempt's key and error text, for
// FallbackExhausted's audit trail.
type AttemptError struct {
	Key ProviderModelKey
	Err string
}

// FallbackExhaustedError is returned when every fallback target failed.
type FallbackExhaustedError struct {
	AttemptedProviders []ProviderModelKey
	LastError          string
	ProviderErrors     []AttemptError
}

func (e *FallbackExhaustedError) Error() string {
	return fmt.Sprintf("gateway: all %d provider(s) exhausted, last error: %s", len(e.AttemptedProviders), e.LastError)
}
