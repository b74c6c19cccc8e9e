// Package gwerrors defines the gateway's error taxonomy (spec §7). Every
// failure that can reach a client, be cached, or be retried is represented
// as one of the Kinds below — never a bare error or an HTTP status alone.
package gwerrors

import (
	"fmt"
	"net/http"
	"time"
)

// Kind names one of the taxonomy categories from spec §7.
type Kind string

const (
	KindValidation       Kind = "validation"
	KindUnauthorized     Kind = "unauthorized"
	KindRateLimited      Kind = "rate_limited"
	KindModelUnavailable Kind = "model_unavailable"
	KindBackendTransient Kind = "backend_transient"
	KindBackendRejected  Kind = "backend_rejected"
	KindTimeout          Kind = "timeout"
	KindInternal         Kind = "internal"
)

// Error is the standardized error carried through the pipeline, the
// single-flight machinery, and ultimately the HTTP response. It never
// carries a stack trace — only a kind, a short human-readable reason, and
// whatever metadata the client contract in §6 requires.
type Error struct {
	Kind       Kind
	Message    string
	Retryable  bool
	RetryAfter time.Duration // set for KindRateLimited, and on a backend 429 (KindBackendTransient) that sent Retry-After
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// HTTPStatus maps a Kind to the status codes enumerated in spec §6.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindModelUnavailable:
		return http.StatusNotFound
	case KindTimeout:
		return http.StatusRequestTimeout
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindBackendTransient, KindBackendRejected:
		return http.StatusBadGateway
	case KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func Unauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Message: message}
}

func RateLimited(retryAfter time.Duration) *Error {
	return &Error{
		Kind:       KindRateLimited,
		Message:    "rate limit exceeded for this api key",
		Retryable:  false,
		RetryAfter: retryAfter,
	}
}

func ModelUnavailable(model string) *Error {
	return &Error{
		Kind:    KindModelUnavailable,
		Message: fmt.Sprintf("model %q is not resolvable or not healthy", model),
	}
}

func BackendTransient(message string) *Error {
	return &Error{Kind: KindBackendTransient, Message: message, Retryable: true}
}

func BackendRejected(message string) *Error {
	return &Error{Kind: KindBackendRejected, Message: message, Retryable: false}
}

func Timeout(stage string) *Error {
	return &Error{Kind: KindTimeout, Message: fmt.Sprintf("deadline exceeded during %s", stage)}
}

func Internal(message string) *Error {
	return &Error{Kind: KindInternal, Message: message}
}

// Cacheable reports whether this failure may be negative-cached (§4.B).
// Only a deterministic backend rejection qualifies; validation failures are
// never cached (§7) and transient failures (timeouts, connection errors)
// must never be cached either.
func (e *Error) Cacheable() bool {
	return e.Kind == KindBackendRejected
}
