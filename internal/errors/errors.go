// Package errors provides the error taxonomy shared by the sync core and the
// HTTP layer. Every failure that crosses a package boundary is an *AppError so
// the orchestrator can classify it and handlers can render it without leaking
// provider payloads or internal details to clients.
package errors

import (
	"errors"
	"net/http"
)

// AppError represents a structured application error with an error code,
// human-readable message, HTTP status code, and optional internal error.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string { return e.Message }

// Unwrap returns the internal error for use with errors.Is/As.
func (e *AppError) Unwrap() error { return e.Internal }

// Is reports whether target is an AppError with the same code, so wrapped
// copies of a sentinel still match it.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Wrap creates a new AppError with the same code/message/status but wraps an internal error.
func Wrap(sentinel *AppError, internal error) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		StatusCode: sentinel.StatusCode,
		Internal:   internal,
	}
}

// WithMessage creates a new AppError with a custom message.
func WithMessage(sentinel *AppError, message string) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		StatusCode: sentinel.StatusCode,
		Internal:   sentinel.Internal,
	}
}

// WrapMessage combines WithMessage and Wrap.
func WrapMessage(sentinel *AppError, message string, internal error) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		StatusCode: sentinel.StatusCode,
		Internal:   internal,
	}
}

// Authentication & authorization errors.
var (
	ErrUnauthorized = &AppError{Code: "UNAUTHORIZED", Message: "Authentication required", StatusCode: http.StatusUnauthorized}
	ErrForbidden    = &AppError{Code: "FORBIDDEN", Message: "Access denied", StatusCode: http.StatusForbidden}

	ErrInvalidAPIKey         = &AppError{Code: "INVALID_API_KEY", Message: "Invalid or missing API key", StatusCode: http.StatusUnauthorized}
	ErrPipelineNotConfigured = &AppError{Code: "PIPELINE_NOT_CONFIGURED", Message: "Pipeline endpoints are not configured", StatusCode: http.StatusServiceUnavailable}
	ErrSchedulerDisabled     = &AppError{Code: "SCHEDULER_DISABLED", Message: "Scheduled sync is not running", StatusCode: http.StatusServiceUnavailable}
)

// General errors.
var (
	ErrInvalidInput   = &AppError{Code: "INVALID_INPUT", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrNotFound       = &AppError{Code: "NOT_FOUND", Message: "Resource not found", StatusCode: http.StatusNotFound}
	ErrInternalServer = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError}
)

// Resource errors.
var (
	ErrAccountNotFound     = &AppError{Code: "ACCOUNT_NOT_FOUND", Message: "Account not found", StatusCode: http.StatusNotFound}
	ErrHoldingNotFound     = &AppError{Code: "HOLDING_NOT_FOUND", Message: "Holding not found", StatusCode: http.StatusNotFound}
	ErrLinkSessionNotFound = &AppError{Code: "LINK_SESSION_NOT_FOUND", Message: "Link session not found or expired", StatusCode: http.StatusNotFound}
	ErrActivityImmutable   = &AppError{Code: "ACTIVITY_IMMUTABLE", Message: "Activity records cannot be modified", StatusCode: http.StatusConflict}
)

// Provider and sync errors.
var (
	ErrProviderNotConfigured = &AppError{Code: "PROVIDER_NOT_CONFIGURED", Message: "Provider is not configured", StatusCode: http.StatusUnprocessableEntity}
	ErrProviderAuth          = &AppError{Code: "PROVIDER_AUTH_FAILED", Message: "Provider authorization is invalid or expired", StatusCode: http.StatusUnauthorized}
	ErrProviderRateLimited   = &AppError{Code: "PROVIDER_RATE_LIMITED", Message: "Provider rate limit exceeded", StatusCode: http.StatusTooManyRequests}
	ErrProviderTransport     = &AppError{Code: "PROVIDER_UNAVAILABLE", Message: "Provider could not be reached", StatusCode: http.StatusBadGateway}
	ErrProviderSchema        = &AppError{Code: "PROVIDER_BAD_RESPONSE", Message: "Provider returned an unexpected response", StatusCode: http.StatusBadGateway}
	ErrSyncInProgress        = &AppError{Code: "SYNC_IN_PROGRESS", Message: "A sync is already running for this account", StatusCode: http.StatusConflict}
)

// Kind is the coarse class of a failure, used to decide its consequence.
type Kind string

const (
	KindConfiguration Kind = "configuration"
	KindAuth          Kind = "auth"
	KindRateLimit     Kind = "rate_limit"
	KindTransport     Kind = "transport"
	KindSchema        Kind = "schema"
	KindConflict      Kind = "conflict"
	KindNotFound      Kind = "not_found"
	KindInternal      Kind = "internal"
)

// Transient reports whether a failure of this kind may succeed on retry
// without operator or user action.
func (k Kind) Transient() bool {
	return k == KindRateLimit || k == KindTransport
}

// KindOf classifies err. Errors outside the taxonomy are KindInternal.
func KindOf(err error) Kind {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return KindInternal
	}
	switch appErr.Code {
	case ErrProviderNotConfigured.Code:
		return KindConfiguration
	case ErrProviderAuth.Code:
		return KindAuth
	case ErrProviderRateLimited.Code:
		return KindRateLimit
	case ErrProviderTransport.Code:
		return KindTransport
	case ErrProviderSchema.Code:
		return KindSchema
	case ErrSyncInProgress.Code:
		return KindConflict
	case ErrNotFound.Code, ErrAccountNotFound.Code, ErrHoldingNotFound.Code, ErrLinkSessionNotFound.Code:
		return KindNotFound
	}
	return KindInternal
}
