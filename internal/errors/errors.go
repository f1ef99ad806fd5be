// Package errors defines the service error taxonomy shared across the
// platform. Handlers map ServiceError values onto HTTP responses; internal
// causes are logged but never returned to callers.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes for machine-readable classification.
const (
	CodeValidation    = "VALIDATION_ERROR"
	CodeAuthorization = "AUTHORIZATION_ERROR"
	CodeNotFound      = "NOT_FOUND"
	CodeUpload        = "UPLOAD_ERROR"
	CodePlatform      = "PLATFORM_ERROR"
	CodeRateLimit     = "RATE_LIMIT_EXCEEDED"
	CodeInternal      = "INTERNAL_ERROR"
)

// ServiceError carries a classification, a user-safe message and an HTTP
// status. The wrapped cause is for logs only.
type ServiceError struct {
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	HTTPStatus int                    `json:"-"`
	Details    map[string]interface{} `json:"details,omitempty"`
	cause      error
}

func (e *ServiceError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the cause for errors.Is/As chains.
func (e *ServiceError) Unwrap() error { return e.cause }

// WithDetails attaches a key/value pair and returns the error.
func (e *ServiceError) WithDetails(key string, value interface{}) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Validation reports invalid caller input.
func Validation(message string) *ServiceError {
	return &ServiceError{Code: CodeValidation, Message: message, HTTPStatus: http.StatusBadRequest}
}

// Unauthorized reports rejected or insufficient credentials.
func Unauthorized(message string) *ServiceError {
	return &ServiceError{Code: CodeAuthorization, Message: message, HTTPStatus: http.StatusUnauthorized}
}

// NotFound reports a missing resource or unregistered package identifier.
func NotFound(message string) *ServiceError {
	return &ServiceError{Code: CodeNotFound, Message: message, HTTPStatus: http.StatusNotFound}
}

// Upload reports an artifact transport failure.
func Upload(message string, cause error) *ServiceError {
	return &ServiceError{Code: CodeUpload, Message: message, HTTPStatus: http.StatusBadGateway, cause: cause}
}

// Platform reports any other non-2xx response from an upstream platform API.
func Platform(message string, cause error) *ServiceError {
	return &ServiceError{Code: CodePlatform, Message: message, HTTPStatus: http.StatusBadGateway, cause: cause}
}

// RateLimitExceeded reports the caller hit the request rate limit.
func RateLimitExceeded(limit int, window string) *ServiceError {
	e := &ServiceError{
		Code:       CodeRateLimit,
		Message:    "rate limit exceeded",
		HTTPStatus: http.StatusTooManyRequests,
	}
	return e.WithDetails("limit", limit).WithDetails("window", window)
}

// Internal reports an unexpected failure. The cause stays server-side.
func Internal(message string, cause error) *ServiceError {
	return &ServiceError{Code: CodeInternal, Message: message, HTTPStatus: http.StatusInternalServerError, cause: cause}
}

// GetServiceError extracts a ServiceError from err, or nil if none is found.
func GetServiceError(err error) *ServiceError {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr
	}
	return nil
}

// IsCode reports whether err carries the given error code.
func IsCode(err error, code string) bool {
	svcErr := GetServiceError(err)
	return svcErr != nil && svcErr.Code == code
}
