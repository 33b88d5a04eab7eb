package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a categorized error code
type ErrorCode string

const (
	// Client errors
	CodeValidation   ErrorCode = "VALIDATION_ERROR"
	CodeUnauthorized ErrorCode = "UNAUTHORIZED"
	CodeForbidden    ErrorCode = "FORBIDDEN"
	CodeNotFound     ErrorCode = "NOT_FOUND"
	CodeConflict     ErrorCode = "CONFLICT"
	CodeRateLimited  ErrorCode = "RATE_LIMITED"

	// Store errors
	CodeDatabase ErrorCode = "DATABASE_ERROR"

	// Config errors
	CodeConfig ErrorCode = "CONFIG_ERROR"

	// Internal errors
	CodeInternal ErrorCode = "INTERNAL_ERROR"
	CodeUnknown  ErrorCode = "UNKNOWN_ERROR"
)

// AppError represents a structured application error
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ValidationError creates a validation error
func ValidationError(message string) *AppError {
	return New(CodeValidation, message)
}

// Validationf creates a validation error with a formatted message
func Validationf(format string, args ...interface{}) *AppError {
	return New(CodeValidation, fmt.Sprintf(format, args...))
}

// NotFoundError creates a not found error
func NotFoundError(resource, identifier string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found: %s", resource, identifier))
}

// ConflictError creates a uniqueness conflict error
func ConflictError(message string) *AppError {
	return New(CodeConflict, message)
}

// UnauthorizedError creates an authentication error
func UnauthorizedError(message string) *AppError {
	return New(CodeUnauthorized, message)
}

// ForbiddenError creates an authorization error
func ForbiddenError(message string) *AppError {
	return New(CodeForbidden, message)
}

// RateLimitedError creates a rate limit error
func RateLimitedError(message string) *AppError {
	return New(CodeRateLimited, message)
}

// DatabaseError creates a database error
func DatabaseError(message string, err error) *AppError {
	return Wrap(err, CodeDatabase, message)
}

// InternalError creates an internal error
func InternalError(message string, err error) *AppError {
	return Wrap(err, CodeInternal, message)
}

// ConfigError creates a configuration error
func ConfigError(message string, err error) *AppError {
	if err != nil {
		return Wrap(err, CodeConfig, message)
	}
	return New(CodeConfig, message)
}

// IsRetryable determines if an error is retryable
func IsRetryable(err error) bool {
	return GetErrorCode(err) == CodeRateLimited
}

// GetErrorCode extracts the error code from an error
func GetErrorCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}

// Is reports whether err carries the given code
func Is(err error, code ErrorCode) bool {
	return GetErrorCode(err) == code
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return Is(err, CodeValidation)
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return Is(err, CodeNotFound)
}

// IsConflict checks if an error is a conflict error
func IsConflict(err error) bool {
	return Is(err, CodeConflict)
}

// HTTPStatus maps an error to the HTTP status reported to clients
func HTTPStatus(err error) int {
	switch GetErrorCode(err) {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// FromHTTPStatus builds an AppError from an HTTP status and the server's message.
// Used by API clients to recover the typed error from the error envelope.
func FromHTTPStatus(status int, message string) *AppError {
	var code ErrorCode
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		code = CodeValidation
	case http.StatusUnauthorized:
		code = CodeUnauthorized
	case http.StatusForbidden:
		code = CodeForbidden
	case http.StatusNotFound:
		code = CodeNotFound
	case http.StatusConflict:
		code = CodeConflict
	case http.StatusTooManyRequests:
		code = CodeRateLimited
	default:
		code = CodeInternal
	}
	if message == "" {
		message = http.StatusText(status)
	}
	return New(code, message).WithContext("status", status)
}

// PublicMessage returns the message safe to expose to API clients.
// Messages of internal and database errors are replaced with a generic one.
func PublicMessage(err error) string {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return "an unexpected error occurred"
	}
	switch appErr.Code {
	case CodeInternal, CodeDatabase, CodeConfig, CodeUnknown:
		return "an unexpected error occurred"
	}
	return appErr.Message
}
