package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(CodeValidation, "test error")
	if err.Code != CodeValidation {
		t.Errorf("expected code %s, got %s", CodeValidation, err.Code)
	}
	if err.Message != "test error" {
		t.Errorf("expected message 'test error', got %s", err.Message)
	}
	if err.Err != nil {
		t.Errorf("expected nil wrapped error, got %v", err.Err)
	}
}

func TestWrap(t *testing.T) {
	originalErr := errors.New("original error")
	err := Wrap(originalErr, CodeDatabase, "database operation failed")

	if err.Code != CodeDatabase {
		t.Errorf("expected code %s, got %s", CodeDatabase, err.Code)
	}
	if err.Err != originalErr {
		t.Errorf("expected wrapped error to be original error")
	}
	if !errors.Is(err, originalErr) {
		t.Errorf("expected errors.Is to find the original error")
	}
}

func TestAppErrorError(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		expected string
	}{
		{
			name:     "error without wrapped error",
			err:      New(CodeValidation, "validation failed"),
			expected: "[VALIDATION_ERROR] validation failed",
		},
		{
			name:     "error with wrapped error",
			err:      Wrap(errors.New("inner"), CodeDatabase, "db error"),
			expected: "[DATABASE_ERROR] db error: inner",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestAppErrorWithContext(t *testing.T) {
	err := New(CodeValidation, "test").
		WithContext("field", "slug").
		WithContext("value", "x-1")

	if len(err.Context) != 2 {
		t.Errorf("expected 2 context items, got %d", len(err.Context))
	}
	if err.Context["field"] != "slug" {
		t.Errorf("expected field context 'slug', got %v", err.Context["field"])
	}
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		code ErrorCode
	}{
		{"validation", ValidationError("bad"), CodeValidation},
		{"validationf", Validationf("bad %s", "slug"), CodeValidation},
		{"not found", NotFoundError("content", "42"), CodeNotFound},
		{"conflict", ConflictError("slug taken"), CodeConflict},
		{"unauthorized", UnauthorizedError("no token"), CodeUnauthorized},
		{"forbidden", ForbiddenError("role"), CodeForbidden},
		{"rate limited", RateLimitedError("slow down"), CodeRateLimited},
		{"database", DatabaseError("query", errors.New("x")), CodeDatabase},
		{"internal", InternalError("boom", errors.New("x")), CodeInternal},
		{"config", ConfigError("missing", nil), CodeConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, tt.err.Code)
			}
		})
	}

	if msg := NotFoundError("content", "42").Message; msg != "content not found: 42" {
		t.Errorf("unexpected not found message: %s", msg)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"rate limited", RateLimitedError("too many requests"), true},
		{"wrapped rate limited", fmt.Errorf("update: %w", RateLimitedError("too many")), true},
		{"validation", ValidationError("invalid"), false},
		{"internal", InternalError("boom", nil), false},
		{"non-app error", errors.New("standard error"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.expected {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestGetErrorCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorCode
	}{
		{"app error", ValidationError("test"), CodeValidation},
		{"wrapped app error", fmt.Errorf("ctx: %w", NotFoundError("content", "1")), CodeNotFound},
		{"standard error", errors.New("standard"), CodeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetErrorCode(tt.err); got != tt.expected {
				t.Errorf("GetErrorCode() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err      error
		expected int
	}{
		{ValidationError("x"), http.StatusBadRequest},
		{UnauthorizedError("x"), http.StatusUnauthorized},
		{ForbiddenError("x"), http.StatusForbidden},
		{NotFoundError("content", "1"), http.StatusNotFound},
		{ConflictError("x"), http.StatusConflict},
		{RateLimitedError("x"), http.StatusTooManyRequests},
		{DatabaseError("x", errors.New("y")), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := HTTPStatus(tt.err); got != tt.expected {
			t.Errorf("HTTPStatus(%v) = %d, want %d", tt.err, got, tt.expected)
		}
	}
}

func TestFromHTTPStatus_RoundTrip(t *testing.T) {
	for _, status := range []int{400, 401, 403, 404, 409, 429, 500} {
		err := FromHTTPStatus(status, "msg")
		if got := HTTPStatus(err); got != status {
			t.Errorf("round trip of %d gave %d", status, got)
		}
		if err.Context["status"] != status {
			t.Errorf("expected status context %d, got %v", status, err.Context["status"])
		}
	}

	if err := FromHTTPStatus(http.StatusBadGateway, ""); err.Message != "Bad Gateway" {
		t.Errorf("expected status text as default message, got %q", err.Message)
	}
}

func TestPublicMessage(t *testing.T) {
	if got := PublicMessage(ValidationError("title is required")); got != "title is required" {
		t.Errorf("unexpected message %q", got)
	}
	if got := PublicMessage(DatabaseError("select failed", errors.New("pq: secret detail"))); got != "an unexpected error occurred" {
		t.Errorf("database details must not leak, got %q", got)
	}
	if got := PublicMessage(errors.New("raw")); got != "an unexpected error occurred" {
		t.Errorf("unexpected message %q", got)
	}
}
