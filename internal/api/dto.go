package api

import (
	"time"

	"github.com/glefebvre/reelvault/internal/models"
)

// ErrorBody is the payload of every failed response
type ErrorBody struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// MessageResponse acknowledges a deletion
type MessageResponse struct {
	Message             string `json:"message"`
	AvailabilityRemoved *int64 `json:"availabilityRemoved,omitempty"`
}

// ListResponse wraps an unpaginated list
type ListResponse[T any] struct {
	Data []T `json:"data"`
}

// LoginRequest is the body of POST /api/auth/login
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HealthResponse reports the service and its dependencies
type HealthResponse struct {
	Status   string    `json:"status"`
	Database string    `json:"database"`
	Cache    string    `json:"cache,omitempty"`
	Time     time.Time `json:"time"`
}

// publicRequest hides the submitter's address from the public create response
func publicRequest(r *models.ContentRequest) models.ContentRequest {
	out := *r
	out.CreatedIP = nil
	return out
}
