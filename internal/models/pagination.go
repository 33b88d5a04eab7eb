package models

import (
	"github.com/ccoveille/go-safecast"
	apperrors "github.com/glefebvre/reelvault/internal/errors"
)

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

// PageRequest selects one page of a listing. Zero values mean page 1 and the default limit.
type PageRequest struct {
	Page  int
	Limit int
}

// Normalize applies defaults and rejects out of range values
func (p PageRequest) Normalize() (PageRequest, error) {
	if p.Page == 0 {
		p.Page = 1
	}
	if p.Limit == 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Page < 1 {
		return p, apperrors.ValidationError("page must be at least 1")
	}
	if p.Limit < 1 || p.Limit > MaxPageLimit {
		return p, apperrors.Validationf("limit must be between 1 and %d", MaxPageLimit)
	}
	return p, nil
}

// Offset is the number of rows before the page
func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Pagination is the metadata returned with every list
type Pagination struct {
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Pages int   `json:"pages"`
	Limit int   `json:"limit"`
}

// NewPagination computes pages = ceil(total / limit)
func NewPagination(total int64, req PageRequest) Pagination {
	var pages int64
	if req.Limit > 0 {
		pages = (total + int64(req.Limit) - 1) / int64(req.Limit)
	}
	n, err := safecast.ToInt(pages)
	if err != nil {
		n = int(^uint(0) >> 1)
	}
	return Pagination{Total: total, Page: req.Page, Pages: n, Limit: req.Limit}
}

// Page is one slice of a listing
type Page[T any] struct {
	Data       []T        `json:"data"`
	Pagination Pagination `json:"pagination"`
}
