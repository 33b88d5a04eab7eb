// Package requests handles public "please add this title" submissions and their admin triage.
package requests

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/glefebvre/reelvault/internal/database"
	apperrors "github.com/glefebvre/reelvault/internal/errors"
	"github.com/glefebvre/reelvault/internal/logger"
	"github.com/glefebvre/reelvault/internal/models"
	"github.com/glefebvre/reelvault/internal/validation"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	// MinYear is the year of the first motion picture
	MinYear = 1888

	// FutureYears is how far ahead an announced release may be requested
	FutureYears = 5
)

// Input is a public request submission
type Input struct {
	ContentName   string             `json:"contentName" validate:"required,max=255"`
	YearOfRelease int                `json:"yearOfRelease" validate:"required"`
	RequestedBy   string             `json:"requestedBy" validate:"required,max=255"`
	ContentType   models.ContentType `json:"contentType" validate:"required,oneof=movie webseries anime"`
}

// Patch carries the admin-editable fields. Nil fields are left untouched; an empty note clears it.
type Patch struct {
	Status     *models.RequestStatus   `json:"status" validate:"omitempty,oneof=pending approved rejected duplicate fulfilled"`
	Priority   *models.RequestPriority `json:"priority" validate:"omitempty,oneof=low medium high"`
	AdminNotes *string                 `json:"adminNotes" validate:"omitempty,max=2000"`
}

// ListFilter selects a page of the admin inbox
type ListFilter struct {
	Status      string
	ContentType string
	Priority    string
	Search      string
	SortBy      string
	SortOrder   string
	models.PageRequest
}

var sortColumns = map[string]string{
	"createdAt":     "created_at",
	"updatedAt":     "updated_at",
	"contentName":   "content_name",
	"yearOfRelease": "year_of_release",
	"status":        "status",
	"priority":      "priority",
}

// Service implements the request operations
type Service struct {
	db  *gorm.DB
	log *logger.Logger
	now func() time.Time
}

// Option configures a Service
type Option func(*Service)

// WithClock replaces time.Now for the release year check
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a request service
func NewService(db *gorm.DB, log *logger.Logger, opts ...Option) *Service {
	if log == nil {
		log = logger.AppLogger()
	}
	s := &Service{db: db, log: log, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create stores a new pending request. clientIP is recorded when non-empty.
func (s *Service) Create(ctx context.Context, in Input, clientIP string) (*models.ContentRequest, error) {
	in.ContentName = strings.TrimSpace(in.ContentName)
	in.RequestedBy = strings.TrimSpace(in.RequestedBy)
	in.ContentType = models.ContentType(strings.TrimSpace(string(in.ContentType)))

	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	maxYear := s.now().Year() + FutureYears
	if in.YearOfRelease < MinYear || in.YearOfRelease > maxYear {
		return nil, apperrors.Validationf("yearOfRelease must be between %d and %d", MinYear, maxYear)
	}

	req := &models.ContentRequest{
		ContentName:   in.ContentName,
		YearOfRelease: in.YearOfRelease,
		RequestedBy:   in.RequestedBy,
		ContentType:   in.ContentType,
		Status:        models.RequestPending,
		Priority:      models.PriorityMedium,
	}
	if ip := strings.TrimSpace(clientIP); ip != "" {
		req.CreatedIP = &ip
	}

	if err := s.db.WithContext(ctx).Create(req).Error; err != nil {
		if database.IsDuplicate(err) {
			return nil, apperrors.ConflictError("a request for this title already exists")
		}
		return nil, apperrors.DatabaseError("failed to create request", err)
	}

	s.log.WithFields(map[string]interface{}{
		"request_id":   req.ID,
		"content_type": req.ContentType,
		"year":         req.YearOfRelease,
	}).InfoContext(ctx, "content request submitted")

	return req, nil
}

// List returns one page of requests matching filter
func (s *Service) List(ctx context.Context, filter ListFilter) (*models.Page[models.ContentRequest], error) {
	page, err := filter.PageRequest.Normalize()
	if err != nil {
		return nil, err
	}

	query := s.db.WithContext(ctx).Model(&models.ContentRequest{})

	if filter.Status != "" {
		if !models.RequestStatus(filter.Status).Valid() {
			return nil, apperrors.Validationf("unknown status %q", filter.Status)
		}
		query = query.Where("status = ?", filter.Status)
	}
	if filter.ContentType != "" {
		if !models.ContentType(filter.ContentType).Valid() {
			return nil, apperrors.Validationf("unknown contentType %q", filter.ContentType)
		}
		query = query.Where("content_type = ?", filter.ContentType)
	}
	if filter.Priority != "" {
		if !models.RequestPriority(filter.Priority).Valid() {
			return nil, apperrors.Validationf("unknown priority %q", filter.Priority)
		}
		query = query.Where("priority = ?", filter.Priority)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := database.ContainsPattern(search)
		query = query.Where(
			"(search_name LIKE ? "+database.LikeEscape+" OR search_by LIKE ? "+database.LikeEscape+")",
			pattern, pattern,
		)
	}

	order, err := parseSort(filter.SortBy, filter.SortOrder)
	if err != nil {
		return nil, err
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, apperrors.DatabaseError("failed to count requests", err)
	}

	items := []models.ContentRequest{}
	err = query.
		Clauses(order).
		Offset(page.Offset()).
		Limit(page.Limit).
		Find(&items).Error
	if err != nil {
		return nil, apperrors.DatabaseError("failed to list requests", err)
	}

	return &models.Page[models.ContentRequest]{
		Data:       items,
		Pagination: models.NewPagination(total, page),
	}, nil
}

func parseSort(sortBy, sortOrder string) (clause.OrderBy, error) {
	if sortBy == "" {
		sortBy = "createdAt"
	}
	column, ok := sortColumns[sortBy]
	if !ok {
		return clause.OrderBy{}, apperrors.ValidationError("sortBy must be one of: createdAt, updatedAt, contentName, yearOfRelease, status, priority")
	}

	var desc bool
	switch strings.ToLower(sortOrder) {
	case "", "desc":
		desc = true
	case "asc":
	default:
		return clause.OrderBy{}, apperrors.ValidationError("sortOrder must be one of: asc, desc")
	}

	return clause.OrderBy{Columns: []clause.OrderByColumn{
		{Column: clause.Column{Name: column}, Desc: desc},
		{Column: clause.Column{Name: "id"}},
	}}, nil
}

// Get returns request id
func (s *Service) Get(ctx context.Context, id uint) (*models.ContentRequest, error) {
	var req models.ContentRequest
	if err := s.db.WithContext(ctx).First(&req, id).Error; err != nil {
		return nil, database.Translate(err, "request", strconv.FormatUint(uint64(id), 10))
	}
	return &req, nil
}

// PatchFields updates status, priority and admin notes. At least one must be present.
func (s *Service) PatchFields(ctx context.Context, id uint, patch Patch) (*models.ContentRequest, error) {
	if patch.Status == nil && patch.Priority == nil && patch.AdminNotes == nil {
		return nil, apperrors.ValidationError("nothing to update: provide status, priority or adminNotes")
	}
	if err := validation.Struct(patch); err != nil {
		return nil, err
	}

	req, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if patch.Status != nil {
		updates["status"] = *patch.Status
	}
	if patch.Priority != nil {
		updates["priority"] = *patch.Priority
	}
	if patch.AdminNotes != nil {
		updates["admin_notes"] = validation.TrimOptional(patch.AdminNotes)
	}

	if err := s.db.WithContext(ctx).Model(req).Updates(updates).Error; err != nil {
		return nil, apperrors.DatabaseError("failed to update request", err)
	}

	fields := map[string]interface{}{"request_id": id}
	for k, v := range updates {
		if k != "admin_notes" {
			fields[k] = v
		}
	}
	s.log.WithFields(fields).InfoContext(ctx, "content request updated")

	return s.Get(ctx, id)
}

// Delete removes request id
func (s *Service) Delete(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).Delete(&models.ContentRequest{}, id)
	if result.Error != nil {
		return apperrors.DatabaseError("failed to delete request", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.NotFoundError("request", strconv.FormatUint(uint64(id), 10))
	}

	s.log.WithFields(map[string]interface{}{"request_id": id}).InfoContext(ctx, "content request deleted")
	return nil
}
