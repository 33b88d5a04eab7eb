// Package content manages catalog entries: CRUD, filtered listing and title search.
package content

import (
	"context"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/glefebvre/reelvault/internal/database"
	apperrors "github.com/glefebvre/reelvault/internal/errors"
	"github.com/glefebvre/reelvault/internal/logger"
	"github.com/glefebvre/reelvault/internal/models"
	"github.com/glefebvre/reelvault/internal/validation"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	// MinSearchLength is the shortest accepted search query, in characters
	MinSearchLength = 3

	// MaxSearchResults caps the title search
	MaxSearchResults = 20
)

// AvailabilityRemover deletes the availability rows of a content
type AvailabilityRemover interface {
	DeleteForContent(ctx context.Context, contentID uint) (int64, error)
}

// Input is the full set of client-writable content fields
type Input struct {
	Slug        string             `json:"slug" validate:"required,max=255"`
	Type        models.ContentType `json:"type" validate:"required,oneof=movie webseries anime"`
	Title       string             `json:"title" validate:"required,max=500"`
	Description string             `json:"description" validate:"required"`
	ReleaseDate models.Date        `json:"releaseDate"`
	Runtime     *int               `json:"runtime" validate:"omitempty,min=1"`
	Genres      []string           `json:"genres" validate:"min=1,dive,required,max=100"`
	Rating      *float64           `json:"rating" validate:"omitempty,gte=0,lte=10"`
	Director    *string            `json:"director" validate:"omitempty,max=255"`
	Cast        []string           `json:"cast" validate:"dive,max=255"`
	PosterURL   string             `json:"posterUrl" validate:"required,url"`
	BackdropURL *string            `json:"backdropUrl" validate:"omitempty,url"`
	Tags        []string           `json:"tags" validate:"dive,max=100"`
}

// ListFilter selects a page of content. Query switches to term search.
type ListFilter struct {
	Type  string
	Sort  string
	Query string
	models.PageRequest
}

// Service implements the content operations
type Service struct {
	db           *gorm.DB
	availability AvailabilityRemover
	log          *logger.Logger
}

// NewService creates a content service. availability receives cascade deletes.
func NewService(db *gorm.DB, availability AvailabilityRemover, log *logger.Logger) *Service {
	if log == nil {
		log = logger.AppLogger()
	}
	return &Service{db: db, availability: availability, log: log}
}

func (in *Input) normalize() {
	in.Slug = strings.TrimSpace(in.Slug)
	in.Type = models.ContentType(strings.TrimSpace(string(in.Type)))
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.PosterURL = strings.TrimSpace(in.PosterURL)
	in.Director = validation.TrimOptional(in.Director)
	in.BackdropURL = validation.TrimOptional(in.BackdropURL)
	in.Genres = validation.CleanList(in.Genres)
	in.Cast = validation.CleanList(in.Cast)
	in.Tags = validation.CleanList(in.Tags)
}

func (in *Input) validate() error {
	in.normalize()
	if err := validation.Struct(in); err != nil {
		return err
	}
	if in.ReleaseDate.IsZero() {
		return apperrors.ValidationError("releaseDate is required")
	}
	return nil
}

func (in *Input) applyTo(c *models.Content) {
	c.Slug = in.Slug
	c.Type = in.Type
	c.Title = in.Title
	c.Description = in.Description
	c.ReleaseDate = in.ReleaseDate
	c.Runtime = in.Runtime
	c.Genres = in.Genres
	c.Rating = in.Rating
	c.Director = in.Director
	c.Cast = in.Cast
	c.PosterURL = in.PosterURL
	c.BackdropURL = in.BackdropURL
	c.Tags = in.Tags
}

// Create validates and stores a new content
func (s *Service) Create(ctx context.Context, in Input) (*models.Content, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	c := &models.Content{}
	in.applyTo(c)

	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		if database.IsDuplicate(err) {
			return nil, apperrors.ConflictError("content with slug " + strconv.Quote(in.Slug) + " already exists")
		}
		return nil, apperrors.DatabaseError("failed to create content", err)
	}

	s.log.WithFields(map[string]interface{}{
		"content_id": c.ID,
		"slug":       c.Slug,
	}).InfoContext(ctx, "content created")

	return c, nil
}

// Replace overwrites every mutable field of content id
func (s *Service) Replace(ctx context.Context, id uint, in Input) (*models.Content, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	existing, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	in.applyTo(existing)
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Save(existing).Error; err != nil {
		if database.IsDuplicate(err) {
			return nil, apperrors.ConflictError("content with slug " + strconv.Quote(in.Slug) + " already exists")
		}
		return nil, apperrors.DatabaseError("failed to update content", err)
	}

	s.log.WithFields(map[string]interface{}{"content_id": id}).InfoContext(ctx, "content replaced")
	return existing, nil
}

// Delete removes content id, then its availability rows. The two steps are not atomic.
func (s *Service) Delete(ctx context.Context, id uint) (int64, error) {
	result := s.db.WithContext(ctx).Delete(&models.Content{}, id)
	if result.Error != nil {
		return 0, apperrors.DatabaseError("failed to delete content", result.Error)
	}
	if result.RowsAffected == 0 {
		return 0, apperrors.NotFoundError("content", strconv.FormatUint(uint64(id), 10))
	}

	removed, err := s.availability.DeleteForContent(ctx, id)
	fields := map[string]interface{}{
		"content_id":           id,
		"availability_removed": removed,
	}
	if err != nil {
		s.log.WithFields(fields).ErrorContext(ctx, "content deleted but availability cascade failed", err)
		return removed, err
	}

	s.log.WithFields(fields).InfoContext(ctx, "content deleted")
	return removed, nil
}

// Get returns content id with its availability rows
func (s *Service) Get(ctx context.Context, id uint) (*models.Content, error) {
	var c models.Content
	err := s.db.WithContext(ctx).
		Preload("Availability", func(db *gorm.DB) *gorm.DB {
			return db.Order("id ASC")
		}).
		First(&c, id).Error
	if err != nil {
		return nil, database.Translate(err, "content", strconv.FormatUint(uint64(id), 10))
	}
	if c.Availability == nil {
		c.Availability = []models.Availability{}
	}
	return &c, nil
}

// Exists reports whether content id is stored
func (s *Service) Exists(ctx context.Context, id uint) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Content{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, apperrors.DatabaseError("failed to look up content", err)
	}
	return count > 0, nil
}

func (s *Service) find(ctx context.Context, id uint) (*models.Content, error) {
	var c models.Content
	if err := s.db.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, database.Translate(err, "content", strconv.FormatUint(uint64(id), 10))
	}
	return &c, nil
}

// List returns one page of content, optionally filtered by type and search terms
func (s *Service) List(ctx context.Context, filter ListFilter) (*models.Page[models.Content], error) {
	page, err := filter.PageRequest.Normalize()
	if err != nil {
		return nil, err
	}

	query := s.db.WithContext(ctx).Model(&models.Content{})

	if filter.Type != "" {
		contentType := models.ContentType(filter.Type)
		if !contentType.Valid() {
			return nil, invalidType(filter.Type)
		}
		query = query.Where("type = ?", contentType)
	}

	q := strings.TrimSpace(filter.Query)
	var order clause.OrderBy
	if q != "" {
		for _, term := range strings.Fields(q) {
			pattern := database.ContainsPattern(term)
			query = query.Where(
				"(search_title LIKE ? "+database.LikeEscape+" OR search_tags LIKE ? "+database.LikeEscape+")",
				pattern, pattern,
			)
		}
		order = relevanceOrder(q)
	} else {
		order, err = ParseSort(filter.Sort)
		if err != nil {
			return nil, err
		}
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, apperrors.DatabaseError("failed to count content", err)
	}

	items := []models.Content{}
	err = query.
		Clauses(order).
		Offset(page.Offset()).
		Limit(page.Limit).
		Find(&items).Error
	if err != nil {
		return nil, apperrors.DatabaseError("failed to list content", err)
	}

	return &models.Page[models.Content]{
		Data:       items,
		Pagination: models.NewPagination(total, page),
	}, nil
}

// ListByType is List restricted to one content type
func (s *Service) ListByType(ctx context.Context, contentType string, filter ListFilter) (*models.Page[models.Content], error) {
	if !models.ContentType(contentType).Valid() {
		return nil, invalidType(contentType)
	}
	filter.Type = contentType
	return s.List(ctx, filter)
}

// Search matches q anywhere in the title, newest first. No match is NOT_FOUND.
func (s *Service) Search(ctx context.Context, q, contentType string) ([]models.ContentSummary, error) {
	q = strings.TrimSpace(q)
	if utf8.RuneCountInString(q) < MinSearchLength {
		return nil, apperrors.Validationf("search query must be at least %d characters", MinSearchLength)
	}

	query := s.db.WithContext(ctx).
		Model(&models.Content{}).
		Select("id", "title", "type", "poster_url", "slug", "release_date").
		Where("search_title LIKE ? "+database.LikeEscape, database.ContainsPattern(q))

	if contentType != "" {
		if !models.ContentType(contentType).Valid() {
			return nil, invalidType(contentType)
		}
		query = query.Where("type = ?", contentType)
	}

	results := []models.ContentSummary{}
	err := query.
		Order("release_date DESC").
		Order("id ASC").
		Limit(MaxSearchResults).
		Find(&results).Error
	if err != nil {
		return nil, apperrors.DatabaseError("failed to search content", err)
	}

	if len(results) == 0 {
		return nil, apperrors.New(apperrors.CodeNotFound, "no content matches "+strconv.Quote(q))
	}
	return results, nil
}

func invalidType(t string) error {
	return apperrors.Validationf("type must be one of: movie, webseries, anime (got %q)", t)
}
