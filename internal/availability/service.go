// Package availability manages the download and stream options attached to a content.
package availability

import (
	"context"
	"strconv"
	"strings"

	"github.com/ccoveille/go-safecast"
	"github.com/dustin/go-humanize"
	"github.com/glefebvre/reelvault/internal/database"
	apperrors "github.com/glefebvre/reelvault/internal/errors"
	"github.com/glefebvre/reelvault/internal/logger"
	"github.com/glefebvre/reelvault/internal/models"
	"github.com/glefebvre/reelvault/internal/validation"
	"gorm.io/gorm"
)

// Input holds the client-writable availability fields. The parent id always comes from the path.
type Input struct {
	Label       string            `json:"label" validate:"required,max=255"`
	Quality     *models.Quality   `json:"quality" validate:"omitempty,oneof=480p 720p 1080p 4K"`
	Language    string            `json:"language" validate:"required,max=100"`
	Size        string            `json:"size" validate:"max=50"`
	SourceType  models.SourceType `json:"sourceType" validate:"required,oneof=Official SelfHosted TelegramBot"`
	URL         string            `json:"url" validate:"required,url"`
	Region      *string           `json:"region" validate:"omitempty,max=100"`
	LicenseNote *string           `json:"licenseNote"`
}

// Service implements the availability operations
type Service struct {
	db  *gorm.DB
	log *logger.Logger
}

// NewService creates an availability service
func NewService(db *gorm.DB, log *logger.Logger) *Service {
	if log == nil {
		log = logger.AppLogger()
	}
	return &Service{db: db, log: log}
}

func (in *Input) validate() error {
	in.Label = strings.TrimSpace(in.Label)
	in.Language = strings.TrimSpace(in.Language)
	in.Size = strings.TrimSpace(in.Size)
	in.URL = strings.TrimSpace(in.URL)
	in.Region = validation.TrimOptional(in.Region)
	in.LicenseNote = validation.TrimOptional(in.LicenseNote)
	if in.Quality != nil && strings.TrimSpace(string(*in.Quality)) == "" {
		in.Quality = nil
	}
	return validation.Struct(in)
}

func (in *Input) applyTo(a *models.Availability) {
	a.Label = in.Label
	a.Quality = in.Quality
	a.Language = in.Language
	a.Size = in.Size
	a.SizeBytes = ParseSize(in.Size)
	a.SourceType = in.SourceType
	a.URL = in.URL
	a.Region = in.Region
	a.LicenseNote = in.LicenseNote
}

// InputOf copies the writable fields of an existing row, ready for a full replace
func InputOf(a models.Availability) Input {
	return Input{
		Label:       a.Label,
		Quality:     a.Quality,
		Language:    a.Language,
		Size:        a.Size,
		SourceType:  a.SourceType,
		URL:         a.URL,
		Region:      a.Region,
		LicenseNote: a.LicenseNote,
	}
}

// ParseSize reads a human size such as "1.2GB" or "700 MiB". Anything else yields nil.
func ParseSize(size string) *int64 {
	if size == "" {
		return nil
	}
	n, err := humanize.ParseBytes(size)
	if err != nil {
		return nil
	}
	v, err := safecast.ToInt64(n)
	if err != nil {
		return nil
	}
	return &v
}

// ListForContent returns every availability row of contentID in id order
func (s *Service) ListForContent(ctx context.Context, contentID uint) ([]models.Availability, error) {
	if err := s.requireContent(ctx, contentID); err != nil {
		return nil, err
	}

	rows := []models.Availability{}
	if err := s.db.WithContext(ctx).Where("content_id = ?", contentID).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, apperrors.DatabaseError("failed to list availability", err)
	}
	return rows, nil
}

// Create adds an availability row under contentID
func (s *Service) Create(ctx context.Context, contentID uint, in Input) (*models.Availability, error) {
	if err := s.requireContent(ctx, contentID); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	row := &models.Availability{ContentID: contentID}
	in.applyTo(row)

	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, apperrors.DatabaseError("failed to create availability", err)
	}

	s.log.WithFields(map[string]interface{}{
		"content_id":      contentID,
		"availability_id": row.ID,
	}).InfoContext(ctx, "availability created")

	return row, nil
}

// Replace overwrites availabilityID, which must belong to contentID
func (s *Service) Replace(ctx context.Context, contentID, availabilityID uint, in Input) (*models.Availability, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	row, err := s.find(ctx, contentID, availabilityID)
	if err != nil {
		return nil, err
	}

	in.applyTo(row)
	if err := s.db.WithContext(ctx).Save(row).Error; err != nil {
		return nil, apperrors.DatabaseError("failed to update availability", err)
	}

	s.log.WithFields(map[string]interface{}{
		"content_id":      contentID,
		"availability_id": availabilityID,
	}).InfoContext(ctx, "availability replaced")

	return row, nil
}

// Delete removes availabilityID, which must belong to contentID
func (s *Service) Delete(ctx context.Context, contentID, availabilityID uint) error {
	result := s.db.WithContext(ctx).
		Where("id = ? AND content_id = ?", availabilityID, contentID).
		Delete(&models.Availability{})
	if result.Error != nil {
		return apperrors.DatabaseError("failed to delete availability", result.Error)
	}
	if result.RowsAffected == 0 {
		return notFound(availabilityID)
	}

	s.log.WithFields(map[string]interface{}{
		"content_id":      contentID,
		"availability_id": availabilityID,
	}).InfoContext(ctx, "availability deleted")

	return nil
}

// DeleteForContent removes every row of contentID and returns how many went
func (s *Service) DeleteForContent(ctx context.Context, contentID uint) (int64, error) {
	result := s.db.WithContext(ctx).Where("content_id = ?", contentID).Delete(&models.Availability{})
	if result.Error != nil {
		return 0, apperrors.DatabaseError("failed to delete availability for content", result.Error)
	}
	return result.RowsAffected, nil
}

func (s *Service) find(ctx context.Context, contentID, availabilityID uint) (*models.Availability, error) {
	var row models.Availability
	err := s.db.WithContext(ctx).
		Where("id = ? AND content_id = ?", availabilityID, contentID).
		First(&row).Error
	if err != nil {
		if database.IsNotFound(err) {
			return nil, notFound(availabilityID)
		}
		return nil, apperrors.DatabaseError("failed to load availability", err)
	}
	return &row, nil
}

func (s *Service) requireContent(ctx context.Context, contentID uint) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Content{}).Where("id = ?", contentID).Count(&count).Error; err != nil {
		return apperrors.DatabaseError("failed to look up content", err)
	}
	if count == 0 {
		return apperrors.NotFoundError("content", strconv.FormatUint(uint64(contentID), 10))
	}
	return nil
}

func notFound(availabilityID uint) error {
	return apperrors.NotFoundError("availability", strconv.FormatUint(uint64(availabilityID), 10))
}
