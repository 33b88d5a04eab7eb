package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/glefebvre/reelvault/internal/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var fixtureSeq atomic.Int64

func nextSeq() int64 {
	return fixtureSeq.Add(1)
}

// TestDB creates an in-memory SQLite database with every table migrated
func TestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		TranslateError:                           true,
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get database instance: %v", err)
	}
	// every connection to :memory: is a separate database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	return db
}

// CleanupDB removes all records from test database tables
func CleanupDB(t *testing.T, db *gorm.DB) {
	t.Helper()

	for _, table := range []string{"availabilities", "contents", "content_requests", "admins"} {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			t.Fatalf("failed to clean %s: %v", table, err)
		}
	}
}

// CreateContent creates a test movie with a unique slug
func CreateContent(t *testing.T, db *gorm.DB, overrides ...func(*models.Content)) *models.Content {
	t.Helper()

	n := nextSeq()
	content := &models.Content{
		Slug:        fmt.Sprintf("test-content-%d", n),
		Type:        models.ContentTypeMovie,
		Title:       fmt.Sprintf("Test Content %d", n),
		Description: "A test title",
		ReleaseDate: models.MustParseDate("2020-01-01"),
		Genres:      datatypes.JSONSlice[string]{"Drama"},
		Cast:        datatypes.JSONSlice[string]{},
		Tags:        datatypes.JSONSlice[string]{},
		PosterURL:   "https://example.com/poster.jpg",
	}

	for _, override := range overrides {
		override(content)
	}

	if err := db.Create(content).Error; err != nil {
		t.Fatalf("failed to create content: %v", err)
	}
	return content
}

// CreateAvailability creates a test availability row under contentID
func CreateAvailability(t *testing.T, db *gorm.DB, contentID uint, overrides ...func(*models.Availability)) *models.Availability {
	t.Helper()

	availability := &models.Availability{
		ContentID:  contentID,
		Label:      "HD",
		Language:   "English",
		SourceType: models.SourceOfficial,
		URL:        fmt.Sprintf("https://cdn.example.com/%d.mp4", nextSeq()),
	}

	for _, override := range overrides {
		override(availability)
	}

	if err := db.Create(availability).Error; err != nil {
		t.Fatalf("failed to create availability: %v", err)
	}
	return availability
}

// CreateRequest creates a pending test content request
func CreateRequest(t *testing.T, db *gorm.DB, overrides ...func(*models.ContentRequest)) *models.ContentRequest {
	t.Helper()

	request := &models.ContentRequest{
		ContentName:   fmt.Sprintf("Requested Title %d", nextSeq()),
		YearOfRelease: 2021,
		RequestedBy:   "tester",
		ContentType:   models.ContentTypeMovie,
		Status:        models.RequestPending,
		Priority:      models.PriorityMedium,
	}

	for _, override := range overrides {
		override(request)
	}

	if err := db.Create(request).Error; err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	return request
}

// CreateAdmin creates an admin whose password hashes password
func CreateAdmin(t *testing.T, db *gorm.DB, email, password string, overrides ...func(*models.Admin)) *models.Admin {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	admin := &models.Admin{
		Email:    email,
		Password: string(hash),
		Role:     models.RoleAdmin,
	}

	for _, override := range overrides {
		override(admin)
	}

	if err := db.Create(admin).Error; err != nil {
		t.Fatalf("failed to create admin: %v", err)
	}
	return admin
}

// WithType sets the content type
func WithType(contentType models.ContentType) func(*models.Content) {
	return func(c *models.Content) {
		c.Type = contentType
	}
}

// WithTitle sets the content title
func WithTitle(title string) func(*models.Content) {
	return func(c *models.Content) {
		c.Title = title
	}
}

// WithSlug sets the content slug
func WithSlug(slug string) func(*models.Content) {
	return func(c *models.Content) {
		c.Slug = slug
	}
}

// WithReleaseDate sets the release date from a YYYY-MM-DD literal
func WithReleaseDate(date string) func(*models.Content) {
	return func(c *models.Content) {
		c.ReleaseDate = models.MustParseDate(date)
	}
}

// WithTags sets the content tags
func WithTags(tags ...string) func(*models.Content) {
	return func(c *models.Content) {
		c.Tags = tags
	}
}

// WithRating sets the content rating
func WithRating(rating float64) func(*models.Content) {
	return func(c *models.Content) {
		c.Rating = &rating
	}
}

// WithURL sets the availability URL
func WithURL(url string) func(*models.Availability) {
	return func(a *models.Availability) {
		a.URL = url
	}
}

// WithRole sets the admin role
func WithRole(role models.AdminRole) func(*models.Admin) {
	return func(a *models.Admin) {
		a.Role = role
	}
}

// AssertCount verifies the count of records in a table
func AssertCount(t *testing.T, db *gorm.DB, model interface{}, expected int64, message string) {
	t.Helper()
	var count int64
	db.Model(model).Count(&count)
	if count != expected {
		t.Fatalf("%s: expected count %d, got %d", message, expected, count)
	}
}

// PerformRequest runs one request against handler and returns the recorder.
// body is JSON encoded unless it is nil or already an io.Reader.
func PerformRequest(t *testing.T, handler http.Handler, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case io.Reader:
		reader = b
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

// DecodeJSON decodes a recorder body into T
func DecodeJSON[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("failed to decode response %q: %v", w.Body.String(), err)
	}
	return out
}

func init() {
	gin.SetMode(gin.TestMode)
}
