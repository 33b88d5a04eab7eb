// Package auth verifies admin credentials and issues and checks signed bearer tokens.
package auth

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/glefebvre/reelvault/internal/database"
	apperrors "github.com/glefebvre/reelvault/internal/errors"
	"github.com/glefebvre/reelvault/internal/logger"
	"github.com/glefebvre/reelvault/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultTokenTTL is how long an issued token stays valid
const DefaultTokenTTL = 24 * time.Hour

const invalidCredentials = "invalid email or password"

// Claims is the token payload
type Claims struct {
	ID   uint             `json:"id"`
	Role models.AdminRole `json:"role"`
	jwt.RegisteredClaims
}

// LoginResult is returned by a successful login
type LoginResult struct {
	Token     string              `json:"token"`
	ExpiresAt time.Time           `json:"expiresAt"`
	Admin     models.AdminProfile `json:"admin"`
}

// Service handles login, token checks and admin seeding
type Service struct {
	db     *gorm.DB
	secret []byte
	ttl    time.Duration
	cost   int
	now    func() time.Time
	log    *logger.Logger

	// compared against when the email is unknown so both failures cost one bcrypt check
	dummyHash []byte
}

// Option configures a Service
type Option func(*Service)

// WithTokenTTL overrides DefaultTokenTTL
func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock replaces time.Now for issuing and verifying tokens
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithBcryptCost sets the hashing cost for seeded passwords
func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		s.cost = cost
	}
}

// WithLogger sets the service logger
func WithLogger(log *logger.Logger) Option {
	return func(s *Service) {
		s.log = log
	}
}

// NewService creates an auth service signing tokens with secret
func NewService(db *gorm.DB, secret string, opts ...Option) *Service {
	s := &Service{
		db:     db,
		secret: []byte(secret),
		ttl:    DefaultTokenTTL,
		cost:   bcrypt.DefaultCost,
		now:    time.Now,
		log:    logger.AppLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("reelvault-placeholder"), s.cost)
	return s
}

// NormalizeEmail trims and lower-cases an address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Login checks the credentials and issues a token. Unknown email and wrong password fail identically.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperrors.ValidationError("email and password are required")
	}

	var admin models.Admin
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&admin).Error
	switch {
	case database.IsNotFound(err):
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		s.log.WithFields(map[string]interface{}{"reason": "unknown email"}).WarnContext(ctx, "login rejected")
		return nil, apperrors.UnauthorizedError(invalidCredentials)
	case err != nil:
		return nil, apperrors.DatabaseError("failed to look up admin", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(admin.Password), []byte(password)); err != nil {
		s.log.WithFields(map[string]interface{}{
			"admin_id": admin.ID,
			"reason":   "password mismatch",
		}).WarnContext(ctx, "login rejected")
		return nil, apperrors.UnauthorizedError(invalidCredentials)
	}

	token, expiresAt, err := s.Issue(&admin)
	if err != nil {
		return nil, err
	}

	s.log.WithFields(map[string]interface{}{"admin_id": admin.ID}).InfoContext(ctx, "admin logged in")

	return &LoginResult{Token: token, ExpiresAt: expiresAt, Admin: admin.Profile()}, nil
}

// Issue signs a token for admin
func (s *Service) Issue(admin *models.Admin) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.ttl)

	claims := Claims{
		ID:   admin.ID,
		Role: admin.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(admin.ID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, apperrors.InternalError("failed to sign token", err)
	}
	return signed, expiresAt, nil
}

// Authenticate verifies token and loads the admin it names
func (s *Service) Authenticate(ctx context.Context, token string) (*models.Admin, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, apperrors.UnauthorizedError("missing token")
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (interface{}, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperrors.UnauthorizedError("token expired")
		}
		return nil, apperrors.UnauthorizedError("invalid token")
	}

	var admin models.Admin
	if err := s.db.WithContext(ctx).First(&admin, claims.ID).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, apperrors.UnauthorizedError("admin no longer exists")
		}
		return nil, apperrors.DatabaseError("failed to load admin", err)
	}
	return &admin, nil
}

// Authorize fails with FORBIDDEN unless role is one of allowed
func Authorize(role models.AdminRole, allowed ...models.AdminRole) error {
	if slices.Contains(allowed, role) {
		return nil
	}
	return apperrors.ForbiddenError("insufficient role")
}

// Profile returns the public view of admin id
func (s *Service) Profile(ctx context.Context, id uint) (*models.AdminProfile, error) {
	var admin models.Admin
	if err := s.db.WithContext(ctx).First(&admin, id).Error; err != nil {
		return nil, database.Translate(err, "admin", strconv.FormatUint(uint64(id), 10))
	}
	profile := admin.Profile()
	return &profile, nil
}

// SeedAdmin creates the admin when no account uses email yet. It reports whether one was created.
func (s *Service) SeedAdmin(ctx context.Context, email, password string, role models.AdminRole) (bool, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return false, apperrors.ValidationError("admin email is required")
	}
	if password == "" {
		s.log.WarnContext(ctx, "no admin password configured, skipping admin seeding")
		return false, nil
	}
	if !role.Valid() {
		return false, apperrors.Validationf("unknown admin role %q", role)
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Admin{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, apperrors.DatabaseError("failed to check for existing admin", err)
	}
	if count > 0 {
		return false, nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return false, apperrors.InternalError("failed to hash password", err)
	}

	admin := &models.Admin{Email: email, Password: string(hash), Role: role}
	if err := s.db.WithContext(ctx).Create(admin).Error; err != nil {
		if database.IsDuplicate(err) {
			return false, nil
		}
		return false, apperrors.DatabaseError("failed to seed admin", err)
	}

	s.log.WithFields(map[string]interface{}{
		"admin_id": admin.ID,
		"role":     role,
	}).InfoContext(ctx, "admin account seeded")

	return true, nil
}
