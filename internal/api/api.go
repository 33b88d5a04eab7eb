package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/glefebvre/reelvault/internal/auth"
	"github.com/glefebvre/reelvault/internal/availability"
	"github.com/glefebvre/reelvault/internal/cache"
	"github.com/glefebvre/reelvault/internal/config"
	"github.com/glefebvre/reelvault/internal/content"
	"github.com/glefebvre/reelvault/internal/logger"
	"github.com/glefebvre/reelvault/internal/models"
	"github.com/glefebvre/reelvault/internal/ratelimit"
	"github.com/glefebvre/reelvault/internal/requests"
	"gorm.io/gorm"
)

// Server represents the API server
type Server struct {
	cfg    *config.Config
	db     *gorm.DB
	router *gin.Engine
	log    *logger.Logger

	mu     sync.Mutex
	http   *http.Server
	closed bool

	content      *content.Service
	availability *availability.Service
	requests     *requests.Service
	auth         *auth.Service
	cache        *cache.Cache

	generalLimiter *ratelimit.Limiter
	searchLimiter  *ratelimit.Limiter
	loginLimiter   *ratelimit.Limiter
}

// Option configures a Server
type Option func(*serverOptions)

type serverOptions struct {
	cache       *cache.Cache
	log         *logger.Logger
	authOptions []auth.Option
	reqOptions  []requests.Option
}

// WithCache serves public listings through c
func WithCache(c *cache.Cache) Option {
	return func(o *serverOptions) {
		o.cache = c
	}
}

// WithLogger sets the logger used by handlers and middleware
func WithLogger(l *logger.Logger) Option {
	return func(o *serverOptions) {
		o.log = l
	}
}

// WithAuthOptions passes extra options to the auth service
func WithAuthOptions(opts ...auth.Option) Option {
	return func(o *serverOptions) {
		o.authOptions = append(o.authOptions, opts...)
	}
}

// WithRequestOptions passes extra options to the request service
func WithRequestOptions(opts ...requests.Option) Option {
	return func(o *serverOptions) {
		o.reqOptions = append(o.reqOptions, opts...)
	}
}

// NewServer creates a new API server instance
func NewServer(cfg *config.Config, db *gorm.DB, opts ...Option) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}

	o := &serverOptions{}
	for _, opt := range opts {
		opt(o)
	}
	if o.log == nil {
		o.log = logger.AppLogger()
	}

	availabilitySvc := availability.NewService(db, o.log)
	authOptions := append([]auth.Option{
		auth.WithTokenTTL(cfg.Auth.TokenTTL),
		auth.WithLogger(o.log),
	}, o.authOptions...)

	s := &Server{
		cfg:          cfg,
		db:           db,
		log:          o.log,
		content:      content.NewService(db, availabilitySvc, o.log),
		availability: availabilitySvc,
		requests:     requests.NewService(db, o.log, o.reqOptions...),
		auth:         auth.NewService(db, cfg.Auth.JWTSecret, authOptions...),
		cache:        o.cache,
	}

	if cfg.RateLimit.Enabled {
		s.generalLimiter = ratelimit.New("general", rule(cfg.RateLimit.General))
		s.searchLimiter = ratelimit.New("search", rule(cfg.RateLimit.Search))
		s.loginLimiter = ratelimit.New("login", rule(cfg.RateLimit.Login))
	}

	if err := s.setupRouter(); err != nil {
		return nil, err
	}
	return s, nil
}

func rule(r config.RateLimitRule) ratelimit.Rule {
	return ratelimit.Rule{Requests: r.Requests, Window: r.Window}
}

// Auth exposes the auth service, used for admin seeding at startup
func (s *Server) Auth() *auth.Service {
	return s.auth
}

// Handler returns the HTTP handler of the API
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run starts the API server on the specified port and blocks until Shutdown.
// It returns immediately when Shutdown was already called.
func (s *Server) Run(port int) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	s.http = srv
	s.mu.Unlock()

	s.log.WithFields(map[string]interface{}{"port": port}).Info("API server listening")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	srv := s.http
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func (s *Server) setupRouter() error {
	router := gin.New()
	router.HandleMethodNotAllowed = true

	if err := router.SetTrustedProxies(s.cfg.API.TrustedProxies); err != nil {
		return fmt.Errorf("invalid trusted proxies: %w", err)
	}

	router.Use(
		requestIDMiddleware(),
		recoveryMiddleware(s.log),
		requestLoggerMiddleware(s.log),
		cors.New(corsConfig(s.cfg.API.CORSOrigins)),
		gzip.Gzip(gzip.DefaultCompression),
	)

	router.NoRoute(func(c *gin.Context) {
		respondStatus(c, http.StatusNotFound, "route not found")
	})
	router.NoMethod(func(c *gin.Context) {
		respondStatus(c, http.StatusMethodNotAllowed, "method not allowed")
	})

	s.router = router
	s.setupRoutes()
	return nil
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders: []string{"X-Request-ID", "Retry-After", "X-Cache"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

func (s *Server) setupRoutes() {
	// Health check endpoint
	s.router.GET("/api/health", s.healthCheck)

	api := s.router.Group("/api")
	api.Use(s.rateLimit(s.generalLimiter))

	admin := s.requireRole(models.RoleAdmin, models.RoleSuperAdmin)
	invalidate := s.invalidateCache(cache.TagContent)

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/login", s.rateLimit(s.loginLimiter), s.login)
		authGroup.GET("/profile", admin, s.profile)
	}

	contentGroup := api.Group("/content")
	{
		contentGroup.GET("", s.cached(), s.listContent)
		contentGroup.GET("/search", s.rateLimit(s.searchLimiter), s.cached(), s.searchContent)
		contentGroup.GET("/type/:type", s.cached(), s.listContentByType)
		contentGroup.GET("/:id", s.getContent)

		contentGroup.POST("", admin, invalidate, s.createContent)
		contentGroup.PUT("/:id", admin, invalidate, s.replaceContent)
		contentGroup.DELETE("/:id", admin, invalidate, s.deleteContent)

		contentGroup.GET("/:id/availability", admin, s.listAvailability)
		contentGroup.POST("/:id/availability", admin, invalidate, s.createAvailability)
		contentGroup.PUT("/:id/availability/:availabilityId", admin, invalidate, s.replaceAvailability)
		contentGroup.DELETE("/:id/availability/:availabilityId", admin, invalidate, s.deleteAvailability)
	}

	requestGroup := api.Group("/requests")
	{
		requestGroup.POST("", s.createRequest)
		requestGroup.GET("", admin, s.listRequests)
		requestGroup.GET("/:id", admin, s.getRequest)
		requestGroup.PATCH("/:id", admin, s.patchRequest)
		requestGroup.DELETE("/:id", admin, s.deleteRequest)
	}
}
