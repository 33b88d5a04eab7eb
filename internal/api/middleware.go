package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glefebvre/reelvault/internal/auth"
	"github.com/glefebvre/reelvault/internal/cache"
	apperrors "github.com/glefebvre/reelvault/internal/errors"
	"github.com/glefebvre/reelvault/internal/logger"
	"github.com/glefebvre/reelvault/internal/models"
	"github.com/glefebvre/reelvault/internal/ratelimit"
	"github.com/google/uuid"
)

const (
	requestIDHeader = "X-Request-ID"
	cacheHeader     = "X-Cache"

	ctxRequestID = "request_id"
	ctxAdmin     = "admin"
)

// requestIDMiddleware adds a unique request ID to each request
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" || len(requestID) > 128 {
			requestID = uuid.New().String()
		}
		c.Set(ctxRequestID, requestID)
		c.Header(requestIDHeader, requestID)
		c.Request = c.Request.WithContext(logger.ContextWithRequestID(c.Request.Context(), requestID))
		c.Next()
	}
}

// recoveryMiddleware turns panics into the 500 error envelope
func recoveryMiddleware(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if recovered := recover(); recovered != nil {
				log.WithFields(map[string]interface{}{
					"method": c.Request.Method,
					"path":   c.Request.URL.Path,
					"panic":  fmt.Sprint(recovered),
				}).ErrorContext(c.Request.Context(), "panic while handling request", fmt.Errorf("%v", recovered))

				respondStatus(c, http.StatusInternalServerError, "an unexpected error occurred")
			}
		}()
		c.Next()
	}
}

// requestLoggerMiddleware logs one line per request once it has been served
func requestLoggerMiddleware(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     status,
			"latency_ms": time.Since(start).Milliseconds(),
			"client_ip":  c.ClientIP(),
			"bytes":      c.Writer.Size(),
		}
		entry := log.WithFields(fields)
		ctx := c.Request.Context()

		switch {
		case status >= http.StatusInternalServerError:
			var err error
			if last := c.Errors.Last(); last != nil {
				err = last.Err
			}
			entry.ErrorContext(ctx, "request failed", err)
		case status >= http.StatusBadRequest:
			entry.WarnContext(ctx, "request rejected")
		default:
			entry.InfoContext(ctx, "request served")
		}
	}
}

// rateLimit rejects clients over l's budget with 429 and Retry-After. A nil limiter lets everything through.
func (s *Server) rateLimit(l *ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if l == nil {
			c.Next()
			return
		}

		ip := c.ClientIP()
		ok, wait := l.Allow(ip)
		c.Header("X-RateLimit-Limit", strconv.Itoa(l.Rule().Requests))
		if !ok {
			c.Header("Retry-After", strconv.Itoa(ratelimit.RetryAfterSeconds(wait)))
			c.Header("X-RateLimit-Remaining", "0")
			s.log.WithFields(map[string]interface{}{
				"limiter":   l.Name(),
				"client_ip": ip,
			}).WarnContext(c.Request.Context(), "rate limit exceeded")
			respondError(c, apperrors.RateLimitedError("too many requests, please try again later"))
			return
		}
		c.Header("X-RateLimit-Remaining", strconv.Itoa(l.Remaining(ip)))
		c.Next()
	}
}

// requireRole authenticates the bearer token and checks the admin's role
func (s *Server) requireRole(allowed ...models.AdminRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := bearerToken(c.GetHeader("Authorization"))
		if err != nil {
			respondError(c, err)
			return
		}

		admin, err := s.auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			respondError(c, err)
			return
		}
		if err := auth.Authorize(admin.Role, allowed...); err != nil {
			respondError(c, err)
			return
		}

		c.Set(ctxAdmin, admin)
		c.Request = c.Request.WithContext(logger.ContextWithAdminID(c.Request.Context(), admin.ID))
		c.Next()
	}
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", apperrors.UnauthorizedError("missing authorization header")
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", apperrors.UnauthorizedError("authorization header must be: Bearer <token>")
	}
	return strings.TrimSpace(token), nil
}

func currentAdmin(c *gin.Context) (*models.Admin, bool) {
	v, ok := c.Get(ctxAdmin)
	if !ok {
		return nil, false
	}
	admin, ok := v.(*models.Admin)
	return admin, ok
}

// bodyRecorder copies everything the handler writes
type bodyRecorder struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *bodyRecorder) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *bodyRecorder) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// cached serves successful GET responses from the response cache, keyed by path and query
func (s *Server) cached() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.cache == nil {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		key := "response:" + c.Request.URL.RequestURI()

		if body, ok := s.cache.Get(ctx, key); ok {
			c.Header(cacheHeader, "HIT")
			c.Data(http.StatusOK, "application/json; charset=utf-8", body)
			c.Abort()
			return
		}

		gen, err := s.cache.Generation(ctx, cache.TagContent)
		if err != nil {
			c.Next()
			return
		}

		recorder := &bodyRecorder{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
		c.Writer = recorder
		c.Header(cacheHeader, "MISS")
		c.Next()

		if recorder.Status() == http.StatusOK && recorder.body.Len() > 0 {
			s.cache.SetIfCurrent(ctx, key, recorder.body.Bytes(), cache.TagContent, gen)
		}
	}
}

// invalidateCache drops tagged responses after a successful mutation
func (s *Server) invalidateCache(tags ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if s.cache == nil || c.Writer.Status() >= http.StatusBadRequest {
			return
		}
		if err := s.cache.Invalidate(c.Request.Context(), tags...); err != nil {
			s.log.WithFields(map[string]interface{}{"tags": tags}).WarnContext(c.Request.Context(), "stale responses may be served until they expire")
		}
	}
}
