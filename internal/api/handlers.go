package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glefebvre/reelvault/internal/database"
	apperrors "github.com/glefebvre/reelvault/internal/errors"
	"github.com/glefebvre/reelvault/internal/models"
)

const maxBodyBytes = 1 << 20

// respondError writes the error envelope for err and aborts the chain
func respondError(c *gin.Context, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	respondStatus(c, status, apperrors.PublicMessage(err))
}

func respondStatus(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Error: ErrorBody{Status: status, Message: message}})
}

// bindJSON decodes the request body into dst
func bindJSON(c *gin.Context, dst interface{}) error {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	if err := c.ShouldBindJSON(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperrors.ValidationError("request body is required")
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperrors.ValidationError("request body too large")
		}
		return apperrors.Validationf("invalid request body: %v", err)
	}
	return nil
}

// pathID parses a positive numeric path parameter
func pathID(c *gin.Context, name string) (uint, error) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, strconv.IntSize)
	if err != nil || id == 0 {
		return 0, apperrors.Validationf("%s must be a positive integer", name)
	}
	return uint(id), nil
}

// queryInt parses an optional integer query parameter. Absent means 0.
func queryInt(c *gin.Context, name string) (int, error) {
	raw, ok := c.GetQuery(name)
	if !ok || raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.Validationf("%s must be an integer", name)
	}
	if n < 1 {
		return 0, apperrors.Validationf("%s must be at least 1", name)
	}
	return n, nil
}

func pageRequest(c *gin.Context) (models.PageRequest, error) {
	page, err := queryInt(c, "page")
	if err != nil {
		return models.PageRequest{}, err
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		return models.PageRequest{}, err
	}
	return models.PageRequest{Page: page, Limit: limit}, nil
}

func (s *Server) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := database.Ping(ctx, s.db); err != nil {
		s.log.ErrorContext(ctx, "health check failed", err)
		respondStatus(c, http.StatusServiceUnavailable, "database unavailable")
		return
	}

	resp := HealthResponse{Status: "ok", Database: "up", Time: time.Now().UTC()}
	if s.cache != nil {
		resp.Cache = "up"
		if err := s.cache.Ping(ctx); err != nil {
			resp.Cache = "degraded"
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) login(c *gin.Context) {
	var req LoginRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, err)
		return
	}

	result, err := s.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) profile(c *gin.Context) {
	admin, ok := currentAdmin(c)
	if !ok {
		respondError(c, apperrors.UnauthorizedError("not authenticated"))
		return
	}
	c.JSON(http.StatusOK, admin.Profile())
}
