package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/glefebvre/reelvault/internal/requests"
)

func (s *Server) createRequest(c *gin.Context) {
	var in requests.Input
	if err := bindJSON(c, &in); err != nil {
		respondError(c, err)
		return
	}

	req, err := s.requests.Create(c.Request.Context(), in, c.ClientIP())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, publicRequest(req))
}

func (s *Server) listRequests(c *gin.Context) {
	page, err := pageRequest(c)
	if err != nil {
		respondError(c, err)
		return
	}

	result, err := s.requests.List(c.Request.Context(), requests.ListFilter{
		Status:      c.Query("status"),
		ContentType: c.Query("contentType"),
		Priority:    c.Query("priority"),
		Search:      c.Query("search"),
		SortBy:      c.Query("sortBy"),
		SortOrder:   c.Query("sortOrder"),
		PageRequest: page,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) getRequest(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}

	req, err := s.requests.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

func (s *Server) patchRequest(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}

	var patch requests.Patch
	if err := bindJSON(c, &patch); err != nil {
		respondError(c, err)
		return
	}

	req, err := s.requests.PatchFields(c.Request.Context(), id, patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

func (s *Server) deleteRequest(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}

	if err := s.requests.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "request deleted"})
}
