package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/glefebvre/reelvault/internal/content"
	"github.com/glefebvre/reelvault/internal/models"
)

func contentFilter(c *gin.Context) (content.ListFilter, error) {
	page, err := pageRequest(c)
	if err != nil {
		return content.ListFilter{}, err
	}
	return content.ListFilter{
		Type:        c.Query("type"),
		Sort:        c.Query("sort"),
		Query:       c.Query("q"),
		PageRequest: page,
	}, nil
}

func (s *Server) listContent(c *gin.Context) {
	filter, err := contentFilter(c)
	if err != nil {
		respondError(c, err)
		return
	}

	page, err := s.content.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (s *Server) listContentByType(c *gin.Context) {
	filter, err := contentFilter(c)
	if err != nil {
		respondError(c, err)
		return
	}

	page, err := s.content.ListByType(c.Request.Context(), c.Param("type"), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (s *Server) searchContent(c *gin.Context) {
	results, err := s.content.Search(c.Request.Context(), c.Query("q"), c.Query("type"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ListResponse[models.ContentSummary]{Data: results})
}

func (s *Server) getContent(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}

	item, err := s.content.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (s *Server) createContent(c *gin.Context) {
	var in content.Input
	if err := bindJSON(c, &in); err != nil {
		respondError(c, err)
		return
	}

	item, err := s.content.Create(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (s *Server) replaceContent(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}

	var in content.Input
	if err := bindJSON(c, &in); err != nil {
		respondError(c, err)
		return
	}

	item, err := s.content.Replace(c.Request.Context(), id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (s *Server) deleteContent(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}

	removed, err := s.content.Delete(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "content deleted", AvailabilityRemoved: &removed})
}
