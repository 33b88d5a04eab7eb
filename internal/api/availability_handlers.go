package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/glefebvre/reelvault/internal/availability"
	"github.com/glefebvre/reelvault/internal/models"
)

func (s *Server) listAvailability(c *gin.Context) {
	contentID, err := pathID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}

	rows, err := s.availability.ListForContent(c.Request.Context(), contentID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ListResponse[models.Availability]{Data: rows})
}

func (s *Server) createAvailability(c *gin.Context) {
	contentID, err := pathID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}

	var in availability.Input
	if err := bindJSON(c, &in); err != nil {
		respondError(c, err)
		return
	}

	row, err := s.availability.Create(c.Request.Context(), contentID, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, row)
}

func (s *Server) replaceAvailability(c *gin.Context) {
	contentID, availabilityID, ok := s.availabilityIDs(c)
	if !ok {
		return
	}

	var in availability.Input
	if err := bindJSON(c, &in); err != nil {
		respondError(c, err)
		return
	}

	row, err := s.availability.Replace(c.Request.Context(), contentID, availabilityID, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, row)
}

func (s *Server) deleteAvailability(c *gin.Context) {
	contentID, availabilityID, ok := s.availabilityIDs(c)
	if !ok {
		return
	}

	if err := s.availability.Delete(c.Request.Context(), contentID, availabilityID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "availability deleted"})
}

func (s *Server) availabilityIDs(c *gin.Context) (uint, uint, bool) {
	contentID, err := pathID(c, "id")
	if err != nil {
		respondError(c, err)
		return 0, 0, false
	}
	availabilityID, err := pathID(c, "availabilityId")
	if err != nil {
		respondError(c, err)
		return 0, 0, false
	}
	return contentID, availabilityID, true
}
