package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/serene-scheduler/pkg/response"
)

// StudentHandler serves a section's schedule.
type StudentHandler struct {
	publications publicationService
}

// NewStudentHandler constructs the handler.
func NewStudentHandler(publications publicationService) *StudentHandler {
	return &StudentHandler{publications: publications}
}

// Timetable godoc
// @Summary Student timetable
// @Description Returns the effective rows of the authenticated student's section
// @Tags Student
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /student/timetable [get]
func (h *StudentHandler) Timetable(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	view, err := h.publications.SectionView(c.Request.Context(), claims.Section)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}
