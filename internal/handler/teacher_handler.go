package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/serene-scheduler/internal/dto"
	"github.com/noah-isme/serene-scheduler/internal/models"
	appErrors "github.com/noah-isme/serene-scheduler/pkg/errors"
	"github.com/noah-isme/serene-scheduler/pkg/response"
)

type rescheduleService interface {
	AvailableTheorySlots(ctx context.Context, teacher string, req dto.AvailableSlotsRequest) ([]string, error)
	Request(ctx context.Context, teacher, username string, payload dto.RescheduleRequestPayload) (*models.RescheduleRequest, error)
	ListPending(ctx context.Context) ([]models.RescheduleRequest, error)
	Approve(ctx context.Context, id, admin string) (*models.RescheduleRequest, error)
	Reject(ctx context.Context, id, admin string, payload dto.RejectRequestPayload) (*models.RescheduleRequest, error)
}

// TeacherHandler serves the teacher's own schedule and reschedule requests.
type TeacherHandler struct {
	publications publicationService
	reschedules  rescheduleService
}

// NewTeacherHandler constructs the handler.
func NewTeacherHandler(publications publicationService, reschedules rescheduleService) *TeacherHandler {
	return &TeacherHandler{publications: publications, reschedules: reschedules}
}

// Timetable godoc
// @Summary Teacher timetable
// @Description Returns the effective rows taught by the authenticated teacher
// @Tags Teacher
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /teacher/timetable [get]
func (h *TeacherHandler) Timetable(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	view, err := h.publications.TeacherView(c.Request.Context(), claims.Teacher)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// AvailableSlots godoc
// @Summary Available re-slot targets
// @Description Lists same-day slots where the teacher's theory session could move
// @Tags Teacher
// @Accept json
// @Produce json
// @Param payload body dto.AvailableSlotsRequest true "Day and slot"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /teacher/available-slots [post]
func (h *TeacherHandler) AvailableSlots(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.AvailableSlotsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	slots, err := h.reschedules.AvailableTheorySlots(c.Request.Context(), claims.Teacher, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.AvailableSlotsResponse{AvailableSlots: slots}, nil)
}

// CreateRequest godoc
// @Summary Request reschedule
// @Description Files a cancellation or theory re-slot request for admin review
// @Tags Teacher
// @Accept json
// @Produce json
// @Param payload body dto.RescheduleRequestPayload true "Request"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /teacher/reschedule-requests [post]
func (h *TeacherHandler) CreateRequest(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var payload dto.RescheduleRequestPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	req, err := h.reschedules.Request(c.Request.Context(), claims.Teacher, claims.Username, payload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, req)
}
