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

type activityFeedService interface {
	Feed(ctx context.Context) (*models.ActivityFeed, error)
}

type userDirectory interface {
	ListUsers(ctx context.Context) ([]models.UserInfo, error)
}

// AdminHandler serves request review, the activity feed and the account list.
type AdminHandler struct {
	reschedules rescheduleService
	activity    activityFeedService
	users       userDirectory
}

// NewAdminHandler constructs the handler.
func NewAdminHandler(reschedules rescheduleService, activity activityFeedService, users userDirectory) *AdminHandler {
	return &AdminHandler{reschedules: reschedules, activity: activity, users: users}
}

// ListRequests godoc
// @Summary Pending reschedule requests
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/reschedule-requests [get]
func (h *AdminHandler) ListRequests(c *gin.Context) {
	requests, err := h.reschedules.ListPending(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, &models.Pagination{Page: 1, PageSize: len(requests), TotalCount: len(requests)})
}

// Approve godoc
// @Summary Approve reschedule request
// @Description Applies the request as a temporary change until the next UTC midnight
// @Tags Admin
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/reschedule-requests/{id}/approve [post]
func (h *AdminHandler) Approve(c *gin.Context) {
	req, err := h.reschedules.Approve(c.Request.Context(), c.Param("id"), actorName(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, req, nil)
}

// Reject godoc
// @Summary Reject reschedule request
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body dto.RejectRequestPayload false "Admin note"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/reschedule-requests/{id}/reject [post]
func (h *AdminHandler) Reject(c *gin.Context) {
	var payload dto.RejectRequestPayload
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&payload); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
			return
		}
	}
	req, err := h.reschedules.Reject(c.Request.Context(), c.Param("id"), actorName(c), payload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, req, nil)
}

// ActivityFeed godoc
// @Summary Activity feed
// @Description Today's events with pending request counts
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/activity-feed [get]
func (h *AdminHandler) ActivityFeed(c *gin.Context) {
	feed, err := h.activity.Feed(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, feed, nil)
}

// Users godoc
// @Summary List accounts
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/users [get]
func (h *AdminHandler) Users(c *gin.Context) {
	users, err := h.users.ListUsers(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, users, &models.Pagination{Page: 1, PageSize: len(users), TotalCount: len(users)})
}
