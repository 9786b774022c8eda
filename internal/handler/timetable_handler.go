package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/serene-scheduler/internal/dto"
	"github.com/noah-isme/serene-scheduler/internal/models"
	"github.com/noah-isme/serene-scheduler/internal/service"
	appErrors "github.com/noah-isme/serene-scheduler/pkg/errors"
	"github.com/noah-isme/serene-scheduler/pkg/response"
)

type timetableGenerationService interface {
	Validate(req dto.TimetableRequest) dto.ValidationReport
	Generate(ctx context.Context, req dto.TimetableRequest) (*models.GenerationResult, error)
}

type publicationService interface {
	Publish(ctx context.Context, req dto.PublishRequest, actor string) (*dto.PublishResponse, error)
	Current(ctx context.Context) (*models.PublishedTimetable, error)
	Delete(ctx context.Context, actor string) error
	TeacherView(ctx context.Context, teacher string) (*dto.TimetableView, error)
	SectionView(ctx context.Context, section string) (*dto.TimetableView, error)
}

type exportService interface {
	Export(ctx context.Context, query dto.ExportQuery) (*service.ExportFile, error)
}

// TimetableHandler serves generation, publication and export.
type TimetableHandler struct {
	generation   timetableGenerationService
	publications publicationService
	exports      exportService
}

// NewTimetableHandler constructs the handler.
func NewTimetableHandler(generation timetableGenerationService, publications publicationService, exports exportService) *TimetableHandler {
	return &TimetableHandler{generation: generation, publications: publications, exports: exports}
}

// Validate godoc
// @Summary Validate timetable input
// @Description Checks the generation input and lists errors and warnings without generating
// @Tags Timetable
// @Accept json
// @Produce json
// @Param payload body dto.TimetableRequest true "Timetable input"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /timetable/validate [post]
func (h *TimetableHandler) Validate(c *gin.Context) {
	var req dto.TimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid timetable payload"))
		return
	}
	response.JSON(c, http.StatusOK, h.generation.Validate(req), nil)
}

// Generate godoc
// @Summary Generate timetable
// @Description Runs the scheduler and returns rows, unfulfilled demand, suggestions and statistics
// @Tags Timetable
// @Accept json
// @Produce json
// @Param payload body dto.TimetableRequest true "Timetable input"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /timetable/generate [post]
func (h *TimetableHandler) Generate(c *gin.Context) {
	var req dto.TimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid timetable payload"))
		return
	}
	result, err := h.generation.Generate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Publish godoc
// @Summary Publish timetable
// @Description Stores a generated timetable as the published base schedule
// @Tags Timetable
// @Accept json
// @Produce json
// @Param payload body dto.PublishRequest true "Input and generated rows"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /timetable/publish [post]
func (h *TimetableHandler) Publish(c *gin.Context) {
	var req dto.PublishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid publish payload"))
		return
	}
	res, err := h.publications.Publish(c.Request.Context(), req, actorName(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, res)
}

// Published godoc
// @Summary Get published timetable
// @Description Returns the published document with expired modifications dropped
// @Tags Timetable
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /timetable/published [get]
func (h *TimetableHandler) Published(c *gin.Context) {
	doc, err := h.publications.Current(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc, nil, map[string]interface{}{
		"activeChanges": len(doc.TemporaryChanges),
	})
}

// DeletePublished godoc
// @Summary Delete published timetable
// @Description Removes the published timetable and every pending reschedule request
// @Tags Timetable
// @Success 204 {object} response.Envelope
// @Router /timetable/published [delete]
func (h *TimetableHandler) DeletePublished(c *gin.Context) {
	if err := h.publications.Delete(c.Request.Context(), actorName(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Export godoc
// @Summary Export timetable
// @Description Downloads the effective schedule as CSV or PDF. Teachers and students only see their own rows.
// @Tags Timetable
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf"
// @Param section query string false "Section filter"
// @Param teacher query string false "Teacher filter"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /timetable/export [get]
func (h *TimetableHandler) Export(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var query dto.ExportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid export query"))
		return
	}
	switch claims.Role {
	case models.RoleTeacher:
		query.Teacher = claims.Teacher
		query.Section = ""
		if query.Teacher == "" {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "teacher name is not configured for this account"))
			return
		}
	case models.RoleStudent:
		query.Section = claims.Section
		query.Teacher = ""
		if query.Section == "" {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "student section is not configured"))
			return
		}
	}

	file, err := h.exports.Export(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Data)
}
