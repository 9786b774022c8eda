package handler

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/serene-scheduler/internal/dto"
	"github.com/noah-isme/serene-scheduler/internal/models"
	appErrors "github.com/noah-isme/serene-scheduler/pkg/errors"
)

func timetableRouter(claims *models.JWTClaims, h *TimetableHandler) http.Handler {
	router := newTestRouter(claims)
	router.POST("/timetable/validate", h.Validate)
	router.POST("/timetable/generate", h.Generate)
	router.POST("/timetable/publish", h.Publish)
	router.GET("/timetable/published", h.Published)
	router.DELETE("/timetable/published", h.DeletePublished)
	router.GET("/timetable/export", h.Export)
	return router
}

func TestTimetableHandlerValidate(t *testing.T) {
	generation := &generationStub{}
	router := newTestRouter(adminClaims)
	h := NewTimetableHandler(generation, &publicationStub{}, &exportStub{})
	router.POST("/timetable/validate", h.Validate)

	w := performJSON(t, router, http.MethodPost, "/timetable/validate", map[string]interface{}{
		"classes": []map[string]interface{}{{"name": "CSE", "sections": []map[string]interface{}{{"name": "A"}}}},
		"days":    []string{"Mon"},
		"slots":   []string{"P1"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, generation.req.Classes, 1)
	assert.Equal(t, []string{"Mon"}, generation.req.Days)

	var report dto.ValidationReport
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &report))
	assert.Len(t, report.Warnings, 1)

	w = performJSON(t, router, http.MethodPost, "/timetable/validate", `{"days":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTimetableHandlerGenerate(t *testing.T) {
	generation := &generationStub{result: &models.GenerationResult{
		Timetable: []models.TimetableRow{{Section: "S", Day: "Mon", Slot: "P1", Subject: "Maths"}},
	}}
	router := newTestRouter(adminClaims)
	h := NewTimetableHandler(generation, &publicationStub{}, &exportStub{})
	router.POST("/timetable/generate", h.Generate)

	w := performJSON(t, router, http.MethodPost, "/timetable/generate", map[string]interface{}{
		"sections": []map[string]interface{}{{"name": "S"}},
		"days":     []string{"Mon"},
		"slots":    []string{"P1"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	var result models.GenerationResult
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &result))
	assert.Equal(t, "Maths", result.Timetable[0].Subject)

	generation.err = appErrors.WithDetails(appErrors.ErrInvalidInput, dto.ValidationReport{Errors: []string{"days failed rule required"}})
	w = performJSON(t, router, http.MethodPost, "/timetable/generate", map[string]interface{}{})
	require.Equal(t, http.StatusBadRequest, w.Code)
	env := decodeEnvelope(t, w)
	require.NotNil(t, env.Error)
	assert.Equal(t, appErrors.ErrInvalidInput.Code, env.Error.Code)
}

func TestTimetableHandlerPublishLifecycle(t *testing.T) {
	publications := &publicationStub{published: &models.PublishedTimetable{
		TemporaryChanges: []models.TemporalModification{{Teacher: "Alice"}},
	}}
	router := timetableRouter(adminClaims, NewTimetableHandler(&generationStub{}, publications, &exportStub{}))

	w := performJSON(t, router, http.MethodPost, "/timetable/publish", map[string]interface{}{
		"inputData":     map[string]interface{}{"days": []string{"Mon"}},
		"timetableData": map[string]interface{}{"timetable": []map[string]string{{"section": "S", "day": "Mon", "slot": "P1", "subject": "Maths"}}},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "admin", publications.actor)
	require.Len(t, publications.publishReq.TimetableData.Timetable, 1)
	assert.Equal(t, []string{"Mon"}, publications.publishReq.InputData.Days)

	w = performJSON(t, router, http.MethodGet, "/timetable/published", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decodeEnvelope(t, w).Meta["activeChanges"])

	w = performJSON(t, router, http.MethodDelete, "/timetable/published", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.True(t, publications.deleted)

	publications.err = appErrors.ErrAlreadyPublished
	w = performJSON(t, router, http.MethodPost, "/timetable/publish", map[string]interface{}{})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestTimetableHandlerPublishedNotFound(t *testing.T) {
	router := timetableRouter(adminClaims, NewTimetableHandler(&generationStub{}, &publicationStub{err: appErrors.ErrNotPublished}, &exportStub{}))

	w := performJSON(t, router, http.MethodGet, "/timetable/published", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTimetableHandlerExportScopesByRole(t *testing.T) {
	exports := &exportStub{}

	router := timetableRouter(adminClaims, NewTimetableHandler(&generationStub{}, &publicationStub{}, exports))
	w := performJSON(t, router, http.MethodGet, "/timetable/export?format=csv&section=CSE+B&teacher=Bob", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "timetable.csv")
	assert.Equal(t, dto.ExportQuery{Format: "csv", Section: "CSE B", Teacher: "Bob"}, exports.query)

	router = timetableRouter(teacherClaims, NewTimetableHandler(&generationStub{}, &publicationStub{}, exports))
	w = performJSON(t, router, http.MethodGet, "/timetable/export?format=pdf&section=CSE+B&teacher=Bob", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, dto.ExportQuery{Format: "pdf", Teacher: "Alice"}, exports.query)

	router = timetableRouter(studentClaims, NewTimetableHandler(&generationStub{}, &publicationStub{}, exports))
	w = performJSON(t, router, http.MethodGet, "/timetable/export?teacher=Bob", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, dto.ExportQuery{Section: "CSE A"}, exports.query)

	router = timetableRouter(nil, NewTimetableHandler(&generationStub{}, &publicationStub{}, exports))
	w = performJSON(t, router, http.MethodGet, "/timetable/export", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
