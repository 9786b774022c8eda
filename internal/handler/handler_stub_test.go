package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/serene-scheduler/internal/dto"
	"github.com/noah-isme/serene-scheduler/internal/middleware"
	"github.com/noah-isme/serene-scheduler/internal/models"
	"github.com/noah-isme/serene-scheduler/internal/service"
)

var (
	adminClaims   = &models.JWTClaims{UserID: "u-admin", Username: "admin", Role: models.RoleAdmin}
	teacherClaims = &models.JWTClaims{UserID: "u-alice", Username: "t_alice", Role: models.RoleTeacher, Teacher: "Alice"}
	studentClaims = &models.JWTClaims{UserID: "u-s", Username: "s_cse_a", Role: models.RoleStudent, Section: "CSE A"}
)

// withClaims stands in for the JWT middleware.
func withClaims(claims *models.JWTClaims) gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims != nil {
			c.Set(middleware.ContextUserKey, claims)
		}
		c.Next()
	}
}

func newTestRouter(claims *models.JWTClaims) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(withClaims(claims))
	return router
}

func performJSON(t *testing.T, router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch v := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(v))
	default:
		raw, err := json.Marshal(v)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Status  int    `json:"status"`
	} `json:"error"`
	Meta map[string]interface{} `json:"meta"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

type generationStub struct {
	req    dto.TimetableRequest
	result *models.GenerationResult
	err    error
}

func (g *generationStub) Validate(req dto.TimetableRequest) dto.ValidationReport {
	g.req = req
	return dto.ValidationReport{Valid: len(req.Sections) > 0, Errors: []string{}, Warnings: []string{"no rooms defined; theory sessions will have no room"}}
}

func (g *generationStub) Generate(ctx context.Context, req dto.TimetableRequest) (*models.GenerationResult, error) {
	g.req = req
	return g.result, g.err
}

type publicationStub struct {
	published   *models.PublishedTimetable
	publishReq  dto.PublishRequest
	actor       string
	deleted     bool
	viewTeacher string
	viewSection string
	err         error
}

func (p *publicationStub) Publish(ctx context.Context, req dto.PublishRequest, actor string) (*dto.PublishResponse, error) {
	p.publishReq, p.actor = req, actor
	if p.err != nil {
		return nil, p.err
	}
	return &dto.PublishResponse{PublishedBy: actor, UsersSynced: 2}, nil
}

func (p *publicationStub) Current(ctx context.Context) (*models.PublishedTimetable, error) {
	return p.published, p.err
}

func (p *publicationStub) Delete(ctx context.Context, actor string) error {
	p.deleted, p.actor = true, actor
	return p.err
}

func (p *publicationStub) TeacherView(ctx context.Context, teacher string) (*dto.TimetableView, error) {
	p.viewTeacher = teacher
	if p.err != nil {
		return nil, p.err
	}
	return &dto.TimetableView{Teacher: teacher, Timetable: []models.TimetableRow{{Section: "CSE A", Teacher: teacher}}}, nil
}

func (p *publicationStub) SectionView(ctx context.Context, section string) (*dto.TimetableView, error) {
	p.viewSection = section
	if p.err != nil {
		return nil, p.err
	}
	return &dto.TimetableView{Section: section}, nil
}

type exportStub struct {
	query dto.ExportQuery
	err   error
}

func (e *exportStub) Export(ctx context.Context, query dto.ExportQuery) (*service.ExportFile, error) {
	e.query = query
	if e.err != nil {
		return nil, e.err
	}
	return &service.ExportFile{Filename: "timetable.csv", ContentType: "text/csv", Data: []byte("section,day\n")}, nil
}

type rescheduleStub struct {
	teacher  string
	username string
	admin    string
	id       string
	payload  dto.RescheduleRequestPayload
	reject   dto.RejectRequestPayload
	slots    []string
	pending  []models.RescheduleRequest
	err      error
}

func (r *rescheduleStub) AvailableTheorySlots(ctx context.Context, teacher string, req dto.AvailableSlotsRequest) ([]string, error) {
	r.teacher = teacher
	return r.slots, r.err
}

func (r *rescheduleStub) Request(ctx context.Context, teacher, username string, payload dto.RescheduleRequestPayload) (*models.RescheduleRequest, error) {
	r.teacher, r.username, r.payload = teacher, username, payload
	if r.err != nil {
		return nil, r.err
	}
	return &models.RescheduleRequest{ID: "req-1", Teacher: teacher, Status: models.RequestStatusPending}, nil
}

func (r *rescheduleStub) ListPending(ctx context.Context) ([]models.RescheduleRequest, error) {
	return r.pending, r.err
}

func (r *rescheduleStub) Approve(ctx context.Context, id, admin string) (*models.RescheduleRequest, error) {
	r.id, r.admin = id, admin
	if r.err != nil {
		return nil, r.err
	}
	return &models.RescheduleRequest{ID: id, Status: models.RequestStatusApproved, ResolvedBy: admin}, nil
}

func (r *rescheduleStub) Reject(ctx context.Context, id, admin string, payload dto.RejectRequestPayload) (*models.RescheduleRequest, error) {
	r.id, r.admin, r.reject = id, admin, payload
	if r.err != nil {
		return nil, r.err
	}
	return &models.RescheduleRequest{ID: id, Status: models.RequestStatusRejected, AdminNote: payload.AdminNote}, nil
}
