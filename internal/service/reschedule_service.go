package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/serene-scheduler/internal/dto"
	"github.com/noah-isme/serene-scheduler/internal/models"
	"github.com/noah-isme/serene-scheduler/internal/scheduler"
	appErrors "github.com/noah-isme/serene-scheduler/pkg/errors"
)

type timetableOverlay interface {
	Current(ctx context.Context) (*models.PublishedTimetable, error)
	ApplyModification(ctx context.Context, mod models.TemporalModification) (*models.PublishedTimetable, error)
}

type requestStore interface {
	Requests(ctx context.Context) ([]models.RescheduleRequest, error)
	SaveRequests(ctx context.Context, requests []models.RescheduleRequest) error
}

const defaultRescheduleReason = "Teacher unavailable"

// RescheduleService runs the teacher request and admin review workflow.
type RescheduleService struct {
	timetables timetableOverlay
	store      requestStore
	activity   activityRecorder
	validator  *validator.Validate
	logger     *zap.Logger
	now        func() time.Time
	mu         sync.Mutex
}

// NewRescheduleService constructs the service.
func NewRescheduleService(timetables timetableOverlay, store requestStore, activity activityRecorder, validate *validator.Validate, logger *zap.Logger) *RescheduleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RescheduleService{
		timetables: timetables,
		store:      store,
		activity:   activity,
		validator:  validate,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// AvailableTheorySlots lists same-day slots the teacher's theory session could move to.
func (s *RescheduleService) AvailableTheorySlots(ctx context.Context, teacher string, req dto.AvailableSlotsRequest) ([]string, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "day and slot are required")
	}
	doc, err := s.timetables.Current(ctx)
	if err != nil {
		return nil, err
	}
	overlay := scheduler.NewOverlay(doc.InputData, s.logger)
	slots, err := overlay.AvailableTheorySlots(doc.TimetableData.Timetable, teacher, req.Day, req.Slot)
	if err != nil {
		return nil, assignmentError(err)
	}
	return slots, nil
}

func assignmentError(err error) error {
	switch {
	case errors.Is(err, scheduler.ErrAssignmentNotFound):
		return appErrors.Clone(appErrors.ErrValidation, "no assignment found for this teacher at the selected slot")
	case errors.Is(err, scheduler.ErrLabNotReschedulable):
		return appErrors.Clone(appErrors.ErrValidation, "lab sessions cannot use the theory re-slot option")
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to inspect timetable")
	}
}

// Request files a pending request for the teacher's entry at (day, slot).
func (s *RescheduleService) Request(ctx context.Context, teacher, username string, payload dto.RescheduleRequestPayload) (*models.RescheduleRequest, error) {
	payload.RequestType = strings.ToLower(strings.TrimSpace(payload.RequestType))
	if err := s.validator.Struct(payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reschedule request payload")
	}
	if strings.TrimSpace(teacher) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "teacher name is not configured for this account")
	}
	kind := models.ModificationType(payload.RequestType)
	if kind == "" {
		kind = models.ModificationCancellation
	}
	reason := strings.TrimSpace(payload.Reason)
	if reason == "" {
		reason = defaultRescheduleReason
	}

	doc, err := s.timetables.Current(ctx)
	if err != nil {
		return nil, err
	}
	overlay := scheduler.NewOverlay(doc.InputData, s.logger)
	rows := doc.TimetableData.Timetable
	assignment, err := overlay.FindAssignment(rows, teacher, payload.Day, payload.Slot)
	if err != nil {
		return nil, assignmentError(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	requests, err := s.store.Requests(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load reschedule requests")
	}
	for _, existing := range requests {
		if existing.Pending() && existing.Type == kind && strings.EqualFold(strings.TrimSpace(existing.Teacher), strings.TrimSpace(teacher)) &&
			existing.Day == payload.Day && existing.Slot == payload.Slot {
			return nil, appErrors.Clone(appErrors.ErrDuplicateRequest, "a pending request already exists for this day and slot")
		}
	}

	if kind == models.ModificationReslot {
		if assignment.IsLab() {
			return nil, assignmentError(scheduler.ErrLabNotReschedulable)
		}
		available, err := overlay.AvailableTheorySlots(rows, teacher, payload.Day, payload.Slot)
		if err != nil {
			return nil, assignmentError(err)
		}
		if !containsSlot(available, payload.PreferredSlot) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "selected preferred_slot is not available")
		}
	}

	req := models.RescheduleRequest{
		ID:          uuid.NewString(),
		Type:        kind,
		Teacher:     teacher,
		RequestedBy: username,
		Day:         payload.Day,
		Slot:        payload.Slot,
		Section:     assignment.Section,
		Subject:     assignment.Subject,
		Group:       assignment.Group,
		Reason:      reason,
		Status:      models.RequestStatusPending,
		CreatedAt:   s.now(),
	}
	if kind == models.ModificationReslot {
		req.PreferredSlot = payload.PreferredSlot
	}

	requests = append(requests, req)
	if err := s.store.SaveRequests(ctx, requests); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save reschedule request")
	}
	s.record(ctx, models.ActivityRequestCreated,
		fmt.Sprintf("%s requested reschedule on %s (%s)", teacher, req.Day, req.Slot),
		map[string]interface{}{"teacher": teacher, "day": req.Day, "slot": req.Slot, "requestType": string(kind)})
	return &req, nil
}

func containsSlot(slots []string, slot string) bool {
	for _, candidate := range slots {
		if candidate == slot {
			return true
		}
	}
	return false
}

// ListPending returns pending requests, newest first.
func (s *RescheduleService) ListPending(ctx context.Context) ([]models.RescheduleRequest, error) {
	requests, err := s.store.Requests(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load reschedule requests")
	}
	pending := make([]models.RescheduleRequest, 0, len(requests))
	for _, req := range requests {
		if req.Pending() {
			pending = append(pending, req)
		}
	}
	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].CreatedAt.After(pending[j].CreatedAt)
	})
	return pending, nil
}

// Approve turns the request into a temporal modification expiring at the next UTC midnight.
// A conflicting modification is rejected and nothing is persisted.
func (s *RescheduleService) Approve(ctx context.Context, id, admin string) (*models.RescheduleRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	requests, idx, err := s.pendingRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	req := requests[idx]

	now := s.now()
	expiresAt := scheduler.NextMidnightUTC(now)
	if _, err := s.timetables.ApplyModification(ctx, req.Modification(now, expiresAt)); err != nil {
		return nil, err
	}

	req.Status = models.RequestStatusApproved
	req.ExpiresAt = &expiresAt
	req.ResolvedAt = &now
	req.ResolvedBy = admin
	if err := s.store.SaveRequests(ctx, removeRequest(requests, idx)); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save reschedule requests")
	}

	s.logger.Info("reschedule request approved",
		zap.String("request_id", req.ID),
		zap.String("teacher", req.Teacher),
		zap.String("type", string(req.Type)))
	s.record(ctx, models.ActivityRequestApproved,
		fmt.Sprintf("Reschedule approved for %s on %s (%s)", req.Teacher, req.Day, req.Slot),
		map[string]interface{}{"teacher": req.Teacher, "day": req.Day, "slot": req.Slot, "approvedBy": admin})
	return &req, nil
}

// Reject closes the request without touching the timetable.
func (s *RescheduleService) Reject(ctx context.Context, id, admin string, payload dto.RejectRequestPayload) (*models.RescheduleRequest, error) {
	if err := s.validator.Struct(payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reject payload")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	requests, idx, err := s.pendingRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	req := requests[idx]

	note := strings.TrimSpace(payload.AdminNote)
	if note == "" {
		note = "Rejected by admin"
	}
	now := s.now()
	req.Status = models.RequestStatusRejected
	req.AdminNote = note
	req.ResolvedAt = &now
	req.ResolvedBy = admin
	if err := s.store.SaveRequests(ctx, removeRequest(requests, idx)); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save reschedule requests")
	}

	s.record(ctx, models.ActivityRequestRejected,
		fmt.Sprintf("Reschedule rejected for %s on %s (%s)", req.Teacher, req.Day, req.Slot),
		map[string]interface{}{"teacher": req.Teacher, "day": req.Day, "slot": req.Slot, "rejectedBy": admin, "reason": note})
	return &req, nil
}

func (s *RescheduleService) pendingRequest(ctx context.Context, id string) ([]models.RescheduleRequest, int, error) {
	requests, err := s.store.Requests(ctx)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load reschedule requests")
	}
	for i, req := range requests {
		if req.ID != id {
			continue
		}
		if !req.Pending() {
			return nil, 0, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("request already %s", strings.ToLower(string(req.Status))))
		}
		return requests, i, nil
	}
	return nil, 0, appErrors.Clone(appErrors.ErrNotFound, "request not found")
}

func removeRequest(requests []models.RescheduleRequest, idx int) []models.RescheduleRequest {
	out := make([]models.RescheduleRequest, 0, len(requests)-1)
	out = append(out, requests[:idx]...)
	return append(out, requests[idx+1:]...)
}

func (s *RescheduleService) record(ctx context.Context, kind models.ActivityType, message string, data map[string]interface{}) {
	recordActivity(ctx, s.activity, s.logger, kind, message, data)
}
