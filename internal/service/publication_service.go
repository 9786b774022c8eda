package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/serene-scheduler/internal/dto"
	"github.com/noah-isme/serene-scheduler/internal/models"
	"github.com/noah-isme/serene-scheduler/internal/scheduler"
	appErrors "github.com/noah-isme/serene-scheduler/pkg/errors"
)

type publishedStore interface {
	Published(ctx context.Context) (*models.PublishedTimetable, error)
	SavePublished(ctx context.Context, doc *models.PublishedTimetable) error
	Requests(ctx context.Context) ([]models.RescheduleRequest, error)
	SaveRequests(ctx context.Context, requests []models.RescheduleRequest) error
}

type activityRecorder interface {
	Record(ctx context.Context, kind models.ActivityType, message string, data map[string]interface{}) error
}

type userSyncer interface {
	SyncFromTimetable(ctx context.Context, rows []models.TimetableRow) (int, error)
}

// PublicationService owns the published timetable document: its base snapshot, the ordered
// temporary changes and the effective schedule derived from both.
type PublicationService struct {
	store    publishedStore
	activity activityRecorder
	users    userSyncer
	metrics  *MetricsService
	logger   *zap.Logger
	now      func() time.Time

	// mu serialises read-modify-write cycles within this process.
	mu sync.Mutex
}

// NewPublicationService constructs the service. activity and users may be nil.
func NewPublicationService(store publishedStore, activity activityRecorder, users userSyncer, metrics *MetricsService, logger *zap.Logger) *PublicationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PublicationService{
		store:    store,
		activity: activity,
		users:    users,
		metrics:  metrics,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Publish stores a new published timetable. Only one timetable may be published at a time.
func (s *PublicationService) Publish(ctx context.Context, req dto.PublishRequest, actor string) (*dto.PublishResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.store.Published(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load published timetable")
	}
	if existing != nil {
		return nil, appErrors.Clone(appErrors.ErrAlreadyPublished, "a timetable is already published; delete it before publishing a new one")
	}

	input := req.InputData.Normalize()
	if len(input.Sections) == 0 || len(input.Days) == 0 || len(input.Slots) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "inputData requires sections, days and slots")
	}
	if len(req.TimetableData.Timetable) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "timetableData.timetable is required")
	}

	doc := &models.PublishedTimetable{
		InputData:         input,
		TimetableData:     cloneTimetableData(req.TimetableData),
		BaseTimetableData: cloneTimetableData(req.TimetableData),
		TemporaryChanges:  []models.TemporalModification{},
		PublishedAt:       s.now(),
		PublishedBy:       actor,
	}
	if err := s.store.SavePublished(ctx, doc); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save published timetable")
	}

	synced := 0
	if s.users != nil {
		if synced, err = s.users.SyncFromTimetable(ctx, doc.TimetableData.Timetable); err != nil {
			s.logger.Warn("failed to sync users from timetable", zap.Error(err))
		}
	}
	s.record(ctx, models.ActivityTimetablePublished, "Timetable published", map[string]interface{}{
		"publishedBy": actor,
		"sections":    len(input.Sections),
	})

	return &dto.PublishResponse{PublishedAt: doc.PublishedAt, PublishedBy: actor, UsersSynced: synced}, nil
}

// Current returns the published timetable after dropping expired changes.
func (s *PublicationService) Current(ctx context.Context) (*models.PublishedTimetable, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current(ctx)
}

func (s *PublicationService) current(ctx context.Context) (*models.PublishedTimetable, error) {
	doc, err := s.store.Published(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load published timetable")
	}
	if doc == nil {
		return nil, appErrors.ErrNotPublished
	}
	if _, err := s.refresh(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// RefreshExpired drops expired changes and persists the rebuilt schedule. It returns how many
// changes expired.
func (s *PublicationService) RefreshExpired(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.store.Published(ctx)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load published timetable")
	}
	if doc == nil {
		return 0, nil
	}
	return s.refresh(ctx, doc)
}

func (s *PublicationService) refresh(ctx context.Context, doc *models.PublishedTimetable) (int, error) {
	dirty := false
	if len(doc.BaseTimetableData.Timetable) == 0 && len(doc.TimetableData.Timetable) > 0 {
		doc.BaseTimetableData = cloneTimetableData(doc.TimetableData)
		dirty = true
	}

	active, expired := scheduler.ActiveModifications(doc.TemporaryChanges, s.now())
	if len(expired) > 0 {
		doc.TemporaryChanges = append([]models.TemporalModification{}, active...)
		s.rebuild(doc)
		doc.PublishedAt = s.now()
		dirty = true
	}
	if !dirty {
		return 0, nil
	}
	if err := s.store.SavePublished(ctx, doc); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save published timetable")
	}
	if len(expired) > 0 {
		s.metrics.RecordExpired(len(expired))
		s.record(ctx, models.ActivityChangesExpired, "Temporary timetable changes expired", map[string]interface{}{
			"expired":   len(expired),
			"remaining": len(active),
		})
	}
	return len(expired), nil
}

func (s *PublicationService) rebuild(doc *models.PublishedTimetable) {
	overlay := scheduler.NewOverlay(doc.InputData, s.logger)
	rows, failures := overlay.Rebuild(doc.BaseTimetableData.Timetable, doc.TemporaryChanges)
	for _, failure := range failures {
		s.metrics.RecordReplayConflict(failure.Modification.Type)
	}
	doc.TimetableData.Timetable = rows
}

// ApplyModification validates mod against the effective schedule, appends it and persists the
// rebuilt schedule. A conflicting modification leaves the document untouched.
func (s *PublicationService) ApplyModification(ctx context.Context, mod models.TemporalModification) (*models.PublishedTimetable, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.current(ctx)
	if err != nil {
		return nil, err
	}

	overlay := scheduler.NewOverlay(doc.InputData, s.logger)
	if _, err := overlay.Apply(doc.TimetableData.Timetable, mod); err != nil {
		if errors.Is(err, scheduler.ErrReplayConflict) {
			s.metrics.RecordReplayConflict(mod.Type)
			return nil, appErrors.WithDetails(appErrors.Clone(appErrors.ErrReplayConflict, err.Error()), conflictDetails(err))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply modification")
	}

	doc.TemporaryChanges = append(doc.TemporaryChanges, mod)
	s.rebuild(doc)
	doc.PublishedAt = s.now()
	if err := s.store.SavePublished(ctx, doc); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save published timetable")
	}
	return doc, nil
}

func conflictDetails(err error) map[string]string {
	var conflictErr *scheduler.ReplayConflictError
	if !errors.As(err, &conflictErr) {
		return nil
	}
	return map[string]string{
		"type":    string(conflictErr.Type),
		"teacher": conflictErr.Teacher,
		"day":     conflictErr.Day,
		"slot":    conflictErr.Slot,
		"reason":  conflictErr.Reason,
	}
}

// Delete clears the published timetable and every pending request.
func (s *PublicationService) Delete(ctx context.Context, actor string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.SavePublished(ctx, nil); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete published timetable")
	}
	if err := s.store.SaveRequests(ctx, []models.RescheduleRequest{}); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear reschedule requests")
	}
	s.record(ctx, models.ActivityTimetableDeleted, "Published timetable deleted", map[string]interface{}{"deletedBy": actor})
	return nil
}

// TeacherView returns the rows taught by teacher.
func (s *PublicationService) TeacherView(ctx context.Context, teacher string) (*dto.TimetableView, error) {
	if strings.TrimSpace(teacher) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "teacher name is not configured for this account")
	}
	doc, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}
	view := newView(doc, FilterRows(doc.TimetableData.Timetable, "", teacher))
	view.Teacher = teacher
	return view, nil
}

// SectionView returns the rows of one section.
func (s *PublicationService) SectionView(ctx context.Context, section string) (*dto.TimetableView, error) {
	if strings.TrimSpace(section) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student section is not configured")
	}
	doc, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}
	view := newView(doc, FilterRows(doc.TimetableData.Timetable, section, ""))
	view.Section = section
	return view, nil
}

func newView(doc *models.PublishedTimetable, rows []models.TimetableRow) *dto.TimetableView {
	return &dto.TimetableView{
		Days:        doc.InputData.Days,
		Slots:       doc.InputData.Slots,
		Timetable:   rows,
		PublishedAt: doc.PublishedAt,
	}
}

// FilterRows keeps rows matching section and teacher case-insensitively. Empty filters match
// everything.
func FilterRows(rows []models.TimetableRow, section, teacher string) []models.TimetableRow {
	section = strings.TrimSpace(section)
	teacher = strings.TrimSpace(teacher)
	filtered := make([]models.TimetableRow, 0, len(rows))
	for _, row := range rows {
		if section != "" && !strings.EqualFold(strings.TrimSpace(row.Section), section) {
			continue
		}
		if teacher != "" && !strings.EqualFold(strings.TrimSpace(row.Teacher), teacher) {
			continue
		}
		filtered = append(filtered, row)
	}
	return filtered
}

func (s *PublicationService) record(ctx context.Context, kind models.ActivityType, message string, data map[string]interface{}) {
	recordActivity(ctx, s.activity, s.logger, kind, message, data)
}

func cloneTimetableData(data models.TimetableData) models.TimetableData {
	clone := models.TimetableData{
		Timetable: append([]models.TimetableRow(nil), data.Timetable...),
	}
	if data.Unfulfilled != nil {
		clone.Unfulfilled = make(models.Unfulfilled, len(data.Unfulfilled))
		for section, subjects := range data.Unfulfilled {
			for subject, count := range subjects {
				clone.Unfulfilled.Add(section, subject, count)
			}
		}
	}
	if data.Suggestions != nil {
		clone.Suggestions = make(models.Suggestions, len(data.Suggestions))
		for section, subjects := range data.Suggestions {
			inner := make(map[string]models.Suggestion, len(subjects))
			for subject, suggestion := range subjects {
				suggestion.Messages = append([]string(nil), suggestion.Messages...)
				inner[subject] = suggestion
			}
			clone.Suggestions[section] = inner
		}
	}
	return clone
}
