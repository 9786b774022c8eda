package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/serene-scheduler/internal/models"
	"github.com/noah-isme/serene-scheduler/internal/scheduler"
	appErrors "github.com/noah-isme/serene-scheduler/pkg/errors"
)

type activityStore interface {
	Activity(ctx context.Context) ([]models.ActivityEntry, error)
	SaveActivity(ctx context.Context, entries []models.ActivityEntry) error
	Requests(ctx context.Context) ([]models.RescheduleRequest, error)
	Published(ctx context.Context) (*models.PublishedTimetable, error)
}

// ActivityService keeps a short rolling log of administrative events.
type ActivityService struct {
	store     activityStore
	retention time.Duration
	logger    *zap.Logger
	now       func() time.Time
	mu        sync.Mutex
}

// NewActivityService constructs the service. Retention defaults to two days.
func NewActivityService(store activityStore, retention time.Duration, logger *zap.Logger) *ActivityService {
	if retention <= 0 {
		retention = 48 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActivityService{
		store:     store,
		retention: retention,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Record appends an entry and trims entries older than the retention window.
func (s *ActivityService) Record(ctx context.Context, kind models.ActivityType, message string, data map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.store.Activity(ctx)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load activity log")
	}
	now := s.now()
	entries = append(entries, models.ActivityEntry{
		ID:        uuid.NewString(),
		Type:      kind,
		Message:   message,
		Data:      data,
		Timestamp: now,
	})
	if err := s.store.SaveActivity(ctx, s.retain(entries, now)); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save activity log")
	}
	return nil
}

func (s *ActivityService) retain(entries []models.ActivityEntry, now time.Time) []models.ActivityEntry {
	cutoff := now.Add(-s.retention)
	kept := entries[:0]
	for _, entry := range entries {
		if !entry.Timestamp.Before(cutoff) {
			kept = append(kept, entry)
		}
	}
	return kept
}

// Feed returns today's events, newest first, with pending request counts.
func (s *ActivityService) Feed(ctx context.Context) (*models.ActivityFeed, error) {
	entries, err := s.store.Activity(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load activity log")
	}
	requests, err := s.store.Requests(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load reschedule requests")
	}

	now := s.now()
	year, month, day := now.Date()
	feed := &models.ActivityFeed{Events: []models.ActivityEntry{}, PendingByType: map[string]int{}}
	for _, entry := range entries {
		y, m, d := entry.Timestamp.UTC().Date()
		if y == year && m == month && d == day {
			feed.Events = append(feed.Events, entry)
		}
	}
	sort.SliceStable(feed.Events, func(i, j int) bool {
		return feed.Events[i].Timestamp.After(feed.Events[j].Timestamp)
	})

	for _, req := range requests {
		if !req.Pending() {
			continue
		}
		feed.PendingRequests++
		feed.PendingByType[string(req.Type)]++
	}

	doc, err := s.store.Published(ctx)
	if err != nil {
		s.logger.Warn("failed to load published timetable for activity feed", zap.Error(err))
	} else if doc != nil {
		active, _ := scheduler.ActiveModifications(doc.TemporaryChanges, now)
		feed.ActiveChanges = len(active)
	}
	return feed, nil
}

func recordActivity(ctx context.Context, recorder activityRecorder, logger *zap.Logger, kind models.ActivityType, message string, data map[string]interface{}) {
	if recorder == nil {
		return
	}
	if err := recorder.Record(ctx, kind, message, data); err != nil {
		logger.Warn("failed to record activity", zap.String("type", string(kind)), zap.Error(err))
	}
}
