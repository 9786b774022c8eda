package repository

import (
	"context"
	"time"

	"github.com/noah-isme/serene-scheduler/internal/models"
)

// DatasetStore is the named-document storage contract shared by every driver.
type DatasetStore interface {
	Load(ctx context.Context, name string, dest interface{}) (bool, error)
	Save(ctx context.Context, name string, value interface{}) error
}

// DatasetObserver receives the latency of every store operation.
type DatasetObserver interface {
	ObserveDataset(op, dataset string, duration time.Duration)
}

// StateRepository exposes the typed datasets on top of a DatasetStore. It holds no state of
// its own: every call reads or writes the store.
type StateRepository struct {
	store    DatasetStore
	observer DatasetObserver
}

// NewStateRepository constructs the repository. observer may be nil.
func NewStateRepository(store DatasetStore, observer DatasetObserver) *StateRepository {
	return &StateRepository{store: store, observer: observer}
}

func (r *StateRepository) load(ctx context.Context, name string, dest interface{}) error {
	start := time.Now()
	_, err := r.store.Load(ctx, name, dest)
	if r.observer != nil {
		r.observer.ObserveDataset("load", name, time.Since(start))
	}
	return err
}

func (r *StateRepository) save(ctx context.Context, name string, value interface{}) error {
	start := time.Now()
	err := r.store.Save(ctx, name, value)
	if r.observer != nil {
		r.observer.ObserveDataset("save", name, time.Since(start))
	}
	return err
}

// Published returns the published timetable or nil when none exists.
func (r *StateRepository) Published(ctx context.Context) (*models.PublishedTimetable, error) {
	var doc *models.PublishedTimetable
	if err := r.load(ctx, models.DatasetPublishedTimetable, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// SavePublished stores the document; nil clears it.
func (r *StateRepository) SavePublished(ctx context.Context, doc *models.PublishedTimetable) error {
	return r.save(ctx, models.DatasetPublishedTimetable, doc)
}

func (r *StateRepository) Requests(ctx context.Context) ([]models.RescheduleRequest, error) {
	requests := make([]models.RescheduleRequest, 0)
	if err := r.load(ctx, models.DatasetRescheduleRequests, &requests); err != nil {
		return nil, err
	}
	return requests, nil
}

func (r *StateRepository) SaveRequests(ctx context.Context, requests []models.RescheduleRequest) error {
	if requests == nil {
		requests = []models.RescheduleRequest{}
	}
	return r.save(ctx, models.DatasetRescheduleRequests, requests)
}

func (r *StateRepository) Activity(ctx context.Context) ([]models.ActivityEntry, error) {
	entries := make([]models.ActivityEntry, 0)
	if err := r.load(ctx, models.DatasetActivityLog, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *StateRepository) SaveActivity(ctx context.Context, entries []models.ActivityEntry) error {
	if entries == nil {
		entries = []models.ActivityEntry{}
	}
	return r.save(ctx, models.DatasetActivityLog, entries)
}

func (r *StateRepository) Users(ctx context.Context) ([]models.User, error) {
	users := make([]models.User, 0)
	if err := r.load(ctx, models.DatasetUsers, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (r *StateRepository) SaveUsers(ctx context.Context, users []models.User) error {
	if users == nil {
		users = []models.User{}
	}
	return r.save(ctx, models.DatasetUsers, users)
}
