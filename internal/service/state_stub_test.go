package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/noah-isme/serene-scheduler/internal/models"
)

// stateStoreStub keeps every dataset as JSON so tests see the same copy semantics as a real
// store.
type stateStoreStub struct {
	mu        sync.Mutex
	published []byte
	requests  []models.RescheduleRequest
	activity  []models.ActivityEntry
	users     []models.User

	savePublishedCalls int
	saveRequestsCalls  int
	saveUsersCalls     int
	loadErr            error
	saveErr            error
}

func (s *stateStoreStub) Published(ctx context.Context) (*models.PublishedTimetable, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	if s.published == nil {
		return nil, nil
	}
	var doc *models.PublishedTimetable
	if err := json.Unmarshal(s.published, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *stateStoreStub) SavePublished(ctx context.Context, doc *models.PublishedTimetable) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.savePublishedCalls++
	if doc == nil {
		s.published = nil
		return nil
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	s.published = raw
	return nil
}

func (s *stateStoreStub) Requests(ctx context.Context) ([]models.RescheduleRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return append([]models.RescheduleRequest{}, s.requests...), nil
}

func (s *stateStoreStub) SaveRequests(ctx context.Context, requests []models.RescheduleRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saveRequestsCalls++
	s.requests = append([]models.RescheduleRequest{}, requests...)
	return nil
}

func (s *stateStoreStub) Activity(ctx context.Context) ([]models.ActivityEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ActivityEntry{}, s.activity...), nil
}

func (s *stateStoreStub) SaveActivity(ctx context.Context, entries []models.ActivityEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activity = append([]models.ActivityEntry{}, entries...)
	return nil
}

func (s *stateStoreStub) Users(ctx context.Context) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return append([]models.User{}, s.users...), nil
}

func (s *stateStoreStub) SaveUsers(ctx context.Context, users []models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saveUsersCalls++
	s.users = append([]models.User{}, users...)
	return nil
}

type activityRecorderStub struct {
	mu      sync.Mutex
	entries []models.ActivityType
}

func (a *activityRecorderStub) Record(ctx context.Context, kind models.ActivityType, message string, data map[string]interface{}) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, kind)
	return nil
}

func (a *activityRecorderStub) kinds() []models.ActivityType {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]models.ActivityType(nil), a.entries...)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func weekdayInput() models.TimetableInput {
	return models.TimetableInput{
		Sections: []models.Section{{Name: "S"}, {Name: "T"}},
		Days:     []string{"Mon"},
		Slots:    []string{"P1", "P2", "P3", "P4"},
	}
}

func mondayRow(section, slot, subject, teacher, room string) models.TimetableRow {
	return models.TimetableRow{Section: section, Day: "Mon", Slot: slot, Subject: subject, Teacher: teacher, Room: room}
}

func mondayFree(section, slot string) models.TimetableRow {
	return models.TimetableRow{Section: section, Day: "Mon", Slot: slot, Subject: "FREE"}
}

// publishedFixture has Alice teaching S at P1 and T at P3, Bob teaching S at P2.
func publishedFixture() *models.PublishedTimetable {
	rows := []models.TimetableRow{
		mondayRow("S", "P1", "Maths", "Alice", "R1"),
		mondayRow("S", "P2", "Physics", "Bob", "R1"),
		mondayFree("S", "P3"),
		mondayFree("S", "P4"),
		mondayFree("T", "P1"),
		mondayFree("T", "P2"),
		mondayRow("T", "P3", "Maths", "Alice", "R2"),
		mondayFree("T", "P4"),
	}
	return &models.PublishedTimetable{
		InputData:         weekdayInput(),
		TimetableData:     models.TimetableData{Timetable: append([]models.TimetableRow(nil), rows...)},
		BaseTimetableData: models.TimetableData{Timetable: append([]models.TimetableRow(nil), rows...)},
		TemporaryChanges:  []models.TemporalModification{},
		PublishedAt:       time.Date(2026, 3, 2, 7, 0, 0, 0, time.UTC),
		PublishedBy:       "admin",
	}
}

func storeWithPublished(doc *models.PublishedTimetable) *stateStoreStub {
	store := &stateStoreStub{}
	if doc != nil {
		raw, err := json.Marshal(doc)
		if err != nil {
			panic(err)
		}
		store.published = raw
	}
	return store
}

func rowFor(rows []models.TimetableRow, section, slot string) models.TimetableRow {
	for _, row := range rows {
		if row.Section == section && row.Slot == slot {
			return row
		}
	}
	return models.TimetableRow{}
}
