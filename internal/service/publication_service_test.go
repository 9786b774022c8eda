package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/serene-scheduler/internal/dto"
	"github.com/noah-isme/serene-scheduler/internal/models"
	appErrors "github.com/noah-isme/serene-scheduler/pkg/errors"
)

type userSyncerStub struct {
	rows []models.TimetableRow
	err  error
}

func (u *userSyncerStub) SyncFromTimetable(ctx context.Context, rows []models.TimetableRow) (int, error) {
	u.rows = rows
	if u.err != nil {
		return 0, u.err
	}
	return 3, nil
}

var publicationNow = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func newPublicationServiceForTest(store *stateStoreStub) (*PublicationService, *activityRecorderStub, *userSyncerStub) {
	activity := &activityRecorderStub{}
	users := &userSyncerStub{}
	svc := NewPublicationService(store, activity, users, nil, zap.NewNop())
	svc.now = fixedClock(publicationNow)
	return svc, activity, users
}

func TestPublicationServicePublish(t *testing.T) {
	store := storeWithPublished(nil)
	svc, activity, users := newPublicationServiceForTest(store)
	fixture := publishedFixture()

	resp, err := svc.Publish(context.Background(), dto.PublishRequest{
		InputData:     dto.TimetableRequest{TimetableInput: fixture.InputData},
		TimetableData: fixture.TimetableData,
	}, "admin")
	require.NoError(t, err)
	assert.Equal(t, publicationNow, resp.PublishedAt)
	assert.Equal(t, 3, resp.UsersSynced)
	assert.Len(t, users.rows, len(fixture.TimetableData.Timetable))
	assert.Equal(t, []models.ActivityType{models.ActivityTimetablePublished}, activity.kinds())

	doc, err := store.Published(context.Background())
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, fixture.TimetableData.Timetable, doc.BaseTimetableData.Timetable)
	assert.Empty(t, doc.TemporaryChanges)

	_, err = svc.Publish(context.Background(), dto.PublishRequest{
		InputData:     dto.TimetableRequest{TimetableInput: fixture.InputData},
		TimetableData: fixture.TimetableData,
	}, "admin")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrAlreadyPublished))
}

func TestPublicationServicePublishRequiresRows(t *testing.T) {
	svc, _, _ := newPublicationServiceForTest(storeWithPublished(nil))

	_, err := svc.Publish(context.Background(), dto.PublishRequest{
		InputData: dto.TimetableRequest{TimetableInput: weekdayInput()},
	}, "admin")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestPublicationServiceCurrentNotPublished(t *testing.T) {
	svc, _, _ := newPublicationServiceForTest(storeWithPublished(nil))

	_, err := svc.Current(context.Background())
	assert.ErrorIs(t, err, appErrors.ErrNotPublished)
}

func TestPublicationServiceCurrentDropsExpiredChanges(t *testing.T) {
	doc := publishedFixture()
	doc.TemporaryChanges = []models.TemporalModification{{
		Type:      models.ModificationCancellation,
		Teacher:   "Alice",
		Day:       "Mon",
		Slot:      "P1",
		AppliedAt: publicationNow.Add(-26 * time.Hour),
		ExpiresAt: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
	}}
	doc.TimetableData.Timetable[0] = mondayRow("S", "P1", "Physics", "Bob", "R1")
	doc.TimetableData.Timetable[1] = mondayFree("S", "P2")
	store := storeWithPublished(doc)
	svc, activity, _ := newPublicationServiceForTest(store)

	current, err := svc.Current(context.Background())
	require.NoError(t, err)
	assert.Empty(t, current.TemporaryChanges)
	assert.Equal(t, doc.BaseTimetableData.Timetable, current.TimetableData.Timetable)
	assert.Equal(t, publicationNow, current.PublishedAt)
	assert.Equal(t, 1, store.savePublishedCalls)
	assert.Equal(t, []models.ActivityType{models.ActivityChangesExpired}, activity.kinds())

	_, err = svc.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, store.savePublishedCalls)
}

func TestPublicationServiceRefreshExpiredWithoutTimetable(t *testing.T) {
	svc, _, _ := newPublicationServiceForTest(storeWithPublished(nil))

	expired, err := svc.RefreshExpired(context.Background())
	require.NoError(t, err)
	assert.Zero(t, expired)
}

func TestPublicationServiceApplyModification(t *testing.T) {
	store := storeWithPublished(publishedFixture())
	svc, _, _ := newPublicationServiceForTest(store)

	doc, err := svc.ApplyModification(context.Background(), models.TemporalModification{
		Type:      models.ModificationCancellation,
		Teacher:   "Alice",
		Day:       "Mon",
		Slot:      "P1",
		AppliedAt: publicationNow,
		ExpiresAt: publicationNow.Add(14 * time.Hour),
	})
	require.NoError(t, err)
	require.Len(t, doc.TemporaryChanges, 1)

	physics := rowFor(doc.TimetableData.Timetable, "S", "P1")
	assert.Equal(t, "Physics", physics.Subject)
	assert.Equal(t, "P2", physics.MovedFrom)
	assert.Equal(t, "Maths", rowFor(doc.TimetableData.Timetable, "T", "P3").Subject)
	assert.Equal(t, publishedFixture().BaseTimetableData.Timetable, doc.BaseTimetableData.Timetable)
	assert.Equal(t, 1, store.savePublishedCalls)
}

func TestPublicationServiceApplyModificationConflict(t *testing.T) {
	store := storeWithPublished(publishedFixture())
	svc, _, _ := newPublicationServiceForTest(store)

	_, err := svc.ApplyModification(context.Background(), models.TemporalModification{
		Type:       models.ModificationReslot,
		Teacher:    "Alice",
		Day:        "Mon",
		Slot:       "P1",
		TargetSlot: "P2",
		AppliedAt:  publicationNow,
		ExpiresAt:  publicationNow.Add(time.Hour),
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrReplayConflict.Code, appErr.Code)
	assert.Equal(t, 409, appErr.Status)
	assert.NotNil(t, appErr.Details)
	assert.Zero(t, store.savePublishedCalls)

	doc, err := store.Published(context.Background())
	require.NoError(t, err)
	assert.Empty(t, doc.TemporaryChanges)
}

func TestPublicationServiceDelete(t *testing.T) {
	store := storeWithPublished(publishedFixture())
	store.requests = []models.RescheduleRequest{{ID: "req-1", Status: models.RequestStatusPending}}
	svc, activity, _ := newPublicationServiceForTest(store)

	require.NoError(t, svc.Delete(context.Background(), "admin"))

	doc, err := store.Published(context.Background())
	require.NoError(t, err)
	assert.Nil(t, doc)
	assert.Empty(t, store.requests)
	assert.Equal(t, []models.ActivityType{models.ActivityTimetableDeleted}, activity.kinds())
}

func TestPublicationServiceViews(t *testing.T) {
	svc, _, _ := newPublicationServiceForTest(storeWithPublished(publishedFixture()))

	teacher, err := svc.TeacherView(context.Background(), " alice ")
	require.NoError(t, err)
	assert.Len(t, teacher.Timetable, 2)
	assert.Equal(t, []string{"Mon"}, teacher.Days)

	section, err := svc.SectionView(context.Background(), "t")
	require.NoError(t, err)
	assert.Len(t, section.Timetable, 4)

	_, err = svc.SectionView(context.Background(), "")
	assert.Error(t, err)
}
