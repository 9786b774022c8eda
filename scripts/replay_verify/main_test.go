package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/serene-scheduler/internal/models"
	"github.com/noah-isme/serene-scheduler/internal/scheduler"
)

var verifyNow = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

func verifyDoc(mods ...models.TemporalModification) *models.PublishedTimetable {
	row := func(slot, subject, teacher string) models.TimetableRow {
		return models.TimetableRow{Section: "S", Day: "Mon", Slot: slot, Subject: subject, Teacher: teacher, Room: "R1"}
	}
	base := []models.TimetableRow{
		row("P1", "Maths", "Alice"),
		row("P2", "Physics", "Bob"),
		{Section: "S", Day: "Mon", Slot: "P3", Subject: scheduler.FreeSubject},
	}
	return &models.PublishedTimetable{
		InputData: models.TimetableInput{
			Sections: []models.Section{{Name: "S"}},
			Days:     []string{"Mon"},
			Slots:    []string{"P1", "P2", "P3"},
		},
		BaseTimetableData: models.TimetableData{Timetable: base},
		TimetableData:     models.TimetableData{Timetable: append([]models.TimetableRow(nil), base...)},
		TemporaryChanges:  mods,
	}
}

func cancelAlice(expires time.Time) models.TemporalModification {
	return models.TemporalModification{
		Type:      models.ModificationCancellation,
		Teacher:   "Alice",
		Day:       "Mon",
		Slot:      "P1",
		AppliedAt: verifyNow.Add(-time.Hour),
		ExpiresAt: expires,
	}
}

func TestVerifyIgnoresExpiredModifications(t *testing.T) {
	res := verify(verifyDoc(cancelAlice(verifyNow.Add(-time.Minute))), verifyNow)
	assert.True(t, res.Match())
	assert.Equal(t, 1, res.Expired)
	assert.Equal(t, 0, res.Active)
}

func TestVerifyFlagsStaleEffectiveSchedule(t *testing.T) {
	res := verify(verifyDoc(cancelAlice(verifyNow.Add(12*time.Hour))), verifyNow)
	require.False(t, res.Match())
	assert.Contains(t, res.Missing, "S|Mon|P1|Maths|Alice|R1|")
}

func TestVerifyMatchesReplayedSchedule(t *testing.T) {
	doc := verifyDoc(cancelAlice(verifyNow.Add(12 * time.Hour)))
	rebuilt, failures := scheduler.NewOverlay(doc.InputData, nil).Rebuild(doc.BaseTimetableData.Timetable, doc.TemporaryChanges)
	require.Empty(t, failures)
	doc.TimetableData.Timetable = rebuilt

	res := verify(doc, verifyNow)
	assert.True(t, res.Match())
	assert.Equal(t, 1, res.Active)
}

func TestDiffRowsCountsDuplicates(t *testing.T) {
	row := models.TimetableRow{Section: "S", Day: "Mon", Slot: "P1", Subject: "Lab", Group: "G1"}
	missing, unexpected := diffRows([]models.TimetableRow{row, row}, []models.TimetableRow{row})
	assert.Len(t, missing, 1)
	assert.Empty(t, unexpected)
}
