package scheduler

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/serene-scheduler/internal/models"
)

func overlayInput(sections ...string) models.TimetableInput {
	input := models.TimetableInput{
		Days:  []string{"Mon"},
		Slots: []string{"P1", "P2", "P3", "P4"},
	}
	for _, name := range sections {
		input.Sections = append(input.Sections, models.Section{Name: name})
	}
	return input
}

func theoryRow(section, slot, subject, teacher, room string) models.TimetableRow {
	return models.TimetableRow{Section: section, Day: "Mon", Slot: slot, Subject: subject, Teacher: teacher, Room: room}
}

func freeRow(section, slot string) models.TimetableRow {
	return models.TimetableRow{Section: section, Day: "Mon", Slot: slot, Subject: FreeSubject}
}

func rowAt(t *testing.T, rows []models.TimetableRow, section, slot string) models.TimetableRow {
	t.Helper()
	for _, row := range rows {
		if row.Section == section && row.Slot == slot {
			return row
		}
	}
	t.Fatalf("no row for %s %s", section, slot)
	return models.TimetableRow{}
}

func TestOverlayEmptyReplayMatchesBase(t *testing.T) {
	input := weekInput()
	outcome, err := NewGenerator(nil).Generate(input)
	require.NoError(t, err)

	rebuilt, failures := NewOverlay(input, nil).Rebuild(outcome.Rows, nil)
	assert.Empty(t, failures)
	assert.Equal(t, outcome.Rows, rebuilt)
}

func TestOverlayCancellationRemovesOnlyTarget(t *testing.T) {
	base := []models.TimetableRow{
		theoryRow("S", "P1", "Maths", "Alice", "R1"),
		theoryRow("S", "P2", "Physics", "Bob", "R1"),
		theoryRow("S", "P3", "Chemistry", "Carol", "R1"),
		freeRow("S", "P4"),
		theoryRow("T", "P1", "English", "Frank", "R2"),
	}
	mod := models.TemporalModification{Type: models.ModificationCancellation, Teacher: "alice", Day: "Mon", Slot: "P1"}

	rows, failures := NewOverlay(overlayInput("S", "T"), nil).Rebuild(base, []models.TemporalModification{mod})
	require.Empty(t, failures)

	for _, row := range rows {
		assert.NotEqual(t, "Alice", row.Teacher)
	}
	assert.Len(t, occupying(rows), 3)

	physics := rowAt(t, rows, "S", "P1")
	assert.Equal(t, "Physics", physics.Subject)
	assert.Equal(t, "P2", physics.MovedFrom)
	assert.True(t, physics.Moved)

	chemistry := rowAt(t, rows, "S", "P2")
	assert.Equal(t, "Chemistry", chemistry.Subject)
	assert.Equal(t, "P3", chemistry.MovedFrom)

	assert.Equal(t, FreeSubject, rowAt(t, rows, "S", "P3").Subject)
	assert.Equal(t, "English", rowAt(t, rows, "T", "P1").Subject)
	assert.False(t, rowAt(t, rows, "T", "P1").Moved)
}

func TestOverlayCancellationDropsWholeLabBlock(t *testing.T) {
	lab := func(slot string) models.TimetableRow {
		return models.TimetableRow{Section: "S", Day: "Mon", Slot: slot, Subject: "Chem Lab", Teacher: "Carol", Room: "L1", Group: "G1", Duration: 2}
	}
	base := []models.TimetableRow{
		lab("P1"),
		lab("P2"),
		theoryRow("S", "P3", "Maths", "Alice", "R1"),
		freeRow("S", "P4"),
	}
	mod := models.TemporalModification{Type: models.ModificationCancellation, Teacher: "Carol", Day: "Mon", Slot: "P1"}

	rows, failures := NewOverlay(overlayInput("S"), nil).Rebuild(base, []models.TemporalModification{mod})
	require.Empty(t, failures)

	for _, row := range rows {
		assert.NotEqual(t, "Chem Lab", row.Subject)
	}
	maths := rowAt(t, rows, "S", "P1")
	assert.Equal(t, "Maths", maths.Subject)
	assert.Equal(t, "P3", maths.MovedFrom)
}

func TestOverlayCompactionMovesLabBlock(t *testing.T) {
	lab := func(slot string) models.TimetableRow {
		return models.TimetableRow{Section: "S", Day: "Mon", Slot: slot, Subject: "Chem Lab", Teacher: "Carol", Room: "L1", Group: "G1", Duration: 2}
	}
	base := []models.TimetableRow{
		theoryRow("S", "P1", "Maths", "Alice", "R1"),
		freeRow("S", "P2"),
		lab("P3"),
		lab("P4"),
	}
	mod := models.TemporalModification{Type: models.ModificationCancellation, Teacher: "Alice", Day: "Mon", Slot: "P1"}

	rows, failures := NewOverlay(overlayInput("S"), nil).Rebuild(base, []models.TemporalModification{mod})
	require.Empty(t, failures)

	first := rowAt(t, rows, "S", "P1")
	second := rowAt(t, rows, "S", "P2")
	assert.Equal(t, "Chem Lab", first.Subject)
	assert.Equal(t, "P3", first.MovedFrom)
	assert.Equal(t, "Chem Lab", second.Subject)
	assert.Equal(t, "P4", second.MovedFrom)
	assert.Equal(t, FreeSubject, rowAt(t, rows, "S", "P3").Subject)
}

func TestOverlayCompactionPullsAfternoonLabBeforeLunch(t *testing.T) {
	input := overlayInput("S")
	input.Slots = []string{"P1", "P2", models.DefaultLunchSlot, "P3", "P4"}
	lab := func(slot string) models.TimetableRow {
		return models.TimetableRow{Section: "S", Day: "Mon", Slot: slot, Subject: "Chem Lab", Teacher: "Carol", Room: "L1", Group: "G1", Duration: 2}
	}
	base := []models.TimetableRow{
		theoryRow("S", "P1", "Maths", "Alice", "R1"),
		freeRow("S", "P2"),
		{Section: "S", Day: "Mon", Slot: models.DefaultLunchSlot, Subject: LunchSubject},
		lab("P3"),
		lab("P4"),
	}
	mod := models.TemporalModification{Type: models.ModificationCancellation, Teacher: "Alice", Day: "Mon", Slot: "P1"}

	rows, failures := NewOverlay(input, nil).Rebuild(base, []models.TemporalModification{mod})
	require.Empty(t, failures)

	first := rowAt(t, rows, "S", "P1")
	second := rowAt(t, rows, "S", "P2")
	assert.Equal(t, "Chem Lab", first.Subject)
	assert.Equal(t, "P3", first.MovedFrom)
	assert.Equal(t, "Chem Lab", second.Subject)
	assert.Equal(t, "P4", second.MovedFrom)
	assert.Equal(t, LunchSubject, rowAt(t, rows, "S", models.DefaultLunchSlot).Subject)
	assert.Equal(t, FreeSubject, rowAt(t, rows, "S", "P3").Subject)
	assert.Equal(t, FreeSubject, rowAt(t, rows, "S", "P4").Subject)
}

func TestOverlayCompactionKeepsLabOffLunch(t *testing.T) {
	input := overlayInput("S")
	input.Slots = []string{"P1", "P2", models.DefaultLunchSlot, "P3", "P4"}
	lab := func(slot string) models.TimetableRow {
		return models.TimetableRow{Section: "S", Day: "Mon", Slot: slot, Subject: "Chem Lab", Teacher: "Carol", Room: "L1", Group: "G1", Duration: 2}
	}
	base := []models.TimetableRow{
		theoryRow("S", "P1", "Maths", "Alice", "R1"),
		theoryRow("S", "P2", "Physics", "Bob", "R1"),
		{Section: "S", Day: "Mon", Slot: models.DefaultLunchSlot, Subject: LunchSubject},
		lab("P3"),
		lab("P4"),
	}
	mod := models.TemporalModification{Type: models.ModificationCancellation, Teacher: "Bob", Day: "Mon", Slot: "P2"}

	rows, failures := NewOverlay(input, nil).Rebuild(base, []models.TemporalModification{mod})
	require.Empty(t, failures)

	assert.Equal(t, FreeSubject, rowAt(t, rows, "S", "P2").Subject)
	assert.Equal(t, "Chem Lab", rowAt(t, rows, "S", "P3").Subject)
	assert.Empty(t, rowAt(t, rows, "S", "P3").MovedFrom)
	assert.Equal(t, "Chem Lab", rowAt(t, rows, "S", "P4").Subject)
}

func TestOverlayCompactionMovesLabWithoutTeacher(t *testing.T) {
	lab := func(slot string) models.TimetableRow {
		return models.TimetableRow{Section: "S", Day: "Mon", Slot: slot, Subject: "Chem Lab", Room: "L1", Group: "G1", Duration: 2}
	}
	base := []models.TimetableRow{
		theoryRow("S", "P1", "Maths", "Alice", "R1"),
		freeRow("S", "P2"),
		lab("P3"),
		lab("P4"),
	}
	mod := models.TemporalModification{Type: models.ModificationCancellation, Teacher: "Alice", Day: "Mon", Slot: "P1"}

	rows, failures := NewOverlay(overlayInput("S"), nil).Rebuild(base, []models.TemporalModification{mod})
	require.Empty(t, failures)

	first := rowAt(t, rows, "S", "P1")
	assert.Equal(t, "Chem Lab", first.Subject)
	assert.Empty(t, first.Teacher)
	assert.Equal(t, "P3", first.MovedFrom)
	assert.Equal(t, "Chem Lab", rowAt(t, rows, "S", "P2").Subject)
	assert.Equal(t, FreeSubject, rowAt(t, rows, "S", "P4").Subject)
}

func TestOverlayCompactionLeavesUnscheduledMarker(t *testing.T) {
	base := []models.TimetableRow{
		theoryRow("S", "P1", "Maths", "Alice", "R1"),
		freeRow("S", "P2"),
		freeRow("S", "P3"),
		{Section: "S", Day: "Mon", Slot: "P4", Subject: "Chem Lab" + UnscheduledSuffix, Group: "G1"},
	}
	mod := models.TemporalModification{Type: models.ModificationCancellation, Teacher: "Alice", Day: "Mon", Slot: "P1"}

	rows, failures := NewOverlay(overlayInput("S"), nil).Rebuild(base, []models.TemporalModification{mod})
	require.Empty(t, failures)

	marker := rowAt(t, rows, "S", "P4")
	assert.Equal(t, "Chem Lab"+UnscheduledSuffix, marker.Subject)
	assert.Empty(t, marker.MovedFrom)
	assert.Equal(t, FreeSubject, rowAt(t, rows, "S", "P1").Subject)
}

func TestOverlayReslotMovesTheory(t *testing.T) {
	base := []models.TimetableRow{
		theoryRow("S", "P1", "Maths", "Alice", "R1"),
		freeRow("S", "P2"),
		theoryRow("S", "P3", "Physics", "Bob", "R1"),
		freeRow("S", "P4"),
	}
	mod := models.TemporalModification{Type: models.ModificationReslot, Teacher: "Alice", Day: "Mon", Slot: "P1", TargetSlot: "P2"}

	rows, err := NewOverlay(overlayInput("S"), nil).Apply(base, mod)
	require.NoError(t, err)

	maths := rowAt(t, rows, "S", "P2")
	assert.Equal(t, "Maths", maths.Subject)
	assert.Equal(t, "P1", maths.MovedFrom)

	physics := rowAt(t, rows, "S", "P1")
	assert.Equal(t, "Physics", physics.Subject)
	assert.Equal(t, "P3", physics.MovedFrom)
}

func TestOverlayReslotStaysPinnedThroughLaterCancellation(t *testing.T) {
	base := []models.TimetableRow{
		theoryRow("S", "P1", "Maths", "Alice", "R1"),
		theoryRow("S", "P2", "Physics", "Bob", "R1"),
		freeRow("S", "P3"),
		freeRow("S", "P4"),
	}
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	mods := []models.TemporalModification{
		{Type: models.ModificationReslot, Teacher: "Alice", Day: "Mon", Slot: "P1", TargetSlot: "P3", AppliedAt: now},
		{Type: models.ModificationCancellation, Teacher: "Bob", Day: "Mon", Slot: "P1", AppliedAt: now.Add(time.Minute)},
	}

	rows, failures := NewOverlay(overlayInput("S"), nil).Rebuild(base, mods)
	require.Empty(t, failures)

	maths := rowAt(t, rows, "S", "P3")
	assert.Equal(t, "Maths", maths.Subject)
	assert.Equal(t, "P1", maths.MovedFrom)
	assert.Equal(t, FreeSubject, rowAt(t, rows, "S", "P1").Subject)
	assert.Equal(t, FreeSubject, rowAt(t, rows, "S", "P2").Subject)
}

func TestOverlayReslotIntoOccupiedSlotConflicts(t *testing.T) {
	base := []models.TimetableRow{
		theoryRow("S", "P1", "Maths", "Alice", "R1"),
		theoryRow("S", "P2", "Physics", "Bob", "R1"),
		freeRow("S", "P3"),
		freeRow("S", "P4"),
	}
	mod := models.TemporalModification{Type: models.ModificationReslot, Teacher: "Alice", Day: "Mon", Slot: "P1", TargetSlot: "P2"}

	rows, err := NewOverlay(overlayInput("S"), nil).Apply(base, mod)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrReplayConflict))
	var conflictErr *ReplayConflictError
	require.True(t, errors.As(err, &conflictErr))
	assert.Equal(t, "P1", conflictErr.Slot)
	assert.Equal(t, base, rows)
}

func TestOverlayReslotRejectsLab(t *testing.T) {
	base := []models.TimetableRow{
		{Section: "S", Day: "Mon", Slot: "P1", Subject: "Chem Lab", Teacher: "Carol", Room: "L1", Group: "G1", Duration: 1},
		freeRow("S", "P2"),
	}
	mod := models.TemporalModification{Type: models.ModificationReslot, Teacher: "Carol", Day: "Mon", Slot: "P1", TargetSlot: "P2"}

	_, err := NewOverlay(overlayInput("S"), nil).Apply(base, mod)
	assert.ErrorIs(t, err, ErrReplayConflict)
	assert.ErrorIs(t, err, ErrLabNotReschedulable)
}

func TestOverlayRebuildSkipsConflictsInOrder(t *testing.T) {
	base := []models.TimetableRow{
		theoryRow("S", "P1", "Maths", "Alice", "R1"),
		theoryRow("S", "P2", "Physics", "Bob", "R1"),
		freeRow("S", "P3"),
		freeRow("S", "P4"),
	}
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	mods := []models.TemporalModification{
		{Type: models.ModificationReslot, Teacher: "Alice", Day: "Mon", Slot: "P1", TargetSlot: "P3", AppliedAt: now.Add(time.Minute)},
		{Type: models.ModificationReslot, Teacher: "Bob", Day: "Mon", Slot: "P2", TargetSlot: "P3", AppliedAt: now},
	}

	rows, failures := NewOverlay(overlayInput("S"), nil).Rebuild(base, mods)
	require.Len(t, failures, 1)
	assert.Equal(t, "Alice", failures[0].Modification.Teacher)
	assert.Equal(t, "Physics", rowAt(t, rows, "S", "P3").Subject)
	assert.Equal(t, "Maths", rowAt(t, rows, "S", "P1").Subject)
}

func TestOverlayAvailableTheorySlots(t *testing.T) {
	base := []models.TimetableRow{
		theoryRow("S", "P1", "Maths", "Alice", "R1"),
		freeRow("S", "P2"),
		theoryRow("S", "P3", "Physics", "Bob", "R1"),
		freeRow("S", "P4"),
		freeRow("T", "P1"),
		theoryRow("T", "P2", "Maths", "Alice", "R2"),
		freeRow("T", "P3"),
		freeRow("T", "P4"),
	}
	overlay := NewOverlay(overlayInput("S", "T"), nil)

	slots, err := overlay.AvailableTheorySlots(base, "alice", "Mon", "P1")
	require.NoError(t, err)
	assert.Equal(t, []string{"P4"}, slots)

	_, err = overlay.AvailableTheorySlots(base, "Alice", "Mon", "P3")
	assert.ErrorIs(t, err, ErrAssignmentNotFound)
}

func TestActiveModificationsDropsExpired(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	mods := []models.TemporalModification{
		{Teacher: "Alice", ExpiresAt: now.Add(-time.Second)},
		{Teacher: "Bob", ExpiresAt: now.Add(time.Hour)},
		{Teacher: "Carol", ExpiresAt: now},
	}

	active, expired := ActiveModifications(mods, now)
	require.Len(t, active, 1)
	assert.Equal(t, "Bob", active[0].Teacher)
	assert.Len(t, expired, 2)
}

func TestNextMidnightUTC(t *testing.T) {
	local := time.FixedZone("WIB", 7*3600)
	at := time.Date(2026, 3, 2, 23, 30, 0, 0, local)
	assert.Equal(t, time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC), NextMidnightUTC(at))
	assert.Equal(t, time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC), NextMidnightUTC(time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)))
}
