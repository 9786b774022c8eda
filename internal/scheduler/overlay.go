package scheduler

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/serene-scheduler/internal/models"
)

var (
	// ErrReplayConflict matches every ReplayConflictError.
	ErrReplayConflict = errors.New("replay conflict")
	// ErrAssignmentNotFound reports that the teacher has no entry in the requested slot.
	ErrAssignmentNotFound = errors.New("no assignment found for teacher in slot")
	// ErrLabNotReschedulable reports an attempt to move a lab session.
	ErrLabNotReschedulable = errors.New("only theory sessions can be rescheduled")
)

// ReplayConflictError describes a modification that cannot be applied to the schedule.
type ReplayConflictError struct {
	Type    models.ModificationType
	Teacher string
	Day     string
	Slot    string
	Reason  string
	Err     error
}

func (e *ReplayConflictError) Error() string {
	return fmt.Sprintf("%s for %s on %s %s: %s", e.Type, e.Teacher, e.Day, e.Slot, e.Reason)
}

func (e *ReplayConflictError) Is(target error) bool {
	return target == ErrReplayConflict
}

func (e *ReplayConflictError) Unwrap() error {
	return e.Err
}

func conflict(mod models.TemporalModification, reason string, cause error) error {
	return &ReplayConflictError{
		Type:    mod.Type,
		Teacher: mod.Teacher,
		Day:     mod.Day,
		Slot:    mod.Slot,
		Reason:  reason,
		Err:     cause,
	}
}

// ReplayFailure records a modification skipped during a rebuild.
type ReplayFailure struct {
	Modification models.TemporalModification
	Err          error
}

// Overlay replays temporal modifications on top of an immutable base snapshot.
type Overlay struct {
	layout      *Layout
	sections    []string
	unavailable unavailability
	logger      *zap.Logger
}

// NewOverlay binds the overlay to the layout and declared unavailability of a published input.
func NewOverlay(input models.TimetableInput, logger *zap.Logger) *Overlay {
	if logger == nil {
		logger = zap.NewNop()
	}
	layout := NewLayout(input.Days, input.Slots, input.Lunch())
	sections := make([]string, len(input.Sections))
	for i, section := range input.Sections {
		sections[i] = section.Name
	}
	return &Overlay{
		layout:      layout,
		sections:    sections,
		unavailable: buildUnavailability(layout, input.TeacherUnavailability),
		logger:      logger,
	}
}

// ActiveModifications splits mods into those still active at now and those expired.
func ActiveModifications(mods []models.TemporalModification, now time.Time) (active, expired []models.TemporalModification) {
	for _, mod := range mods {
		if mod.Expired(now) {
			expired = append(expired, mod)
			continue
		}
		active = append(active, mod)
	}
	return active, expired
}

// NextMidnightUTC returns the first UTC midnight strictly after t.
func NextMidnightUTC(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
}

// Rebuild replays mods, ordered by AppliedAt, on a copy of base. Modifications that conflict are
// skipped and reported; base is never changed.
func (o *Overlay) Rebuild(base []models.TimetableRow, mods []models.TemporalModification) ([]models.TimetableRow, []ReplayFailure) {
	ordered := append([]models.TemporalModification(nil), mods...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].AppliedAt.Before(ordered[j].AppliedAt)
	})

	state := newReplay(o, GridFromRows(o.layout, o.sections, base))
	var failures []ReplayFailure
	for _, mod := range ordered {
		if err := state.apply(mod); err != nil {
			o.logger.Warn("skipping modification during rebuild",
				zap.String("type", string(mod.Type)),
				zap.String("teacher", mod.Teacher),
				zap.String("day", mod.Day),
				zap.String("slot", mod.Slot),
				zap.Error(err))
			failures = append(failures, ReplayFailure{Modification: mod, Err: err})
		}
	}
	return state.grid.Rows(), failures
}

// Apply applies a single modification to current. On conflict current is returned unchanged
// together with the error.
func (o *Overlay) Apply(current []models.TimetableRow, mod models.TemporalModification) ([]models.TimetableRow, error) {
	state := newReplay(o, GridFromRows(o.layout, o.sections, current))
	if err := state.apply(mod); err != nil {
		return current, err
	}
	return state.grid.Rows(), nil
}

// FindAssignment returns the teacher's entry at (day, slot).
func (o *Overlay) FindAssignment(current []models.TimetableRow, teacher, day, slot string) (models.TimetableRow, error) {
	for _, row := range current {
		if row.Day == day && row.Slot == slot && row.Subject != FreeSubject && row.Subject != LunchSubject && sameTeacher(row.Teacher, teacher) {
			return row, nil
		}
	}
	return models.TimetableRow{}, ErrAssignmentNotFound
}

// AvailableTheorySlots lists the teaching slots of day where the teacher's theory entry at slot
// could move: free for the section, the teacher and the room.
func (o *Overlay) AvailableTheorySlots(current []models.TimetableRow, teacher, day, slot string) ([]string, error) {
	grid := GridFromRows(o.layout, o.sections, current)
	dayIdx, okDay := o.layout.DayIndex(day)
	from, okSlot := o.layout.SlotIndex(slot)
	if !okDay || !okSlot {
		return nil, ErrAssignmentNotFound
	}
	sec, entry, found := findTeacherEntry(grid, teacher, dayIdx, from)
	if !found {
		return nil, ErrAssignmentNotFound
	}
	if entry.Kind == KindLab {
		return nil, ErrLabNotReschedulable
	}
	usage := grid.Usage()
	available := make([]string, 0)
	for _, candidate := range o.layout.TeachingSlots() {
		if candidate == from || grid.Occupied(sec, dayIdx, candidate) {
			continue
		}
		if usage.TeacherBusy(teacher, dayIdx, candidate) || usage.RoomBusy(entry.Room, dayIdx, candidate) {
			continue
		}
		if o.unavailable.has(teacher, dayIdx, candidate) {
			continue
		}
		available = append(available, o.layout.Slots[candidate])
	}
	return available, nil
}

func findTeacherEntry(grid *Grid, teacher string, day, slot int) (int, Placement, bool) {
	for sec := range grid.cells {
		for _, entry := range grid.cells[sec][day][slot] {
			if entry.Occupies() && sameTeacher(entry.Teacher, teacher) {
				return sec, entry, true
			}
		}
	}
	return 0, Placement{}, false
}

// replay is the mutable state of one rebuild. Cancelled slots accumulate as unavailability so
// later compaction never moves the teacher back into them. Pinned cells hold reslotted entries
// that compaction leaves in place.
type replay struct {
	overlay   *Overlay
	grid      *Grid
	cancelled unavailability
	pinned    map[cellKey]struct{}
}

type cellKey struct {
	sec, day, slot int
}

func newReplay(o *Overlay, grid *Grid) *replay {
	return &replay{overlay: o, grid: grid, cancelled: make(unavailability), pinned: make(map[cellKey]struct{})}
}

func (r *replay) isPinned(sec, day, slot int) bool {
	_, ok := r.pinned[cellKey{sec, day, slot}]
	return ok
}

func (r *replay) blocked(teacher string, day, slot int) bool {
	return r.overlay.unavailable.has(teacher, day, slot) || r.cancelled.has(teacher, day, slot)
}

// apply mutates a deep copy and swaps it in only on success.
func (r *replay) apply(mod models.TemporalModification) error {
	next := &replay{overlay: r.overlay, grid: r.grid.Clone(), cancelled: r.cancelled.clone(), pinned: make(map[cellKey]struct{}, len(r.pinned))}
	for key := range r.pinned {
		next.pinned[key] = struct{}{}
	}
	var err error
	switch mod.Type {
	case models.ModificationCancellation:
		err = next.cancel(mod)
	case models.ModificationReslot:
		err = next.reslot(mod)
	default:
		err = conflict(mod, "unknown modification type", nil)
	}
	if err != nil {
		return err
	}
	r.grid = next.grid
	r.cancelled = next.cancelled
	r.pinned = next.pinned
	return nil
}

func (r *replay) position(mod models.TemporalModification, slotName string) (int, int, error) {
	day, okDay := r.overlay.layout.DayIndex(mod.Day)
	slot, okSlot := r.overlay.layout.SlotIndex(slotName)
	if !okDay || !okSlot {
		return 0, 0, conflict(mod, "unknown day or slot", nil)
	}
	if r.overlay.layout.IsLunch(slot) {
		return 0, 0, conflict(mod, "lunch slot cannot be modified", nil)
	}
	return day, slot, nil
}

// cancel removes the teacher's entries at (day, slot) in every section, including the rest of
// any lab block, then compacts the affected sections.
func (r *replay) cancel(mod models.TemporalModification) error {
	day, slot, err := r.position(mod, mod.Slot)
	if err != nil {
		return err
	}
	grid := r.grid
	var changed []int
	for sec := range grid.cells {
		var kept, removed []Placement
		for _, entry := range grid.cells[sec][day][slot] {
			if entry.Occupies() && sameTeacher(entry.Teacher, mod.Teacher) {
				removed = append(removed, entry)
				continue
			}
			kept = append(kept, entry)
		}
		if len(removed) == 0 {
			continue
		}
		grid.SetCell(sec, day, slot, kept)
		delete(r.pinned, cellKey{sec, day, slot})
		for _, gone := range removed {
			if gone.Kind != KindLab {
				continue
			}
			for _, other := range grid.layout.TeachingSlots() {
				grid.SetCell(sec, day, other, withoutLab(grid.cells[sec][day][other], gone))
			}
		}
		changed = append(changed, sec)
	}
	r.cancelled.add(mod.Teacher, day, slot)
	grid.FillFree()

	usage := grid.Usage()
	for _, sec := range changed {
		r.compact(usage, sec, day)
	}
	return nil
}

func withoutLab(cell []Placement, lab Placement) []Placement {
	var out []Placement
	for _, entry := range cell {
		if entry.sameLab(lab) {
			continue
		}
		out = append(out, entry)
	}
	return out
}

func firstOccupant(cell []Placement) (Placement, bool) {
	for _, entry := range cell {
		if entry.Occupies() {
			return entry, true
		}
	}
	return Placement{}, false
}

// compact pulls later entries of the section's day into earlier free slots. Theory entries move
// singly; lab entries move as whole blocks that never cross lunch.
func (r *replay) compact(usage *Usage, sec, day int) {
	grid := r.grid
	layout := grid.layout
	teaching := layout.TeachingSlots()

	for i := 0; i < len(teaching); i++ {
		if grid.Occupied(sec, day, teaching[i]) {
			continue
		}
		for j := i + 1; j < len(teaching); j++ {
			if r.isPinned(sec, day, teaching[j]) {
				continue
			}
			candidate, ok := firstOccupant(grid.cells[sec][day][teaching[j]])
			if !ok {
				continue
			}
			switch candidate.Kind {
			case KindTheory:
				if !r.canHost(usage, candidate, day, teaching[i:i+1]) {
					continue
				}
				r.moveTheory(usage, sec, day, teaching[j], teaching[i], candidate)
			case KindLab:
				if candidate.Unscheduled() {
					continue
				}
				duration := candidate.Duration
				if duration < 1 {
					duration = 1
				}
				if i+duration > len(teaching) || j+duration > len(teaching) {
					continue
				}
				dest := teaching[i : i+duration]
				src := teaching[j : j+duration]
				if layout.lunchBetween(src[0], src[len(src)-1]) || layout.lunchBetween(dest[0], dest[len(dest)-1]) {
					continue
				}
				if !r.blockHolds(sec, day, src, candidate) || !r.blockEmpty(sec, day, dest) {
					continue
				}
				if !r.canHost(usage, candidate, day, dest) {
					continue
				}
				r.moveLab(usage, sec, day, src, dest, candidate)
			case KindFree, KindLunch:
				continue
			}
			break
		}
	}
}

func (r *replay) canHost(usage *Usage, p Placement, day int, slots []int) bool {
	for _, slot := range slots {
		if r.blocked(p.Teacher, day, slot) {
			return false
		}
		if usage.RoomBusy(p.Room, day, slot) || usage.TeacherBusy(p.Teacher, day, slot) {
			return false
		}
	}
	return true
}

func (r *replay) blockHolds(sec, day int, slots []int, lab Placement) bool {
	for _, slot := range slots {
		found := false
		for _, entry := range r.grid.cells[sec][day][slot] {
			if entry.sameLab(lab) && entry.Room == lab.Room {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (r *replay) blockEmpty(sec, day int, slots []int) bool {
	for _, slot := range slots {
		if r.grid.Occupied(sec, day, slot) {
			return false
		}
	}
	return true
}

func (r *replay) moveTheory(usage *Usage, sec, day, from, to int, p Placement) {
	grid := r.grid
	grid.SetCell(sec, day, from, withoutEntry(grid.cells[sec][day][from], p))
	usage.Release(p.Room, p.Teacher, day, from)
	moved := p
	moved.MovedFrom = grid.layout.Slots[from]
	grid.SetCell(sec, day, to, []Placement{moved})
	usage.Reserve(moved.Room, moved.Teacher, day, to)
}

func (r *replay) moveLab(usage *Usage, sec, day int, src, dest []int, p Placement) {
	grid := r.grid
	for k := range src {
		grid.SetCell(sec, day, src[k], withoutLab(grid.cells[sec][day][src[k]], p))
		if len(grid.cells[sec][day][src[k]]) == 0 {
			grid.SetCell(sec, day, src[k], []Placement{Free()})
		}
		usage.Release(p.Room, p.Teacher, day, src[k])
	}
	for k := range dest {
		moved := p
		moved.MovedFrom = grid.layout.Slots[src[k]]
		grid.SetCell(sec, day, dest[k], []Placement{moved})
		usage.Reserve(moved.Room, moved.Teacher, day, dest[k])
	}
}

// withoutEntry drops the first entry equal to p and leaves a free marker in an emptied cell.
func withoutEntry(cell []Placement, p Placement) []Placement {
	out := make([]Placement, 0, len(cell))
	dropped := false
	for _, entry := range cell {
		if !dropped && entry == p {
			dropped = true
			continue
		}
		out = append(out, entry)
	}
	if len(out) == 0 {
		return []Placement{Free()}
	}
	return out
}

// reslot moves the teacher's theory entry from mod.Slot to mod.TargetSlot on the same day and
// pulls later theory entries forward into the vacated slot. The moved entry stays put.
func (r *replay) reslot(mod models.TemporalModification) error {
	day, from, err := r.position(mod, mod.Slot)
	if err != nil {
		return err
	}
	_, to, err := r.position(mod, mod.TargetSlot)
	if err != nil {
		return err
	}
	if from == to {
		return conflict(mod, "target slot equals current slot", nil)
	}
	grid := r.grid
	sec, entry, found := findTeacherEntry(grid, mod.Teacher, day, from)
	if !found {
		return conflict(mod, "no assignment found for selected slot", ErrAssignmentNotFound)
	}
	if entry.Kind == KindLab {
		return conflict(mod, "only theory sessions can be shifted", ErrLabNotReschedulable)
	}
	if grid.Occupied(sec, day, to) {
		return conflict(mod, "target slot is not free for the section", nil)
	}
	usage := grid.Usage()
	if usage.TeacherBusy(mod.Teacher, day, to) {
		return conflict(mod, "teacher is occupied in the target slot", nil)
	}
	if usage.RoomBusy(entry.Room, day, to) {
		return conflict(mod, "room is occupied in the target slot", nil)
	}
	if r.blocked(mod.Teacher, day, to) {
		return conflict(mod, "teacher is unavailable in the target slot", nil)
	}

	r.moveTheory(usage, sec, day, from, to, entry)
	delete(r.pinned, cellKey{sec, day, from})
	r.pinned[cellKey{sec, day, to}] = struct{}{}
	r.pullForward(usage, sec, day, grid.layout.TeachingPosition(from))
	return nil
}

func (r *replay) pullForward(usage *Usage, sec, day, start int) {
	grid := r.grid
	teaching := grid.layout.TeachingSlots()
	for i := start; i >= 0 && i < len(teaching)-1; i++ {
		dest := teaching[i]
		if grid.Occupied(sec, day, dest) {
			continue
		}
		for j := i + 1; j < len(teaching); j++ {
			src := teaching[j]
			if r.isPinned(sec, day, src) {
				continue
			}
			candidate, ok := firstOccupant(grid.cells[sec][day][src])
			if !ok {
				continue
			}
			if candidate.Kind != KindTheory {
				continue
			}
			if !r.canHost(usage, candidate, day, []int{dest}) {
				continue
			}
			r.moveTheory(usage, sec, day, src, dest, candidate)
			break
		}
	}
}
