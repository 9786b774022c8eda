package scheduler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/noah-isme/serene-scheduler/internal/models"
)

// Default caps applied when the input leaves a constraint unset.
const (
	DefaultMaxLecturesPerDayTeacher    = 5
	DefaultMaxLecturesPerSubjectPerDay = 2
	DefaultMaxLecturesPerDaySection    = 6
	DefaultLabSessionDuration          = 2
	DefaultLabCapacity                 = 30
	DefaultLectureRequirement          = 3
	maxParallelLabGroups               = 3
)

// ErrInvalidInput reports a structurally unusable generation input.
var ErrInvalidInput = errors.New("invalid timetable input")

// Limits are the resolved numeric caps of a generation run.
type Limits struct {
	MaxTeacherDaily  int
	MaxSubjectPerDay int
	MaxSectionPerDay int
	LabDuration      int
	LabCapacity      int
}

// ResolveLimits applies defaults to unset constraints.
func ResolveLimits(input models.TimetableInput) Limits {
	c := input.Constraints
	return Limits{
		MaxTeacherDaily:  orDefault(c.MaxLecturesPerDayTeacher, DefaultMaxLecturesPerDayTeacher),
		MaxSubjectPerDay: orDefault(c.MaxLecturesPerSubjectPerDay, DefaultMaxLecturesPerSubjectPerDay),
		MaxSectionPerDay: orDefault(c.MaxLecturesPerDaySection, DefaultMaxLecturesPerDaySection),
		LabDuration:      orDefault(c.LabSessionDuration, DefaultLabSessionDuration),
		LabCapacity:      orDefault(input.LabCapacity, DefaultLabCapacity),
	}
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

// plan is the resolved, read-only view of one generation input.
type plan struct {
	input       models.TimetableInput
	layout      *Layout
	limits      Limits
	sections    []models.Section
	rooms       []string
	unavailable unavailability
}

func newPlan(input models.TimetableInput) (*plan, error) {
	if len(input.Sections) == 0 {
		return nil, fmt.Errorf("%w: no sections", ErrInvalidInput)
	}
	if len(input.Days) == 0 {
		return nil, fmt.Errorf("%w: no days", ErrInvalidInput)
	}
	layout := NewLayout(input.Days, input.Slots, input.Lunch())
	if len(layout.TeachingSlots()) == 0 {
		return nil, fmt.Errorf("%w: no teaching slots", ErrInvalidInput)
	}
	seen := make(map[string]struct{}, len(input.Sections))
	for _, section := range input.Sections {
		if strings.TrimSpace(section.Name) == "" {
			return nil, fmt.Errorf("%w: section without name", ErrInvalidInput)
		}
		if _, dup := seen[section.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate section %q", ErrInvalidInput, section.Name)
		}
		seen[section.Name] = struct{}{}
	}

	return &plan{
		input:       input,
		layout:      layout,
		limits:      ResolveLimits(input),
		sections:    input.Sections,
		rooms:       input.Rooms,
		unavailable: buildUnavailability(layout, input.TeacherUnavailability),
	}, nil
}

func buildUnavailability(layout *Layout, raw map[string][]models.UnavailableSlot) unavailability {
	out := make(unavailability)
	for teacher, slots := range raw {
		for _, entry := range slots {
			day, okDay := layout.DayIndex(entry.Day)
			slot, okSlot := layout.SlotIndex(entry.Slot)
			if okDay && okSlot {
				out.add(teacher, day, slot)
			}
		}
	}
	return out
}

func (p *plan) sectionNames() []string {
	names := make([]string, len(p.sections))
	for i, section := range p.sections {
		names[i] = section.Name
	}
	return names
}

// roomFor returns the fixed theory room of a section, assigned round-robin by section index.
func (p *plan) roomFor(sec int) string {
	if len(p.rooms) == 0 {
		return ""
	}
	return p.rooms[sec%len(p.rooms)]
}

// teacherFor deterministically maps (section, subject) onto one candidate teacher. Lab-specific
// teachers take precedence; an empty candidate list yields no teacher.
func (p *plan) teacherFor(section, subject string) string {
	candidates := nonBlank(p.input.LabTeachers[subject])
	if len(candidates) == 0 {
		candidates = nonBlank(p.input.Teachers[subject])
	}
	if len(candidates) == 0 {
		return ""
	}
	idx := xxhash.Sum64String(section+"\x00"+subject) % uint64(len(candidates))
	return candidates[idx]
}

// subjectTeachers lists the theory teachers for a subject, falling back to lab teachers.
func (p *plan) subjectTeachers(subject string) []string {
	if teachers := nonBlank(p.input.Teachers[subject]); len(teachers) > 0 {
		return teachers
	}
	return nonBlank(p.input.LabTeachers[subject])
}

func nonBlank(names []string) []string {
	out := make([]string, 0, len(names))
	for _, name := range names {
		if strings.TrimSpace(name) != "" {
			out = append(out, name)
		}
	}
	return out
}

func (p *plan) labDuration(lab string) int {
	if d, ok := p.input.LabDurations[lab]; ok && d > 0 {
		return d
	}
	return p.limits.LabDuration
}

// labGroups returns the number of parallel groups a section's labs are split into.
func (p *plan) labGroups(sec int) int {
	students := p.sections[sec].StudentCount
	groups := (students + p.limits.LabCapacity - 1) / p.limits.LabCapacity
	if groups < 1 {
		return 1
	}
	return groups
}

func (p *plan) lectureRequirement(subject string) int {
	if req, ok := p.input.LectureRequirements[subject]; ok {
		return req
	}
	return DefaultLectureRequirement
}

// initialDemand builds the weekly theory demand for every section.
func (p *plan) initialDemand() models.Unfulfilled {
	demand := make(models.Unfulfilled)
	for _, section := range p.sections {
		for _, subject := range section.Subjects {
			demand.Add(section.Name, subject, p.lectureRequirement(subject))
		}
	}
	return demand
}

// labRoomCandidates returns the lab's rooms, else the generic lab pool, else the section room.
func (p *plan) labRoomCandidates(lab string, sec int) []string {
	if rooms := p.input.LabRooms[lab]; len(rooms) > 0 {
		return rooms
	}
	if len(p.input.Labs) > 0 {
		return p.input.Labs
	}
	if room := p.roomFor(sec); room != "" {
		return []string{room}
	}
	return nil
}
