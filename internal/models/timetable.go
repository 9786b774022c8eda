package models

import "time"

// DefaultLunchSlot is the slot name treated as the non-teaching lunch period when the input does not name one.
const DefaultLunchSlot = "Lunch Break"

// Section is a class cohort with its own weekly timetable.
type Section struct {
	Name         string   `json:"name" validate:"required"`
	StudentCount int      `json:"student_count" validate:"min=0"`
	Subjects     []string `json:"subjects" validate:"dive,required"`
	LabSubjects  []string `json:"lab_subjects" validate:"dive,required"`
	ClassName    string   `json:"class_name,omitempty"`
	SectionName  string   `json:"section_name,omitempty"`
}

// UnavailableSlot marks a day/slot pair a teacher cannot teach.
type UnavailableSlot struct {
	Day  string `json:"day" validate:"required"`
	Slot string `json:"slot" validate:"required"`
}

// SchedulingConstraints carries the tunable caps. Zero values fall back to defaults.
type SchedulingConstraints struct {
	MaxLecturesPerDayTeacher    int `json:"max_lectures_per_day_teacher,omitempty" validate:"omitempty,min=1"`
	MaxLecturesPerSubjectPerDay int `json:"max_lectures_per_subject_per_day,omitempty" validate:"omitempty,min=1"`
	MaxLecturesPerDaySection    int `json:"max_lectures_per_day_section,omitempty" validate:"omitempty,min=1"`
	LabSessionDuration          int `json:"lab_session_duration,omitempty" validate:"omitempty,min=1"`
}

// TimetableInput is the normalised generation input.
type TimetableInput struct {
	Sections              []Section                    `json:"sections" validate:"required,min=1,dive"`
	Days                  []string                     `json:"days" validate:"required,min=1,dive,required"`
	Slots                 []string                     `json:"slots" validate:"required,min=1,dive,required"`
	LunchSlot             string                       `json:"lunch_slot,omitempty"`
	Teachers              map[string][]string          `json:"teachers"`
	LabTeachers           map[string][]string          `json:"lab_teachers"`
	Rooms                 []string                     `json:"rooms"`
	LabRooms              map[string][]string          `json:"lab_rooms"`
	Labs                  []string                     `json:"labs,omitempty"`
	LabCapacity           int                          `json:"lab_capacity,omitempty" validate:"omitempty,min=1"`
	LabDurations          map[string]int               `json:"lab_durations"`
	LectureRequirements   map[string]int               `json:"lecture_requirements"`
	TeacherUnavailability map[string][]UnavailableSlot `json:"teacher_unavailability" validate:"dive,dive"`
	Constraints           SchedulingConstraints        `json:"constraints"`
}

// Lunch returns the configured lunch slot name.
func (in TimetableInput) Lunch() string {
	if in.LunchSlot != "" {
		return in.LunchSlot
	}
	return DefaultLunchSlot
}

// TimetableRow is one flattened placement of the effective schedule.
type TimetableRow struct {
	Section   string `json:"section" csv:"section"`
	Day       string `json:"day" csv:"day"`
	Slot      string `json:"slot" csv:"slot"`
	Subject   string `json:"subject" csv:"subject"`
	Room      string `json:"room,omitempty" csv:"room"`
	Teacher   string `json:"teacher,omitempty" csv:"teacher"`
	Group     string `json:"group,omitempty" csv:"group"`
	Duration  int    `json:"duration,omitempty" csv:"duration"`
	MovedFrom string `json:"moved_from,omitempty" csv:"moved_from"`
	Moved     bool   `json:"moved,omitempty" csv:"moved"`
}

// IsLab reports whether the row belongs to a lab group session.
func (r TimetableRow) IsLab() bool {
	return r.Group != ""
}

// Unfulfilled maps section -> subject -> remaining weekly lectures.
type Unfulfilled map[string]map[string]int

// Add records count remaining lectures for the pair, ignoring non-positive counts.
func (u Unfulfilled) Add(section, subject string, count int) {
	if count <= 0 {
		return
	}
	if u[section] == nil {
		u[section] = make(map[string]int)
	}
	u[section][subject] = count
}

// Get returns the remaining count for the pair.
func (u Unfulfilled) Get(section, subject string) int {
	if u == nil {
		return 0
	}
	return u[section][subject]
}

// Total sums all remaining lectures.
func (u Unfulfilled) Total() int {
	total := 0
	for _, subjects := range u {
		for _, count := range subjects {
			total += count
		}
	}
	return total
}

// DiagnosisCause classifies why demand could not be placed.
type DiagnosisCause string

const (
	DiagnosisNoFaculty           DiagnosisCause = "NO_FACULTY"
	DiagnosisFacultyCapacity     DiagnosisCause = "FACULTY_CAPACITY"
	DiagnosisConstraintTightness DiagnosisCause = "CONSTRAINT_TIGHTNESS"
	DiagnosisSlotShortage        DiagnosisCause = "SLOT_SHORTAGE"
)

// Suggestion is the advisory diagnosis for one unfulfilled section/subject pair.
type Suggestion struct {
	Cause             DiagnosisCause `json:"cause"`
	Remaining         int            `json:"remaining"`
	TeacherCount      int            `json:"teacherCount"`
	TeacherCapacity   int            `json:"teacherCapacity"`
	FreeSlots         int            `json:"freeSlots"`
	AdditionalFaculty int            `json:"additionalFaculty,omitempty"`
	Messages          []string       `json:"messages"`
}

// Suggestions is keyed identically to Unfulfilled.
type Suggestions map[string]map[string]Suggestion

// TimetableStatistics summarises a generated grid.
type TimetableStatistics struct {
	TotalSections         int            `json:"totalSections"`
	TotalSlotsUsed        int            `json:"totalSlotsUsed"`
	TotalSlotsAvailable   int            `json:"totalSlotsAvailable"`
	UtilizationPercentage float64        `json:"utilizationPercentage"`
	TeacherUtilization    map[string]int `json:"teacherUtilization"`
	RoomUtilization       map[string]int `json:"roomUtilization"`
	SubjectDistribution   map[string]int `json:"subjectDistribution"`
	UnscheduledLabs       int            `json:"unscheduledLabs"`
	RelaxationPasses      int            `json:"relaxationPasses"`
}

// GenerationResult is the full output of a generation run.
type GenerationResult struct {
	Timetable          []TimetableRow      `json:"timetable"`
	Unfulfilled        Unfulfilled         `json:"unfulfilled"`
	Suggestions        Suggestions         `json:"suggestions"`
	Statistics         TimetableStatistics `json:"statistics"`
	ValidationWarnings []string            `json:"validation_warnings,omitempty"`
}

// ModificationType distinguishes temporal modifications.
type ModificationType string

const (
	ModificationCancellation ModificationType = "unavailable"
	ModificationReslot       ModificationType = "reslot_theory"
)

// TemporalModification is a time-bounded edit replayed on top of the base snapshot.
type TemporalModification struct {
	Type       ModificationType `json:"type"`
	RequestID  string           `json:"requestId,omitempty"`
	Teacher    string           `json:"teacher"`
	Day        string           `json:"day"`
	Slot       string           `json:"slot"`
	TargetSlot string           `json:"targetSlot,omitempty"`
	AppliedAt  time.Time        `json:"appliedAt"`
	ExpiresAt  time.Time        `json:"expiresAt"`
}

// Expired reports whether the modification is no longer active at now.
func (m TemporalModification) Expired(now time.Time) bool {
	return !m.ExpiresAt.After(now)
}

// TimetableData groups the rows with their generation diagnostics.
type TimetableData struct {
	Timetable   []TimetableRow `json:"timetable"`
	Unfulfilled Unfulfilled    `json:"unfulfilled,omitempty"`
	Suggestions Suggestions    `json:"suggestions,omitempty"`
}

// PublishedTimetable is the persisted published schedule document.
type PublishedTimetable struct {
	InputData         TimetableInput         `json:"inputData"`
	TimetableData     TimetableData          `json:"timetableData"`
	BaseTimetableData TimetableData          `json:"baseTimetableData"`
	TemporaryChanges  []TemporalModification `json:"temporaryChanges"`
	PublishedAt       time.Time              `json:"publishedAt"`
	PublishedBy       string                 `json:"publishedBy,omitempty"`
}
