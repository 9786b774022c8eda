package dto

import (
	"time"

	"github.com/noah-isme/serene-scheduler/internal/models"
)

// SectionInput is a section nested under a class.
type SectionInput struct {
	Name         string `json:"name"`
	StudentCount int    `json:"student_count"`
}

// ClassInput groups sections sharing the same subject list.
type ClassInput struct {
	Name        string         `json:"name"`
	Subjects    []string       `json:"subjects"`
	LabSubjects []string       `json:"lab_subjects"`
	Sections    []SectionInput `json:"sections"`
}

// TimetableRequest accepts the generation input either with flat sections or with classes that
// expand into sections.
type TimetableRequest struct {
	Classes []ClassInput `json:"classes,omitempty"`
	models.TimetableInput
}

// Normalize expands classes into sections named "<class> - <section>". Flat sections are kept
// untouched when no classes are given.
func (r TimetableRequest) Normalize() models.TimetableInput {
	input := r.TimetableInput
	if len(r.Classes) == 0 {
		return input
	}
	sections := make([]models.Section, 0)
	for _, class := range r.Classes {
		for _, section := range class.Sections {
			name := class.Name
			if section.Name != "" {
				name = class.Name + " - " + section.Name
			}
			sections = append(sections, models.Section{
				Name:         name,
				StudentCount: section.StudentCount,
				Subjects:     append([]string(nil), class.Subjects...),
				LabSubjects:  append([]string(nil), class.LabSubjects...),
				ClassName:    class.Name,
				SectionName:  section.Name,
			})
		}
	}
	input.Sections = sections
	return input
}

// FieldError describes one failed struct rule.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

// ValidationReport is returned by the validate endpoint and attached to generation results.
type ValidationReport struct {
	Valid    bool         `json:"valid"`
	Errors   []string     `json:"errors"`
	Warnings []string     `json:"warnings"`
	Fields   []FieldError `json:"fields,omitempty"`
}

// PublishRequest publishes a generated timetable together with its input.
type PublishRequest struct {
	InputData     TimetableRequest     `json:"inputData"`
	TimetableData models.TimetableData `json:"timetableData"`
}

// PublishResponse acknowledges a publication.
type PublishResponse struct {
	PublishedAt time.Time `json:"publishedAt"`
	PublishedBy string    `json:"publishedBy,omitempty"`
	UsersSynced int       `json:"usersSynced"`
}

// TimetableView is the filtered schedule served to teachers and students.
type TimetableView struct {
	Teacher     string                `json:"teacher,omitempty"`
	Section     string                `json:"section,omitempty"`
	Days        []string              `json:"days"`
	Slots       []string              `json:"slots"`
	Timetable   []models.TimetableRow `json:"timetable"`
	PublishedAt time.Time             `json:"publishedAt"`
}

// AvailableSlotsRequest asks where a theory session could move on the same day.
type AvailableSlotsRequest struct {
	Day  string `json:"day" validate:"required"`
	Slot string `json:"slot" validate:"required"`
}

// AvailableSlotsResponse lists candidate target slots.
type AvailableSlotsResponse struct {
	AvailableSlots []string `json:"availableSlots"`
}

// RescheduleRequestPayload is submitted by a teacher.
type RescheduleRequestPayload struct {
	Day           string `json:"day" validate:"required"`
	Slot          string `json:"slot" validate:"required"`
	RequestType   string `json:"request_type" validate:"omitempty,oneof=unavailable reslot_theory"`
	PreferredSlot string `json:"preferred_slot" validate:"required_if=RequestType reslot_theory"`
	Reason        string `json:"reason" validate:"max=500"`
}

// RejectRequestPayload carries the optional admin note.
type RejectRequestPayload struct {
	AdminNote string `json:"admin_note" validate:"max=500"`
}

// ExportQuery filters the exported schedule.
type ExportQuery struct {
	Format  string `form:"format" validate:"omitempty,oneof=csv pdf"`
	Section string `form:"section"`
	Teacher string `form:"teacher"`
}
