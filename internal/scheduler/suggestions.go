package scheduler

import (
	"fmt"

	"github.com/noah-isme/serene-scheduler/internal/models"
)

// suggest diagnoses each unfulfilled pair against the final grid. The output is advisory.
func suggest(p *plan, grid *Grid, remaining models.Unfulfilled) models.Suggestions {
	out := make(models.Suggestions)
	if remaining.Total() == 0 {
		return out
	}
	usage := grid.Usage()
	layout := p.layout

	for sec, section := range p.sections {
		for subject, need := range remaining[section.Name] {
			if need <= 0 {
				continue
			}
			teachers := p.subjectTeachers(subject)
			capacity := 0
			for _, teacher := range teachers {
				capacity += teacherFreeSlots(layout, usage, p.unavailable, teacher)
			}
			free := sectionFreeSlots(grid, sec)

			s := models.Suggestion{
				Remaining:       need,
				TeacherCount:    len(teachers),
				TeacherCapacity: capacity,
				FreeSlots:       free,
			}
			switch {
			case len(teachers) == 0:
				s.Cause = models.DiagnosisNoFaculty
				s.Messages = append(s.Messages, fmt.Sprintf("No teacher is assigned to %s. Add at least one teacher.", subject))
			case capacity < need:
				s.Cause = models.DiagnosisFacultyCapacity
				s.AdditionalFaculty = need - capacity
				s.Messages = append(s.Messages, fmt.Sprintf(
					"Teachers for %s have %d free slots but %d lectures remain. Add %d more teaching slots or another teacher.",
					subject, capacity, need, s.AdditionalFaculty))
			case free >= need:
				s.Cause = models.DiagnosisConstraintTightness
				s.Messages = append(s.Messages, fmt.Sprintf(
					"%s has %d free slots but constraints blocked %s. Relax the per-day caps or teacher availability.",
					section.Name, free, subject))
			default:
				s.Cause = models.DiagnosisSlotShortage
				s.Messages = append(s.Messages, fmt.Sprintf(
					"%s has only %d free slots for %d remaining %s lectures. Add slots or reduce the requirement.",
					section.Name, free, need, subject))
			}
			if _, hasLab := p.input.LabRooms[subject+" LAB"]; hasLab {
				s.Messages = append(s.Messages, fmt.Sprintf("Check whether %s LAB sessions are crowding out theory slots.", subject))
			}
			s.Messages = append(s.Messages, "Review constraints and resources, then generate again.")

			if out[section.Name] == nil {
				out[section.Name] = make(map[string]models.Suggestion)
			}
			out[section.Name][subject] = s
		}
	}
	return out
}

func teacherFreeSlots(layout *Layout, usage *Usage, unavailable unavailability, teacher string) int {
	free := 0
	for day := range layout.Days {
		for _, slot := range layout.TeachingSlots() {
			if usage.TeacherBusy(teacher, day, slot) || unavailable.has(teacher, day, slot) {
				continue
			}
			free++
		}
	}
	return free
}

func sectionFreeSlots(grid *Grid, sec int) int {
	free := 0
	for day := range grid.layout.Days {
		for _, slot := range grid.layout.TeachingSlots() {
			if grid.IsFree(sec, day, slot) {
				free++
			}
		}
	}
	return free
}
