package scheduler

import "go.uber.org/zap"

// repair frees a slot for subject by relocating one repeated single-slot entry of the same
// section into a free cell, then places subject in the vacated slot. The move is evaluated in
// full before anything changes, and at most one relocation happens per call.
func (a *theoryAllocator) repair(sec int, subject, room, teacher string) bool {
	counts := a.weeklyCounts(sec)
	teaching := a.plan.layout.TeachingSlots()

	for day := range a.plan.layout.Days {
		for pos, slot := range teaching {
			cell := a.grid.Cell(sec, day, slot)
			if len(cell) != 1 || cell[0].Kind != KindTheory {
				continue
			}
			victim := cell[0]
			if victim.Subject == subject || counts[victim.Subject] <= 1 {
				continue
			}
			if !a.acceptsAfterVacate(sec, day, pos, subject, room, teacher, victim) {
				continue
			}
			toDay, toSlot, ok := a.relocationTarget(sec, day, slot, victim)
			if !ok {
				continue
			}
			a.vacate(sec, day, slot, victim)
			a.commit(sec, toDay, toSlot, victim)
			a.commit(sec, day, slot, Theory(subject, room, teacher))
			a.logger.Debug("theory slot repaired",
				zap.String("section", a.plan.sections[sec].Name),
				zap.String("subject", subject),
				zap.String("moved", victim.Subject))
			return true
		}
	}
	return false
}

func (a *theoryAllocator) weeklyCounts(sec int) map[string]int {
	counts := make(map[string]int)
	for day := range a.grid.cells[sec] {
		for _, cell := range a.grid.cells[sec][day] {
			for _, entry := range cell {
				if entry.Kind == KindTheory {
					counts[entry.Subject]++
				}
			}
		}
	}
	return counts
}

// acceptsAfterVacate checks whether subject could take the slot at teaching position pos once
// victim has left it.
func (a *theoryAllocator) acceptsAfterVacate(sec, day, pos int, subject, room, teacher string, victim Placement) bool {
	teaching := a.plan.layout.TeachingSlots()
	slot := teaching[pos]
	if a.subjectDaily[subjectDay{sec, subject, day}] >= a.subjectCap() {
		return false
	}
	if a.checker.TeacherUnavailable(teacher, day, slot) {
		return false
	}
	if pos > 0 && a.grid.HasSubject(sec, day, teaching[pos-1], subject) {
		return false
	}
	if room != victim.Room && a.usage.RoomBusy(room, day, slot) {
		return false
	}
	released := 0
	if sameTeacher(teacher, victim.Teacher) {
		released = 1
	} else if a.usage.TeacherBusy(teacher, day, slot) {
		return false
	}
	return a.teacherHasCapacity(teacher, day, released)
}

// relocationTarget finds a free cell in the section that can host victim.
func (a *theoryAllocator) relocationTarget(sec, fromDay, fromSlot int, victim Placement) (int, int, bool) {
	for _, day := range a.daysByLoad(sec) {
		if day != fromDay {
			if a.subjectDaily[subjectDay{sec, victim.Subject, day}] >= a.subjectCap() {
				continue
			}
			if a.sectionDaily[sectionDay{sec, day}] >= a.sectionCap() {
				continue
			}
		}
		for _, slot := range a.plan.layout.TeachingSlots() {
			if day == fromDay && slot == fromSlot {
				continue
			}
			if !a.grid.IsFree(sec, day, slot) {
				continue
			}
			if a.checker.TeacherUnavailable(victim.Teacher, day, slot) {
				continue
			}
			if a.usage.RoomBusy(victim.Room, day, slot) || a.usage.TeacherBusy(victim.Teacher, day, slot) {
				continue
			}
			if day != fromDay && !a.teacherHasCapacity(victim.Teacher, day, 0) {
				continue
			}
			return day, slot, true
		}
	}
	return 0, 0, false
}
