package scheduler

import (
	"sort"

	"go.uber.org/zap"

	"github.com/noah-isme/serene-scheduler/internal/models"
)

// Relaxation loosens theory caps for a retry pass over unfulfilled demand.
type Relaxation struct {
	SubjectPerDayBonus    int
	SectionPerDayBonus    int
	IgnoreTeacherDailyCap bool
}

// relaxationLadder is applied in order while demand remains. Each pass only sees the
// remainder of the previous one.
var relaxationLadder = []Relaxation{
	{SubjectPerDayBonus: 1},
	{SubjectPerDayBonus: 1, SectionPerDayBonus: 1},
	{SubjectPerDayBonus: 1, SectionPerDayBonus: 1, IgnoreTeacherDailyCap: true},
}

type subjectDay struct {
	sec     int
	subject string
	day     int
}

type sectionDay struct {
	sec int
	day int
}

type theoryAllocator struct {
	plan         *plan
	grid         *Grid
	usage        *Usage
	checker      *Checker
	relax        Relaxation
	subjectDaily map[subjectDay]int
	sectionDaily map[sectionDay]int
	logger       *zap.Logger
}

func newTheoryAllocator(p *plan, grid *Grid, relax Relaxation, logger *zap.Logger) *theoryAllocator {
	usage := grid.Usage()
	a := &theoryAllocator{
		plan:         p,
		grid:         grid,
		usage:        usage,
		checker:      NewChecker(grid, usage, p.unavailable, p.limits.MaxTeacherDaily),
		relax:        relax,
		subjectDaily: make(map[subjectDay]int),
		sectionDaily: make(map[sectionDay]int),
		logger:       logger,
	}
	for sec := range grid.cells {
		for day := range grid.cells[sec] {
			for _, cell := range grid.cells[sec][day] {
				for _, entry := range cell {
					if entry.Kind == KindTheory {
						a.subjectDaily[subjectDay{sec, entry.Subject, day}]++
						a.sectionDaily[sectionDay{sec, day}]++
					}
				}
			}
		}
	}
	return a
}

func (a *theoryAllocator) subjectCap() int {
	return a.plan.limits.MaxSubjectPerDay + a.relax.SubjectPerDayBonus
}

func (a *theoryAllocator) sectionCap() int {
	return a.plan.limits.MaxSectionPerDay + a.relax.SectionPerDayBonus
}

// allocate places as much of demand as possible and returns what is left. Empty teaching cells
// are filled with free markers afterwards.
func (a *theoryAllocator) allocate(demand models.Unfulfilled) models.Unfulfilled {
	remaining := make(models.Unfulfilled)
	layout := a.plan.layout
	maxAttempts := len(layout.Days) * len(layout.TeachingSlots()) * 3

	for sec, section := range a.plan.sections {
		subjects := append([]string(nil), section.Subjects...)
		sort.SliceStable(subjects, func(i, j int) bool {
			return demand.Get(section.Name, subjects[i]) > demand.Get(section.Name, subjects[j])
		})
		room := a.plan.roomFor(sec)
		for _, subject := range subjects {
			need := demand.Get(section.Name, subject)
			if need <= 0 {
				continue
			}
			teacher := a.plan.teacherFor(section.Name, subject)
			for attempts := 0; need > 0 && attempts < maxAttempts; attempts++ {
				if a.placeOnce(sec, subject, room, teacher) {
					need--
					continue
				}
				if a.repair(sec, subject, room, teacher) {
					need--
					continue
				}
				break
			}
			remaining.Add(section.Name, subject, need)
		}
	}
	a.grid.FillFree()
	return remaining
}

// daysByLoad returns day indices ordered by the section's theory load, ties by day order.
func (a *theoryAllocator) daysByLoad(sec int) []int {
	days := make([]int, len(a.plan.layout.Days))
	for i := range days {
		days[i] = i
	}
	sort.SliceStable(days, func(i, j int) bool {
		return a.sectionDaily[sectionDay{sec, days[i]}] < a.sectionDaily[sectionDay{sec, days[j]}]
	})
	return days
}

func (a *theoryAllocator) placeOnce(sec int, subject, room, teacher string) bool {
	teaching := a.plan.layout.TeachingSlots()
	for _, day := range a.daysByLoad(sec) {
		if a.subjectDaily[subjectDay{sec, subject, day}] >= a.subjectCap() {
			continue
		}
		if a.sectionDaily[sectionDay{sec, day}] >= a.sectionCap() {
			continue
		}
		for pos, slot := range teaching {
			if !a.grid.IsFree(sec, day, slot) {
				continue
			}
			if a.checker.TeacherUnavailable(teacher, day, slot) {
				continue
			}
			if pos > 0 && a.grid.HasSubject(sec, day, teaching[pos-1], subject) {
				continue
			}
			if a.usage.RoomBusy(room, day, slot) || a.usage.TeacherBusy(teacher, day, slot) {
				continue
			}
			if !a.teacherHasCapacity(teacher, day, 0) {
				continue
			}
			a.commit(sec, day, slot, Theory(subject, room, teacher))
			return true
		}
	}
	return false
}

// teacherHasCapacity checks the daily cap, discounting released slots already counted.
func (a *theoryAllocator) teacherHasCapacity(teacher string, day, released int) bool {
	if a.relax.IgnoreTeacherDailyCap || teacherKey(teacher) == "" {
		return true
	}
	return a.usage.TeacherHours(teacher, day)-released < a.plan.limits.MaxTeacherDaily
}

func (a *theoryAllocator) commit(sec, day, slot int, p Placement) {
	a.grid.SetCell(sec, day, slot, []Placement{p})
	a.usage.Reserve(p.Room, p.Teacher, day, slot)
	a.subjectDaily[subjectDay{sec, p.Subject, day}]++
	a.sectionDaily[sectionDay{sec, day}]++
}

func (a *theoryAllocator) vacate(sec, day, slot int, p Placement) {
	a.grid.SetCell(sec, day, slot, nil)
	a.usage.Release(p.Room, p.Teacher, day, slot)
	a.subjectDaily[subjectDay{sec, p.Subject, day}]--
	a.sectionDaily[sectionDay{sec, day}]--
}
