package scheduler

// Checker answers placement feasibility questions against a grid and its bookings.
type Checker struct {
	grid            *Grid
	usage           *Usage
	unavailable     unavailability
	maxTeacherDaily int
}

// NewChecker binds the checker to the grid state it inspects. The caller keeps usage in sync
// with the grid.
func NewChecker(grid *Grid, usage *Usage, unavailable unavailability, maxTeacherDaily int) *Checker {
	if unavailable == nil {
		unavailable = make(unavailability)
	}
	return &Checker{grid: grid, usage: usage, unavailable: unavailable, maxTeacherDaily: maxTeacherDaily}
}

// TeacherUnavailable reports whether the teacher declared (day, slot) unavailable.
func (c *Checker) TeacherUnavailable(teacher string, day, slot int) bool {
	return c.unavailable.has(teacher, day, slot)
}

// HasAdjacentLabConflict reports whether the teacher already runs a lab in any section in the
// teaching slot immediately before or after slot. The lunch slot does not separate neighbours.
func (c *Checker) HasAdjacentLabConflict(teacher string, day, slot int) bool {
	if teacherKey(teacher) == "" {
		return false
	}
	layout := c.grid.layout
	pos := layout.TeachingPosition(slot)
	if pos < 0 {
		return false
	}
	teaching := layout.TeachingSlots()
	for _, neighbour := range []int{pos - 1, pos + 1} {
		if neighbour < 0 || neighbour >= len(teaching) {
			continue
		}
		adjacent := teaching[neighbour]
		for sec := range c.grid.cells {
			for _, entry := range c.grid.cells[sec][day][adjacent] {
				if entry.Kind == KindLab && sameTeacher(entry.Teacher, teacher) {
					return true
				}
			}
		}
	}
	return false
}

// CanPlaceBlock reports whether every slot of block can host the room/teacher pair for the
// section on day with all constraints enforced.
func (c *Checker) CanPlaceBlock(sec, day int, block []int, room, teacher string) bool {
	return c.canPlaceBlock(sec, day, block, room, teacher, true)
}

func (c *Checker) canPlaceBlock(sec, day int, block []int, room, teacher string, checkAdjacency bool) bool {
	if teacherKey(teacher) != "" && c.usage.TeacherHours(teacher, day)+len(block) > c.maxTeacherDaily {
		return false
	}
	for _, slot := range block {
		if !c.grid.IsFree(sec, day, slot) {
			return false
		}
		if c.usage.RoomBusy(room, day, slot) {
			return false
		}
		if c.usage.TeacherBusy(teacher, day, slot) {
			return false
		}
		if checkAdjacency && c.HasAdjacentLabConflict(teacher, day, slot) {
			return false
		}
		if c.TeacherUnavailable(teacher, day, slot) {
			return false
		}
	}
	return true
}
