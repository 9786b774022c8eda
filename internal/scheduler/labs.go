package scheduler

import (
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// UnscheduledSuffix marks a lab session that no fallback level could place.
const UnscheduledSuffix = "-UNSCHED"

type labTask struct {
	sec      int
	lab      string
	group    int
	label    string
	duration int
	assigned bool
}

type groupKey struct {
	sec   int
	group int
}

type groupDayKey struct {
	sec   int
	group int
	day   int
}

type fallbackLevel int

const (
	fallbackStrict fallbackLevel = iota
	fallbackIgnoreAdjacency
	fallbackRoomOnly
)

type labAllocator struct {
	plan     *plan
	grid     *Grid
	usage    *Usage
	checker  *Checker
	tasks    []*labTask
	groupDay map[groupDayKey]struct{}
	sessions map[groupKey]int
	logger   *zap.Logger
}

func newLabAllocator(p *plan, grid *Grid, logger *zap.Logger) *labAllocator {
	usage := grid.Usage()
	a := &labAllocator{
		plan:     p,
		grid:     grid,
		usage:    usage,
		checker:  NewChecker(grid, usage, p.unavailable, p.limits.MaxTeacherDaily),
		groupDay: make(map[groupDayKey]struct{}),
		sessions: make(map[groupKey]int),
		logger:   logger,
	}
	for sec, section := range p.sections {
		groups := p.labGroups(sec)
		for _, lab := range section.LabSubjects {
			for gi := 0; gi < groups; gi++ {
				a.tasks = append(a.tasks, &labTask{
					sec:      sec,
					lab:      lab,
					group:    gi,
					label:    fmt.Sprintf("G%d", gi+1),
					duration: p.labDuration(lab),
				})
			}
		}
	}
	return a
}

// allocate runs the parallel primary pass, then the per-task fallback pass. It returns the
// number of sessions that ended up as unscheduled markers.
func (a *labAllocator) allocate() int {
	a.primaryPass()
	return a.fallbackPass()
}

func (a *labAllocator) primaryPass() {
	for _, duration := range a.durationsDescending() {
		for _, block := range a.plan.layout.Blocks(duration) {
			if a.allAssigned() {
				return
			}
			for day := range a.plan.layout.Days {
				for sec := range a.plan.sections {
					pending := a.pending(sec, duration)
					if len(pending) == 0 {
						continue
					}
					a.sortFair(pending, sec, day)
					limit := a.plan.labGroups(sec)
					if limit > maxParallelLabGroups {
						limit = maxParallelLabGroups
					}
					a.placeCombination(pending, limit, sec, day, block)
				}
			}
		}
	}
}

func (a *labAllocator) durationsDescending() []int {
	seen := make(map[int]struct{})
	var durations []int
	for _, task := range a.tasks {
		if _, ok := seen[task.duration]; !ok {
			seen[task.duration] = struct{}{}
			durations = append(durations, task.duration)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(durations)))
	return durations
}

func (a *labAllocator) allAssigned() bool {
	for _, task := range a.tasks {
		if !task.assigned {
			return false
		}
	}
	return true
}

func (a *labAllocator) pending(sec, duration int) []*labTask {
	var out []*labTask
	for _, task := range a.tasks {
		if task.sec == sec && task.duration == duration && !task.assigned {
			out = append(out, task)
		}
	}
	return out
}

// sortFair orders pending tasks so groups with fewer sessions go first, rotating the starting
// group by day index.
func (a *labAllocator) sortFair(pending []*labTask, sec, day int) {
	groups := a.plan.labGroups(sec)
	sort.SliceStable(pending, func(i, j int) bool {
		si := a.sessions[groupKey{sec, pending[i].group}]
		sj := a.sessions[groupKey{sec, pending[j].group}]
		if si != sj {
			return si < sj
		}
		return rotation(pending[i].group, day, groups) < rotation(pending[j].group, day, groups)
	})
}

func rotation(group, day, groups int) int {
	return ((group-day)%groups + groups) % groups
}

type labAssignment struct {
	task    *labTask
	room    string
	teacher string
}

// placeCombination tries combination sizes from limit down to one and commits the first
// feasible combination of distinct groups and distinct labs.
func (a *labAllocator) placeCombination(pending []*labTask, limit, sec, day int, block []int) bool {
	for size := limit; size >= 1; size-- {
		if size > len(pending) {
			continue
		}
		var committed bool
		forEachCombination(len(pending), size, func(indices []int) bool {
			combo := make([]*labTask, len(indices))
			for i, idx := range indices {
				combo[i] = pending[idx]
			}
			if !distinctGroupsAndLabs(combo) {
				return true
			}
			assignments, ok := a.tryCombination(combo, sec, day, block)
			if !ok {
				return true
			}
			a.commit(assignments, day, block)
			committed = true
			return false
		})
		if committed {
			return true
		}
	}
	return false
}

func distinctGroupsAndLabs(combo []*labTask) bool {
	groups := make(map[int]struct{}, len(combo))
	labs := make(map[string]struct{}, len(combo))
	for _, task := range combo {
		if _, dup := groups[task.group]; dup {
			return false
		}
		if _, dup := labs[task.lab]; dup {
			return false
		}
		groups[task.group] = struct{}{}
		labs[task.lab] = struct{}{}
	}
	return true
}

func (a *labAllocator) tryCombination(combo []*labTask, sec, day int, block []int) ([]labAssignment, bool) {
	tempRooms := make(map[occupancy]struct{})
	tempTeachers := make(map[occupancy]struct{})
	assignments := make([]labAssignment, 0, len(combo))

	for _, task := range combo {
		if _, used := a.groupDay[groupDayKey{sec, task.group, day}]; used {
			return nil, false
		}
		room, ok := a.pickRoom(task, day, block, tempRooms)
		if !ok {
			return nil, false
		}
		teacher := a.plan.teacherFor(a.plan.sections[sec].Name, task.lab)
		if !a.checker.CanPlaceBlock(sec, day, block, room, teacher) {
			return nil, false
		}
		key := teacherKey(teacher)
		for _, slot := range block {
			if room != "" {
				if _, taken := tempRooms[occupancy{room, day, slot}]; taken {
					return nil, false
				}
			}
			if key != "" {
				if _, taken := tempTeachers[occupancy{key, day, slot}]; taken {
					return nil, false
				}
			}
		}
		for _, slot := range block {
			if room != "" {
				tempRooms[occupancy{room, day, slot}] = struct{}{}
			}
			if key != "" {
				tempTeachers[occupancy{key, day, slot}] = struct{}{}
			}
		}
		assignments = append(assignments, labAssignment{task: task, room: room, teacher: teacher})
	}
	return assignments, true
}

// pickRoom rotates the candidate rooms by group index and returns the first room free for the
// whole block. With no candidates the session runs without a room.
func (a *labAllocator) pickRoom(task *labTask, day int, block []int, temp map[occupancy]struct{}) (string, bool) {
	candidates := a.plan.labRoomCandidates(task.lab, task.sec)
	if len(candidates) == 0 {
		return "", true
	}
	for i := range candidates {
		room := candidates[(task.group+i)%len(candidates)]
		free := true
		for _, slot := range block {
			if a.usage.RoomBusy(room, day, slot) {
				free = false
				break
			}
			if _, taken := temp[occupancy{room, day, slot}]; taken {
				free = false
				break
			}
		}
		if free {
			return room, true
		}
	}
	return "", false
}

func (a *labAllocator) commit(assignments []labAssignment, day int, block []int) {
	for _, asg := range assignments {
		a.place(asg.task, asg.room, asg.teacher, day, block)
	}
}

func (a *labAllocator) place(task *labTask, room, teacher string, day int, block []int) {
	for _, slot := range block {
		a.grid.Place(task.sec, day, slot, Lab(task.lab, room, teacher, task.label, task.duration))
		a.usage.Reserve(room, teacher, day, slot)
	}
	task.assigned = true
	a.groupDay[groupDayKey{task.sec, task.group, day}] = struct{}{}
	a.sessions[groupKey{task.sec, task.group}]++
}

// fallbackPass places each remaining task alone, relaxing constraints level by level.
func (a *labAllocator) fallbackPass() int {
	unscheduled := 0
	for _, task := range a.tasks {
		if task.assigned {
			continue
		}
		for _, level := range []fallbackLevel{fallbackStrict, fallbackIgnoreAdjacency, fallbackRoomOnly} {
			if a.placeAlone(task, level) {
				if level != fallbackStrict {
					a.logger.Debug("lab placed with relaxed constraints",
						zap.String("section", a.plan.sections[task.sec].Name),
						zap.String("lab", task.lab),
						zap.String("group", task.label),
						zap.Int("level", int(level)))
				}
				break
			}
		}
		if !task.assigned {
			a.markUnscheduled(task)
			unscheduled++
		}
	}
	return unscheduled
}

func (a *labAllocator) placeAlone(task *labTask, level fallbackLevel) bool {
	sectionName := a.plan.sections[task.sec].Name
	for _, block := range a.plan.layout.Blocks(task.duration) {
		for day := range a.plan.layout.Days {
			if _, used := a.groupDay[groupDayKey{task.sec, task.group, day}]; used {
				continue
			}
			room, ok := a.pickRoom(task, day, block, nil)
			if !ok {
				continue
			}
			teacher := ""
			if level != fallbackRoomOnly {
				teacher = a.plan.teacherFor(sectionName, task.lab)
			}
			if !a.checker.canPlaceBlock(task.sec, day, block, room, teacher, level == fallbackStrict) {
				continue
			}
			a.place(task, room, teacher, day, block)
			return true
		}
	}
	return false
}

// markUnscheduled records the session in the last teaching slot of the first day so the gap
// stays visible in the output.
func (a *labAllocator) markUnscheduled(task *labTask) {
	teaching := a.plan.layout.TeachingSlots()
	slot := teaching[len(teaching)-1]
	a.grid.Place(task.sec, 0, slot, Lab(task.lab+UnscheduledSuffix, "", "", task.label, 0))
	task.assigned = true
	a.logger.Warn("lab session left unscheduled",
		zap.String("section", a.plan.sections[task.sec].Name),
		zap.String("lab", task.lab),
		zap.String("group", task.label))
}

// forEachCombination visits k-combinations of [0, n) in lexicographic order until visit
// returns false.
func forEachCombination(n, k int, visit func([]int) bool) {
	if k <= 0 || k > n {
		return
	}
	indices := make([]int, k)
	for i := range indices {
		indices[i] = i
	}
	for {
		if !visit(append([]int(nil), indices...)) {
			return
		}
		i := k - 1
		for i >= 0 && indices[i] == n-k+i {
			i--
		}
		if i < 0 {
			return
		}
		indices[i]++
		for j := i + 1; j < k; j++ {
			indices[j] = indices[j-1] + 1
		}
	}
}
