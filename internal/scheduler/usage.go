package scheduler

type occupancy struct {
	name string
	day  int
	slot int
}

type teacherDay struct {
	teacher string
	day     int
}

// Usage holds room and teacher bookings derived from a grid. Teacher names are compared
// case-insensitively; empty names never book anything.
type Usage struct {
	rooms    map[occupancy]struct{}
	teachers map[occupancy]struct{}
	daily    map[teacherDay]int
}

func newUsage() *Usage {
	return &Usage{
		rooms:    make(map[occupancy]struct{}),
		teachers: make(map[occupancy]struct{}),
		daily:    make(map[teacherDay]int),
	}
}

// Usage recomputes bookings from every theory and lab entry in the grid.
func (g *Grid) Usage() *Usage {
	u := newUsage()
	for sec := range g.cells {
		for day := range g.cells[sec] {
			for slot, cell := range g.cells[sec][day] {
				for _, entry := range cell {
					if entry.Occupies() {
						u.Reserve(entry.Room, entry.Teacher, day, slot)
					}
				}
			}
		}
	}
	return u
}

func (u *Usage) RoomBusy(room string, day, slot int) bool {
	if room == "" {
		return false
	}
	_, busy := u.rooms[occupancy{room, day, slot}]
	return busy
}

func (u *Usage) TeacherBusy(teacher string, day, slot int) bool {
	key := teacherKey(teacher)
	if key == "" {
		return false
	}
	_, busy := u.teachers[occupancy{key, day, slot}]
	return busy
}

// TeacherHours returns the number of booked slots for the teacher on day.
func (u *Usage) TeacherHours(teacher string, day int) int {
	return u.daily[teacherDay{teacherKey(teacher), day}]
}

func (u *Usage) Reserve(room, teacher string, day, slot int) {
	if room != "" {
		u.rooms[occupancy{room, day, slot}] = struct{}{}
	}
	if key := teacherKey(teacher); key != "" {
		slotKey := occupancy{key, day, slot}
		if _, exists := u.teachers[slotKey]; !exists {
			u.teachers[slotKey] = struct{}{}
			u.daily[teacherDay{key, day}]++
		}
	}
}

func (u *Usage) Release(room, teacher string, day, slot int) {
	if room != "" {
		delete(u.rooms, occupancy{room, day, slot})
	}
	if key := teacherKey(teacher); key != "" {
		slotKey := occupancy{key, day, slot}
		if _, exists := u.teachers[slotKey]; exists {
			delete(u.teachers, slotKey)
			u.daily[teacherDay{key, day}]--
		}
	}
}

// unavailability is the set of (teacher, day, slot) triples a teacher cannot teach.
type unavailability map[occupancy]struct{}

func (u unavailability) add(teacher string, day, slot int) {
	if key := teacherKey(teacher); key != "" {
		u[occupancy{key, day, slot}] = struct{}{}
	}
}

func (u unavailability) has(teacher string, day, slot int) bool {
	key := teacherKey(teacher)
	if key == "" {
		return false
	}
	_, found := u[occupancy{key, day, slot}]
	return found
}

func (u unavailability) clone() unavailability {
	out := make(unavailability, len(u))
	for k := range u {
		out[k] = struct{}{}
	}
	return out
}
