package scheduler

import (
	"strings"

	"github.com/noah-isme/serene-scheduler/internal/models"
)

// PlacementKind tags a schedule cell entry.
type PlacementKind int

const (
	KindFree PlacementKind = iota
	KindLunch
	KindTheory
	KindLab
)

// FreeSubject and LunchSubject are the subject labels emitted for marker cells.
const (
	FreeSubject  = "FREE"
	LunchSubject = "LUNCH"
)

// Placement is one entry of a schedule cell. Theory and lab entries carry assignment details,
// free and lunch entries are markers only.
type Placement struct {
	Kind      PlacementKind
	Subject   string
	Room      string
	Teacher   string
	Group     string
	Duration  int
	MovedFrom string
}

func Free() Placement { return Placement{Kind: KindFree, Subject: FreeSubject} }

func Lunch() Placement { return Placement{Kind: KindLunch, Subject: LunchSubject} }

func Theory(subject, room, teacher string) Placement {
	return Placement{Kind: KindTheory, Subject: subject, Room: room, Teacher: teacher}
}

func Lab(subject, room, teacher, group string, duration int) Placement {
	return Placement{Kind: KindLab, Subject: subject, Room: room, Teacher: teacher, Group: group, Duration: duration}
}

// Occupies reports whether the entry consumes the cell for teaching.
func (p Placement) Occupies() bool {
	switch p.Kind {
	case KindTheory, KindLab:
		return true
	case KindFree, KindLunch:
		return false
	}
	return false
}

// Unscheduled reports whether the entry is the marker for a lab session that could not be placed.
func (p Placement) Unscheduled() bool {
	return p.Kind == KindLab && strings.HasSuffix(p.Subject, UnscheduledSuffix)
}

// sameLab reports whether two lab entries belong to the same group session.
func (p Placement) sameLab(other Placement) bool {
	return p.Kind == KindLab && other.Kind == KindLab &&
		p.Subject == other.Subject && p.Group == other.Group &&
		teacherKey(p.Teacher) == teacherKey(other.Teacher)
}

func teacherKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func sameTeacher(a, b string) bool {
	ka := teacherKey(a)
	return ka != "" && ka == teacherKey(b)
}

// Layout fixes the days and slots of a weekly grid.
type Layout struct {
	Days      []string
	Slots     []string
	LunchSlot string

	teaching  []int
	position  []int
	dayIndex  map[string]int
	slotIndex map[string]int
}

// NewLayout indexes days and slots. The lunch slot is excluded from teaching slots.
func NewLayout(days, slots []string, lunch string) *Layout {
	l := &Layout{
		Days:      append([]string(nil), days...),
		Slots:     append([]string(nil), slots...),
		LunchSlot: lunch,
		position:  make([]int, len(slots)),
		dayIndex:  make(map[string]int, len(days)),
		slotIndex: make(map[string]int, len(slots)),
	}
	for i, day := range days {
		if _, exists := l.dayIndex[day]; !exists {
			l.dayIndex[day] = i
		}
	}
	for i, slot := range slots {
		if _, exists := l.slotIndex[slot]; !exists {
			l.slotIndex[slot] = i
		}
		if slot == lunch {
			l.position[i] = -1
			continue
		}
		l.position[i] = len(l.teaching)
		l.teaching = append(l.teaching, i)
	}
	return l
}

// IsLunch reports whether the slot index is the lunch slot.
func (l *Layout) IsLunch(slot int) bool {
	return slot >= 0 && slot < len(l.Slots) && l.position[slot] < 0
}

// TeachingSlots returns the non-lunch slot indices in order.
func (l *Layout) TeachingSlots() []int {
	return l.teaching
}

// TeachingPosition returns the slot's index within TeachingSlots or -1 for lunch.
func (l *Layout) TeachingPosition(slot int) int {
	if slot < 0 || slot >= len(l.position) {
		return -1
	}
	return l.position[slot]
}

func (l *Layout) DayIndex(name string) (int, bool) {
	idx, ok := l.dayIndex[name]
	return idx, ok
}

func (l *Layout) SlotIndex(name string) (int, bool) {
	idx, ok := l.slotIndex[name]
	return idx, ok
}

// Blocks enumerates candidate slot windows of the given length. Single-slot blocks cover every
// teaching slot; longer blocks are contiguous windows that never contain the lunch slot.
func (l *Layout) Blocks(duration int) [][]int {
	if duration <= 1 {
		blocks := make([][]int, 0, len(l.teaching))
		for _, slot := range l.teaching {
			blocks = append(blocks, []int{slot})
		}
		return blocks
	}
	var blocks [][]int
	for start := 0; start+duration <= len(l.Slots); start++ {
		block := make([]int, 0, duration)
		for slot := start; slot < start+duration; slot++ {
			if l.IsLunch(slot) {
				block = nil
				break
			}
			block = append(block, slot)
		}
		if block != nil {
			blocks = append(blocks, block)
		}
	}
	return blocks
}

// lunchBetween reports whether the lunch slot lies within [from, to] inclusive.
func (l *Layout) lunchBetween(from, to int) bool {
	if from > to {
		from, to = to, from
	}
	for slot := from; slot <= to; slot++ {
		if l.IsLunch(slot) {
			return true
		}
	}
	return false
}

// Grid is the per-section weekly schedule, indexed [section][day][slot].
type Grid struct {
	layout       *Layout
	sections     []string
	sectionIndex map[string]int
	cells        [][][][]Placement
	orphans      []models.TimetableRow
}

// NewGrid creates an empty grid with lunch markers in place.
func NewGrid(layout *Layout, sections []string) *Grid {
	g := &Grid{
		layout:       layout,
		sections:     append([]string(nil), sections...),
		sectionIndex: make(map[string]int, len(sections)),
		cells:        make([][][][]Placement, len(sections)),
	}
	for sec, name := range sections {
		g.sectionIndex[name] = sec
		g.cells[sec] = make([][][]Placement, len(layout.Days))
		for day := range layout.Days {
			g.cells[sec][day] = make([][]Placement, len(layout.Slots))
			for slot := range layout.Slots {
				if layout.IsLunch(slot) {
					g.cells[sec][day][slot] = []Placement{Lunch()}
				}
			}
		}
	}
	return g
}

func (g *Grid) Layout() *Layout { return g.layout }

func (g *Grid) Sections() []string { return g.sections }

func (g *Grid) SectionName(sec int) string { return g.sections[sec] }

func (g *Grid) SectionIndex(name string) (int, bool) {
	idx, ok := g.sectionIndex[name]
	return idx, ok
}

func (g *Grid) Cell(sec, day, slot int) []Placement {
	return g.cells[sec][day][slot]
}

func (g *Grid) SetCell(sec, day, slot int, entries []Placement) {
	g.cells[sec][day][slot] = entries
}

// Place replaces free markers in the cell with p, or appends p alongside other entries.
func (g *Grid) Place(sec, day, slot int, p Placement) {
	cell := g.cells[sec][day][slot]
	kept := cell[:0:0]
	for _, entry := range cell {
		if entry.Kind != KindFree {
			kept = append(kept, entry)
		}
	}
	g.cells[sec][day][slot] = append(kept, p)
}

// IsFree reports whether the cell is empty or holds only free markers.
func (g *Grid) IsFree(sec, day, slot int) bool {
	for _, entry := range g.cells[sec][day][slot] {
		if entry.Kind != KindFree {
			return false
		}
	}
	return true
}

// Occupied reports whether the cell holds a theory or lab entry.
func (g *Grid) Occupied(sec, day, slot int) bool {
	for _, entry := range g.cells[sec][day][slot] {
		if entry.Occupies() {
			return true
		}
	}
	return false
}

// HasSubject reports whether the cell holds an entry for subject.
func (g *Grid) HasSubject(sec, day, slot int, subject string) bool {
	for _, entry := range g.cells[sec][day][slot] {
		if entry.Occupies() && entry.Subject == subject {
			return true
		}
	}
	return false
}

// FillFree marks every empty teaching cell with a free marker.
func (g *Grid) FillFree() {
	for sec := range g.cells {
		for day := range g.cells[sec] {
			for _, slot := range g.layout.teaching {
				if len(g.cells[sec][day][slot]) == 0 {
					g.cells[sec][day][slot] = []Placement{Free()}
				}
			}
		}
	}
}

// Clone returns a deep copy sharing only the immutable layout.
func (g *Grid) Clone() *Grid {
	out := &Grid{
		layout:       g.layout,
		sections:     g.sections,
		sectionIndex: g.sectionIndex,
		cells:        make([][][][]Placement, len(g.cells)),
		orphans:      append([]models.TimetableRow(nil), g.orphans...),
	}
	for sec := range g.cells {
		out.cells[sec] = make([][][]Placement, len(g.cells[sec]))
		for day := range g.cells[sec] {
			out.cells[sec][day] = make([][]Placement, len(g.cells[sec][day]))
			for slot, cell := range g.cells[sec][day] {
				if cell != nil {
					out.cells[sec][day][slot] = append([]Placement(nil), cell...)
				}
			}
		}
	}
	return out
}

// Rows flattens the grid in section, day, slot, entry order. Rows that could not be
// mapped onto the layout when the grid was built are appended unchanged.
func (g *Grid) Rows() []models.TimetableRow {
	rows := make([]models.TimetableRow, 0)
	for sec, section := range g.sections {
		for day, dayName := range g.layout.Days {
			for slot, slotName := range g.layout.Slots {
				for _, entry := range g.cells[sec][day][slot] {
					rows = append(rows, models.TimetableRow{
						Section:   section,
						Day:       dayName,
						Slot:      slotName,
						Subject:   entry.Subject,
						Room:      entry.Room,
						Teacher:   entry.Teacher,
						Group:     entry.Group,
						Duration:  entry.Duration,
						MovedFrom: entry.MovedFrom,
						Moved:     entry.MovedFrom != "",
					})
				}
			}
		}
	}
	return append(rows, g.orphans...)
}

// GridFromRows rebuilds a grid from flattened rows. Sections come from the given order first,
// then from rows in order of first appearance.
func GridFromRows(layout *Layout, sections []string, rows []models.TimetableRow) *Grid {
	names := append([]string(nil), sections...)
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		seen[name] = struct{}{}
	}
	for _, row := range rows {
		if _, ok := seen[row.Section]; !ok {
			seen[row.Section] = struct{}{}
			names = append(names, row.Section)
		}
	}

	g := NewGrid(layout, names)
	for sec := range g.cells {
		for day := range g.cells[sec] {
			for slot := range g.cells[sec][day] {
				g.cells[sec][day][slot] = nil
			}
		}
	}
	for _, row := range rows {
		sec := g.sectionIndex[row.Section]
		day, okDay := layout.DayIndex(row.Day)
		slot, okSlot := layout.SlotIndex(row.Slot)
		if !okDay || !okSlot {
			g.orphans = append(g.orphans, row)
			continue
		}
		g.cells[sec][day][slot] = append(g.cells[sec][day][slot], placementFromRow(row))
	}
	for sec := range g.cells {
		for day := range g.cells[sec] {
			for slot := range g.cells[sec][day] {
				if len(g.cells[sec][day][slot]) == 0 && layout.IsLunch(slot) {
					g.cells[sec][day][slot] = []Placement{Lunch()}
				}
			}
		}
	}
	g.FillFree()
	return g
}

func placementFromRow(row models.TimetableRow) Placement {
	p := Placement{
		Subject:   row.Subject,
		Room:      row.Room,
		Teacher:   row.Teacher,
		Group:     row.Group,
		Duration:  row.Duration,
		MovedFrom: row.MovedFrom,
	}
	switch {
	case row.Group != "":
		p.Kind = KindLab
	case row.Subject == FreeSubject:
		p.Kind = KindFree
	case row.Subject == LunchSubject:
		p.Kind = KindLunch
	default:
		p.Kind = KindTheory
	}
	return p
}
