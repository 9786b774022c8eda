package scheduler

import (
	"go.uber.org/zap"

	"github.com/noah-isme/serene-scheduler/internal/models"
)

// Generator builds weekly timetables from a normalised input. Generation is deterministic:
// the same input always yields the same rows.
type Generator struct {
	logger *zap.Logger
}

// NewGenerator constructs a generator. A nil logger disables logging.
func NewGenerator(logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{logger: logger}
}

// Outcome is the result of one generation run.
type Outcome struct {
	Grid             *Grid
	Rows             []models.TimetableRow
	Unfulfilled      models.Unfulfilled
	Suggestions      models.Suggestions
	Statistics       models.TimetableStatistics
	UnscheduledLabs  int
	RelaxationPasses int
}

// Generate runs lab allocation, theory allocation, relaxation passes over the remainder and
// finally diagnoses whatever is still unplaced.
func (g *Generator) Generate(input models.TimetableInput) (*Outcome, error) {
	p, err := newPlan(input)
	if err != nil {
		return nil, err
	}
	grid := NewGrid(p.layout, p.sectionNames())

	unscheduled := newLabAllocator(p, grid, g.logger).allocate()
	remaining := newTheoryAllocator(p, grid, Relaxation{}, g.logger).allocate(p.initialDemand())

	passes := 0
	for _, relax := range relaxationLadder {
		if remaining.Total() == 0 {
			break
		}
		passes++
		g.logger.Debug("relaxing theory constraints",
			zap.Int("pass", passes),
			zap.Int("remaining", remaining.Total()))
		remaining = newTheoryAllocator(p, grid, relax, g.logger).allocate(remaining)
	}

	stats := Statistics(grid)
	stats.UnscheduledLabs = unscheduled
	stats.RelaxationPasses = passes

	return &Outcome{
		Grid:             grid,
		Rows:             grid.Rows(),
		Unfulfilled:      remaining,
		Suggestions:      suggest(p, grid, remaining),
		Statistics:       stats,
		UnscheduledLabs:  unscheduled,
		RelaxationPasses: passes,
	}, nil
}
