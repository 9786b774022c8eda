package scheduler

import (
	"math"

	"github.com/noah-isme/serene-scheduler/internal/models"
)

// Statistics summarises the grid. Parallel lab groups count once per entry.
func Statistics(grid *Grid) models.TimetableStatistics {
	stats := models.TimetableStatistics{
		TotalSections:       len(grid.sections),
		TeacherUtilization:  make(map[string]int),
		RoomUtilization:     make(map[string]int),
		SubjectDistribution: make(map[string]int),
	}
	teaching := grid.layout.TeachingSlots()
	stats.TotalSlotsAvailable = len(grid.sections) * len(grid.layout.Days) * len(teaching)

	for sec := range grid.cells {
		for day := range grid.cells[sec] {
			for _, slot := range teaching {
				for _, entry := range grid.cells[sec][day][slot] {
					if !entry.Occupies() {
						continue
					}
					stats.TotalSlotsUsed++
					stats.SubjectDistribution[entry.Subject]++
					if entry.Teacher != "" {
						stats.TeacherUtilization[entry.Teacher]++
					}
					if entry.Room != "" {
						stats.RoomUtilization[entry.Room]++
					}
				}
			}
		}
	}
	if stats.TotalSlotsAvailable > 0 {
		pct := float64(stats.TotalSlotsUsed) / float64(stats.TotalSlotsAvailable) * 100
		stats.UtilizationPercentage = math.Round(pct*100) / 100
	}
	return stats
}
