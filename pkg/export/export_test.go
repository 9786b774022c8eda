package export

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lessonRecord struct {
	Day     string `csv:"day"`
	Slot    string `csv:"slot"`
	Subject string `csv:"subject"`
}

func TestCSVExporterRender(t *testing.T) {
	data, err := NewCSVExporter().Render([]lessonRecord{
		{Day: "Mon", Slot: "09:00", Subject: "Maths"},
		{Day: "Mon", Slot: "10:00", Subject: "Physics, Lab"},
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "day,slot,subject", lines[0])
	assert.Equal(t, "Mon,09:00,Maths", lines[1])
	assert.Equal(t, `Mon,10:00,"Physics, Lab"`, lines[2])
}

func TestCSVExporterRejectsNonSlice(t *testing.T) {
	_, err := NewCSVExporter().Render("not records")
	assert.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	grid := Grid{
		Title:    "Timetable - CSE A",
		Subtitle: "Published 2026-03-02",
		Columns:  []string{"09:00", "10:00", "Lunch Break"},
		Rows: []GridRow{
			{Label: "Mon", Cells: []string{"Maths\nAlice\nR101", "", "LUNCH"}},
			{Label: "Tue", Cells: []string{"Chem Lab (G1)\nCarol\nL1\n\nChem Lab (G2)\nDan\nL2"}},
		},
	}

	data, err := NewPDFExporter().Render([]Grid{grid, grid})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "%PDF"))
}

func TestPDFExporterValidatesGrids(t *testing.T) {
	_, err := NewPDFExporter().Render(nil)
	assert.Error(t, err)

	_, err = NewPDFExporter().Render([]Grid{{Title: "empty"}})
	assert.Error(t, err)
}
