package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

const (
	pageWidth   = 277.0
	labelWidth  = 28.0
	lineHeight  = 4.5
	cellPadding = 1.5
)

// Grid is one page of a timetable: a header row of columns and one row per label.
type Grid struct {
	Title    string
	Subtitle string
	Columns  []string
	Rows     []GridRow
}

// GridRow holds the cells of one row. Cell text may contain newlines.
type GridRow struct {
	Label string
	Cells []string
}

// PDFExporter renders grids on landscape A4 pages.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render creates a document with one page per grid.
func (e *PDFExporter) Render(grids []Grid) ([]byte, error) {
	if len(grids) == 0 {
		return nil, fmt.Errorf("pdf requires at least one grid")
	}
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 12, 10)
	pdf.SetAutoPageBreak(true, 10)

	for _, grid := range grids {
		if len(grid.Columns) == 0 {
			return nil, fmt.Errorf("pdf grid %q has no columns", grid.Title)
		}
		pdf.AddPage()
		if grid.Title != "" {
			pdf.SetFont("Arial", "B", 14)
			pdf.CellFormat(0, 8, grid.Title, "", 1, "C", false, 0, "")
		}
		if grid.Subtitle != "" {
			pdf.SetFont("Arial", "", 9)
			pdf.CellFormat(0, 6, grid.Subtitle, "", 1, "C", false, 0, "")
		}
		pdf.Ln(3)

		colWidth := (pageWidth - labelWidth) / float64(len(grid.Columns))
		pdf.SetFont("Arial", "B", 9)
		pdf.SetFillColor(230, 230, 230)
		pdf.CellFormat(labelWidth, 8, "", "1", 0, "C", true, 0, "")
		for _, column := range grid.Columns {
			pdf.CellFormat(colWidth, 8, column, "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)

		pdf.SetFont("Arial", "", 8)
		for _, row := range grid.Rows {
			writeGridRow(pdf, row, len(grid.Columns), colWidth)
		}
	}

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// writeGridRow draws a row whose height fits its tallest cell.
func writeGridRow(pdf *gofpdf.Fpdf, row GridRow, columns int, colWidth float64) {
	lines := 1
	for i := 0; i < columns && i < len(row.Cells); i++ {
		if n := countLines(pdf, row.Cells[i], colWidth-2*cellPadding); n > lines {
			lines = n
		}
	}
	height := float64(lines)*lineHeight + 2*cellPadding

	_, pageHeight := pdf.GetPageSize()
	_, _, _, bottom := pdf.GetMargins()
	if pdf.GetY()+height > pageHeight-bottom {
		pdf.AddPage()
	}

	x, y := pdf.GetXY()
	pdf.SetFont("Arial", "B", 8)
	pdf.Rect(x, y, labelWidth, height, "D")
	pdf.SetXY(x, y+cellPadding)
	pdf.MultiCell(labelWidth, lineHeight, row.Label, "", "C", false)

	pdf.SetFont("Arial", "", 8)
	for i := 0; i < columns; i++ {
		cellX := x + labelWidth + float64(i)*colWidth
		pdf.Rect(cellX, y, colWidth, height, "D")
		if i >= len(row.Cells) || strings.TrimSpace(row.Cells[i]) == "" {
			continue
		}
		pdf.SetXY(cellX+cellPadding, y+cellPadding)
		pdf.MultiCell(colWidth-2*cellPadding, lineHeight, row.Cells[i], "", "C", false)
	}
	pdf.SetXY(x, y+height)
}

func countLines(pdf *gofpdf.Fpdf, text string, width float64) int {
	if text == "" {
		return 1
	}
	total := 0
	for _, part := range strings.Split(text, "\n") {
		n := len(pdf.SplitLines([]byte(part), width))
		if n == 0 {
			n = 1
		}
		total += n
	}
	return total
}
