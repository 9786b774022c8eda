package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/serene-scheduler/internal/dto"
	"github.com/noah-isme/serene-scheduler/internal/models"
	"github.com/noah-isme/serene-scheduler/internal/scheduler"
	appErrors "github.com/noah-isme/serene-scheduler/pkg/errors"
	"github.com/noah-isme/serene-scheduler/pkg/export"
)

// Export formats.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

type publishedReader interface {
	Current(ctx context.Context) (*models.PublishedTimetable, error)
}

type csvRenderer interface {
	Render(records interface{}) ([]byte, error)
}

type pdfRenderer interface {
	Render(grids []export.Grid) ([]byte, error)
}

// ExportFile is a rendered download.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportService renders the effective published schedule as CSV or PDF.
type ExportService struct {
	timetables publishedReader
	csv        csvRenderer
	pdf        pdfRenderer
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(timetables publishedReader, csv csvRenderer, pdf pdfRenderer, validate *validator.Validate, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{timetables: timetables, csv: csv, pdf: pdf, validator: validate, logger: logger}
}

// Export filters the effective rows by section and teacher and renders them.
func (s *ExportService) Export(ctx context.Context, query dto.ExportQuery) (*ExportFile, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "format must be csv or pdf")
	}
	format := strings.ToLower(strings.TrimSpace(query.Format))
	if format == "" {
		format = ExportFormatCSV
	}

	doc, err := s.timetables.Current(ctx)
	if err != nil {
		return nil, err
	}
	rows := FilterRows(doc.TimetableData.Timetable, query.Section, query.Teacher)
	name := exportFilename(query)

	var file *ExportFile
	switch format {
	case ExportFormatPDF:
		data, err := s.pdf.Render(timetableGrids(doc, rows, query))
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		file = &ExportFile{Filename: name + ".pdf", ContentType: "application/pdf", Data: data}
	default:
		data, err := s.csv.Render(rows)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		file = &ExportFile{Filename: name + ".csv", ContentType: "text/csv", Data: data}
	}

	s.logger.Info("timetable exported",
		zap.String("format", format),
		zap.String("section", query.Section),
		zap.String("teacher", query.Teacher),
		zap.Int("rows", len(rows)))
	return file, nil
}

func exportFilename(query dto.ExportQuery) string {
	parts := []string{"timetable"}
	for _, filter := range []string{query.Section, query.Teacher} {
		if strings.TrimSpace(filter) != "" {
			parts = append(parts, slugifyUsername(filter))
		}
	}
	return strings.Join(parts, "_")
}

// timetableGrids lays rows out as day x slot pages: one page for a teacher export, otherwise
// one page per section.
func timetableGrids(doc *models.PublishedTimetable, rows []models.TimetableRow, query dto.ExportQuery) []export.Grid {
	subtitle := fmt.Sprintf("Published %s", doc.PublishedAt.UTC().Format("2006-01-02 15:04 MST"))
	if teacher := strings.TrimSpace(query.Teacher); teacher != "" {
		return []export.Grid{buildGrid("Timetable - "+teacher, subtitle, doc.InputData, rows, true)}
	}

	var order []string
	bySection := make(map[string][]models.TimetableRow)
	for _, row := range rows {
		if _, ok := bySection[row.Section]; !ok {
			order = append(order, row.Section)
		}
		bySection[row.Section] = append(bySection[row.Section], row)
	}
	if len(order) == 0 {
		return []export.Grid{buildGrid("Timetable", subtitle, doc.InputData, nil, false)}
	}
	grids := make([]export.Grid, 0, len(order))
	for _, section := range order {
		grids = append(grids, buildGrid("Timetable - "+section, subtitle, doc.InputData, bySection[section], false))
	}
	return grids
}

func buildGrid(title, subtitle string, input models.TimetableInput, rows []models.TimetableRow, teacherView bool) export.Grid {
	cells := make(map[string][]string)
	for _, row := range rows {
		if text := cellText(row, teacherView); text != "" {
			key := row.Day + "|" + row.Slot
			cells[key] = append(cells[key], text)
		}
	}
	grid := export.Grid{Title: title, Subtitle: subtitle, Columns: input.Slots}
	for _, day := range input.Days {
		gridRow := export.GridRow{Label: day, Cells: make([]string, len(input.Slots))}
		for i, slot := range input.Slots {
			gridRow.Cells[i] = strings.Join(cells[day+"|"+slot], "\n\n")
		}
		grid.Rows = append(grid.Rows, gridRow)
	}
	return grid
}

func cellText(row models.TimetableRow, teacherView bool) string {
	switch row.Subject {
	case scheduler.FreeSubject, "":
		return ""
	case scheduler.LunchSubject:
		return scheduler.LunchSubject
	}
	subject := row.Subject
	if row.Group != "" {
		subject = fmt.Sprintf("%s (%s)", subject, row.Group)
	}
	lines := []string{subject}
	who := row.Teacher
	if teacherView {
		who = row.Section
	}
	for _, line := range []string{who, row.Room} {
		if line != "" {
			lines = append(lines, line)
		}
	}
	if row.MovedFrom != "" {
		lines = append(lines, "moved from "+row.MovedFrom)
	}
	return strings.Join(lines, "\n")
}
