package export

import (
	"fmt"

	"github.com/gocarina/gocsv"
)

// CSVExporter renders slices of csv-tagged structs. The header row follows the struct tags.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Render produces CSV encoded bytes for records, which must be a slice or a pointer to one.
func (e *CSVExporter) Render(records interface{}) ([]byte, error) {
	data, err := gocsv.MarshalBytes(records)
	if err != nil {
		return nil, fmt.Errorf("marshal csv: %w", err)
	}
	return data, nil
}
