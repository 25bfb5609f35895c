package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// Register is a tabular snapshot prepared by the services for download,
// typically a filtered certificate or incident register.
type Register struct {
	Title   string
	Columns []string
	Rows    [][]string
}

// CSVExporter renders a Register into CSV bytes.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Render produces CSV encoded bytes for the register.
func (e *CSVExporter) Render(reg Register) ([]byte, error) {
	if len(reg.Columns) == 0 {
		return nil, fmt.Errorf("csv requires at least one column")
	}
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writer.Write(reg.Columns); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range reg.Rows {
		record := make([]string, len(reg.Columns))
		copy(record, row)
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
