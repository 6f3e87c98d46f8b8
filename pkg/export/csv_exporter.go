package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// Table is one titled grid, typically the week of a single class.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
}

func (t Table) validate() error {
	if len(t.Headers) == 0 {
		return fmt.Errorf("table %q has no headers", t.Title)
	}
	for i, row := range t.Rows {
		if len(row) > len(t.Headers) {
			return fmt.Errorf("table %q row %d has %d cells for %d headers", t.Title, i, len(row), len(t.Headers))
		}
	}
	return nil
}

// CSVExporter flattens tables into one CSV document. The first column carries the table title.
type CSVExporter struct {
	// TitleHeader names the leading title column.
	TitleHeader string
}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter(titleHeader string) *CSVExporter {
	if titleHeader == "" {
		titleHeader = "Table"
	}
	return &CSVExporter{TitleHeader: titleHeader}
}

// Render produces CSV encoded bytes. All tables must share the headers of the first one.
func (e *CSVExporter) Render(tables ...Table) ([]byte, error) {
	if len(tables) == 0 {
		return nil, fmt.Errorf("csv requires at least one table")
	}
	headers := tables[0].Headers
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writer.Write(append([]string{e.TitleHeader}, headers...)); err != nil {
		return nil, fmt.Errorf("write csv headers: %w", err)
	}
	for _, table := range tables {
		if err := table.validate(); err != nil {
			return nil, err
		}
		if len(table.Headers) != len(headers) {
			return nil, fmt.Errorf("table %q has %d headers, want %d", table.Title, len(table.Headers), len(headers))
		}
		for _, row := range table.Rows {
			record := make([]string, len(headers)+1)
			record[0] = table.Title
			copy(record[1:], row)
			if err := writer.Write(record); err != nil {
				return nil, fmt.Errorf("write csv row: %w", err)
			}
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
