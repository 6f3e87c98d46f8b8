package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// Core PDF fonts only cover cp1252, which lacks these Turkish letters.
var cp1252Fold = strings.NewReplacer("ş", "s", "Ş", "S", "ğ", "g", "Ğ", "G", "ı", "i", "İ", "I")

// PDFExporter renders each table on its own landscape A4 page.
type PDFExporter struct {
	// FirstColumnWidth is the width in mm of the leading label column.
	FirstColumnWidth float64
}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{FirstColumnWidth: 18}
}

// Render creates a PDF document titled docTitle with one page per table.
func (e *PDFExporter) Render(docTitle string, tables ...Table) ([]byte, error) {
	if len(tables) == 0 {
		return nil, fmt.Errorf("pdf requires at least one table")
	}
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetTitle(docTitle, true)
	pdf.SetMargins(10, 12, 10)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	text := func(s string) string { return tr(cp1252Fold.Replace(s)) }

	pageWidth, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	usable := pageWidth - left - right

	for _, table := range tables {
		if err := table.validate(); err != nil {
			return nil, err
		}
		pdf.AddPage()

		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, text(table.Title), "", 1, "C", false, 0, "")
		pdf.Ln(3)

		first := e.FirstColumnWidth
		if len(table.Headers) == 1 {
			first = usable
		}
		rest := 0.0
		if len(table.Headers) > 1 {
			rest = (usable - first) / float64(len(table.Headers)-1)
		}
		width := func(i int) float64 {
			if i == 0 {
				return first
			}
			return rest
		}

		pdf.SetFont("Arial", "B", 10)
		for i, header := range table.Headers {
			pdf.CellFormat(width(i), 8, text(header), "1", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)

		pdf.SetFont("Arial", "", 8)
		for _, row := range table.Rows {
			for i := range table.Headers {
				value := ""
				if i < len(row) {
					value = row[i]
				}
				align := ""
				if i == 0 {
					align = "C"
				}
				pdf.CellFormat(width(i), 12, text(value), "1", 0, align, false, 0, "")
			}
			pdf.Ln(-1)
		}
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
