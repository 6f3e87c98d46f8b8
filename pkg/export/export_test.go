package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTables() []Table {
	return []Table{
		{Title: "5-A", Headers: []string{"Saat", "Pazartesi"}, Rows: [][]string{{"1", "Matematik / Ayşe"}, {"2"}}},
		{Title: "5-B", Headers: []string{"Saat", "Pazartesi"}, Rows: [][]string{{"1", "Türkçe, okuma"}}},
	}
}

func TestCSVExporterFlattensTables(t *testing.T) {
	out, err := NewCSVExporter("Sınıf").Render(sampleTables()...)
	require.NoError(t, err)
	assert.Equal(t, "Sınıf,Saat,Pazartesi\n5-A,1,Matematik / Ayşe\n5-A,2,\n5-B,1,\"Türkçe, okuma\"\n", string(out))
}

func TestCSVExporterRejectsMismatchedTables(t *testing.T) {
	tables := sampleTables()
	tables[1].Headers = []string{"Saat"}
	tables[1].Rows = nil
	_, err := NewCSVExporter("").Render(tables...)
	assert.Error(t, err)

	_, err = NewCSVExporter("").Render()
	assert.Error(t, err)

	_, err = NewCSVExporter("").Render(Table{Title: "x", Headers: []string{"a"}, Rows: [][]string{{"1", "2"}}})
	assert.Error(t, err)
}

func TestPDFExporterRendersDocument(t *testing.T) {
	out, err := NewPDFExporter().Render("Haftalık Ders Programı", sampleTables()...)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))

	_, err = NewPDFExporter().Render("empty")
	assert.Error(t, err)
}
