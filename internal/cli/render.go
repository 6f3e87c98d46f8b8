package cli

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/noah-isme/timetable-api/internal/models"
	"github.com/noah-isme/timetable-api/internal/scheduler"
	"github.com/noah-isme/timetable-api/pkg/export"
)

const (
	formatJSON = "json"
	formatYAML = "yaml"
	formatCSV  = "csv"
	formatPDF  = "pdf"

	lunchLabel = "Öğle Arası"
	docTitle   = "Haftalık Ders Programı"
)

// encode renders v as indented JSON or as YAML. YAML goes through JSON so that custom
// marshalers such as the grid's day/period form are honoured.
func encode(v interface{}, format string) ([]byte, error) {
	asJSON, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	switch format {
	case formatJSON:
		return append(asJSON, '\n'), nil
	case formatYAML:
		var doc interface{}
		if err := yaml.Unmarshal(asJSON, &doc); err != nil {
			return nil, err
		}
		return yaml.Marshal(doc)
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
}

// renderResult encodes a generation result in the requested format.
func renderResult(p *Problem, result *scheduler.Result, format string) ([]byte, error) {
	switch format {
	case formatCSV:
		return export.NewCSVExporter("Sınıf").Render(classTables(p, result.FinalGrid)...)
	case formatPDF:
		return export.NewPDFExporter().Render(docTitle, classTables(p, result.FinalGrid)...)
	default:
		return encode(result, format)
	}
}

// classTables lays out one table per grid row: periods down, days across.
func classTables(p *Problem, grid scheduler.ClassScheduleGrid) []export.Table {
	names := newNameIndex(p)
	headers := append([]string{"Saat"}, models.DayNames...)

	tables := make([]export.Table, 0, len(grid))
	for _, classID := range grid.ClassIDs() {
		table := export.Table{Title: names.class(classID), Headers: headers}
		for period := 0; period < scheduler.PeriodsPerDay; period++ {
			row := make([]string, 0, len(headers))
			row = append(row, scheduler.PeriodLabel(period))
			for day := 0; day < scheduler.DaysPerWeek; day++ {
				row = append(row, names.cell(grid.At(classID, scheduler.SlotKey{Day: scheduler.Day(day), Period: period})))
			}
			table.Rows = append(table.Rows, row)
		}
		tables = append(tables, table)
	}
	return tables
}

type nameIndex struct {
	classes  map[string]string
	subjects map[string]string
	teachers map[string]string
}

func newNameIndex(p *Problem) nameIndex {
	idx := nameIndex{
		classes:  make(map[string]string, len(p.Classes)),
		subjects: map[string]string{scheduler.ClubSubjectID: scheduler.ClubSubjectName},
		teachers: make(map[string]string, len(p.Teachers)),
	}
	for _, c := range p.Classes {
		idx.classes[c.ID] = c.Name
	}
	for _, s := range p.Subjects {
		idx.subjects[s.ID] = s.Name
	}
	for _, t := range p.Teachers {
		idx.teachers[t.ID] = t.Name
	}
	return idx
}

func lookup(names map[string]string, id string) string {
	if name, ok := names[id]; ok && name != "" {
		return name
	}
	return id
}

func (n nameIndex) class(id string) string {
	return lookup(n.classes, id)
}

func (n nameIndex) cell(slot *scheduler.ScheduleSlot) string {
	switch {
	case slot == nil:
		return ""
	case slot.SubjectID == scheduler.LunchSubjectID:
		return lunchLabel
	case slot.TeacherID == "":
		return lookup(n.subjects, slot.SubjectID)
	}
	return lookup(n.subjects, slot.SubjectID) + " / " + lookup(n.teachers, slot.TeacherID)
}
