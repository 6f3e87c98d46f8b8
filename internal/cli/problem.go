package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/noah-isme/timetable-api/internal/models"
	"github.com/noah-isme/timetable-api/internal/scheduler"
)

// Problem is an offline generation input: the entities the service would load from the
// database plus the wizard selection and rules. Entity fields use the API's JSON names.
type Problem struct {
	Teachers         []models.Teacher         `json:"teachers" validate:"dive"`
	Classes          []models.Class           `json:"classes" validate:"dive"`
	Subjects         []models.Subject         `json:"subjects" validate:"dive"`
	TimeConstraints  []models.TimeConstraint  `json:"timeConstraints" validate:"dive"`
	FixedSlots       []models.FixedSlot       `json:"fixedSlots" validate:"dive"`
	InitialSchedules []models.TeacherSchedule `json:"initialSchedules"`
	Wizard           scheduler.WizardData     `json:"wizard"`
	Rules            *scheduler.GlobalRules   `json:"rules"`
}

// LoadProblem reads a YAML or JSON problem document.
func LoadProblem(path string) (*Problem, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read problem: %w", err)
	}
	return ParseProblem(raw)
}

// ParseProblem decodes a YAML or JSON document. YAML is converted to JSON first so that the
// entity json tags apply to both formats. An empty wizard list selects everything of that kind.
func ParseProblem(raw []byte) (*Problem, error) {
	var doc interface{}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse problem: %w", err)
	}
	asJSON, err := json.Marshal(normalizeYAML(doc))
	if err != nil {
		return nil, fmt.Errorf("convert problem: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(asJSON))
	dec.DisallowUnknownFields()
	var p Problem
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("decode problem: %w", err)
	}
	if err := validator.New().Struct(p); err != nil {
		return nil, fmt.Errorf("invalid problem: %w", err)
	}

	for i := range p.Classes {
		for j := range p.Classes[i].Assignments {
			p.Classes[i].Assignments[j].ClassID = p.Classes[i].ID
		}
	}
	if len(p.Wizard.ClassIDs) == 0 {
		p.Wizard.ClassIDs = classIDs(p.Classes)
	}
	if len(p.Wizard.TeacherIDs) == 0 {
		p.Wizard.TeacherIDs = teacherIDs(p.Teachers)
	}
	if len(p.Wizard.SubjectIDs) == 0 {
		p.Wizard.SubjectIDs = subjectIDs(p.Subjects)
	}
	return &p, nil
}

// RulesOrDefault returns the document rules or the wizard defaults.
func (p *Problem) RulesOrDefault() scheduler.GlobalRules {
	if p.Rules != nil {
		return *p.Rules
	}
	return scheduler.DefaultGlobalRules()
}

// Mappings builds the lesson mappings of the selection.
func (p *Problem) Mappings() scheduler.MappingResult {
	return scheduler.BuildMappings(p.Wizard, p.Teachers, p.Classes, p.Subjects, p.RulesOrDefault())
}

// Input assembles the engine input for the given mappings.
func (p *Problem) Input(mappings []scheduler.Mapping, seed int64) scheduler.Input {
	return scheduler.Input{
		Mappings:         mappings,
		Teachers:         p.Teachers,
		Classes:          p.Classes,
		Subjects:         p.Subjects,
		TimeConstraints:  p.TimeConstraints,
		Rules:            p.RulesOrDefault(),
		InitialSchedules: p.InitialSchedules,
		FixedSlots:       p.FixedSlots,
		Seed:             seed,
	}
}

// normalizeYAML turns map[interface{}]interface{} nodes, which JSON cannot encode, into
// string-keyed maps.
func normalizeYAML(v interface{}) interface{} {
	switch node := v.(type) {
	case map[string]interface{}:
		for k, child := range node {
			node[k] = normalizeYAML(child)
		}
		return node
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(node))
		for k, child := range node {
			out[fmt.Sprint(k)] = normalizeYAML(child)
		}
		return out
	case []interface{}:
		for i, child := range node {
			node[i] = normalizeYAML(child)
		}
		return node
	default:
		return v
	}
}

func classIDs(classes []models.Class) []string {
	ids := make([]string, 0, len(classes))
	for _, c := range classes {
		ids = append(ids, c.ID)
	}
	return ids
}

func teacherIDs(teachers []models.Teacher) []string {
	ids := make([]string, 0, len(teachers))
	for _, t := range teachers {
		ids = append(ids, t.ID)
	}
	return ids
}

func subjectIDs(subjects []models.Subject) []string {
	ids := make([]string, 0, len(subjects))
	for _, s := range subjects {
		ids = append(ids, s.ID)
	}
	return ids
}
