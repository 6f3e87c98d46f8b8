package scheduler

import (
	"fmt"

	"github.com/noah-isme/timetable-api/internal/models"
)

// ClubWeeklyHours is the weekly load of every synthetic club mapping.
const ClubWeeklyHours = 2

// WizardData holds the selections made before a run.
type WizardData struct {
	ClassIDs             []string          `json:"classIds" yaml:"classIds"`
	SubjectIDs           []string          `json:"subjectIds" yaml:"subjectIds"`
	TeacherIDs           []string          `json:"teacherIds" yaml:"teacherIds"`
	SubjectHours         map[string]int    `json:"subjectHours,omitempty" yaml:"subjectHours"`
	SubjectDistributions map[string]string `json:"subjectDistributions,omitempty" yaml:"subjectDistributions"`
}

// MappingResult carries the built mappings plus collected diagnostics.
type MappingResult struct {
	Mappings []Mapping `json:"mappings"`
	Warnings []string  `json:"warnings"`
	Errors   []string  `json:"errors"`
}

// ErrNoMappings is reported when the selection yields nothing to schedule.
const ErrNoMappings = "no class/subject/teacher combination matched the selection"

// BuildMappings expands class assignments into one mapping per wired (class, subject, teacher)
// triple and appends the synthetic club mappings. It never fails; problems are collected.
func BuildMappings(wizard WizardData, teachers []models.Teacher, classes []models.Class, subjects []models.Subject, rules GlobalRules) MappingResult {
	result := MappingResult{Mappings: []Mapping{}, Warnings: []string{}, Errors: []string{}}

	teacherByID := make(map[string]models.Teacher, len(teachers))
	for _, t := range teachers {
		teacherByID[t.ID] = t
	}
	classByID := make(map[string]models.Class, len(classes))
	for _, c := range classes {
		classByID[c.ID] = c
	}
	subjectByID := make(map[string]models.Subject, len(subjects))
	for _, s := range subjects {
		subjectByID[s.ID] = s
	}
	selectedTeachers := toSet(wizard.TeacherIDs)
	selectedSubjects := toSet(wizard.SubjectIDs)

	seen := make(map[mappingKey]struct{})
	add := func(m Mapping) {
		k := m.key()
		if _, dup := seen[k]; dup {
			return
		}
		seen[k] = struct{}{}
		result.Mappings = append(result.Mappings, m)
	}

	for _, classID := range wizard.ClassIDs {
		class, ok := classByID[classID]
		if !ok {
			result.Errors = append(result.Errors, fmt.Sprintf("class %s not found", classID))
			continue
		}
		for _, assignment := range class.Assignments {
			if _, ok := selectedTeachers[assignment.TeacherID]; !ok {
				continue
			}
			teacher, ok := teacherByID[assignment.TeacherID]
			if !ok {
				result.Errors = append(result.Errors, fmt.Sprintf("teacher %s assigned to %s not found", assignment.TeacherID, class.Name))
				continue
			}
			if !levelsIntersect(teacher.LevelSet(), class.LevelSet()) {
				result.Warnings = append(result.Warnings, fmt.Sprintf("teacher %s does not teach at the level of class %s; assignment skipped", teacher.Name, class.Name))
				continue
			}
			for _, subjectID := range assignment.SubjectIDs {
				if _, ok := selectedSubjects[subjectID]; !ok {
					continue
				}
				subject, ok := subjectByID[subjectID]
				if !ok {
					result.Errors = append(result.Errors, fmt.Sprintf("subject %s assigned to %s not found", subjectID, class.Name))
					continue
				}
				m, warn := lessonMapping(wizard, rules, class, teacher, subject)
				result.Warnings = append(result.Warnings, warn...)
				if m != nil {
					add(*m)
				}
			}
		}
	}

	for _, teacherID := range wizard.TeacherIDs {
		teacher, ok := teacherByID[teacherID]
		if !ok || !teacher.IsClubTeacher {
			continue
		}
		add(Mapping{
			ID:          mappingID(VirtualClassID(teacher.ID), ClubSubjectID, teacher.ID),
			ClassID:     VirtualClassID(teacher.ID),
			SubjectID:   ClubSubjectID,
			SubjectName: ClubSubjectName,
			TeacherID:   teacher.ID,
			WeeklyHours: ClubWeeklyHours,
			Club:        ClubTeacherBootstrap,
			Level:       firstLevel(teacher.LevelSet()),
		})
	}
	for _, classID := range wizard.ClassIDs {
		class, ok := classByID[classID]
		if !ok || !class.IsClubClass {
			continue
		}
		add(Mapping{
			ID:          mappingID(class.ID, ClubSubjectID, VirtualTeacherID(class.ID)),
			ClassID:     class.ID,
			SubjectID:   ClubSubjectID,
			SubjectName: ClubSubjectName,
			TeacherID:   VirtualTeacherID(class.ID),
			WeeklyHours: ClubWeeklyHours,
			Club:        ClubClassBootstrap,
			Level:       class.PrimaryLevel(),
		})
	}

	if len(result.Mappings) == 0 && len(result.Errors) == 0 {
		result.Errors = append(result.Errors, ErrNoMappings)
	}
	return result
}

func lessonMapping(wizard WizardData, rules GlobalRules, class models.Class, teacher models.Teacher, subject models.Subject) (*Mapping, []string) {
	var warnings []string

	hours := subject.WeeklyHours
	if override, ok := wizard.SubjectHours[subject.ID]; ok {
		hours = override
	}
	if hours <= 0 {
		return nil, []string{fmt.Sprintf("%s for %s has no weekly hours; skipped", subject.Name, class.Name)}
	}

	m := &Mapping{
		ID:          mappingID(class.ID, subject.ID, teacher.ID),
		ClassID:     class.ID,
		SubjectID:   subject.ID,
		SubjectName: subject.Name,
		TeacherID:   teacher.ID,
		WeeklyHours: hours,
		Level:       class.PrimaryLevel(),
	}

	pattern := subject.DistributionPattern
	if override, ok := wizard.SubjectDistributions[subject.ID]; ok {
		pattern = override
	}
	if rules.UseDistributionPatterns && pattern != "" {
		blocks, err := ParseDistribution(pattern)
		switch {
		case err != nil:
			warnings = append(warnings, fmt.Sprintf("%s for %s: %v; default split used", subject.Name, class.Name, err))
		case sum(blocks) != hours:
			warnings = append(warnings, fmt.Sprintf("%s for %s: pattern %s sums to %d but weekly hours are %d", subject.Name, class.Name, pattern, sum(blocks), hours))
			m.Distribution = blocks
		default:
			m.Distribution = blocks
		}
	}

	switch {
	case ResourceFor(subject.Name) != ResourceNone:
		m.Priority = PriorityResource
	case len(m.Distribution) > 0:
		m.Priority = PriorityPattern
	}
	if IsClubSubject(subject.Name) {
		m.Club = ClubAssigned
	}

	return m, warnings
}

func mappingID(classID, subjectID, teacherID string) string {
	return classID + "__" + subjectID + "__" + teacherID
}

func levelsIntersect(a, b []models.Level) bool {
	if len(a) == 0 || len(b) == 0 {
		return true
	}
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

func firstLevel(levels []models.Level) models.Level {
	if len(levels) == 0 {
		return models.LevelPrimary
	}
	return levels[0]
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func sum(values []int) int {
	total := 0
	for _, v := range values {
		total += v
	}
	return total
}
