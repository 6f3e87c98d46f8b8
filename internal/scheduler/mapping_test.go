package scheduler

import (
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timetable-api/internal/models"
)

func TestBuildMappingsWiresAssignments(t *testing.T) {
	teachers, classes, subjects := mappingFixture()

	res := BuildMappings(WizardData{
		ClassIDs:   []string{"5a"},
		SubjectIDs: []string{"math", "pe"},
		TeacherIDs: []string{"t-math", "t-pe"},
	}, teachers, classes, subjects, DefaultGlobalRules())

	require.Empty(t, res.Errors)
	require.Len(t, res.Mappings, 2)
	math := res.Mappings[0]
	assert.Equal(t, "5a", math.ClassID)
	assert.Equal(t, "t-math", math.TeacherID)
	assert.Equal(t, 5, math.WeeklyHours)
	assert.Equal(t, []int{2, 2, 1}, math.Distribution)
	assert.Equal(t, PriorityPattern, math.Priority)
	assert.Equal(t, models.LevelMiddle, math.Level)

	pe := res.Mappings[1]
	assert.Equal(t, PriorityResource, pe.Priority)
}

func TestBuildMappingsSkipsUnselectedAndLevelMismatch(t *testing.T) {
	teachers, classes, subjects := mappingFixture()
	teachers = append(teachers, models.Teacher{ID: "t-kg", Name: "Ayşe", Levels: pq.StringArray{string(models.LevelPreschool)}})
	classes[0].Assignments = append(classes[0].Assignments, models.ClassAssignment{TeacherID: "t-kg", SubjectIDs: pq.StringArray{"math"}})

	res := BuildMappings(WizardData{
		ClassIDs:   []string{"5a"},
		SubjectIDs: []string{"math"},
		TeacherIDs: []string{"t-math", "t-kg"},
	}, teachers, classes, subjects, DefaultGlobalRules())

	require.Len(t, res.Mappings, 1)
	assert.Equal(t, "t-math", res.Mappings[0].TeacherID)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "Ayşe")
}

func TestBuildMappingsHourOverrideAndPatternMismatch(t *testing.T) {
	teachers, classes, subjects := mappingFixture()

	res := BuildMappings(WizardData{
		ClassIDs:     []string{"5a"},
		SubjectIDs:   []string{"math"},
		TeacherIDs:   []string{"t-math"},
		SubjectHours: map[string]int{"math": 6},
	}, teachers, classes, subjects, DefaultGlobalRules())

	require.Len(t, res.Mappings, 1)
	assert.Equal(t, 6, res.Mappings[0].WeeklyHours)
	assert.Equal(t, []int{2, 2, 1}, res.Mappings[0].Distribution)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "2+2+1")
}

func TestBuildMappingsIgnoresPatternsWhenDisabled(t *testing.T) {
	teachers, classes, subjects := mappingFixture()
	rules := DefaultGlobalRules()
	rules.UseDistributionPatterns = false

	res := BuildMappings(WizardData{
		ClassIDs:   []string{"5a"},
		SubjectIDs: []string{"math"},
		TeacherIDs: []string{"t-math"},
	}, teachers, classes, subjects, rules)

	require.Len(t, res.Mappings, 1)
	assert.Nil(t, res.Mappings[0].Distribution)
}

func TestBuildMappingsSynthesizesClubMappings(t *testing.T) {
	teachers, classes, subjects := mappingFixture()
	teachers[0].IsClubTeacher = true
	classes[0].IsClubClass = true

	res := BuildMappings(WizardData{
		ClassIDs:   []string{"5a"},
		SubjectIDs: []string{},
		TeacherIDs: []string{"t-math"},
	}, teachers, classes, subjects, DefaultGlobalRules())

	require.Len(t, res.Mappings, 2)
	teacherClub := res.Mappings[0]
	assert.Equal(t, ClubTeacherBootstrap, teacherClub.Club)
	assert.Equal(t, "kulup-virtual-class-t-math", teacherClub.ClassID)
	assert.Equal(t, ClubWeeklyHours, teacherClub.WeeklyHours)

	classClub := res.Mappings[1]
	assert.Equal(t, ClubClassBootstrap, classClub.Club)
	assert.Equal(t, "kulup-virtual-teacher-5a", classClub.TeacherID)
	assert.Equal(t, "5a", classClub.ClassID)
}

func TestBuildMappingsReportsNoMatches(t *testing.T) {
	teachers, classes, subjects := mappingFixture()

	res := BuildMappings(WizardData{ClassIDs: []string{"5a"}}, teachers, classes, subjects, DefaultGlobalRules())

	assert.Empty(t, res.Mappings)
	assert.Equal(t, []string{ErrNoMappings}, res.Errors)
}

func TestBuildMappingsCollectsMissingEntities(t *testing.T) {
	teachers, classes, subjects := mappingFixture()

	res := BuildMappings(WizardData{ClassIDs: []string{"missing"}}, teachers, classes, subjects, DefaultGlobalRules())

	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "missing")
}

// --- Fixtures ---

func mappingFixture() ([]models.Teacher, []models.Class, []models.Subject) {
	teachers := []models.Teacher{
		{ID: "t-math", Name: "Mehmet", Levels: pq.StringArray{string(models.LevelMiddle)}},
		{ID: "t-pe", Name: "Zeynep", Levels: pq.StringArray{string(models.LevelMiddle)}},
	}
	classes := []models.Class{
		{
			ID:     "5a",
			Name:   "5-A",
			Levels: pq.StringArray{string(models.LevelMiddle)},
			Assignments: []models.ClassAssignment{
				{TeacherID: "t-math", SubjectIDs: pq.StringArray{"math"}},
				{TeacherID: "t-pe", SubjectIDs: pq.StringArray{"pe"}},
			},
		},
	}
	subjects := []models.Subject{
		{ID: "math", Name: "Matematik", WeeklyHours: 5, DistributionPattern: "2+2+1"},
		{ID: "pe", Name: "Beden Eğitimi", WeeklyHours: 2},
	}
	return teachers, classes, subjects
}
