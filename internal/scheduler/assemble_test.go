package scheduler

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timetable-api/internal/models"
)

func TestAuditFindsUnavailableViolationsIdempotently(t *testing.T) {
	grid := ClassScheduleGrid{"c1": &ClassWeek{}}
	grid["c1"][Monday][2] = &ScheduleSlot{ClassID: "c1", SubjectID: "math", TeacherID: "t1"}
	grid["c1"][Monday][5] = &ScheduleSlot{ClassID: "c1", SubjectID: LunchSubjectID, IsFixed: true}
	constraints := []models.TimeConstraint{
		{EntityType: models.ConstraintEntityTeacher, EntityID: "t1", Day: "Pazartesi", Period: "3", ConstraintType: models.ConstraintUnavailable},
		{EntityType: models.ConstraintEntityClass, EntityID: "c1", Day: "Pazartesi", Period: "6", ConstraintType: models.ConstraintUnavailable},
		{EntityType: models.ConstraintEntitySubject, EntityID: "math", Day: "Pazartesi", Period: "3", ConstraintType: models.ConstraintPreferred},
	}

	first := Audit(grid, constraints)
	second := Audit(grid, constraints)

	require.Len(t, first, 1)
	assert.Contains(t, first[0], "t1")
	assert.Equal(t, first, second)
}

func TestAssembleTruncatesErrors(t *testing.T) {
	in := engineInput(DefaultGlobalRules(), mathMapping("c1", "t1", 2, nil))
	p, _ := newProblem(in)
	grid := ClassScheduleGrid{"c1": &ClassWeek{}}
	for period := 0; period < PeriodsPerDay; period++ {
		grid["c1"][Friday][period] = &ScheduleSlot{ClassID: "c1", SubjectID: "math", TeacherID: "t1"}
		in.TimeConstraints = append(in.TimeConstraints, models.TimeConstraint{
			EntityType: models.ConstraintEntityTeacher, EntityID: "t1", Day: "Cuma", Period: PeriodLabel(period), ConstraintType: models.ConstraintUnavailable,
		})
		in.TimeConstraints = append(in.TimeConstraints, models.TimeConstraint{
			EntityType: models.ConstraintEntityClass, EntityID: "c1", Day: "Cuma", Period: PeriodLabel(period), ConstraintType: models.ConstraintUnavailable,
		})
	}

	res := assemble(p, in, &attemptResult{grid: grid})

	assert.Len(t, res.Errors, MaxReportedErrors)
	assert.True(t, res.Success)
}

func TestAssembleWithoutMappingsFails(t *testing.T) {
	p, _ := newProblem(Input{})

	res := assemble(p, Input{}, &attemptResult{grid: ClassScheduleGrid{}})

	assert.False(t, res.Success)
	assert.Equal(t, []string{ErrNoMappings}, res.Errors)
}

func TestTeacherSchedulesIncludeFixedAndMappedTeachers(t *testing.T) {
	in := engineInput(DefaultGlobalRules(), mathMapping("c1", "t1", 2, nil))
	in.FixedSlots = []models.FixedSlot{{Day: "Cuma", Period: "1", ClassID: "c1", SubjectID: "music", TeacherID: "t9"}}

	res := newTestEngine(2).Generate(context.Background(), in, nil)

	require.Len(t, res.Schedules, 2)
	assert.Equal(t, "t1", res.Schedules[0].TeacherID)
	assert.Equal(t, "t9", res.Schedules[1].TeacherID)
	entry := res.Schedules[1].Schedule["Cuma"]["1"]
	require.NotNil(t, entry)
	assert.True(t, entry.IsFixedSlot)
	assert.Equal(t, "music", entry.SubjectID)
}

func TestGridJSONRoundTrip(t *testing.T) {
	grid := ClassScheduleGrid{"c1": &ClassWeek{}}
	grid["c1"][Thursday][9] = &ScheduleSlot{ClassID: "c1", SubjectID: "math", TeacherID: "t1", IsFixed: true}

	raw, err := json.Marshal(grid)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"Perşembe"`)
	assert.Contains(t, string(raw), `"10":{"classId":"c1","subjectId":"math","teacherId":"t1","isFixed":true}`)

	var decoded ClassScheduleGrid
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, grid, decoded)
}

func TestCountConflicts(t *testing.T) {
	grid := ClassScheduleGrid{"c1": &ClassWeek{}, "c2": &ClassWeek{}}
	grid["c1"][Monday][0] = &ScheduleSlot{ClassID: "c1", SubjectID: "math", TeacherID: "t1"}
	grid["c2"][Monday][0] = &ScheduleSlot{ClassID: "c2", SubjectID: "math", TeacherID: "t1"}
	grid["c2"][Monday][1] = &ScheduleSlot{ClassID: "c2", SubjectID: "math", TeacherID: "t1"}

	assert.Equal(t, 1, grid.CountConflicts())
}

func TestSubjectClassification(t *testing.T) {
	assert.Equal(t, ResourceITRoom, ResourceFor("BİLİŞİM TEKNOLOJİLERİ"))
	assert.Equal(t, ResourceGym, ResourceFor("Beden Eğitimi ve Spor"))
	assert.Equal(t, ResourceNone, ResourceFor("Matematik"))

	assert.True(t, IsProtectedSubject("GÖRSEL SANATLAR"))
	assert.True(t, IsProtectedSubject("Seçmeli İngilizce"))
	assert.False(t, IsProtectedSubject("Fen Bilimleri"))
	assert.True(t, IsClubSubject("Kulüp Çalışmaları"))
}
