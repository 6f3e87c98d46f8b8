package scheduler

import (
	"fmt"
	"sort"

	"github.com/noah-isme/timetable-api/internal/models"
)

// MaxReportedErrors caps audit violations copied into a Result.
const MaxReportedErrors = 10

func assemble(p *problem, in Input, best *attemptResult) *Result {
	res := &Result{
		Success:   true,
		Schedules: []models.TeacherSchedule{},
		Warnings:  []string{},
		Errors:    []string{},
		FinalGrid: best.grid,
		Conflicts: best.conflicts,
	}
	if len(p.mappings) == 0 {
		res.Success = false
		res.Errors = append(res.Errors, ErrNoMappings)
	}

	res.Schedules = teacherSchedules(p, in, best.grid)
	res.Statistics = statistics(p, best)
	if missing := res.Statistics.TotalLessonsToPlace - res.Statistics.PlacedLessons; missing > 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%d of %d lesson hours could not be placed", missing, res.Statistics.TotalLessonsToPlace))
	}
	if best.conflicts > 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%d teacher double bookings remain in the best result", best.conflicts))
	}

	violations := Audit(best.grid, in.TimeConstraints)
	if len(violations) > MaxReportedErrors {
		violations = violations[:MaxReportedErrors]
	}
	res.Errors = append(res.Errors, violations...)
	res.Diagnostics = diagnose(p, best.grid)
	return res
}

// teacherSchedules derives one week per teacher seen in the grid, mappings or prefilled input.
func teacherSchedules(p *problem, in Input, grid ClassScheduleGrid) []models.TeacherSchedule {
	weeks := make(map[string]models.WeeklySchedule)
	ensure := func(teacherID string) models.WeeklySchedule {
		if teacherID == "" {
			return nil
		}
		w, ok := weeks[teacherID]
		if !ok {
			w = models.NewWeeklySchedule()
			weeks[teacherID] = w
		}
		return w
	}
	for _, m := range p.mappings {
		ensure(m.TeacherID)
	}
	for _, ts := range in.InitialSchedules {
		ensure(ts.TeacherID)
	}
	for _, fs := range in.FixedSlots {
		ensure(fs.TeacherID)
	}
	grid.Each(func(classID string, key SlotKey, slot *ScheduleSlot) {
		w := ensure(slot.TeacherID)
		if w == nil {
			return
		}
		w[key.Day.String()][PeriodLabel(key.Period)] = &models.ScheduleEntry{
			ClassID:     classID,
			SubjectID:   slot.SubjectID,
			IsFixed:     slot.IsFixed,
			IsFixedSlot: slot.IsFixedSlot,
		}
	})

	ids := make([]string, 0, len(weeks))
	for id := range weeks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]models.TeacherSchedule, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.TeacherSchedule{TeacherID: id, Schedule: weeks[id]})
	}
	return out
}

func statistics(p *problem, best *attemptResult) Statistics {
	placedByMapping := make(map[mappingKey]int)
	for _, t := range best.tasks {
		placedByMapping[t.Mapping.key()] += len(t.Slots)
	}
	stats := Statistics{
		TotalLessonsToPlace: p.totalHours,
		PlacedLessons:       best.placed,
		UnassignedLessons:   []UnassignedLesson{},
	}
	for _, m := range p.mappings {
		if m.Club == ClubTeacherBootstrap {
			continue
		}
		k := m.key()
		placed := placedByMapping[k]
		if placed > p.effective[k] {
			placed = p.effective[k]
		}
		if missing := p.effective[k] - placed; missing > 0 {
			stats.UnassignedLessons = append(stats.UnassignedLessons, UnassignedLesson{
				ClassName:    p.className(m.ClassID),
				SubjectName:  m.SubjectName,
				TeacherName:  p.teacherName(m.TeacherID),
				MissingHours: missing,
			})
		}
	}
	return stats
}

// Audit cross-checks every lesson against unavailable constraints. It never mutates and is
// safe to run repeatedly.
func Audit(grid ClassScheduleGrid, constraints []models.TimeConstraint) []string {
	idx, _ := newConstraintIndex(constraints)
	violations := []string{}
	grid.Each(func(classID string, key SlotKey, slot *ScheduleSlot) {
		if !slot.isLesson() {
			return
		}
		checks := []struct {
			entity models.ConstraintEntity
			id     string
		}{
			{models.ConstraintEntityTeacher, slot.TeacherID},
			{models.ConstraintEntityClass, classID},
			{models.ConstraintEntitySubject, slot.SubjectID},
		}
		for _, c := range checks {
			if c.id != "" && idx.blocked(c.entity, c.id, key) {
				violations = append(violations, fmt.Sprintf("%s %s is unavailable at %s %s but hosts %s in class %s",
					c.entity, c.id, key.Day, PeriodLabel(key.Period), slot.SubjectID, classID))
			}
		}
	})
	return violations
}

// diagnose compares required hours with grid content per (class, subject) and per teacher.
func diagnose(p *problem, grid ClassScheduleGrid) []HourDiscrepancy {
	expectedPair := make(map[string]int)
	expectedTeacher := make(map[string]int)
	for _, m := range p.mappings {
		expectedPair[m.ClassID+"/"+m.SubjectID] += m.WeeklyHours
		expectedTeacher[m.TeacherID] += m.WeeklyHours
	}
	actualPair := make(map[string]int)
	actualTeacher := make(map[string]int)
	grid.Each(func(classID string, _ SlotKey, slot *ScheduleSlot) {
		if !slot.isLesson() {
			return
		}
		actualPair[classID+"/"+slot.SubjectID]++
		if slot.TeacherID != "" {
			actualTeacher[slot.TeacherID]++
		}
	})

	var out []HourDiscrepancy
	out = append(out, discrepancies("class-subject", expectedPair, actualPair)...)
	out = append(out, discrepancies("teacher", expectedTeacher, actualTeacher)...)
	return out
}

func discrepancies(scope string, expected, actual map[string]int) []HourDiscrepancy {
	ids := make([]string, 0, len(expected))
	for id := range expected {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	var out []HourDiscrepancy
	for _, id := range ids {
		if expected[id] != actual[id] {
			out = append(out, HourDiscrepancy{Scope: scope, ID: id, Expected: expected[id], Actual: actual[id]})
		}
	}
	return out
}
