package scheduler

import (
	"fmt"

	"github.com/noah-isme/timetable-api/internal/models"
)

const (
	preferredBonus    = 20
	restrictedPenalty = 20
)

type constraintKey struct {
	entity models.ConstraintEntity
	id     string
	slot   SlotKey
}

// constraintIndex answers hard and soft time-constraint questions in O(1).
type constraintIndex struct {
	unavailable map[constraintKey]struct{}
	preference  map[constraintKey]int
}

func newConstraintIndex(constraints []models.TimeConstraint) (constraintIndex, []string) {
	idx := constraintIndex{
		unavailable: make(map[constraintKey]struct{}),
		preference:  make(map[constraintKey]int),
	}
	var warnings []string
	for _, c := range constraints {
		day, okDay := ParseDay(c.Day)
		period, okPeriod := ParsePeriod(c.Period)
		if !okDay || !okPeriod {
			warnings = append(warnings, fmt.Sprintf("time constraint for %s %s ignored: unknown slot %s/%s", c.EntityType, c.EntityID, c.Day, c.Period))
			continue
		}
		k := constraintKey{entity: c.EntityType, id: c.EntityID, slot: SlotKey{Day: day, Period: period}}
		switch c.ConstraintType {
		case models.ConstraintUnavailable:
			idx.unavailable[k] = struct{}{}
		case models.ConstraintPreferred:
			idx.preference[k] += preferredBonus
		case models.ConstraintRestricted:
			idx.preference[k] -= restrictedPenalty
		}
	}
	return idx, warnings
}

func (c constraintIndex) blocked(entity models.ConstraintEntity, id string, slot SlotKey) bool {
	_, ok := c.unavailable[constraintKey{entity: entity, id: id, slot: slot}]
	return ok
}

// forbids reports a hard veto on the teacher, class or subject of m.
func (c constraintIndex) forbids(m *Mapping, slot SlotKey) bool {
	return c.blocked(models.ConstraintEntityTeacher, m.TeacherID, slot) ||
		c.blocked(models.ConstraintEntityClass, m.ClassID, slot) ||
		c.blocked(models.ConstraintEntitySubject, m.SubjectID, slot)
}

func (c constraintIndex) score(m *Mapping, slot SlotKey) int {
	return c.preference[constraintKey{entity: models.ConstraintEntityTeacher, id: m.TeacherID, slot: slot}] +
		c.preference[constraintKey{entity: models.ConstraintEntityClass, id: m.ClassID, slot: slot}] +
		c.preference[constraintKey{entity: models.ConstraintEntitySubject, id: m.SubjectID, slot: slot}]
}

type prefilledCell struct {
	cell cellKey
	slot ScheduleSlot
}

// problem is the immutable, pre-digested view of an Input shared by every attempt.
type problem struct {
	rules       GlobalRules
	mappings    []*Mapping
	byKey       map[mappingKey]*Mapping
	classOrder  []string
	lunchRows   map[string]models.Level
	classLevel  map[string]models.Level
	constraints constraintIndex
	prefilled   []prefilledCell

	prefilledHours map[mappingKey]int
	effective      map[mappingKey]int
	teacherLoad    map[string]int
	classLoad      map[string]int

	teacherNames map[string]string
	classNames   map[string]string
	resources    map[string]Resource

	// totalHours excludes club-teacher bootstrap mappings.
	totalHours int
}

func newProblem(in Input) (*problem, []string) {
	p := &problem{
		rules:          in.Rules,
		byKey:          make(map[mappingKey]*Mapping),
		lunchRows:      make(map[string]models.Level),
		classLevel:     make(map[string]models.Level),
		prefilledHours: make(map[mappingKey]int),
		effective:      make(map[mappingKey]int),
		teacherLoad:    make(map[string]int),
		classLoad:      make(map[string]int),
		teacherNames:   make(map[string]string),
		classNames:     make(map[string]string),
		resources:      make(map[string]Resource),
	}
	var warnings []string

	for _, t := range in.Teachers {
		p.teacherNames[t.ID] = t.Name
	}
	for _, s := range in.Subjects {
		if r := ResourceFor(s.Name); r != ResourceNone {
			p.resources[s.ID] = r
		}
	}
	rows := make(map[string]struct{})
	addRow := func(classID string, level models.Level) {
		if _, ok := rows[classID]; ok {
			return
		}
		rows[classID] = struct{}{}
		p.classOrder = append(p.classOrder, classID)
		p.classLevel[classID] = level
	}
	for _, c := range in.Classes {
		p.classNames[c.ID] = c.Name
		addRow(c.ID, c.PrimaryLevel())
		p.lunchRows[c.ID] = c.PrimaryLevel()
	}

	for i := range in.Mappings {
		m := in.Mappings[i]
		if m.WeeklyHours <= 0 {
			warnings = append(warnings, fmt.Sprintf("mapping %s has no weekly hours; ignored", m.ID))
			continue
		}
		if _, dup := p.byKey[m.key()]; dup {
			continue
		}
		if m.Level == "" {
			m.Level = models.LevelPrimary
		}
		mp := &m
		if r := ResourceFor(mp.SubjectName); r != ResourceNone {
			p.resources[mp.SubjectID] = r
		}
		p.mappings = append(p.mappings, mp)
		p.byKey[mp.key()] = mp
		addRow(mp.ClassID, mp.Level)
		if mp.Club == ClubTeacherBootstrap {
			p.classNames[mp.ClassID] = fmt.Sprintf("%s (%s)", ClubSubjectName, p.teacherName(mp.TeacherID))
		} else {
			p.totalHours += mp.WeeklyHours
		}
	}

	for _, fs := range in.FixedSlots {
		addRow(fs.ClassID, models.LevelPrimary)
	}
	for _, ts := range in.InitialSchedules {
		for _, periods := range ts.Schedule {
			for _, entry := range periods {
				if entry != nil && entry.SubjectID != LunchSubjectID {
					addRow(entry.ClassID, models.LevelPrimary)
				}
			}
		}
	}

	var cw []string
	p.constraints, cw = newConstraintIndex(in.TimeConstraints)
	warnings = append(warnings, cw...)
	warnings = append(warnings, p.collectPrefilled(in)...)

	for _, m := range p.mappings {
		k := m.key()
		pre := p.prefilledHours[k]
		if pre > m.WeeklyHours {
			pre = m.WeeklyHours
			p.prefilledHours[k] = pre
		}
		p.effective[k] = m.WeeklyHours - pre
		p.teacherLoad[m.TeacherID] += m.WeeklyHours
		p.classLoad[m.ClassID] += m.WeeklyHours
	}
	for _, pc := range p.prefilled {
		if _, ok := p.byKey[mappingKey{classID: pc.cell.classID, subjectID: pc.slot.SubjectID, teacherID: pc.slot.TeacherID}]; ok {
			continue
		}
		p.teacherLoad[pc.slot.TeacherID]++
		p.classLoad[pc.cell.classID]++
	}

	return p, warnings
}

// collectPrefilled validates initial schedules and fixed slots against each other and the
// lunch periods, keeping the first claim on any cell or teacher slot.
func (p *problem) collectPrefilled(in Input) []string {
	var warnings []string
	cells := make(map[cellKey]struct{})
	teachers := make(map[teacherSlotKey]struct{})
	for classID, level := range p.lunchRows {
		for d := 0; d < DaysPerWeek; d++ {
			cells[cellKey{classID: classID, slot: SlotKey{Day: Day(d), Period: lunchPeriod(level)}}] = struct{}{}
		}
	}

	claim := func(classID string, slot SlotKey, cell ScheduleSlot, source string) {
		ck := cellKey{classID: classID, slot: slot}
		tk := teacherSlotKey{teacherID: cell.TeacherID, slot: slot}
		if _, taken := cells[ck]; taken {
			warnings = append(warnings, fmt.Sprintf("%s for class %s at %s %s ignored: cell already occupied", source, classID, slot.Day, PeriodLabel(slot.Period)))
			return
		}
		if _, busy := teachers[tk]; busy && cell.TeacherID != "" {
			warnings = append(warnings, fmt.Sprintf("%s for teacher %s at %s %s ignored: teacher already busy", source, cell.TeacherID, slot.Day, PeriodLabel(slot.Period)))
			return
		}
		cells[ck] = struct{}{}
		if cell.TeacherID != "" {
			teachers[tk] = struct{}{}
		}
		p.prefilled = append(p.prefilled, prefilledCell{cell: ck, slot: cell})
		k := mappingKey{classID: classID, subjectID: cell.SubjectID, teacherID: cell.TeacherID}
		if _, ok := p.byKey[k]; ok {
			p.prefilledHours[k]++
		}
	}

	for _, ts := range in.InitialSchedules {
		for d, dayName := range models.DayNames {
			periods := ts.Schedule[dayName]
			for period := 0; period < PeriodsPerDay; period++ {
				entry := periods[PeriodLabel(period)]
				if entry == nil || entry.SubjectID == LunchSubjectID {
					continue
				}
				claim(entry.ClassID, SlotKey{Day: Day(d), Period: period}, ScheduleSlot{
					ClassID:     entry.ClassID,
					SubjectID:   entry.SubjectID,
					TeacherID:   ts.TeacherID,
					IsFixed:     true,
					IsFixedSlot: entry.IsFixedSlot,
				}, "initial schedule entry")
			}
		}
	}

	for _, fs := range in.FixedSlots {
		day, okDay := ParseDay(fs.Day)
		period, okPeriod := ParsePeriod(fs.Period)
		if !okDay || !okPeriod {
			warnings = append(warnings, fmt.Sprintf("fixed slot for class %s ignored: unknown slot %s/%s", fs.ClassID, fs.Day, fs.Period))
			continue
		}
		claim(fs.ClassID, SlotKey{Day: day, Period: period}, ScheduleSlot{
			ClassID:     fs.ClassID,
			SubjectID:   fs.SubjectID,
			TeacherID:   fs.TeacherID,
			IsFixed:     true,
			IsFixedSlot: true,
		}, "fixed slot")
	}
	return warnings
}

func (p *problem) teacherName(id string) string {
	if name, ok := p.teacherNames[id]; ok && name != "" {
		return name
	}
	return id
}

func (p *problem) className(id string) string {
	if name, ok := p.classNames[id]; ok && name != "" {
		return name
	}
	return id
}

// lunchPeriod is the daily non-lesson period of a level: "6" for Ortaokul, "5" otherwise.
func lunchPeriod(level models.Level) int {
	if level == models.LevelMiddle {
		return 5
	}
	return 4
}

// clubWindowStart is the first club period on Perşembe: "7" for Ortaokul, "9" otherwise.
func clubWindowStart(level models.Level) int {
	if level == models.LevelMiddle {
		return 6
	}
	return 8
}

const clubWindowLength = 2
