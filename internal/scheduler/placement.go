package scheduler

import (
	"sort"

	"github.com/noah-isme/timetable-api/internal/models"
)

// capMode selects which teacher daily ceiling applies.
type capMode int

const (
	capBlock capMode = iota
	capEmergency
)

const (
	heavyLoadThreshold = 28
	lightDailyCap      = 6
	heavyDailyCap      = 7
	emergencyDailyCap  = 8
)

func (a *attempt) dailyCap(teacherID string, mode capMode) int {
	emergency := emergencyDailyCap
	if rule := a.p.rules.MaxDailyHoursTeacher; rule > 0 {
		emergency = rule
	}
	if mode == capEmergency {
		return emergency
	}
	limit := lightDailyCap
	if a.p.teacherLoad[teacherID] >= heavyLoadThreshold {
		limit = heavyDailyCap
	}
	if limit > emergency {
		limit = emergency
	}
	return limit
}

// slotFree checks one period for class, teacher, hard constraints and room capacity.
func (a *attempt) slotFree(m *Mapping, key SlotKey) bool {
	if a.grid.At(m.ClassID, key) != nil {
		return false
	}
	if _, busy := a.teacherAt[teacherSlotKey{teacherID: m.TeacherID, slot: key}]; busy {
		return false
	}
	if a.p.constraints.forbids(m, key) {
		return false
	}
	if r := a.resourceOf(m.SubjectID); r != ResourceNone {
		if a.resourceUse[resourceSlotKey{resource: r, slot: key}] >= r.Capacity() {
			return false
		}
	}
	return true
}

func (a *attempt) withinDailyCaps(m *Mapping, day Day, hours int, mode capMode) bool {
	if a.teacherDaily[teacherDayKey{teacherID: m.TeacherID, day: day}]+hours > a.dailyCap(m.TeacherID, mode) {
		return false
	}
	if limit := a.p.rules.MaxDailyHoursClass; limit > 0 {
		if a.classDaily[classDayKey{classID: m.ClassID, day: day}]+hours > limit {
			return false
		}
	}
	return true
}

// canPlaceBlock enforces every hard rule for a whole block, including one block of a
// subject per class per day.
func (a *attempt) canPlaceBlock(t *Task, day Day, start int, mode capMode) bool {
	m := t.Mapping
	if start < 0 || start+t.Length > PeriodsPerDay {
		return false
	}
	if a.subjectDaily[subjectDayKey{classID: m.ClassID, subjectID: m.SubjectID, day: day}] > 0 {
		return false
	}
	if !a.withinDailyCaps(m, day, t.Length, mode) {
		return false
	}
	for i := 0; i < t.Length; i++ {
		if !a.slotFree(m, SlotKey{Day: day, Period: start + i}) {
			return false
		}
	}
	return true
}

// score rates a block start. Higher is better.
func (a *attempt) score(t *Task, day Day, start int) int {
	m := t.Mapping
	load := a.p.teacherLoad[m.TeacherID]
	low := load / DaysPerWeek
	high := low
	ceilDays := load % DaysPerWeek
	if ceilDays > 0 {
		high++
	}

	current := a.teacherDaily[teacherDayKey{teacherID: m.TeacherID, day: day}]
	next := current + t.Length

	s := 0
	switch {
	case next <= low:
		s += 100
	case next <= high:
		if a.daysAtLeast(m.TeacherID, high) < ceilDays {
			s += 60
		} else {
			s -= 40
		}
	default:
		s -= 80 * (next - high)
	}
	s -= 5 * current
	s -= 3 * a.classDaily[classDayKey{classID: m.ClassID, day: day}]

	for i := 0; i < t.Length; i++ {
		s += a.p.constraints.score(m, SlotKey{Day: day, Period: start + i})
	}
	if a.p.rules.PreferMorningHours {
		s -= 2 * start
	}
	if a.p.rules.AvoidFirstLastPeriod && (start == 0 || start+t.Length == PeriodsPerDay) {
		s -= 15
	}
	return s
}

func (a *attempt) daysAtLeast(teacherID string, hours int) int {
	n := 0
	for d := 0; d < DaysPerWeek; d++ {
		if a.teacherDaily[teacherDayKey{teacherID: teacherID, day: Day(d)}] >= hours {
			n++
		}
	}
	return n
}

type candidate struct {
	day   Day
	start int
	score int
}

// pick returns the highest scoring candidate, random among ties.
func (a *attempt) pick(cands []candidate) (candidate, bool) {
	if len(cands) == 0 {
		return candidate{}, false
	}
	best := cands[:0:0]
	for _, c := range cands {
		switch {
		case len(best) == 0 || c.score > best[0].score:
			best = append(best[:0], c)
		case c.score == best[0].score:
			best = append(best, c)
		}
	}
	return best[a.rng.Intn(len(best))], true
}

// bestStart searches every valid block start over randomized days.
func (a *attempt) bestStart(t *Task, mode capMode) (Day, int, bool) {
	var cands []candidate
	for _, day := range a.shuffledDays() {
		for start := 0; start+t.Length <= PeriodsPerDay; start++ {
			if a.canPlaceBlock(t, day, start, mode) {
				cands = append(cands, candidate{day: day, start: start, score: a.score(t, day, start)})
			}
		}
	}
	c, ok := a.pick(cands)
	return c.day, c.start, ok
}

func (a *attempt) placeDirect(t *Task, mode capMode) bool {
	day, start, ok := a.bestStart(t, mode)
	if !ok {
		return false
	}
	a.placeBlock(t, day, start)
	return true
}

// priority orders tasks for placement. Failure history dominates within a block length.
func (a *attempt) priority(t *Task) int {
	m := t.Mapping
	return a.failures[t.failureKey()]*1000 +
		t.Length*2000 +
		a.p.teacherLoad[m.TeacherID]*2 +
		a.p.classLoad[m.ClassID] +
		int(m.Priority)*750
}

// ordered returns tasks by descending priority with ties in random order.
func (a *attempt) ordered(tasks []*Task) []*Task {
	out := append([]*Task(nil), tasks...)
	a.rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	sort.SliceStable(out, func(i, j int) bool {
		return a.priority(out[i]) > a.priority(out[j])
	})
	return out
}

// placeClubs is phase 1: club blocks go to Perşembe inside the level window.
func (a *attempt) placeClubs() {
	for _, level := range []models.Level{models.LevelMiddle, models.LevelPrimary, models.LevelPreschool} {
		for _, t := range a.ordered(a.pools.club) {
			if t.Placed() || clubLevel(t.Mapping.Level) != level {
				continue
			}
			windowStart := clubWindowStart(level)
			for start := windowStart; start+t.Length <= windowStart+clubWindowLength; start++ {
				if a.canPlaceBlock(t, Thursday, start, capEmergency) {
					a.placeBlock(t, Thursday, start)
					break
				}
			}
		}
	}
	a.commit(0)
}

// clubLevel folds unknown levels into the primary window.
func clubLevel(level models.Level) models.Level {
	switch level {
	case models.LevelMiddle, models.LevelPreschool:
		return level
	default:
		return models.LevelPrimary
	}
}

// placeGreedy is phase 2.
func (a *attempt) placeGreedy() {
	for _, t := range a.ordered(a.pools.blocks) {
		a.placeDirect(t, capBlock)
	}
	for _, t := range a.ordered(a.pools.single) {
		a.placeDirect(t, capBlock)
	}
	a.commit(0)
}
