package scheduler

const (
	flexibleMinCoverage  = 0.95
	flexibleDailySubject = 2
)

// flexibleEnabled gates phase 4: coverage in [95%, 100%) and every protected task placed.
func (a *attempt) flexibleEnabled() bool {
	if a.p.totalHours == 0 {
		return false
	}
	ratio := float64(a.placedHours()) / float64(a.p.totalHours)
	if ratio < flexibleMinCoverage || ratio >= 1 {
		return false
	}
	for _, t := range a.pools.all {
		if t.protected && !t.Placed() {
			return false
		}
	}
	return true
}

// placeFlexible is phase 4: remaining hours go in one at a time, allowing two hours of a
// subject per class per day and displacing a single movable lesson when the grid is full.
func (a *attempt) placeFlexible() {
	if !a.flexibleEnabled() {
		return
	}
	pending := a.unplaced(append(append([]*Task(nil), a.pools.blocks...), a.pools.single...))
	for _, t := range a.ordered(pending) {
		for !t.Placed() {
			if key, ok := a.freeHour(t, SlotKey{Day: -1}); ok {
				a.placeHour(t, key)
				continue
			}
			if a.displaceHour(t) {
				continue
			}
			break
		}
	}
	a.commit(0)
}

func (a *attempt) hourFits(t *Task, key SlotKey) bool {
	m := t.Mapping
	if a.subjectDaily[subjectDayKey{classID: m.ClassID, subjectID: m.SubjectID, day: key.Day}] >= flexibleDailySubject {
		return false
	}
	return a.withinDailyCaps(m, key.Day, 1, capEmergency) && a.slotFree(m, key)
}

// freeHour finds the best free period for one hour of t, skipping exclude.
func (a *attempt) freeHour(t *Task, exclude SlotKey) (SlotKey, bool) {
	m := t.Mapping
	var cands []candidate
	for _, day := range a.shuffledDays() {
		for period := 0; period < PeriodsPerDay; period++ {
			key := SlotKey{Day: day, Period: period}
			if key == exclude || !a.hourFits(t, key) {
				continue
			}
			s := a.p.constraints.score(m, key) -
				10*a.subjectDaily[subjectDayKey{classID: m.ClassID, subjectID: m.SubjectID, day: day}] -
				a.teacherDaily[teacherDayKey{teacherID: m.TeacherID, day: day}]
			cands = append(cands, candidate{day: day, start: period, score: s})
		}
	}
	c, ok := a.pick(cands)
	return SlotKey{Day: c.day, Period: c.start}, ok
}

// displaceHour moves one hour of a non-protected lesson elsewhere and takes its cell.
func (a *attempt) displaceHour(t *Task) bool {
	m := t.Mapping
	for _, day := range a.shuffledDays() {
		for period := 0; period < PeriodsPerDay; period++ {
			key := SlotKey{Day: day, Period: period}
			victim := a.owners[cellKey{classID: m.ClassID, slot: key}]
			if victim == nil || victim == t || victim.protected || victim.Mapping.IsClub() {
				continue
			}
			vm := victim.Mapping
			if a.subjectDaily[subjectDayKey{classID: vm.ClassID, subjectID: vm.SubjectID, day: day}] > flexibleDailySubject {
				continue
			}
			mark := a.mark()
			a.removeHour(victim, key)
			if !a.hourFits(t, key) {
				a.rollback(mark)
				continue
			}
			a.placeHour(t, key)
			to, ok := a.freeHour(victim, key)
			if !ok {
				a.rollback(mark)
				continue
			}
			a.placeHour(victim, to)
			a.commit(mark)
			return true
		}
	}
	return false
}
