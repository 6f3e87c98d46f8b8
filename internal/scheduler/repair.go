package scheduler

const (
	maxRepairIterations = 60
	kickIterations      = 30
	maxVictims          = 3
)

// blockers lists the movable tasks standing in the way of t at (day, start). It returns false
// when something immovable (lunch, prefilled lesson, club block or a hard constraint) blocks.
func (a *attempt) blockers(t *Task, day Day, start int) ([]*Task, bool) {
	m := t.Mapping
	if start+t.Length > PeriodsPerDay {
		return nil, false
	}
	var victims []*Task
	seen := make(map[*Task]struct{})
	add := func(v *Task) bool {
		if v == nil || v.Mapping.IsClub() {
			return false
		}
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			victims = append(victims, v)
		}
		return true
	}

	for i := 0; i < t.Length; i++ {
		key := SlotKey{Day: day, Period: start + i}
		if a.p.constraints.forbids(m, key) {
			return nil, false
		}
		if a.grid.At(m.ClassID, key) != nil {
			if !add(a.owners[cellKey{classID: m.ClassID, slot: key}]) {
				return nil, false
			}
		}
		if classID, busy := a.teacherAt[teacherSlotKey{teacherID: m.TeacherID, slot: key}]; busy {
			if !add(a.owners[cellKey{classID: classID, slot: key}]) {
				return nil, false
			}
		}
		if r := a.resourceOf(m.SubjectID); r != ResourceNone && a.resourceUse[resourceSlotKey{resource: r, slot: key}] >= r.Capacity() {
			for _, holder := range a.resourceHolders(r, key) {
				add(holder)
			}
		}
	}
	return victims, true
}

func (a *attempt) resourceHolders(r Resource, key SlotKey) []*Task {
	var holders []*Task
	for _, classID := range a.p.classOrder {
		slot := a.grid.At(classID, key)
		if slot == nil || a.resourceOf(slot.SubjectID) != r {
			continue
		}
		if owner := a.owners[cellKey{classID: classID, slot: key}]; owner != nil {
			holders = append(holders, owner)
		}
	}
	return holders
}

// trySwap evicts up to maxVictims tasks, places t and relocates every victim, or rolls back.
func (a *attempt) trySwap(t *Task) bool {
	for _, day := range a.shuffledDays() {
		for start := 0; start+t.Length <= PeriodsPerDay; start++ {
			victims, ok := a.blockers(t, day, start)
			if !ok || len(victims) == 0 || len(victims) > maxVictims {
				continue
			}
			mark := a.mark()
			for _, v := range victims {
				a.evict(v)
			}
			if !a.canPlaceBlock(t, day, start, capBlock) {
				a.rollback(mark)
				continue
			}
			a.placeBlock(t, day, start)
			relocated := true
			for _, v := range victims {
				if !a.placeDirect(v, capBlock) {
					relocated = false
					break
				}
			}
			if relocated {
				a.commit(mark)
				return true
			}
			a.rollback(mark)
		}
	}
	return false
}

// tryKick forces t into the window with the fewest victims. Victims are left unplaced for a
// later sweep.
func (a *attempt) tryKick(t *Task) bool {
	var cands []candidate
	for _, day := range a.shuffledDays() {
		for start := 0; start+t.Length <= PeriodsPerDay; start++ {
			victims, ok := a.blockers(t, day, start)
			if !ok {
				continue
			}
			mark := a.mark()
			for _, v := range victims {
				a.evict(v)
			}
			if a.canPlaceBlock(t, day, start, capEmergency) {
				cands = append(cands, candidate{day: day, start: start, score: -len(victims)})
			}
			a.rollback(mark)
		}
	}
	c, ok := a.pick(cands)
	if !ok {
		return false
	}
	victims, _ := a.blockers(t, c.day, c.start)
	for _, v := range victims {
		a.evict(v)
	}
	a.placeBlock(t, c.day, c.start)
	return true
}

// repair is phase 3. A sweep that places nothing ends the loop.
func (a *attempt) repair() {
	for iteration := 0; iteration < maxRepairIterations; iteration++ {
		pending := a.unplaced(append(append([]*Task(nil), a.pools.blocks...), a.pools.single...))
		if len(pending) == 0 {
			return
		}
		progress := false
		for _, t := range a.ordered(pending) {
			if t.Placed() {
				continue
			}
			if a.placeDirect(t, capBlock) || a.trySwap(t) || (iteration < kickIterations && a.tryKick(t)) {
				progress = true
			}
		}
		a.commit(0)
		if !progress {
			return
		}
	}
}
