package scheduler

type cellKey struct {
	classID string
	slot    SlotKey
}

type teacherSlotKey struct {
	teacherID string
	slot      SlotKey
}

type teacherDayKey struct {
	teacherID string
	day       Day
}

type classDayKey struct {
	classID string
	day     Day
}

type subjectDayKey struct {
	classID   string
	subjectID string
	day       Day
}

type resourceSlotKey struct {
	resource Resource
	slot     SlotKey
}

// Source is the randomness used for tie-breaking. *math/rand.Rand satisfies it.
type Source interface {
	Intn(n int) int
	Shuffle(n int, swap func(i, j int))
}

type opKind uint8

const (
	opSet opKind = iota
	opClear
	opTaskSlots
)

// op is one reversible mutation in the attempt journal.
type op struct {
	kind  opKind
	cell  cellKey
	slot  *ScheduleSlot
	owner *Task
	task  *Task
	slots []SlotKey
}

// attempt is the whole mutable state of a single placement attempt. Every index is derived
// from cell writes made through put/remove, so replaying the journal backwards restores it.
type attempt struct {
	p        *problem
	rng      Source
	failures map[FailureKey]int

	grid         ClassScheduleGrid
	owners       map[cellKey]*Task
	teacherAt    map[teacherSlotKey]string
	teacherDaily map[teacherDayKey]int
	classDaily   map[classDayKey]int
	subjectDaily map[subjectDayKey]int
	resourceUse  map[resourceSlotKey]int

	journal []op
	pools   taskPools
}

func newAttempt(p *problem, rng Source, failures map[FailureKey]int) *attempt {
	a := &attempt{
		p:            p,
		rng:          rng,
		failures:     failures,
		grid:         make(ClassScheduleGrid, len(p.classOrder)),
		owners:       make(map[cellKey]*Task),
		teacherAt:    make(map[teacherSlotKey]string),
		teacherDaily: make(map[teacherDayKey]int),
		classDaily:   make(map[classDayKey]int),
		subjectDaily: make(map[subjectDayKey]int),
		resourceUse:  make(map[resourceSlotKey]int),
	}
	for _, classID := range p.classOrder {
		a.grid[classID] = &ClassWeek{}
	}
	a.initGrid()
	a.pools = buildTasks(p.mappings, p.effective, p.rules)
	return a
}

// initGrid is phase 0: lunch periods and prefilled lessons.
func (a *attempt) initGrid() {
	for _, classID := range a.p.classOrder {
		level, ok := a.p.lunchRows[classID]
		if !ok {
			continue
		}
		period := lunchPeriod(level)
		for d := 0; d < DaysPerWeek; d++ {
			a.put(cellKey{classID: classID, slot: SlotKey{Day: Day(d), Period: period}},
				&ScheduleSlot{ClassID: classID, SubjectID: LunchSubjectID, IsFixed: true}, nil)
		}
	}
	for _, pc := range a.p.prefilled {
		slot := pc.slot
		a.put(pc.cell, &slot, nil)
	}
}

func (a *attempt) resourceOf(subjectID string) Resource {
	return a.p.resources[subjectID]
}

// put writes a cell and updates every derived index without journaling.
func (a *attempt) put(cell cellKey, slot *ScheduleSlot, owner *Task) {
	a.grid[cell.classID][cell.slot.Day][cell.slot.Period] = slot
	if owner != nil {
		a.owners[cell] = owner
	}
	if !slot.isLesson() {
		return
	}
	if slot.TeacherID != "" {
		a.teacherAt[teacherSlotKey{teacherID: slot.TeacherID, slot: cell.slot}] = cell.classID
		a.teacherDaily[teacherDayKey{teacherID: slot.TeacherID, day: cell.slot.Day}]++
	}
	a.classDaily[classDayKey{classID: cell.classID, day: cell.slot.Day}]++
	a.subjectDaily[subjectDayKey{classID: cell.classID, subjectID: slot.SubjectID, day: cell.slot.Day}]++
	if r := a.resourceOf(slot.SubjectID); r != ResourceNone {
		a.resourceUse[resourceSlotKey{resource: r, slot: cell.slot}]++
	}
}

// remove clears a cell and reverses put.
func (a *attempt) remove(cell cellKey) (*ScheduleSlot, *Task) {
	week := a.grid[cell.classID]
	slot := week[cell.slot.Day][cell.slot.Period]
	owner := a.owners[cell]
	week[cell.slot.Day][cell.slot.Period] = nil
	delete(a.owners, cell)
	if !slot.isLesson() {
		return slot, owner
	}
	if slot.TeacherID != "" {
		tk := teacherSlotKey{teacherID: slot.TeacherID, slot: cell.slot}
		if a.teacherAt[tk] == cell.classID {
			delete(a.teacherAt, tk)
		}
		decrement(a.teacherDaily, teacherDayKey{teacherID: slot.TeacherID, day: cell.slot.Day})
	}
	decrement(a.classDaily, classDayKey{classID: cell.classID, day: cell.slot.Day})
	decrement(a.subjectDaily, subjectDayKey{classID: cell.classID, subjectID: slot.SubjectID, day: cell.slot.Day})
	if r := a.resourceOf(slot.SubjectID); r != ResourceNone {
		decrement(a.resourceUse, resourceSlotKey{resource: r, slot: cell.slot})
	}
	return slot, owner
}

func decrement[K comparable](m map[K]int, k K) {
	if m[k] <= 1 {
		delete(m, k)
		return
	}
	m[k]--
}

// --- Journal ---

func (a *attempt) mark() int {
	return len(a.journal)
}

// rollback undoes every journaled op after m.
func (a *attempt) rollback(m int) {
	for i := len(a.journal) - 1; i >= m; i-- {
		o := a.journal[i]
		switch o.kind {
		case opSet:
			a.remove(o.cell)
		case opClear:
			a.put(o.cell, o.slot, o.owner)
		case opTaskSlots:
			o.task.Slots = o.slots
		}
	}
	a.journal = a.journal[:m]
}

// commit accepts the changes after m. Only the outermost commit drops history.
func (a *attempt) commit(m int) {
	if m == 0 {
		a.journal = a.journal[:0]
	}
}

func (a *attempt) setCell(cell cellKey, slot *ScheduleSlot, owner *Task) {
	a.put(cell, slot, owner)
	a.journal = append(a.journal, op{kind: opSet, cell: cell})
}

func (a *attempt) clearCell(cell cellKey) {
	slot, owner := a.remove(cell)
	a.journal = append(a.journal, op{kind: opClear, cell: cell, slot: slot, owner: owner})
}

func (a *attempt) setTaskSlots(t *Task, slots []SlotKey) {
	a.journal = append(a.journal, op{kind: opTaskSlots, task: t, slots: t.Slots})
	t.Slots = slots
}

// --- Task level mutations ---

func lessonSlot(m *Mapping) *ScheduleSlot {
	return &ScheduleSlot{ClassID: m.ClassID, SubjectID: m.SubjectID, TeacherID: m.TeacherID}
}

func (a *attempt) placeBlock(t *Task, day Day, start int) {
	slots := make([]SlotKey, 0, t.Length)
	for i := 0; i < t.Length; i++ {
		key := SlotKey{Day: day, Period: start + i}
		a.setCell(cellKey{classID: t.Mapping.ClassID, slot: key}, lessonSlot(t.Mapping), t)
		slots = append(slots, key)
	}
	a.setTaskSlots(t, slots)
}

func (a *attempt) placeHour(t *Task, key SlotKey) {
	a.setCell(cellKey{classID: t.Mapping.ClassID, slot: key}, lessonSlot(t.Mapping), t)
	slots := make([]SlotKey, 0, len(t.Slots)+1)
	slots = append(slots, t.Slots...)
	a.setTaskSlots(t, append(slots, key))
}

func (a *attempt) evict(t *Task) {
	for _, key := range t.Slots {
		a.clearCell(cellKey{classID: t.Mapping.ClassID, slot: key})
	}
	a.setTaskSlots(t, nil)
}

func (a *attempt) removeHour(t *Task, key SlotKey) {
	a.clearCell(cellKey{classID: t.Mapping.ClassID, slot: key})
	slots := make([]SlotKey, 0, len(t.Slots))
	for _, s := range t.Slots {
		if s != key {
			slots = append(slots, s)
		}
	}
	a.setTaskSlots(t, slots)
}

// --- Queries ---

func (a *attempt) unplaced(tasks []*Task) []*Task {
	var out []*Task
	for _, t := range tasks {
		if !t.Placed() {
			out = append(out, t)
		}
	}
	return out
}

// placedHours counts lesson hours as reported to callers: placed task hours plus prefilled
// hours, ignoring club-teacher bootstrap mappings.
func (a *attempt) placedHours() int {
	placed := make(map[mappingKey]int)
	for _, t := range a.pools.all {
		placed[t.Mapping.key()] += len(t.Slots)
	}
	total := 0
	for _, m := range a.p.mappings {
		if m.Club == ClubTeacherBootstrap {
			continue
		}
		k := m.key()
		hours := placed[k]
		if hours > a.p.effective[k] {
			hours = a.p.effective[k]
		}
		total += hours + a.p.prefilledHours[k]
	}
	return total
}

func (a *attempt) shuffledDays() []Day {
	days := []Day{Monday, Tuesday, Wednesday, Thursday, Friday}
	a.rng.Shuffle(len(days), func(i, j int) { days[i], days[j] = days[j], days[i] })
	return days
}
