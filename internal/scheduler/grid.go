package scheduler

import (
	"encoding/json"
	"fmt"
	"sort"
)

// ClassWeek holds one class row of the grid indexed by day then period.
type ClassWeek [DaysPerWeek][PeriodsPerDay]*ScheduleSlot

// ClassScheduleGrid maps class id to its week.
type ClassScheduleGrid map[string]*ClassWeek

// At returns the cell for a class, or nil when the class or cell is empty.
func (g ClassScheduleGrid) At(classID string, key SlotKey) *ScheduleSlot {
	week, ok := g[classID]
	if !ok {
		return nil
	}
	return week[key.Day][key.Period]
}

// ClassIDs returns the grid rows in stable order.
func (g ClassScheduleGrid) ClassIDs() []string {
	ids := make([]string, 0, len(g))
	for id := range g {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Each visits every occupied cell in class, day, period order.
func (g ClassScheduleGrid) Each(fn func(classID string, key SlotKey, slot *ScheduleSlot)) {
	for _, classID := range g.ClassIDs() {
		week := g[classID]
		for d := 0; d < DaysPerWeek; d++ {
			for p := 0; p < PeriodsPerDay; p++ {
				if slot := week[d][p]; slot != nil {
					fn(classID, SlotKey{Day: Day(d), Period: p}, slot)
				}
			}
		}
	}
}

// CountConflicts counts cells where a teacher already teaches another class at the same time.
func (g ClassScheduleGrid) CountConflicts() int {
	seen := make(map[teacherSlotKey]string)
	conflicts := 0
	g.Each(func(classID string, key SlotKey, slot *ScheduleSlot) {
		if slot.TeacherID == "" {
			return
		}
		k := teacherSlotKey{teacherID: slot.TeacherID, slot: key}
		if other, ok := seen[k]; ok && other != classID {
			conflicts++
			return
		}
		seen[k] = classID
	})
	return conflicts
}

// MarshalJSON renders the week as day name -> period label -> slot.
func (w ClassWeek) MarshalJSON() ([]byte, error) {
	out := make(map[string]map[string]*ScheduleSlot, DaysPerWeek)
	for d := 0; d < DaysPerWeek; d++ {
		periods := make(map[string]*ScheduleSlot, PeriodsPerDay)
		for p := 0; p < PeriodsPerDay; p++ {
			periods[PeriodLabel(p)] = w[d][p]
		}
		out[Day(d).String()] = periods
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads the day name -> period label -> slot form.
func (w *ClassWeek) UnmarshalJSON(data []byte) error {
	var in map[string]map[string]*ScheduleSlot
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*w = ClassWeek{}
	for dayName, periods := range in {
		day, ok := ParseDay(dayName)
		if !ok {
			return fmt.Errorf("unknown day %q", dayName)
		}
		for label, slot := range periods {
			period, ok := ParsePeriod(label)
			if !ok {
				return fmt.Errorf("unknown period %q", label)
			}
			w[day][period] = slot
		}
	}
	return nil
}
