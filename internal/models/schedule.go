package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ScheduleEntry is one occupied period in a teacher's week.
type ScheduleEntry struct {
	ClassID     string `json:"classId"`
	SubjectID   string `json:"subjectId"`
	IsFixed     bool   `json:"isFixed,omitempty"`
	IsFixedSlot bool   `json:"isFixedSlot,omitempty"`
}

// WeeklySchedule maps day name -> period label -> entry. Free periods hold nil.
type WeeklySchedule map[string]map[string]*ScheduleEntry

// NewWeeklySchedule returns an empty week with every period present and free.
func NewWeeklySchedule() WeeklySchedule {
	week := make(WeeklySchedule, len(DayNames))
	for _, day := range DayNames {
		periods := make(map[string]*ScheduleEntry, PeriodsPerDay)
		for p := 1; p <= PeriodsPerDay; p++ {
			periods[fmt.Sprint(p)] = nil
		}
		week[day] = periods
	}
	return week
}

// Hours counts the occupied periods.
func (w WeeklySchedule) Hours() int {
	total := 0
	for _, periods := range w {
		for _, entry := range periods {
			if entry != nil {
				total++
			}
		}
	}
	return total
}

// Value stores the schedule as JSONB.
func (w WeeklySchedule) Value() (driver.Value, error) {
	if w == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(w)
}

// Scan decodes a JSONB column.
func (w *WeeklySchedule) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*w = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("weekly schedule: unsupported type %T", src)
	}
	return json.Unmarshal(raw, w)
}

// TeacherSchedule is the persisted week of a single teacher.
type TeacherSchedule struct {
	ID        string         `db:"id" json:"id"`
	TeacherID string         `db:"teacher_id" json:"teacher_id"`
	Schedule  WeeklySchedule `db:"schedule" json:"schedule"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt time.Time      `db:"updated_at" json:"updated_at"`
}

// TeacherScheduleFilter describes listing filters for stored schedules.
type TeacherScheduleFilter struct {
	TeacherIDs []string
	Page       int
	PageSize   int
}
