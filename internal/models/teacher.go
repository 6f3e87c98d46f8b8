package models

import (
	"time"

	"github.com/lib/pq"
)

// Teacher represents an instructor that can be mapped onto classes.
type Teacher struct {
	ID            string         `db:"id" json:"id"`
	Name          string         `db:"name" json:"name"`
	Branches      pq.StringArray `db:"branches" json:"branches"`
	Levels        pq.StringArray `db:"levels" json:"levels"`
	WeeklyHours   int            `db:"weekly_hours" json:"weekly_hours"`
	IsClubTeacher bool           `db:"is_club_teacher" json:"is_club_teacher"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updated_at"`
}

// LevelSet returns the teacher levels as typed values.
func (t Teacher) LevelSet() []Level {
	return toLevels(t.Levels)
}
