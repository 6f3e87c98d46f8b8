package models

import (
	"time"

	"github.com/lib/pq"
)

// Class represents a class (section) that receives lessons.
type Class struct {
	ID          string            `db:"id" json:"id"`
	Name        string            `db:"name" json:"name"`
	Levels      pq.StringArray    `db:"levels" json:"levels"`
	IsClubClass bool              `db:"is_club_class" json:"is_club_class"`
	Assignments []ClassAssignment `db:"-" json:"assignments"`
	CreatedAt   time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time         `db:"updated_at" json:"updated_at"`
}

// ClassAssignment says which subjects a teacher gives to the owning class.
type ClassAssignment struct {
	ClassID    string         `db:"class_id" json:"-"`
	TeacherID  string         `db:"teacher_id" json:"teacher_id"`
	SubjectIDs pq.StringArray `db:"subject_ids" json:"subject_ids"`
}

// LevelSet returns the class levels as typed values.
func (c Class) LevelSet() []Level {
	return toLevels(c.Levels)
}

// PrimaryLevel is the level used for lunch and club windows.
func (c Class) PrimaryLevel() Level {
	levels := c.LevelSet()
	if len(levels) == 0 {
		return LevelPrimary
	}
	return levels[0]
}
