package models

import "time"

// Level is a school stage.
type Level string

const (
	LevelPreschool Level = "Anaokulu"
	LevelPrimary   Level = "İlkokul"
	LevelMiddle    Level = "Ortaokul"
)

// DayNames lists school days in week order.
var DayNames = []string{"Pazartesi", "Salı", "Çarşamba", "Perşembe", "Cuma"}

// PeriodsPerDay is the number of periods in a school day, labelled "1".."10".
const PeriodsPerDay = 10

func toLevels(raw []string) []Level {
	levels := make([]Level, 0, len(raw))
	for _, l := range raw {
		levels = append(levels, Level(l))
	}
	return levels
}

// ConstraintEntity names what a time constraint applies to.
type ConstraintEntity string

const (
	ConstraintEntityTeacher ConstraintEntity = "teacher"
	ConstraintEntityClass   ConstraintEntity = "class"
	ConstraintEntitySubject ConstraintEntity = "subject"
)

// ConstraintType selects how a time constraint affects placement.
type ConstraintType string

const (
	ConstraintUnavailable ConstraintType = "unavailable"
	ConstraintPreferred   ConstraintType = "preferred"
	ConstraintRestricted  ConstraintType = "restricted"
)

// TimeConstraint marks a (day, period) for a teacher, class or subject.
type TimeConstraint struct {
	ID             string           `db:"id" json:"id"`
	EntityType     ConstraintEntity `db:"entity_type" json:"entity_type" validate:"required,oneof=teacher class subject"`
	EntityID       string           `db:"entity_id" json:"entity_id" validate:"required"`
	Day            string           `db:"day" json:"day" validate:"required"`
	Period         string           `db:"period" json:"period" validate:"required"`
	ConstraintType ConstraintType   `db:"constraint_type" json:"constraint_type" validate:"required,oneof=unavailable preferred restricted"`
	CreatedAt      time.Time        `db:"created_at" json:"created_at"`
}

// FixedSlot is a manual placement that generation must keep.
type FixedSlot struct {
	ID        string    `db:"id" json:"id"`
	Day       string    `db:"day" json:"day" validate:"required"`
	Period    string    `db:"period" json:"period" validate:"required"`
	ClassID   string    `db:"class_id" json:"class_id" validate:"required"`
	SubjectID string    `db:"subject_id" json:"subject_id" validate:"required"`
	TeacherID string    `db:"teacher_id" json:"teacher_id" validate:"required"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
