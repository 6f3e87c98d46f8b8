package scheduler

import (
	"strconv"

	"github.com/noah-isme/timetable-api/internal/models"
)

// Day indexes models.DayNames.
type Day int

const (
	Monday Day = iota
	Tuesday
	Wednesday
	Thursday
	Friday
)

const (
	// DaysPerWeek is the number of school days in a week.
	DaysPerWeek = 5
	// PeriodsPerDay is the number of periods in a school day.
	PeriodsPerDay = models.PeriodsPerDay
)

// String returns the Turkish day name.
func (d Day) String() string {
	if d < 0 || int(d) >= DaysPerWeek {
		return "Day(" + strconv.Itoa(int(d)) + ")"
	}
	return models.DayNames[d]
}

// ParseDay resolves a Turkish day name.
func ParseDay(name string) (Day, bool) {
	for i, candidate := range models.DayNames {
		if candidate == name {
			return Day(i), true
		}
	}
	return 0, false
}

// PeriodLabel converts a zero-based period index to its "1".."10" label.
func PeriodLabel(period int) string {
	return strconv.Itoa(period + 1)
}

// ParsePeriod converts a "1".."10" label to a zero-based index.
func ParsePeriod(label string) (int, bool) {
	n, err := strconv.Atoi(label)
	if err != nil || n < 1 || n > PeriodsPerDay {
		return 0, false
	}
	return n - 1, true
}

// SlotKey identifies a (day, period) cell in a weekly grid.
type SlotKey struct {
	Day    Day
	Period int
}

// ScheduleSlot is an occupied grid cell. A nil *ScheduleSlot means free.
type ScheduleSlot struct {
	ClassID     string `json:"classId"`
	SubjectID   string `json:"subjectId"`
	TeacherID   string `json:"teacherId,omitempty"`
	IsFixed     bool   `json:"isFixed,omitempty"`
	IsFixedSlot bool   `json:"isFixedSlot,omitempty"`
}

func (s *ScheduleSlot) isLesson() bool {
	return s != nil && s.SubjectID != LunchSubjectID
}

const (
	// LunchSubjectID marks the non-lesson period pre-filled in every class row.
	LunchSubjectID = "fixed-period"
	// ClubSubjectID is the subject used for synthetic club mappings.
	ClubSubjectID = "kulup"
	// ClubSubjectName is the display name of club lessons.
	ClubSubjectName = "Kulüp"
)

// ClubKind tells whether a mapping is a club lesson and which side is synthetic.
type ClubKind int

const (
	// ClubNone is an ordinary lesson.
	ClubNone ClubKind = iota
	// ClubTeacherBootstrap places a club teacher into its own virtual class.
	ClubTeacherBootstrap
	// ClubClassBootstrap gives a club class a virtual teacher.
	ClubClassBootstrap
	// ClubAssigned is a club subject wired through a real class assignment.
	ClubAssigned
)

// VirtualClassID names the personal virtual class of a club teacher.
func VirtualClassID(teacherID string) string {
	return "kulup-virtual-class-" + teacherID
}

// VirtualTeacherID names the personal virtual teacher of a club class.
func VirtualTeacherID(classID string) string {
	return "kulup-virtual-teacher-" + classID
}

// Priority biases placement order for a mapping.
type Priority int

const (
	PriorityNormal Priority = iota
	PriorityPattern
	PriorityResource
)

// GlobalRules are the run-wide options accepted by generation.
type GlobalRules struct {
	MaxDailyHoursTeacher        int  `json:"maxDailyHoursTeacher" yaml:"maxDailyHoursTeacher"`
	MaxDailyHoursClass          int  `json:"maxDailyHoursClass" yaml:"maxDailyHoursClass"`
	MaxConsecutiveHours         int  `json:"maxConsecutiveHours" yaml:"maxConsecutiveHours"`
	AvoidConsecutiveSameSubject bool `json:"avoidConsecutiveSameSubject" yaml:"avoidConsecutiveSameSubject"`
	PreferMorningHours          bool `json:"preferMorningHours" yaml:"preferMorningHours"`
	AvoidFirstLastPeriod        bool `json:"avoidFirstLastPeriod" yaml:"avoidFirstLastPeriod"`
	LunchBreakRequired          bool `json:"lunchBreakRequired" yaml:"lunchBreakRequired"`
	LunchBreakDuration          int  `json:"lunchBreakDuration" yaml:"lunchBreakDuration"`
	UseDistributionPatterns     bool `json:"useDistributionPatterns" yaml:"useDistributionPatterns"`
	PreferBlockScheduling       bool `json:"preferBlockScheduling" yaml:"preferBlockScheduling"`
	EnforceDistributionPatterns bool `json:"enforceDistributionPatterns" yaml:"enforceDistributionPatterns"`
	MaximumBlockSize            int  `json:"maximumBlockSize" yaml:"maximumBlockSize"`
}

// DefaultGlobalRules mirrors the wizard defaults.
func DefaultGlobalRules() GlobalRules {
	return GlobalRules{
		LunchBreakRequired:      true,
		LunchBreakDuration:      1,
		UseDistributionPatterns: true,
		PreferBlockScheduling:   true,
	}
}

// Mapping is one (class, subject, teacher) lesson with its weekly load.
type Mapping struct {
	ID           string       `json:"id"`
	ClassID      string       `json:"classId"`
	SubjectID    string       `json:"subjectId"`
	SubjectName  string       `json:"subjectName"`
	TeacherID    string       `json:"teacherId"`
	WeeklyHours  int          `json:"weeklyHours"`
	Distribution []int        `json:"distribution,omitempty"`
	Priority     Priority     `json:"priority"`
	Club         ClubKind     `json:"club"`
	Level        models.Level `json:"level,omitempty"`
}

// IsClub reports whether the mapping is placed in the club window.
func (m *Mapping) IsClub() bool {
	return m.Club != ClubNone
}

func (m *Mapping) key() mappingKey {
	return mappingKey{classID: m.ClassID, subjectID: m.SubjectID, teacherID: m.TeacherID}
}

type mappingKey struct {
	classID   string
	subjectID string
	teacherID string
}

// FailureKey groups unplaced tasks across attempts.
type FailureKey struct {
	ClassID     string
	TeacherID   string
	SubjectID   string
	BlockLength int
}

// Task is one contiguous block of a mapping waiting for placement.
type Task struct {
	ID        string
	Mapping   *Mapping
	Length    int
	Slots     []SlotKey
	resource  Resource
	protected bool
}

// Placed reports whether every hour of the task is on the grid.
func (t *Task) Placed() bool {
	return len(t.Slots) == t.Length
}

func (t *Task) failureKey() FailureKey {
	return FailureKey{
		ClassID:     t.Mapping.ClassID,
		TeacherID:   t.Mapping.TeacherID,
		SubjectID:   t.Mapping.SubjectID,
		BlockLength: t.Length,
	}
}

// Input is everything a generation run reads.
type Input struct {
	Mappings         []Mapping
	Teachers         []models.Teacher
	Classes          []models.Class
	Subjects         []models.Subject
	TimeConstraints  []models.TimeConstraint
	Rules            GlobalRules
	InitialSchedules []models.TeacherSchedule
	FixedSlots       []models.FixedSlot
	// Seed overrides the engine seed when non-zero.
	Seed int64
}

// UnassignedLesson reports the hours of a mapping that could not be placed.
type UnassignedLesson struct {
	ClassName    string `json:"className"`
	SubjectName  string `json:"subjectName"`
	TeacherName  string `json:"teacherName"`
	MissingHours int    `json:"missingHours"`
}

// Statistics summarises coverage of the chosen attempt.
type Statistics struct {
	TotalLessonsToPlace int                `json:"totalLessonsToPlace"`
	PlacedLessons       int                `json:"placedLessons"`
	UnassignedLessons   []UnassignedLesson `json:"unassignedLessons"`
}

// HourDiscrepancy is an expected-vs-actual hour mismatch.
type HourDiscrepancy struct {
	Scope    string `json:"scope"`
	ID       string `json:"id"`
	Expected int    `json:"expected"`
	Actual   int    `json:"actual"`
}

// Result is the outcome of a generation run.
type Result struct {
	Success     bool                     `json:"success"`
	Schedules   []models.TeacherSchedule `json:"schedules"`
	Statistics  Statistics               `json:"statistics"`
	Warnings    []string                 `json:"warnings"`
	Errors      []string                 `json:"errors"`
	FinalGrid   ClassScheduleGrid        `json:"finalGrid"`
	Conflicts   int                      `json:"conflicts"`
	Attempts    int                      `json:"attempts"`
	Cancelled   bool                     `json:"cancelled"`
	Seed        int64                    `json:"seed"`
	Diagnostics []HourDiscrepancy        `json:"diagnostics,omitempty"`
}

// Coverage is the placed share of required hours.
func (r *Result) Coverage() float64 {
	if r == nil || r.Statistics.TotalLessonsToPlace == 0 {
		return 0
	}
	return float64(r.Statistics.PlacedLessons) / float64(r.Statistics.TotalLessonsToPlace)
}
