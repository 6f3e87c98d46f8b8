package dto

import (
	"time"

	"github.com/noah-isme/timetable-api/internal/scheduler"
)

// WizardSelection is what the user picked in the generation wizard.
type WizardSelection struct {
	ClassIDs   []string `json:"classIds" validate:"required,min=1,dive,required"`
	SubjectIDs []string `json:"subjectIds" validate:"dive,required"`
	TeacherIDs []string `json:"teacherIds" validate:"required,min=1,dive,required"`
	// SubjectHours overrides a subject's weekly hours.
	SubjectHours map[string]int `json:"subjectHours" validate:"omitempty,dive,min=1,max=40"`
	// SubjectDistributions overrides a subject's block pattern, e.g. "2+2+1".
	SubjectDistributions map[string]string `json:"subjectDistributions"`
}

// GenerateScheduleRequest instructs the generator to build a weekly timetable proposal.
type GenerateScheduleRequest struct {
	Wizard WizardSelection `json:"wizard" validate:"required"`
	// Rules falls back to the default rule set when omitted.
	Rules *scheduler.GlobalRules `json:"rules"`
	// UseExisting keeps the saved weeks of the selected teachers as prefilled lessons.
	UseExisting bool   `json:"useExisting"`
	Seed        *int64 `json:"seed,omitempty"`
	MaxAttempts int    `json:"maxAttempts" validate:"omitempty,min=1,max=500"`
}

// GenerateScheduleResponse returns the stored proposal and the engine result.
type GenerateScheduleResponse struct {
	ProposalID string    `json:"proposalId"`
	CreatedAt  time.Time `json:"createdAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
	Coverage   float64   `json:"coverage"`
	// TeacherIDs are the real teachers whose weeks a save replaces.
	TeacherIDs []string          `json:"teacherIds"`
	Result     *scheduler.Result `json:"result"`
}

// SaveScheduleRequest persists a proposal's teacher weeks.
type SaveScheduleRequest struct {
	ProposalID string `json:"proposalId" validate:"required"`
	// AllowPartial permits saving a proposal that left lesson hours unplaced.
	AllowPartial bool `json:"allowPartial"`
}

// SaveScheduleResponse lists the stored teacher schedules.
type SaveScheduleResponse struct {
	ProposalID string   `json:"proposalId"`
	TeacherIDs []string `json:"teacherIds"`
	Saved      int      `json:"saved"`
}

// JobStatus is the lifecycle state of a background generation.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// Terminal reports whether the job will not change again.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobCancelled
}

// GenerationJobResponse reports a background generation.
type GenerationJobResponse struct {
	JobID     string                    `json:"jobId"`
	Status    JobStatus                 `json:"status"`
	Progress  int                       `json:"progress"`
	Error     string                    `json:"error,omitempty"`
	CreatedAt time.Time                 `json:"createdAt"`
	UpdatedAt time.Time                 `json:"updatedAt"`
	Proposal  *GenerateScheduleResponse `json:"proposal,omitempty"`
}

// TeacherScheduleQuery filters stored teacher schedules.
type TeacherScheduleQuery struct {
	TeacherIDs []string `form:"teacherId"`
	Page       int      `form:"page" validate:"omitempty,min=1"`
	PageSize   int      `form:"pageSize" validate:"omitempty,min=1,max=200"`
}
