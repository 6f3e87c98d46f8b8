package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/middleware"
	"github.com/noah-isme/timetable-api/internal/models"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
	"github.com/noah-isme/timetable-api/pkg/response"
)

const maxWizardItems = 512

type scheduleGenerator interface {
	Generate(ctx context.Context, req dto.GenerateScheduleRequest) (*dto.GenerateScheduleResponse, error)
	GetProposal(ctx context.Context, id string) (*dto.GenerateScheduleResponse, error)
	Save(ctx context.Context, req dto.SaveScheduleRequest) (*dto.SaveScheduleResponse, error)
	ListTeacherSchedules(ctx context.Context, query dto.TeacherScheduleQuery) ([]models.TeacherSchedule, *models.Pagination, bool, error)
}

type generationJobs interface {
	StartJob(ctx context.Context, req dto.GenerateScheduleRequest) (*dto.GenerationJobResponse, error)
	Status(ctx context.Context, id string) (*dto.GenerationJobResponse, error)
	Cancel(ctx context.Context, id string) (*dto.GenerationJobResponse, error)
}

// ScheduleGeneratorHandler exposes timetable generation endpoints.
type ScheduleGeneratorHandler struct {
	service scheduleGenerator
	jobs    generationJobs
}

// NewScheduleGeneratorHandler constructs the handler.
func NewScheduleGeneratorHandler(svc scheduleGenerator, jobs generationJobs) *ScheduleGeneratorHandler {
	return &ScheduleGeneratorHandler{service: svc, jobs: jobs}
}

// Generate godoc
// @Summary Generate a weekly timetable proposal
// @Description Runs the placement engine synchronously and stores the result as a proposal that can be saved later.
// @Tags Timetables
// @Accept json
// @Produce json
// @Param payload body dto.GenerateScheduleRequest true "Generate timetable payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /timetables/generate [post]
func (h *ScheduleGeneratorHandler) Generate(c *gin.Context) {
	req, ok := bindGenerateRequest(c)
	if !ok {
		return
	}
	result, err := h.service.Generate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Proposal godoc
// @Summary Get a stored timetable proposal
// @Tags Timetables
// @Produce json
// @Param id path string true "Proposal ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /timetables/proposals/{id} [get]
func (h *ScheduleGeneratorHandler) Proposal(c *gin.Context) {
	result, err := h.service.GetProposal(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Save godoc
// @Summary Save a proposal as the teachers' weekly schedules
// @Tags Timetables
// @Accept json
// @Produce json
// @Param payload body dto.SaveScheduleRequest true "Save timetable payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /timetables/save [post]
func (h *ScheduleGeneratorHandler) Save(c *gin.Context) {
	var req dto.SaveScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid save payload"))
		return
	}
	result, err := h.service.Save(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// StartJob godoc
// @Summary Start a background timetable generation
// @Tags Timetables
// @Accept json
// @Produce json
// @Param payload body dto.GenerateScheduleRequest true "Generate timetable payload"
// @Success 202 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /timetables/jobs [post]
func (h *ScheduleGeneratorHandler) StartJob(c *gin.Context) {
	req, ok := bindGenerateRequest(c)
	if !ok {
		return
	}
	job, err := h.jobs.StartJob(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Location", c.FullPath()+"/"+job.JobID)
	response.Accepted(c, job)
}

// JobStatus godoc
// @Summary Get background generation status
// @Tags Timetables
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /timetables/jobs/{id} [get]
func (h *ScheduleGeneratorHandler) JobStatus(c *gin.Context) {
	job, err := h.jobs.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job, nil)
}

// CancelJob godoc
// @Summary Cancel a background generation
// @Description A running job stops after its current attempt and keeps the best result found so far.
// @Tags Timetables
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /timetables/jobs/{id} [delete]
func (h *ScheduleGeneratorHandler) CancelJob(c *gin.Context) {
	job, err := h.jobs.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job, nil)
}

// TeacherSchedules godoc
// @Summary List saved teacher schedules
// @Description Teachers only see their own week.
// @Tags Timetables
// @Produce json
// @Param teacherId query []string false "Teacher IDs" collectionFormat(multi)
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /teacher-schedules [get]
func (h *ScheduleGeneratorHandler) TeacherSchedules(c *gin.Context) {
	var query dto.TeacherScheduleQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	if claims := middleware.Claims(c); claims != nil && claims.Role == models.RoleTeacher {
		if claims.TeacherID == "" {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "token is not linked to a teacher"))
			return
		}
		query.TeacherIDs = []string{claims.TeacherID}
	}

	items, pagination, hit, err := h.service.ListTeacherSchedules(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, items, pagination, middleware.ExtractMeta(c))
}

func bindGenerateRequest(c *gin.Context) (dto.GenerateScheduleRequest, bool) {
	var req dto.GenerateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid generate payload"))
		return req, false
	}
	w := req.Wizard
	if len(w.ClassIDs) > maxWizardItems || len(w.SubjectIDs) > maxWizardItems || len(w.TeacherIDs) > maxWizardItems {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "wizard selection exceeds supported limit"))
		return req, false
	}
	return req, true
}
