package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/scheduler"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
	"github.com/noah-isme/timetable-api/pkg/jobs"
)

const generationJobType = "timetable.generate"

type progressGenerator interface {
	GenerateWithProgress(ctx context.Context, req dto.GenerateScheduleRequest, progress scheduler.ProgressFunc) (*dto.GenerateScheduleResponse, error)
}

// GenerationJobConfig tunes the background generation pool.
type GenerationJobConfig struct {
	Workers    int
	BufferSize int
	// Retention keeps finished jobs queryable for this long.
	Retention time.Duration
}

type generationJob struct {
	id        string
	req       dto.GenerateScheduleRequest
	status    dto.JobStatus
	progress  int
	err       string
	createdAt time.Time
	updatedAt time.Time
	proposal  *dto.GenerateScheduleResponse
	cancel    context.CancelFunc
}

func (j *generationJob) snapshot() *dto.GenerationJobResponse {
	return &dto.GenerationJobResponse{
		JobID:     j.id,
		Status:    j.status,
		Progress:  j.progress,
		Error:     j.err,
		CreatedAt: j.createdAt,
		UpdatedAt: j.updatedAt,
		Proposal:  j.proposal,
	}
}

// GenerationJobService runs timetable generation on a background worker pool.
type GenerationJobService struct {
	generator progressGenerator
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	retention time.Duration
	queue     *jobs.Queue

	mu   sync.Mutex
	jobs map[string]*generationJob
}

// NewGenerationJobService constructs the job service. Call Start before submitting jobs.
func NewGenerationJobService(generator progressGenerator, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg GenerationJobConfig) *GenerationJobService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Retention <= 0 {
		cfg.Retention = time.Hour
	}
	svc := &GenerationJobService{
		generator: generator,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		retention: cfg.Retention,
		jobs:      make(map[string]*generationJob),
	}
	svc.queue = jobs.NewQueue("timetable-generation", svc.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		Logger:     logger,
	})
	return svc
}

// Start launches the workers.
func (s *GenerationJobService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop cancels running generations and waits for the workers.
func (s *GenerationJobService) Stop() {
	s.mu.Lock()
	for _, job := range s.jobs {
		if job.cancel != nil {
			job.cancel()
		}
	}
	s.mu.Unlock()
	s.queue.Stop()
}

// StartJob validates the request and queues it.
func (s *GenerationJobService) StartJob(ctx context.Context, req dto.GenerateScheduleRequest) (*dto.GenerationJobResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule generation payload")
	}
	now := time.Now().UTC()
	job := &generationJob{
		id:        uuid.NewString(),
		req:       req,
		status:    dto.JobQueued,
		createdAt: now,
		updatedAt: now,
	}

	s.mu.Lock()
	s.sweep(now)
	s.jobs[job.id] = job
	s.mu.Unlock()

	if err := s.queue.TryEnqueue(jobs.Job{ID: job.id, Type: generationJobType}); err != nil {
		s.mu.Lock()
		delete(s.jobs, job.id)
		s.mu.Unlock()
		if errors.Is(err, jobs.ErrQueueFull) {
			return nil, appErrors.Wrap(err, appErrors.ErrServiceUnavailable.Code, appErrors.ErrServiceUnavailable.Status, "generation queue is full, retry later")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrServiceUnavailable.Code, appErrors.ErrServiceUnavailable.Status, "generation queue unavailable")
	}
	s.metrics.JobStatusChanged("", string(dto.JobQueued))
	s.logger.Info("generation job queued", zap.String("job_id", job.id))

	s.mu.Lock()
	defer s.mu.Unlock()
	return job.snapshot(), nil
}

// Status reports the current state of a job.
func (s *GenerationJobService) Status(ctx context.Context, id string) (*dto.GenerationJobResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "generation job not found")
	}
	return job.snapshot(), nil
}

// Cancel stops a queued or running job. A running generation finishes its current attempt
// and keeps the best result found so far.
func (s *GenerationJobService) Cancel(ctx context.Context, id string) (*dto.GenerationJobResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "generation job not found")
	}
	switch {
	case job.status.Terminal():
		return nil, appErrors.Clone(appErrors.ErrConflict, "generation job already finished")
	case job.status == dto.JobQueued:
		s.transition(job, dto.JobCancelled)
	case job.cancel != nil:
		job.cancel()
	}
	s.logger.Info("generation job cancel requested", zap.String("job_id", id))
	return job.snapshot(), nil
}

func (s *GenerationJobService) handle(ctx context.Context, qj jobs.Job) error {
	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	job, ok := s.jobs[qj.ID]
	if !ok || job.status != dto.JobQueued {
		s.mu.Unlock()
		return nil
	}
	job.cancel = cancel
	s.transition(job, dto.JobRunning)
	req := job.req
	s.mu.Unlock()

	resp, err := s.generator.GenerateWithProgress(jobCtx, req, func(percent int) {
		s.mu.Lock()
		if percent > job.progress {
			job.progress = percent
			job.updatedAt = time.Now().UTC()
		}
		s.mu.Unlock()
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	job.cancel = nil
	switch {
	case err != nil && jobCtx.Err() != nil:
		job.err = "generation cancelled"
		s.transition(job, dto.JobCancelled)
	case err != nil:
		job.err = appErrors.FromError(err).Message
		s.transition(job, dto.JobFailed)
		s.logger.Warn("generation job failed", zap.String("job_id", job.id), zap.Error(err))
	case resp.Result != nil && resp.Result.Cancelled:
		job.proposal = resp
		s.transition(job, dto.JobCancelled)
	default:
		job.proposal = resp
		job.progress = 100
		s.transition(job, dto.JobCompleted)
	}
	// Failures are final; the queue must not retry a generation.
	return nil
}

// transition moves a job to a new status. Callers hold s.mu.
func (s *GenerationJobService) transition(job *generationJob, to dto.JobStatus) {
	from := job.status
	job.status = to
	job.updatedAt = time.Now().UTC()
	s.metrics.JobStatusChanged(string(from), string(to))
}

// sweep forgets finished jobs older than the retention window. Callers hold s.mu.
func (s *GenerationJobService) sweep(now time.Time) {
	for id, job := range s.jobs {
		if job.status.Terminal() && now.Sub(job.updatedAt) > s.retention {
			delete(s.jobs, id)
			s.metrics.JobStatusChanged(string(job.status), "")
		}
	}
}
