package service

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/scheduler"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
)

func TestGenerationJobServiceCompletesJob(t *testing.T) {
	gen := &generatorStub{release: make(chan struct{})}
	svc, metrics := newJobServiceFixture(t, gen)

	job, err := svc.StartJob(context.Background(), basicGenerateRequest())
	require.NoError(t, err)
	assert.Equal(t, dto.JobQueued, job.Status)

	require.Eventually(t, func() bool {
		status, err := svc.Status(context.Background(), job.JobID)
		return err == nil && status.Status == dto.JobRunning && status.Progress == 40
	}, 2*time.Second, 5*time.Millisecond)

	close(gen.release)
	done := waitForStatus(t, svc, job.JobID, dto.JobCompleted)
	assert.Equal(t, 100, done.Progress)
	require.NotNil(t, done.Proposal)
	assert.Equal(t, "p-1", done.Proposal.ProposalID)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.generationJobs.WithLabelValues("completed")))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.generationJobs.WithLabelValues("running")))
}

func TestGenerationJobServiceCancelRunningJob(t *testing.T) {
	gen := &generatorStub{release: make(chan struct{}), honourCancel: true}
	svc, _ := newJobServiceFixture(t, gen)

	job, err := svc.StartJob(context.Background(), basicGenerateRequest())
	require.NoError(t, err)
	waitForStatus(t, svc, job.JobID, dto.JobRunning)

	_, err = svc.Cancel(context.Background(), job.JobID)
	require.NoError(t, err)

	done := waitForStatus(t, svc, job.JobID, dto.JobCancelled)
	require.NotNil(t, done.Proposal, "best result so far is kept")
	assert.True(t, done.Proposal.Result.Cancelled)

	_, err = svc.Cancel(context.Background(), job.JobID)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestGenerationJobServiceReportsFailure(t *testing.T) {
	gen := &generatorStub{err: appErrors.Clone(appErrors.ErrValidation, "no class/subject/teacher combination matched the selection")}
	svc, _ := newJobServiceFixture(t, gen)

	job, err := svc.StartJob(context.Background(), basicGenerateRequest())
	require.NoError(t, err)

	done := waitForStatus(t, svc, job.JobID, dto.JobFailed)
	assert.Contains(t, done.Error, "no class/subject/teacher")
	assert.Nil(t, done.Proposal)
}

func TestGenerationJobServiceValidatesAndLooksUp(t *testing.T) {
	svc, _ := newJobServiceFixture(t, &generatorStub{})

	_, err := svc.StartJob(context.Background(), dto.GenerateScheduleRequest{})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Status(context.Background(), "missing")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	_, err = svc.Cancel(context.Background(), "missing")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestGenerationJobServiceSweepsExpiredJobs(t *testing.T) {
	svc, _ := newJobServiceFixture(t, &generatorStub{})
	old := time.Now().UTC().Add(-2 * time.Hour)
	svc.jobs["old"] = &generationJob{id: "old", status: dto.JobCompleted, updatedAt: old}
	svc.jobs["live"] = &generationJob{id: "live", status: dto.JobRunning, updatedAt: old}

	svc.sweep(time.Now().UTC())

	assert.NotContains(t, svc.jobs, "old")
	assert.Contains(t, svc.jobs, "live")
}

func newJobServiceFixture(t *testing.T, gen *generatorStub) (*GenerationJobService, *MetricsService) {
	metrics := NewMetricsService()
	svc := NewGenerationJobService(gen, metrics, nil, zap.NewNop(), GenerationJobConfig{Workers: 1, Retention: time.Hour})
	svc.Start(context.Background())
	t.Cleanup(svc.Stop)
	return svc, metrics
}

func waitForStatus(t *testing.T, svc *GenerationJobService, id string, want dto.JobStatus) *dto.GenerationJobResponse {
	t.Helper()
	var last *dto.GenerationJobResponse
	require.Eventually(t, func() bool {
		status, err := svc.Status(context.Background(), id)
		if err != nil {
			return false
		}
		last = status
		return status.Status == want
	}, 2*time.Second, 5*time.Millisecond)
	return last
}

// generatorStub reports 40% progress, then waits for release or cancellation.
type generatorStub struct {
	release      chan struct{}
	honourCancel bool
	err          error
}

func (g *generatorStub) GenerateWithProgress(ctx context.Context, req dto.GenerateScheduleRequest, progress scheduler.ProgressFunc) (*dto.GenerateScheduleResponse, error) {
	if g.err != nil {
		return nil, g.err
	}
	progress(40)
	cancelled := false
	if g.release != nil {
		select {
		case <-g.release:
		case <-ctx.Done():
			cancelled = g.honourCancel
		}
	}
	progress(100)
	return &dto.GenerateScheduleResponse{
		ProposalID: "p-1",
		Result:     &scheduler.Result{Success: true, Cancelled: cancelled},
	}, nil
}
