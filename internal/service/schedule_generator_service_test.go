package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/models"
	"github.com/noah-isme/timetable-api/internal/scheduler"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
)

func TestScheduleGeneratorServiceGenerateSuccess(t *testing.T) {
	f := newSchedulerServiceFixture(t, schedulerFixtureConfig{})

	resp, err := f.service.Generate(context.Background(), basicGenerateRequest())
	require.NoError(t, err)
	require.NotNil(t, resp.Result)
	assert.True(t, resp.Result.Success)
	assert.Equal(t, 1.0, resp.Coverage)
	assert.Equal(t, 0, resp.Result.Conflicts)
	assert.Equal(t, []string{"t-math", "t-turk"}, resp.TeacherIDs)
	assert.True(t, resp.ExpiresAt.After(resp.CreatedAt))

	stored, err := f.service.GetProposal(context.Background(), resp.ProposalID)
	require.NoError(t, err)
	assert.Same(t, resp, stored)
	assert.Contains(t, f.cache.keys(), proposalCacheKey(resp.ProposalID))
	assert.Equal(t, 1, testutil.CollectAndCount(f.metrics.generationDuration))
}

func TestScheduleGeneratorServiceGenerateHonoursFixedSlots(t *testing.T) {
	f := newSchedulerServiceFixture(t, schedulerFixtureConfig{
		fixed: []models.FixedSlot{
			{ID: "f1", Day: "Salı", Period: "2", ClassID: "5a", SubjectID: "music", TeacherID: "t-music"},
			{ID: "f2", Day: "Salı", Period: "2", ClassID: "other", SubjectID: "music", TeacherID: "t-music"},
		},
	})

	resp, err := f.service.Generate(context.Background(), basicGenerateRequest())
	require.NoError(t, err)

	slot := resp.Result.FinalGrid.At("5a", scheduler.SlotKey{Day: scheduler.Tuesday, Period: 1})
	require.NotNil(t, slot)
	assert.Equal(t, "music", slot.SubjectID)
	assert.True(t, slot.IsFixedSlot)
	assert.Contains(t, resp.TeacherIDs, "t-music")
	assert.Equal(t, [][]string{{"math", "turk"}, {"music"}}, f.subjects.calls)
}

func TestScheduleGeneratorServiceGenerateValidation(t *testing.T) {
	f := newSchedulerServiceFixture(t, schedulerFixtureConfig{})

	_, err := f.service.Generate(context.Background(), dto.GenerateScheduleRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestScheduleGeneratorServiceGenerateWithoutMappings(t *testing.T) {
	f := newSchedulerServiceFixture(t, schedulerFixtureConfig{})
	req := basicGenerateRequest()
	req.Wizard.TeacherIDs = []string{"t-unknown"}

	_, err := f.service.Generate(context.Background(), req)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Contains(t, appErr.Message, scheduler.ErrNoMappings)
}

func TestScheduleGeneratorServiceGenerateLoadFailure(t *testing.T) {
	f := newSchedulerServiceFixture(t, schedulerFixtureConfig{constraintErr: sql.ErrConnDone})

	_, err := f.service.Generate(context.Background(), basicGenerateRequest())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
	assert.ErrorIs(t, err, sql.ErrConnDone)
}

func TestScheduleGeneratorServiceGenerateUsesExistingSchedules(t *testing.T) {
	week := models.NewWeeklySchedule()
	week["Cuma"]["1"] = &models.ScheduleEntry{ClassID: "6b", SubjectID: "math"}
	f := newSchedulerServiceFixture(t, schedulerFixtureConfig{
		existing: []models.TeacherSchedule{{TeacherID: "t-math", Schedule: week}},
	})
	req := basicGenerateRequest()
	req.UseExisting = true

	resp, err := f.service.Generate(context.Background(), req)
	require.NoError(t, err)

	var mathWeek models.WeeklySchedule
	for _, s := range resp.Result.Schedules {
		if s.TeacherID == "t-math" {
			mathWeek = s.Schedule
		}
	}
	require.NotNil(t, mathWeek)
	entry := mathWeek["Cuma"]["1"]
	require.NotNil(t, entry)
	assert.Equal(t, "6b", entry.ClassID)
	assert.True(t, entry.IsFixed)
}

func TestScheduleGeneratorServiceSaveReplacesRealTeachers(t *testing.T) {
	txProvider, mock := newTxProviderMock(t)
	f := newSchedulerServiceFixture(t, schedulerFixtureConfig{tx: txProvider})
	proposal := storedProposal(f, 0, 10, 10)

	mock.ExpectBegin()
	mock.ExpectCommit()

	resp, err := f.service.Save(context.Background(), dto.SaveScheduleRequest{ProposalID: proposal.ProposalID})
	require.NoError(t, err)
	assert.Equal(t, []string{"t-math"}, resp.TeacherIDs)
	assert.Equal(t, 1, resp.Saved)
	require.Len(t, f.schedules.replaced, 1)
	assert.Equal(t, "t-math", f.schedules.replaced[0].TeacherID)
	assert.Contains(t, f.cache.invalidated, scheduleCachePattern)
	assert.NoError(t, mock.ExpectationsWereMet())

	_, err = f.service.GetProposal(context.Background(), proposal.ProposalID)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestScheduleGeneratorServiceSaveRejectsConflicts(t *testing.T) {
	txProvider, mock := newTxProviderMock(t)
	f := newSchedulerServiceFixture(t, schedulerFixtureConfig{tx: txProvider})
	proposal := storedProposal(f, 2, 10, 10)

	_, err := f.service.Save(context.Background(), dto.SaveScheduleRequest{ProposalID: proposal.ProposalID})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Empty(t, f.schedules.replaced)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleGeneratorServiceSavePartialNeedsOptIn(t *testing.T) {
	txProvider, mock := newTxProviderMock(t)
	f := newSchedulerServiceFixture(t, schedulerFixtureConfig{tx: txProvider})
	proposal := storedProposal(f, 0, 8, 10)

	_, err := f.service.Save(context.Background(), dto.SaveScheduleRequest{ProposalID: proposal.ProposalID})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	mock.ExpectBegin()
	mock.ExpectCommit()
	resp, err := f.service.Save(context.Background(), dto.SaveScheduleRequest{ProposalID: proposal.ProposalID, AllowPartial: true})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Saved)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleGeneratorServiceSaveRollsBackOnStoreError(t *testing.T) {
	txProvider, mock := newTxProviderMock(t)
	f := newSchedulerServiceFixture(t, schedulerFixtureConfig{tx: txProvider})
	f.schedules.replaceErr = sql.ErrTxDone
	proposal := storedProposal(f, 0, 10, 10)

	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := f.service.Save(context.Background(), dto.SaveScheduleRequest{ProposalID: proposal.ProposalID})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
	assert.NoError(t, mock.ExpectationsWereMet())

	_, err = f.service.GetProposal(context.Background(), proposal.ProposalID)
	assert.NoError(t, err, "failed saves keep the proposal")
}

func TestScheduleGeneratorServiceGetProposalFromCache(t *testing.T) {
	f := newSchedulerServiceFixture(t, schedulerFixtureConfig{})
	now := time.Now().UTC()
	cached := dto.GenerateScheduleResponse{
		ProposalID: "p-remote",
		CreatedAt:  now,
		ExpiresAt:  now.Add(time.Hour),
		Coverage:   0.5,
		Result:     &scheduler.Result{Success: true},
	}
	f.cache.Set(context.Background(), proposalCacheKey("p-remote"), cached, time.Hour)

	got, err := f.service.GetProposal(context.Background(), "p-remote")
	require.NoError(t, err)
	assert.Equal(t, 0.5, got.Coverage)

	expired := cached
	expired.ProposalID = "p-old"
	expired.ExpiresAt = now.Add(-time.Minute)
	f.cache.Set(context.Background(), proposalCacheKey("p-old"), expired, time.Hour)
	_, err = f.service.GetProposal(context.Background(), "p-old")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestScheduleGeneratorServiceListTeacherSchedulesCaches(t *testing.T) {
	f := newSchedulerServiceFixture(t, schedulerFixtureConfig{})
	f.schedules.listed = []models.TeacherSchedule{{ID: "s1", TeacherID: "t-math", Schedule: models.NewWeeklySchedule()}}

	query := dto.TeacherScheduleQuery{TeacherIDs: []string{"t-math"}}
	items, pagination, hit, err := f.service.ListTeacherSchedules(context.Background(), query)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.False(t, hit)
	assert.Equal(t, &models.Pagination{Page: 1, PageSize: 50, TotalCount: 1}, pagination)

	items, _, hit, err = f.service.ListTeacherSchedules(context.Background(), query)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.True(t, hit)
	assert.Equal(t, 1, f.schedules.listCalls)
}

func TestGenerationOutcome(t *testing.T) {
	complete := &scheduler.Result{Success: true, Statistics: scheduler.Statistics{TotalLessonsToPlace: 4, PlacedLessons: 4}}
	partial := &scheduler.Result{Success: true, Statistics: scheduler.Statistics{TotalLessonsToPlace: 4, PlacedLessons: 3}}
	conflicted := &scheduler.Result{Success: true, Conflicts: 1, Statistics: complete.Statistics}

	assert.Equal(t, OutcomeComplete, generationOutcome(complete))
	assert.Equal(t, OutcomePartial, generationOutcome(partial))
	assert.Equal(t, OutcomePartial, generationOutcome(conflicted))
	assert.Equal(t, OutcomeFailed, generationOutcome(&scheduler.Result{}))
	assert.Equal(t, OutcomeCancelled, generationOutcome(&scheduler.Result{Success: true, Cancelled: true}))
}

// --- Fixtures ---

func basicGenerateRequest() dto.GenerateScheduleRequest {
	seed := int64(7)
	return dto.GenerateScheduleRequest{
		Wizard: dto.WizardSelection{
			ClassIDs:   []string{"5a"},
			SubjectIDs: []string{"math", "turk"},
			TeacherIDs: []string{"t-math", "t-turk"},
		},
		Seed:        &seed,
		MaxAttempts: 5,
	}
}

// storedProposal puts a proposal whose schedules include a virtual club teacher.
func storedProposal(f *schedulerServiceFixture, conflicts, placed, total int) *dto.GenerateScheduleResponse {
	now := time.Now().UTC()
	proposal := &dto.GenerateScheduleResponse{
		ProposalID: uuid.NewString(),
		CreatedAt:  now,
		ExpiresAt:  now.Add(time.Hour),
		TeacherIDs: []string{"t-math"},
		Result: &scheduler.Result{
			Success:   true,
			Conflicts: conflicts,
			Schedules: []models.TeacherSchedule{
				{TeacherID: "t-math", Schedule: models.NewWeeklySchedule()},
				{TeacherID: scheduler.VirtualTeacherID("5a"), Schedule: models.NewWeeklySchedule()},
			},
			Statistics: scheduler.Statistics{TotalLessonsToPlace: total, PlacedLessons: placed},
		},
	}
	f.service.store.Save(proposal)
	return proposal
}

type schedulerFixtureConfig struct {
	fixed         []models.FixedSlot
	existing      []models.TeacherSchedule
	constraintErr error
	tx            txProvider
}

type schedulerServiceFixture struct {
	service   *ScheduleGeneratorService
	subjects  *subjectStub
	schedules *teacherScheduleStoreStub
	cache     *memoryCacheRepo
	metrics   *MetricsService
}

func newSchedulerServiceFixture(t *testing.T, cfg schedulerFixtureConfig) *schedulerServiceFixture {
	teachers := teacherStub{items: []models.Teacher{
		{ID: "t-math", Name: "Ali Veli", Levels: []string{"Ortaokul"}, Branches: []string{"Matematik"}},
		{ID: "t-turk", Name: "Ayşe Kaya", Levels: []string{"Ortaokul"}, Branches: []string{"Türkçe"}},
		{ID: "t-music", Name: "Can Ses", Levels: []string{"Ortaokul"}, Branches: []string{"Müzik"}},
	}}
	classes := classStub{items: []models.Class{{
		ID:     "5a",
		Name:   "5-A",
		Levels: []string{"Ortaokul"},
		Assignments: []models.ClassAssignment{
			{ClassID: "5a", TeacherID: "t-math", SubjectIDs: []string{"math"}},
			{ClassID: "5a", TeacherID: "t-turk", SubjectIDs: []string{"turk"}},
		},
	}}}
	subjects := &subjectStub{items: []models.Subject{
		{ID: "math", Name: "Matematik", Levels: []string{"Ortaokul"}, WeeklyHours: 5, DistributionPattern: "2+2+1"},
		{ID: "turk", Name: "Türkçe", Levels: []string{"Ortaokul"}, WeeklyHours: 4},
		{ID: "music", Name: "Müzik", Levels: []string{"Ortaokul"}, WeeklyHours: 1},
	}}
	schedules := &teacherScheduleStoreStub{existing: cfg.existing}
	cache := newMemoryCacheRepo()
	metrics := NewMetricsService()
	tx := cfg.tx
	if tx == nil {
		tx = noopTxProvider{}
	}

	service := NewScheduleGeneratorService(
		teachers,
		classes,
		subjects,
		constraintStub{err: cfg.constraintErr},
		fixedSlotStub{items: cfg.fixed},
		schedules,
		tx,
		NewCacheService(cache, metrics, time.Minute, zap.NewNop(), true),
		metrics,
		validator.New(),
		zap.NewNop(),
		ScheduleGeneratorConfig{ProposalTTL: time.Hour, Engine: scheduler.Config{Seed: 1}},
	)
	return &schedulerServiceFixture{service: service, subjects: subjects, schedules: schedules, cache: cache, metrics: metrics}
}

type teacherStub struct {
	items []models.Teacher
}

func (s teacherStub) ListByIDs(ctx context.Context, ids []string) ([]models.Teacher, error) {
	var out []models.Teacher
	for _, id := range ids {
		for _, item := range s.items {
			if item.ID == id {
				out = append(out, item)
			}
		}
	}
	return out, nil
}

type classStub struct {
	items []models.Class
}

func (s classStub) ListByIDs(ctx context.Context, ids []string) ([]models.Class, error) {
	var out []models.Class
	for _, id := range ids {
		for _, item := range s.items {
			if item.ID == id {
				out = append(out, item)
			}
		}
	}
	return out, nil
}

type subjectStub struct {
	mu    sync.Mutex
	items []models.Subject
	calls [][]string
}

func (s *subjectStub) ListByIDs(ctx context.Context, ids []string) ([]models.Subject, error) {
	s.mu.Lock()
	s.calls = append(s.calls, append([]string(nil), ids...))
	s.mu.Unlock()
	var out []models.Subject
	for _, id := range ids {
		for _, item := range s.items {
			if item.ID == id {
				out = append(out, item)
			}
		}
	}
	return out, nil
}

type constraintStub struct {
	items []models.TimeConstraint
	err   error
}

func (s constraintStub) List(ctx context.Context) ([]models.TimeConstraint, error) {
	return s.items, s.err
}

type fixedSlotStub struct {
	items []models.FixedSlot
}

func (s fixedSlotStub) List(ctx context.Context) ([]models.FixedSlot, error) {
	return s.items, nil
}

type teacherScheduleStoreStub struct {
	existing   []models.TeacherSchedule
	listed     []models.TeacherSchedule
	listCalls  int
	replaced   []models.TeacherSchedule
	replaceErr error
}

func (s *teacherScheduleStoreStub) List(ctx context.Context, filter models.TeacherScheduleFilter) ([]models.TeacherSchedule, int, error) {
	s.listCalls++
	return s.listed, len(s.listed), nil
}

func (s *teacherScheduleStoreStub) ListByTeacherIDs(ctx context.Context, teacherIDs []string) ([]models.TeacherSchedule, error) {
	return s.existing, nil
}

func (s *teacherScheduleStoreStub) ReplaceWithTx(ctx context.Context, exec sqlx.ExtContext, records []models.TeacherSchedule) error {
	if s.replaceErr != nil {
		return s.replaceErr
	}
	s.replaced = append(s.replaced, records...)
	return nil
}

type memoryCacheRepo struct {
	mu          sync.Mutex
	values      map[string][]byte
	invalidated []string
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{values: make(map[string][]byte)}
}

func (m *memoryCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	raw, ok := m.values[key]
	m.mu.Unlock()
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.values[key] = raw
	m.mu.Unlock()
	return nil
}

func (m *memoryCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalidated = append(m.invalidated, pattern)
	prefix := strings.TrimSuffix(pattern, "*")
	for k := range m.values {
		if strings.HasPrefix(k, prefix) {
			delete(m.values, k)
		}
	}
	return nil
}

func (m *memoryCacheRepo) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.values))
	for k := range m.values {
		keys = append(keys, k)
	}
	return keys
}

type noopTxProvider struct{}

func (noopTxProvider) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider unavailable")
}

type txProviderMock struct {
	db *sqlx.DB
}

func newTxProviderMock(t *testing.T) (txProvider, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlx.NewDb(db, "sqlmock")}, mock
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}
