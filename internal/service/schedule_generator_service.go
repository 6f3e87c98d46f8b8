package service

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/models"
	"github.com/noah-isme/timetable-api/internal/scheduler"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
)

type teacherReader interface {
	ListByIDs(ctx context.Context, ids []string) ([]models.Teacher, error)
}

type classReader interface {
	ListByIDs(ctx context.Context, ids []string) ([]models.Class, error)
}

type subjectReader interface {
	ListByIDs(ctx context.Context, ids []string) ([]models.Subject, error)
}

type timeConstraintReader interface {
	List(ctx context.Context) ([]models.TimeConstraint, error)
}

type fixedSlotReader interface {
	List(ctx context.Context) ([]models.FixedSlot, error)
}

type teacherScheduleStore interface {
	List(ctx context.Context, filter models.TeacherScheduleFilter) ([]models.TeacherSchedule, int, error)
	ListByTeacherIDs(ctx context.Context, teacherIDs []string) ([]models.TeacherSchedule, error)
	ReplaceWithTx(ctx context.Context, exec sqlx.ExtContext, records []models.TeacherSchedule) error
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// ScheduleGeneratorConfig governs generator behaviour.
type ScheduleGeneratorConfig struct {
	ProposalTTL time.Duration
	ListTTL     time.Duration
	Engine      scheduler.Config
}

// ScheduleGeneratorService builds timetable proposals and persists teacher schedules.
type ScheduleGeneratorService struct {
	teachers    teacherReader
	classes     classReader
	subjects    subjectReader
	constraints timeConstraintReader
	fixedSlots  fixedSlotReader
	schedules   teacherScheduleStore
	tx          txProvider
	cache       *CacheService
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	cfg         ScheduleGeneratorConfig
	store       *proposalStore
}

// NewScheduleGeneratorService wires scheduler dependencies.
func NewScheduleGeneratorService(
	teachers teacherReader,
	classes classReader,
	subjects subjectReader,
	constraints timeConstraintReader,
	fixedSlots fixedSlotReader,
	schedules teacherScheduleStore,
	tx txProvider,
	cache *CacheService,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg ScheduleGeneratorConfig,
) *ScheduleGeneratorService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ProposalTTL <= 0 {
		cfg.ProposalTTL = 30 * time.Minute
	}
	return &ScheduleGeneratorService{
		teachers:    teachers,
		classes:     classes,
		subjects:    subjects,
		constraints: constraints,
		fixedSlots:  fixedSlots,
		schedules:   schedules,
		tx:          tx,
		cache:       cache,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
		cfg:         cfg,
		store:       newProposalStore(),
	}
}

// Generate runs the engine synchronously and stores the result as a proposal.
func (s *ScheduleGeneratorService) Generate(ctx context.Context, req dto.GenerateScheduleRequest) (*dto.GenerateScheduleResponse, error) {
	return s.GenerateWithProgress(ctx, req, nil)
}

// GenerateWithProgress is Generate with a progress callback. A cancelled ctx still yields
// the best proposal found so far, flagged as cancelled.
func (s *ScheduleGeneratorService) GenerateWithProgress(ctx context.Context, req dto.GenerateScheduleRequest, progress scheduler.ProgressFunc) (*dto.GenerateScheduleResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule generation payload")
	}
	rules := scheduler.DefaultGlobalRules()
	if req.Rules != nil {
		rules = *req.Rules
	}

	in, mapped, teacherIDs, err := s.loadInput(ctx, req, rules)
	if err != nil {
		return nil, err
	}

	cfg := s.cfg.Engine
	if req.MaxAttempts > 0 {
		cfg.MaxAttempts = req.MaxAttempts
		cfg.StrictMaxAttempts = req.MaxAttempts
	}
	if req.Seed != nil {
		in.Seed = *req.Seed
	}

	start := time.Now()
	result := scheduler.NewEngine(cfg, s.logger.Named("engine")).Generate(ctx, in, progress)
	result.Warnings = append(append([]string{}, mapped.Warnings...), result.Warnings...)
	result.Errors = append(append([]string{}, mapped.Errors...), result.Errors...)
	s.metrics.ObserveGeneration(generationOutcome(result), time.Since(start), result.Attempts, result.Coverage(), result.Conflicts)

	now := time.Now().UTC()
	resp := &dto.GenerateScheduleResponse{
		ProposalID: uuid.NewString(),
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.cfg.ProposalTTL),
		Coverage:   result.Coverage(),
		TeacherIDs: teacherIDs,
		Result:     result,
	}
	s.store.Save(resp)
	s.cache.Set(ctx, proposalCacheKey(resp.ProposalID), resp, s.cfg.ProposalTTL)

	s.logger.Info("timetable proposal stored",
		zap.String("proposal_id", resp.ProposalID),
		zap.Float64("coverage", resp.Coverage),
		zap.Int("conflicts", result.Conflicts),
		zap.Int("attempts", result.Attempts),
	)
	return resp, nil
}

// loadInput reads every entity a run needs and builds the mappings.
func (s *ScheduleGeneratorService) loadInput(ctx context.Context, req dto.GenerateScheduleRequest, rules scheduler.GlobalRules) (scheduler.Input, scheduler.MappingResult, []string, error) {
	var (
		teachers    []models.Teacher
		classes     []models.Class
		subjects    []models.Subject
		constraints []models.TimeConstraint
		fixed       []models.FixedSlot
		existing    []models.TeacherSchedule
	)
	wizard := req.Wizard

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		teachers, err = s.teachers.ListByIDs(gctx, wizard.TeacherIDs)
		return err
	})
	g.Go(func() (err error) {
		classes, err = s.classes.ListByIDs(gctx, wizard.ClassIDs)
		return err
	})
	g.Go(func() (err error) {
		subjects, err = s.subjects.ListByIDs(gctx, wizard.SubjectIDs)
		return err
	})
	g.Go(func() (err error) {
		constraints, err = s.constraints.List(gctx)
		return err
	})
	g.Go(func() (err error) {
		fixed, err = s.fixedSlots.List(gctx)
		return err
	})
	if req.UseExisting {
		g.Go(func() (err error) {
			existing, err = s.schedules.ListByTeacherIDs(gctx, wizard.TeacherIDs)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return scheduler.Input{}, scheduler.MappingResult{}, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load scheduling data")
	}

	fixed = fixedSlotsForClasses(fixed, wizard.ClassIDs)
	if missing := missingSubjectIDs(subjects, fixed); len(missing) > 0 {
		extra, err := s.subjects.ListByIDs(ctx, missing)
		if err != nil {
			return scheduler.Input{}, scheduler.MappingResult{}, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fixed slot subjects")
		}
		subjects = append(subjects, extra...)
	}

	mapped := scheduler.BuildMappings(scheduler.WizardData{
		ClassIDs:             wizard.ClassIDs,
		SubjectIDs:           wizard.SubjectIDs,
		TeacherIDs:           wizard.TeacherIDs,
		SubjectHours:         wizard.SubjectHours,
		SubjectDistributions: wizard.SubjectDistributions,
	}, teachers, classes, subjects, rules)
	if len(mapped.Mappings) == 0 {
		return scheduler.Input{}, mapped, nil, appErrors.Clone(appErrors.ErrValidation, strings.Join(mapped.Errors, "; "))
	}
	for _, e := range mapped.Errors {
		s.logger.Warn("mapping error", zap.String("error", e))
	}

	return scheduler.Input{
		Mappings:         mapped.Mappings,
		Teachers:         teachers,
		Classes:          classes,
		Subjects:         subjects,
		TimeConstraints:  constraints,
		Rules:            rules,
		InitialSchedules: existing,
		FixedSlots:       fixed,
	}, mapped, persistableTeachers(teachers, fixed, existing), nil
}

// GetProposal returns a stored proposal, falling back to the shared cache.
func (s *ScheduleGeneratorService) GetProposal(ctx context.Context, id string) (*dto.GenerateScheduleResponse, error) {
	if proposal, ok := s.store.Get(id); ok {
		return proposal, nil
	}
	var cached dto.GenerateScheduleResponse
	if s.cache.Get(ctx, proposalCacheKey(id), &cached) && time.Now().Before(cached.ExpiresAt) {
		s.store.Save(&cached)
		return &cached, nil
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "proposal not found or expired")
}

// Save replaces the stored weeks of every teacher in the proposal within one transaction.
func (s *ScheduleGeneratorService) Save(ctx context.Context, req dto.SaveScheduleRequest) (*dto.SaveScheduleResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid save schedule payload")
	}
	proposal, err := s.GetProposal(ctx, req.ProposalID)
	if err != nil {
		return nil, err
	}
	result := proposal.Result
	if result == nil || !result.Success {
		return nil, appErrors.Clone(appErrors.ErrValidation, "proposal has no usable schedule")
	}
	if result.Conflicts > 0 {
		return nil, appErrors.Clone(appErrors.ErrConflict, "proposal contains teacher double bookings")
	}
	if result.Statistics.PlacedLessons < result.Statistics.TotalLessonsToPlace && !req.AllowPartial {
		return nil, appErrors.Clone(appErrors.ErrConflict, "proposal leaves lesson hours unplaced; set allowPartial to save it")
	}
	if s.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}

	keep := make(map[string]struct{}, len(proposal.TeacherIDs))
	for _, id := range proposal.TeacherIDs {
		keep[id] = struct{}{}
	}
	records := make([]models.TeacherSchedule, 0, len(result.Schedules))
	for _, sched := range result.Schedules {
		if _, ok := keep[sched.TeacherID]; ok {
			records = append(records, models.TeacherSchedule{TeacherID: sched.TeacherID, Schedule: sched.Schedule})
		}
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	if err := s.schedules.ReplaceWithTx(ctx, tx, records); err != nil {
		_ = tx.Rollback()
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store teacher schedules")
	}
	if err := tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit teacher schedules")
	}

	s.cache.Invalidate(ctx, scheduleCachePattern)
	s.cache.Invalidate(ctx, proposalCacheKey(proposal.ProposalID))
	s.store.Delete(proposal.ProposalID)

	teacherIDs := make([]string, 0, len(records))
	for _, r := range records {
		teacherIDs = append(teacherIDs, r.TeacherID)
	}
	s.logger.Info("teacher schedules saved", zap.String("proposal_id", proposal.ProposalID), zap.Int("teachers", len(records)))
	return &dto.SaveScheduleResponse{ProposalID: proposal.ProposalID, TeacherIDs: teacherIDs, Saved: len(records)}, nil
}

type teacherSchedulePage struct {
	Items []models.TeacherSchedule `json:"items"`
	Total int                      `json:"total"`
}

// ListTeacherSchedules returns stored weeks and reports whether they came from cache.
func (s *ScheduleGeneratorService) ListTeacherSchedules(ctx context.Context, query dto.TeacherScheduleQuery) ([]models.TeacherSchedule, *models.Pagination, bool, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, nil, false, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid teacher schedule query")
	}
	filter := models.TeacherScheduleFilter{TeacherIDs: query.TeacherIDs, Page: query.Page, PageSize: query.PageSize}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 50
	}

	key := scheduleListCacheKey(filter)
	var page teacherSchedulePage
	hit := s.cache.Get(ctx, key, &page)
	if !hit {
		items, total, err := s.schedules.List(ctx, filter)
		if err != nil {
			return nil, nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list teacher schedules")
		}
		page = teacherSchedulePage{Items: items, Total: total}
		s.cache.Set(ctx, key, page, s.cfg.ListTTL)
	}
	if page.Items == nil {
		page.Items = []models.TeacherSchedule{}
	}
	return page.Items, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: page.Total}, hit, nil
}

func generationOutcome(result *scheduler.Result) GenerationOutcome {
	switch {
	case result.Cancelled:
		return OutcomeCancelled
	case !result.Success:
		return OutcomeFailed
	case result.Conflicts > 0 || result.Statistics.PlacedLessons < result.Statistics.TotalLessonsToPlace:
		return OutcomePartial
	default:
		return OutcomeComplete
	}
}

func fixedSlotsForClasses(slots []models.FixedSlot, classIDs []string) []models.FixedSlot {
	selected := make(map[string]struct{}, len(classIDs))
	for _, id := range classIDs {
		selected[id] = struct{}{}
	}
	out := make([]models.FixedSlot, 0, len(slots))
	for _, slot := range slots {
		if _, ok := selected[slot.ClassID]; ok {
			out = append(out, slot)
		}
	}
	return out
}

func missingSubjectIDs(subjects []models.Subject, slots []models.FixedSlot) []string {
	known := make(map[string]struct{}, len(subjects))
	for _, s := range subjects {
		known[s.ID] = struct{}{}
	}
	var missing []string
	for _, slot := range slots {
		if _, ok := known[slot.SubjectID]; ok {
			continue
		}
		known[slot.SubjectID] = struct{}{}
		missing = append(missing, slot.SubjectID)
	}
	return missing
}

// persistableTeachers lists real teachers whose weeks a proposal may overwrite. Virtual club
// teachers never appear here because they are not loaded from storage.
func persistableTeachers(teachers []models.Teacher, fixed []models.FixedSlot, existing []models.TeacherSchedule) []string {
	set := make(map[string]struct{})
	for _, t := range teachers {
		set[t.ID] = struct{}{}
	}
	for _, f := range fixed {
		set[f.TeacherID] = struct{}{}
	}
	for _, e := range existing {
		set[e.TeacherID] = struct{}{}
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		if id != "" {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

type proposalStore struct {
	mu    sync.RWMutex
	items map[string]*dto.GenerateScheduleResponse
}

func newProposalStore() *proposalStore {
	return &proposalStore{items: make(map[string]*dto.GenerateScheduleResponse)}
}

func (s *proposalStore) Save(proposal *dto.GenerateScheduleResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweep(time.Now())
	s.items[proposal.ProposalID] = proposal
}

func (s *proposalStore) Get(id string) (*dto.GenerateScheduleResponse, bool) {
	s.mu.RLock()
	proposal, ok := s.items[id]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Now().After(proposal.ExpiresAt) {
		s.Delete(id)
		return nil, false
	}
	return proposal, true
}

func (s *proposalStore) Delete(id string) {
	s.mu.Lock()
	delete(s.items, id)
	s.mu.Unlock()
}

// sweep drops expired proposals. Callers hold the write lock.
func (s *proposalStore) sweep(now time.Time) {
	for id, p := range s.items {
		if now.After(p.ExpiresAt) {
			delete(s.items, id)
		}
	}
}
