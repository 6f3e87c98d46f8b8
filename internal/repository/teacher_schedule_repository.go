package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/timetable-api/internal/models"
)

const teacherScheduleColumns = "id, teacher_id, schedule, created_at, updated_at"

// TeacherScheduleRepository stores one weekly schedule per teacher.
type TeacherScheduleRepository struct {
	db *sqlx.DB
}

// NewTeacherScheduleRepository constructs a TeacherScheduleRepository.
func NewTeacherScheduleRepository(db *sqlx.DB) *TeacherScheduleRepository {
	return &TeacherScheduleRepository{db: db}
}

func (r *TeacherScheduleRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// List returns a page of schedules and the total count.
func (r *TeacherScheduleRepository) List(ctx context.Context, filter models.TeacherScheduleFilter) ([]models.TeacherSchedule, int, error) {
	base := "FROM teacher_schedules WHERE 1=1"
	var args []interface{}
	if len(filter.TeacherIDs) > 0 {
		args = append(args, pq.Array(filter.TeacherIDs))
		base += fmt.Sprintf(" AND teacher_id = ANY($%d)", len(args))
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY teacher_id ASC LIMIT %d OFFSET %d", teacherScheduleColumns, base, size, offset)
	var schedules []models.TeacherSchedule
	if err := r.db.SelectContext(ctx, &schedules, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list teacher schedules: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count teacher schedules: %w", err)
	}
	return schedules, total, nil
}

// ListByTeacherIDs returns the stored schedules of the given teachers.
func (r *TeacherScheduleRepository) ListByTeacherIDs(ctx context.Context, teacherIDs []string) ([]models.TeacherSchedule, error) {
	if len(teacherIDs) == 0 {
		return []models.TeacherSchedule{}, nil
	}
	query := fmt.Sprintf("SELECT %s FROM teacher_schedules WHERE teacher_id = ANY($1) ORDER BY teacher_id ASC", teacherScheduleColumns)
	var schedules []models.TeacherSchedule
	if err := r.db.SelectContext(ctx, &schedules, query, pq.Array(teacherIDs)); err != nil {
		return nil, fmt.Errorf("list teacher schedules by teacher: %w", err)
	}
	return schedules, nil
}

// ReplaceWithTx deletes the current week of every teacher in records and inserts the new ones.
// Callers pass a transaction so the swap is atomic.
func (r *TeacherScheduleRepository) ReplaceWithTx(ctx context.Context, exec sqlx.ExtContext, records []models.TeacherSchedule) error {
	if len(records) == 0 {
		return nil
	}
	target := r.exec(exec)
	now := time.Now().UTC()

	ids := make([]string, 0, len(records))
	for _, rec := range records {
		ids = append(ids, rec.TeacherID)
	}
	if _, err := target.ExecContext(ctx, "DELETE FROM teacher_schedules WHERE teacher_id = ANY($1)", pq.Array(ids)); err != nil {
		return fmt.Errorf("delete teacher schedules: %w", err)
	}

	const insert = `
INSERT INTO teacher_schedules (id, teacher_id, schedule, created_at, updated_at)
VALUES (:id, :teacher_id, :schedule, :created_at, :updated_at)`
	for i := range records {
		rec := &records[i]
		if strings.TrimSpace(rec.TeacherID) == "" {
			return fmt.Errorf("insert teacher schedule: empty teacher id")
		}
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = now
		}
		rec.UpdatedAt = now
		if _, err := sqlx.NamedExecContext(ctx, target, insert, rec); err != nil {
			return fmt.Errorf("insert teacher schedule %s: %w", rec.TeacherID, err)
		}
	}
	return nil
}
