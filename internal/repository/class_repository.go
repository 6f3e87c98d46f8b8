package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/timetable-api/internal/models"
)

// ClassRepository reads classes together with their teacher assignments.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository constructs a ClassRepository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// ListByIDs returns the classes with the given ids and their assignments.
func (r *ClassRepository) ListByIDs(ctx context.Context, ids []string) ([]models.Class, error) {
	if len(ids) == 0 {
		return []models.Class{}, nil
	}
	const query = `SELECT id, name, levels, is_club_class, created_at, updated_at
FROM classes WHERE id = ANY($1) ORDER BY name ASC, id ASC`
	var classes []models.Class
	if err := r.db.SelectContext(ctx, &classes, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("list classes by ids: %w", err)
	}
	if len(classes) == 0 {
		return classes, nil
	}

	const assignmentQuery = `SELECT class_id, teacher_id, subject_ids
FROM class_assignments WHERE class_id = ANY($1) ORDER BY class_id ASC, teacher_id ASC`
	var assignments []models.ClassAssignment
	if err := r.db.SelectContext(ctx, &assignments, assignmentQuery, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("list class assignments: %w", err)
	}

	index := make(map[string]int, len(classes))
	for i := range classes {
		index[classes[i].ID] = i
		classes[i].Assignments = []models.ClassAssignment{}
	}
	for _, a := range assignments {
		if i, ok := index[a.ClassID]; ok {
			classes[i].Assignments = append(classes[i].Assignments, a)
		}
	}
	return classes, nil
}
