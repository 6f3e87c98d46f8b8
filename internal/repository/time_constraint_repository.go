package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/timetable-api/internal/models"
)

// TimeConstraintRepository reads per-slot availability rules.
type TimeConstraintRepository struct {
	db *sqlx.DB
}

// NewTimeConstraintRepository constructs a TimeConstraintRepository.
func NewTimeConstraintRepository(db *sqlx.DB) *TimeConstraintRepository {
	return &TimeConstraintRepository{db: db}
}

// List returns all time constraints.
func (r *TimeConstraintRepository) List(ctx context.Context) ([]models.TimeConstraint, error) {
	const query = `SELECT id, entity_type, entity_id, day, period, constraint_type, created_at
FROM time_constraints ORDER BY entity_type ASC, entity_id ASC, created_at ASC`
	var constraints []models.TimeConstraint
	if err := r.db.SelectContext(ctx, &constraints, query); err != nil {
		return nil, fmt.Errorf("list time constraints: %w", err)
	}
	return constraints, nil
}
