package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/timetable-api/internal/models"
)

// FixedSlotRepository reads manual placements.
type FixedSlotRepository struct {
	db *sqlx.DB
}

// NewFixedSlotRepository constructs a FixedSlotRepository.
func NewFixedSlotRepository(db *sqlx.DB) *FixedSlotRepository {
	return &FixedSlotRepository{db: db}
}

// List returns all fixed slots in creation order, which decides who wins a contested cell.
func (r *FixedSlotRepository) List(ctx context.Context) ([]models.FixedSlot, error) {
	const query = `SELECT id, day, period, class_id, subject_id, teacher_id, created_at
FROM fixed_slots ORDER BY created_at ASC, id ASC`
	var slots []models.FixedSlot
	if err := r.db.SelectContext(ctx, &slots, query); err != nil {
		return nil, fmt.Errorf("list fixed slots: %w", err)
	}
	return slots, nil
}
