package models

import (
	"time"

	"github.com/lib/pq"
)

// Subject represents an academic subject with its weekly load.
type Subject struct {
	ID                  string         `db:"id" json:"id"`
	Name                string         `db:"name" json:"name"`
	Branch              string         `db:"branch" json:"branch"`
	Levels              pq.StringArray `db:"levels" json:"levels"`
	WeeklyHours         int            `db:"weekly_hours" json:"weekly_hours"`
	DistributionPattern string         `db:"distribution_pattern" json:"distribution_pattern,omitempty"`
	CreatedAt           time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time      `db:"updated_at" json:"updated_at"`
}
