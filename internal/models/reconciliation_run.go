package models

import (
	"time"

	"github.com/google/uuid"
)

// ReconciliationRun records one engine invocation for a company and window.
type ReconciliationRun struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	CompanyID      uuid.UUID  `gorm:"index" json:"company_id"`
	WindowStart    *time.Time `json:"window_start,omitempty"`
	WindowEnd      *time.Time `json:"window_end,omitempty"`
	MatchCount     int        `json:"match_count"`
	ExceptionCount int        `json:"exception_count"`
	Status         string     `json:"status"`
	StartedAt      time.Time  `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}
