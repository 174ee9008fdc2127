package models

import (
	"time"

	"github.com/google/uuid"
)

// ValidationRun is the persisted outcome of one validation engine run.
type ValidationRun struct {
	ID           uuid.UUID        `json:"id"`
	StartedAt    time.Time        `json:"started_at"`
	FinishedAt   time.Time        `json:"finished_at"`
	QualityScore float64          `json:"quality_score"`
	Status       string           `json:"status"`
	Counts       map[Source]int64 `json:"counts"`
	Report       []byte           `json:"-"` // JSON-encoded report
}
