package models

import (
	"encoding/json"
	"time"
)

// ExecutionStatus tracks the lifecycle of one dispatch attempt.
type ExecutionStatus string

const (
	ExecutionPending ExecutionStatus = "pending"
	ExecutionRunning ExecutionStatus = "running"
	ExecutionSuccess ExecutionStatus = "success"
	ExecutionFailed  ExecutionStatus = "failed"
)

// Execution records one dispatch attempt of a job. Records are
// append-only; once closed (success/failed) they are never mutated
// again except by job deletion cascade.
type Execution struct {
	ID          string          `json:"id"`
	JobID       string          `json:"job_id"`
	Status      ExecutionStatus `json:"status"`
	StartTime   time.Time       `json:"start_time"`
	EndTime     *time.Time      `json:"end_time,omitempty"`
	DurationMS  int64           `json:"duration_ms"`
	Progress    int             `json:"progress,omitempty"`
	CurrentStep string          `json:"current_step,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	RetryCount  int             `json:"retry_count"`
}

// ExecutionPatch is a partial update applied by the execution tracker.
type ExecutionPatch struct {
	Status      *ExecutionStatus `json:"status,omitempty"`
	EndTime     *time.Time       `json:"end_time,omitempty"`
	DurationMS  *int64           `json:"duration_ms,omitempty"`
	Progress    *int             `json:"progress,omitempty"`
	CurrentStep *string          `json:"current_step,omitempty"`
	Result      *json.RawMessage `json:"result,omitempty"`
	Error       *string          `json:"error,omitempty"`
	RetryCount  *int             `json:"retry_count,omitempty"`
}
