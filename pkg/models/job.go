package models

import (
	"encoding/json"
	"time"
)

// JobType identifies which executor handles a job.
type JobType string

const (
	JobTypePipeline     JobType = "pipeline"
	JobTypeDataSync     JobType = "data_sync"
	JobTypeBackup       JobType = "backup"
	JobTypeCleanup      JobType = "cleanup"
	JobTypeCustomScript JobType = "custom_script"
	JobTypeAPIPoll      JobType = "api_poll"
	JobTypeWorkflow     JobType = "workflow"
)

// JobTypes lists every supported job type.
func JobTypes() []JobType {
	return []JobType{
		JobTypePipeline,
		JobTypeDataSync,
		JobTypeBackup,
		JobTypeCleanup,
		JobTypeCustomScript,
		JobTypeAPIPoll,
		JobTypeWorkflow,
	}
}

// Valid reports whether t is one of the supported job types.
func (t JobType) Valid() bool {
	for _, known := range JobTypes() {
		if t == known {
			return true
		}
	}
	return false
}

// Job is a recurring or one-off work item managed by the scheduler.
type Job struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Type        JobType         `json:"type"`
	Schedule    string          `json:"schedule"`
	Enabled     bool            `json:"enabled"`
	Config      json.RawMessage `json:"config,omitempty"`
	ProjectID   string          `json:"project_id,omitempty"`
	CreatedBy   string          `json:"created_by,omitempty"`
	LastRun     *time.Time      `json:"last_run,omitempty"`
	NextRun     *time.Time      `json:"next_run,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// JobInput carries the caller-supplied fields for creating a job.
type JobInput struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Type        JobType         `json:"type"`
	Schedule    string          `json:"schedule"`
	Enabled     bool            `json:"enabled"`
	Config      json.RawMessage `json:"config,omitempty"`
	ProjectID   string          `json:"project_id,omitempty"`
	CreatedBy   string          `json:"created_by,omitempty"`
}

// JobPatch is a partial update. Nil fields are left unchanged.
type JobPatch struct {
	Name        *string          `json:"name,omitempty"`
	Description *string          `json:"description,omitempty"`
	Type        *JobType         `json:"type,omitempty"`
	Schedule    *string          `json:"schedule,omitempty"`
	Enabled     *bool            `json:"enabled,omitempty"`
	Config      *json.RawMessage `json:"config,omitempty"`
	ProjectID   *string          `json:"project_id,omitempty"`
	LastRun     *time.Time       `json:"last_run,omitempty"`
	NextRun     *time.Time       `json:"next_run,omitempty"`
}

// JobFilter narrows ListJobs results.
type JobFilter struct {
	ProjectID string
}
