package store

import (
	"context"

	"github.com/streamweave/core/pkg/models"
)

// JobStore is the persistence contract consumed by the scheduler.
//
// Absence is soft: GetJob and UpdateJob return (nil, nil) for unknown
// ids, DeleteJob returns (false, nil). Errors are reserved for storage
// failures. Implementations must serialize concurrent writes to the
// same job or execution id.
type JobStore interface {
	// CreateJob persists a new job, assigning an id if absent.
	CreateJob(ctx context.Context, job *models.Job) (*models.Job, error)

	// GetJob returns the job or nil if the id is unknown.
	GetJob(ctx context.Context, id string) (*models.Job, error)

	// ListJobs returns jobs matching the filter. A zero filter matches
	// everything.
	ListJobs(ctx context.Context, filter models.JobFilter) ([]*models.Job, error)

	// UpdateJob applies a partial merge and returns the updated job,
	// or nil if the id is unknown.
	UpdateJob(ctx context.Context, id string, patch models.JobPatch) (*models.Job, error)

	// DeleteJob removes the job and its execution history. Returns
	// true only if a record existed.
	DeleteJob(ctx context.Context, id string) (bool, error)

	// CreateExecution persists a new execution record.
	CreateExecution(ctx context.Context, exec *models.Execution) (*models.Execution, error)

	// UpdateExecution applies a partial merge to an execution record.
	UpdateExecution(ctx context.Context, id string, patch models.ExecutionPatch) (*models.Execution, error)

	// ListExecutions returns a job's executions, most recent first.
	ListExecutions(ctx context.Context, jobID string) ([]*models.Execution, error)
}
