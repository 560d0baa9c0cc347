package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/streamweave/core/pkg/logger"
	"github.com/streamweave/core/pkg/models"
)

// DBTX is the subset of pgx used by the store. Both *pgxpool.Pool and
// pgx.Tx satisfy it.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore is the production JobStore backed by PostgreSQL.
// Same-id write serialization comes from row-level locking on UPDATE.
type PostgresStore struct {
	db     DBTX
	logger *logger.Logger
}

// NewPostgresStore creates a Postgres-backed job store.
func NewPostgresStore(db DBTX) *PostgresStore {
	return &PostgresStore{
		db:     db,
		logger: logger.New("job-store"),
	}
}

const jobColumns = `id, name, description, type, schedule, enabled, config,
	project_id, created_by, last_run, next_run, created_at, updated_at`

func scanJob(row pgx.Row) (*models.Job, error) {
	var job models.Job
	err := row.Scan(
		&job.ID, &job.Name, &job.Description, &job.Type, &job.Schedule,
		&job.Enabled, &job.Config, &job.ProjectID, &job.CreatedBy,
		&job.LastRun, &job.NextRun, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (s *PostgresStore) CreateJob(ctx context.Context, job *models.Job) (*models.Job, error) {
	stored := *job
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	stored.UpdatedAt = stored.CreatedAt

	query := `INSERT INTO scheduled_jobs (` + jobColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING ` + jobColumns

	row := s.db.QueryRow(ctx, query,
		stored.ID, stored.Name, stored.Description, stored.Type,
		stored.Schedule, stored.Enabled, stored.Config, stored.ProjectID,
		stored.CreatedBy, stored.LastRun, stored.NextRun,
		stored.CreatedAt, stored.UpdatedAt,
	)

	created, err := scanJob(row)
	if err != nil {
		return nil, fmt.Errorf("failed to insert job %s: %w", stored.ID, err)
	}
	return created, nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id string) (*models.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM scheduled_jobs WHERE id = $1`

	job, err := scanJob(s.db.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job %s: %w", id, err)
	}
	return job, nil
}

func (s *PostgresStore) ListJobs(ctx context.Context, filter models.JobFilter) ([]*models.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM scheduled_jobs`
	args := []any{}
	if filter.ProjectID != "" {
		query += ` WHERE project_id = $1`
		args = append(args, filter.ProjectID)
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job row: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (s *PostgresStore) UpdateJob(ctx context.Context, id string, patch models.JobPatch) (*models.Job, error) {
	// COALESCE-style merge keeps the patch partial without reading first
	query := `UPDATE scheduled_jobs SET
			name = COALESCE($2, name),
			description = COALESCE($3, description),
			type = COALESCE($4, type),
			schedule = COALESCE($5, schedule),
			enabled = COALESCE($6, enabled),
			config = COALESCE($7, config),
			project_id = COALESCE($8, project_id),
			last_run = COALESCE($9, last_run),
			next_run = COALESCE($10, next_run),
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + jobColumns

	job, err := scanJob(s.db.QueryRow(ctx, query,
		id, patch.Name, patch.Description, patch.Type, patch.Schedule,
		patch.Enabled, patch.Config, patch.ProjectID, patch.LastRun,
		patch.NextRun,
	))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update job %s: %w", id, err)
	}
	return job, nil
}

func (s *PostgresStore) DeleteJob(ctx context.Context, id string) (bool, error) {
	// executions cascade via FK ON DELETE CASCADE
	tag, err := s.db.Exec(ctx, `DELETE FROM scheduled_jobs WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete job %s: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

const executionColumns = `id, job_id, status, start_time, end_time,
	duration_ms, progress, current_step, result, error, retry_count`

func scanExecution(row pgx.Row) (*models.Execution, error) {
	var exec models.Execution
	err := row.Scan(
		&exec.ID, &exec.JobID, &exec.Status, &exec.StartTime, &exec.EndTime,
		&exec.DurationMS, &exec.Progress, &exec.CurrentStep, &exec.Result,
		&exec.Error, &exec.RetryCount,
	)
	if err != nil {
		return nil, err
	}
	return &exec, nil
}

func (s *PostgresStore) CreateExecution(ctx context.Context, exec *models.Execution) (*models.Execution, error) {
	stored := *exec
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}
	if stored.StartTime.IsZero() {
		stored.StartTime = time.Now().UTC()
	}
	if stored.Status == "" {
		stored.Status = models.ExecutionPending
	}

	query := `INSERT INTO job_executions (` + executionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING ` + executionColumns

	created, err := scanExecution(s.db.QueryRow(ctx, query,
		stored.ID, stored.JobID, stored.Status, stored.StartTime,
		stored.EndTime, stored.DurationMS, stored.Progress,
		stored.CurrentStep, stored.Result, stored.Error, stored.RetryCount,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to insert execution %s: %w", stored.ID, err)
	}
	return created, nil
}

func (s *PostgresStore) UpdateExecution(ctx context.Context, id string, patch models.ExecutionPatch) (*models.Execution, error) {
	query := `UPDATE job_executions SET
			status = COALESCE($2, status),
			end_time = COALESCE($3, end_time),
			duration_ms = COALESCE($4, duration_ms),
			progress = COALESCE($5, progress),
			current_step = COALESCE($6, current_step),
			result = COALESCE($7, result),
			error = COALESCE($8, error),
			retry_count = COALESCE($9, retry_count)
		WHERE id = $1
		RETURNING ` + executionColumns

	exec, err := scanExecution(s.db.QueryRow(ctx, query,
		id, patch.Status, patch.EndTime, patch.DurationMS, patch.Progress,
		patch.CurrentStep, patch.Result, patch.Error, patch.RetryCount,
	))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update execution %s: %w", id, err)
	}
	return exec, nil
}

func (s *PostgresStore) ListExecutions(ctx context.Context, jobID string) ([]*models.Execution, error) {
	query := `SELECT ` + executionColumns + ` FROM job_executions
		WHERE job_id = $1 ORDER BY start_time DESC, id DESC`

	rows, err := s.db.Query(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to list executions for job %s: %w", jobID, err)
	}
	defer rows.Close()

	var execs []*models.Execution
	for rows.Next() {
		exec, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution row: %w", err)
		}
		execs = append(execs, exec)
	}
	return execs, rows.Err()
}
