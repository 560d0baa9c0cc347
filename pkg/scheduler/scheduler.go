package scheduler

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/streamweave/core/pkg/executors"
	"github.com/streamweave/core/pkg/logger"
	"github.com/streamweave/core/pkg/models"
	"github.com/streamweave/core/pkg/store"
)

// JobScheduler is the single coordination point for job lifecycle and
// CRUD. It validates input, keeps next_run consistent with schedule
// and enabled-flag changes, and delegates ticking to the Loop.
type JobScheduler struct {
	store     store.JobStore
	evaluator *Evaluator
	clock     Clock
	loop      *Loop
	logger    *logger.Logger
}

// Config carries the scheduler's construction parameters.
type Config struct {
	TickInterval    time.Duration
	DispatchTimeout time.Duration
}

// New constructs a scheduler with explicit dependencies.
func New(st store.JobStore, registry *executors.Registry, clock Clock, cfg Config) *JobScheduler {
	if clock == nil {
		clock = NewRealClock()
	}
	evaluator := NewEvaluator()

	return &JobScheduler{
		store:     st,
		evaluator: evaluator,
		clock:     clock,
		loop: NewLoop(st, registry, evaluator, clock, LoopConfig{
			TickInterval:    cfg.TickInterval,
			DispatchTimeout: cfg.DispatchTimeout,
		}),
		logger: logger.New("job-scheduler"),
	}
}

var (
	defaultOnce      sync.Once
	defaultScheduler *JobScheduler
)

// Default returns the process-wide scheduler instance, constructing it
// on first call with the given dependencies. Later calls ignore the
// arguments and return the same instance. Tests construct their own
// instances with New.
func Default(st store.JobStore, registry *executors.Registry, clock Clock, cfg Config) *JobScheduler {
	defaultOnce.Do(func() {
		defaultScheduler = New(st, registry, clock, cfg)
	})
	return defaultScheduler
}

// CreateJob validates and persists a new job, computing its initial
// next run from the creation instant.
func (s *JobScheduler) CreateJob(ctx context.Context, input models.JobInput) (*models.Job, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, newValidationError("name", "must not be empty")
	}
	if !input.Type.Valid() {
		return nil, newValidationError("type", "unsupported job type "+string(input.Type))
	}

	now := s.clock.Now()
	job := &models.Job{
		Name:        input.Name,
		Description: input.Description,
		Type:        input.Type,
		Schedule:    input.Schedule,
		Enabled:     input.Enabled,
		Config:      input.Config,
		ProjectID:   input.ProjectID,
		CreatedBy:   input.CreatedBy,
		CreatedAt:   now,
	}

	next := s.evaluator.NextRun(input.Schedule, now)
	job.NextRun = &next

	created, err := s.store.CreateJob(ctx, job)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("action", "job_created").
		Str("job_id", created.ID).
		Str("job_type", string(created.Type)).
		Str("schedule", created.Schedule).
		Bool("enabled", created.Enabled).
		Time("next_run", next).
		Msg("Job created")

	return created, nil
}

// GetJob returns the job or nil for an unknown id.
func (s *JobScheduler) GetJob(ctx context.Context, id string) (*models.Job, error) {
	return s.store.GetJob(ctx, id)
}

// GetJobs lists jobs, optionally filtered by project.
func (s *JobScheduler) GetJobs(ctx context.Context, filter models.JobFilter) ([]*models.Job, error) {
	return s.store.ListJobs(ctx, filter)
}

// UpdateJob merges a patch into the job. A schedule change recomputes
// next_run from the update instant, so the reschedule takes effect for
// the next occurrence only. Re-enabling recomputes next_run from now;
// missed runs are not caught up. Returns nil for an unknown id.
func (s *JobScheduler) UpdateJob(ctx context.Context, id string, patch models.JobPatch) (*models.Job, error) {
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return nil, newValidationError("name", "must not be empty")
	}
	if patch.Type != nil && !patch.Type.Valid() {
		return nil, newValidationError("type", "unsupported job type "+string(*patch.Type))
	}

	existing, err := s.store.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, nil
	}

	now := s.clock.Now()

	scheduleChanged := patch.Schedule != nil && *patch.Schedule != existing.Schedule
	reenabled := patch.Enabled != nil && *patch.Enabled && !existing.Enabled

	if scheduleChanged || reenabled {
		schedule := existing.Schedule
		if patch.Schedule != nil {
			schedule = *patch.Schedule
		}
		next := s.evaluator.NextRun(schedule, now)
		patch.NextRun = &next
	}
	// disabling freezes next_run as-is until re-enable

	updated, err := s.store.UpdateJob(ctx, id, patch)
	if err != nil || updated == nil {
		return updated, err
	}

	s.logger.Info().
		Str("action", "job_updated").
		Str("job_id", id).
		Bool("schedule_changed", scheduleChanged).
		Bool("reenabled", reenabled).
		Msg("Job updated")

	return updated, nil
}

// DeleteJob removes a job and its execution history. Returns false
// for an unknown id.
func (s *JobScheduler) DeleteJob(ctx context.Context, id string) (bool, error) {
	deleted, err := s.store.DeleteJob(ctx, id)
	if err != nil {
		return false, err
	}

	if deleted {
		s.logger.Info().
			Str("action", "job_deleted").
			Str("job_id", id).
			Msg("Job deleted")
	}
	return deleted, nil
}

// ExecuteJob performs an out-of-band dispatch, independent of the
// job's next_run. The returned execution id is available immediately;
// callers poll GetJobExecutions for the outcome, which is recorded
// even when the executor fails.
func (s *JobScheduler) ExecuteJob(ctx context.Context, id string) (string, error) {
	job, err := s.store.GetJob(ctx, id)
	if err != nil {
		return "", err
	}
	if job == nil {
		return "", ErrJobNotFound
	}

	return s.loop.DispatchNow(job)
}

// GetJobExecutions returns the job's execution history, most recent
// first.
func (s *JobScheduler) GetJobExecutions(ctx context.Context, id string) ([]*models.Execution, error) {
	return s.store.ListExecutions(ctx, id)
}

// Start begins scheduling. Idempotent.
func (s *JobScheduler) Start() {
	s.loop.Start()
}

// Stop halts future scheduling; in-flight dispatches complete and are
// recorded. Idempotent.
func (s *JobScheduler) Stop() {
	s.loop.Stop()
}

// IsActive reports whether the scheduler loop is running.
func (s *JobScheduler) IsActive() bool {
	return s.loop.IsActive()
}

// Wait blocks until in-flight dispatches have drained.
func (s *JobScheduler) Wait() {
	s.loop.Wait()
}
