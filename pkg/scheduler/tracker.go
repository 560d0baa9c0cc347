package scheduler

import (
	"context"
	"encoding/json"
	"time"

	"github.com/streamweave/core/pkg/executors"
	"github.com/streamweave/core/pkg/logger"
	"github.com/streamweave/core/pkg/models"
	"github.com/streamweave/core/pkg/store"
)

// ExecutionTracker opens and closes execution records around a
// dispatch. Store failures are logged and swallowed so a persistence
// hiccup on one job cannot stop the loop or other jobs.
type ExecutionTracker struct {
	store  store.JobStore
	clock  Clock
	logger *logger.Logger
}

func NewExecutionTracker(st store.JobStore, clock Clock) *ExecutionTracker {
	return &ExecutionTracker{
		store:  st,
		clock:  clock,
		logger: logger.New("execution-tracker"),
	}
}

// Open creates a pending record and immediately marks it running.
// Returns nil if the store rejected the write.
func (t *ExecutionTracker) Open(ctx context.Context, job *models.Job) *models.Execution {
	exec, err := t.store.CreateExecution(ctx, &models.Execution{
		JobID:     job.ID,
		Status:    models.ExecutionPending,
		StartTime: t.clock.Now(),
	})
	if err != nil {
		t.logger.Error().
			Err(err).
			Str("job_id", job.ID).
			Str("action", "execution_open_failed").
			Msg("Failed to create execution record")
		return nil
	}

	running := models.ExecutionRunning
	updated, err := t.store.UpdateExecution(ctx, exec.ID, models.ExecutionPatch{
		Status: &running,
	})
	if err != nil || updated == nil {
		t.logger.Error().
			Err(err).
			Str("job_id", job.ID).
			Str("execution_id", exec.ID).
			Str("action", "execution_mark_running_failed").
			Msg("Failed to mark execution running")
		return exec
	}
	return updated
}

// Progress persists a progress update onto an open record.
func (t *ExecutionTracker) Progress(ctx context.Context, executionID string, progress int, step string) {
	_, err := t.store.UpdateExecution(ctx, executionID, models.ExecutionPatch{
		Progress:    &progress,
		CurrentStep: &step,
	})
	if err != nil {
		t.logger.Warn().
			Err(err).
			Str("execution_id", executionID).
			Str("action", "execution_progress_failed").
			Msg("Failed to persist execution progress")
	}
}

// Close finalizes the record with the dispatch outcome.
func (t *ExecutionTracker) Close(ctx context.Context, exec *models.Execution, outcome executors.Outcome) {
	if exec == nil {
		return
	}

	end := t.clock.Now()
	duration := end.Sub(exec.StartTime).Milliseconds()

	patch := models.ExecutionPatch{
		Status:     &outcome.Status,
		EndTime:    &end,
		DurationMS: &duration,
		RetryCount: &outcome.Retries,
	}
	if outcome.Result != nil {
		result := json.RawMessage(outcome.Result)
		patch.Result = &result
	}
	if outcome.Error != "" {
		patch.Error = &outcome.Error
	}

	if _, err := t.store.UpdateExecution(ctx, exec.ID, patch); err != nil {
		t.logger.Error().
			Err(err).
			Str("execution_id", exec.ID).
			Str("job_id", exec.JobID).
			Str("action", "execution_close_failed").
			Msg("Failed to close execution record")
	}

	event := t.logger.Info()
	if outcome.Status == models.ExecutionFailed {
		event = t.logger.Error()
	}
	event.
		Str("action", "execution_closed").
		Str("execution_id", exec.ID).
		Str("job_id", exec.JobID).
		Str("status", string(outcome.Status)).
		Dur("duration", time.Duration(duration)*time.Millisecond).
		Int("retries", outcome.Retries).
		Msg("Execution record closed")
}
