package executors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/streamweave/core/pkg/logger"
	"github.com/streamweave/core/pkg/models"
)

var (
	ErrExecutorNotFound = errors.New("no executor registered for job type")
	ErrExecutorExists   = errors.New("executor already registered for job type")
)

// ProgressFunc lets a long-running executor report progress back onto
// the open execution record. Implementations may be nil-safe no-ops.
type ProgressFunc func(progress int, step string)

// Executor performs the type-specific work of a job. The returned
// payload is recorded on the execution as an opaque result.
type Executor interface {
	Execute(ctx context.Context, job *models.Job, report ProgressFunc) (json.RawMessage, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, job *models.Job, report ProgressFunc) (json.RawMessage, error)

func (f ExecutorFunc) Execute(ctx context.Context, job *models.Job, report ProgressFunc) (json.RawMessage, error) {
	return f(ctx, job, report)
}

// Outcome is the contained result of one dispatch. Dispatch never
// returns an error; failures are carried as data.
type Outcome struct {
	Status  models.ExecutionStatus
	Result  json.RawMessage
	Error   string
	Retries int
}

// Registry maps job types to executors. It is populated at
// construction time and read-only afterwards, so Dispatch takes no
// locks on the hot path beyond the map's RWMutex used during setup.
type Registry struct {
	mu         sync.RWMutex
	executors  map[models.JobType]Executor
	maxRetries int
	logger     *logger.Logger
}

// NewRegistry creates an empty registry. maxRetries is the retry
// budget applied to every failed dispatch (0 disables retries; the
// schedule will bring the job back anyway).
func NewRegistry(maxRetries int) *Registry {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Registry{
		executors:  make(map[models.JobType]Executor),
		maxRetries: maxRetries,
		logger:     logger.New("executor-registry"),
	}
}

func (r *Registry) Register(jobType models.JobType, executor Executor) error {
	if executor == nil {
		return fmt.Errorf("executor cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.executors[jobType]; exists {
		return fmt.Errorf("%w: %s", ErrExecutorExists, jobType)
	}
	r.executors[jobType] = executor
	return nil
}

func (r *Registry) MustRegister(jobType models.JobType, executor Executor) {
	if err := r.Register(jobType, executor); err != nil {
		panic(err)
	}
}

// Types returns the registered job types.
func (r *Registry) Types() []models.JobType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]models.JobType, 0, len(r.executors))
	for t := range r.executors {
		types = append(types, t)
	}
	return types
}

func (r *Registry) get(jobType models.JobType) (Executor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	executor, ok := r.executors[jobType]
	return executor, ok
}

// Dispatch runs the job's executor and converts every failure mode,
// including panics and missing executors, into a failed Outcome. One
// misconfigured job must never abort the scheduler loop.
func (r *Registry) Dispatch(ctx context.Context, job *models.Job, report ProgressFunc) Outcome {
	executor, ok := r.get(job.Type)
	if !ok {
		return Outcome{
			Status: models.ExecutionFailed,
			Error:  fmt.Sprintf("%v: %s", ErrExecutorNotFound, job.Type),
		}
	}

	var lastErr error
	maxAttempts := r.maxRetries + 1
	attempts := 0

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		attempts = attempt
		if attempt > 1 {
			r.logger.Warn().
				Int("attempt", attempt).
				Int("max_attempts", maxAttempts).
				Err(lastErr).
				Str("job_id", job.ID).
				Str("action", "dispatch_retry").
				Msg("Retrying dispatch after failure")

			backoff := time.Duration(1<<uint(attempt-2)) * time.Second
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return Outcome{
					Status:  models.ExecutionFailed,
					Error:   ctx.Err().Error(),
					Retries: attempt - 1,
				}
			}
		}

		result, err := r.execute(ctx, executor, job, report)
		if err == nil {
			return Outcome{
				Status:  models.ExecutionSuccess,
				Result:  result,
				Retries: attempt - 1,
			}
		}
		lastErr = err

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			break
		}
	}

	return Outcome{
		Status:  models.ExecutionFailed,
		Error:   lastErr.Error(),
		Retries: attempts - 1,
	}
}

// execute isolates a single attempt so a panicking executor surfaces
// as an error instead of taking down the loop goroutine.
func (r *Registry) execute(ctx context.Context, executor Executor, job *models.Job, report ProgressFunc) (result json.RawMessage, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("executor panic: %v", rec)
		}
	}()

	if report == nil {
		report = func(int, string) {}
	}
	return executor.Execute(ctx, job, report)
}
