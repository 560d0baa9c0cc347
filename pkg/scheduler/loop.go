package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/streamweave/core/pkg/executors"
	"github.com/streamweave/core/pkg/logger"
	"github.com/streamweave/core/pkg/models"
	"github.com/streamweave/core/pkg/store"
	"github.com/streamweave/core/pkg/utils"
)

// Loop is the active scheduling component. On every tick it scans for
// enabled jobs whose next run is due and fans each one out to its own
// goroutine. A slow or failing job never blocks the tick or its
// siblings.
//
// Overlap policy: a job whose previous scheduled dispatch is still
// running is skipped for that tick, not queued. Every dispatch that
// does happen gets its own execution record. Manual dispatches bypass
// the guard.
type Loop struct {
	store     store.JobStore
	registry  *executors.Registry
	evaluator *Evaluator
	tracker   *ExecutionTracker
	clock     Clock
	logger    *logger.Logger

	tickInterval    time.Duration
	dispatchTimeout time.Duration

	mu     sync.Mutex
	stopCh chan struct{}
	ticker Ticker

	imu      sync.Mutex
	inflight map[string]bool

	// wg tracks dispatch goroutines for bookkeeping only; nothing
	// orders one job's dispatch against another's.
	wg sync.WaitGroup
}

// LoopConfig carries the loop's timing knobs.
type LoopConfig struct {
	TickInterval    time.Duration
	DispatchTimeout time.Duration
}

func NewLoop(st store.JobStore, registry *executors.Registry, evaluator *Evaluator, clock Clock, cfg LoopConfig) *Loop {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if cfg.DispatchTimeout <= 0 {
		cfg.DispatchTimeout = 30 * time.Minute
	}

	return &Loop{
		store:           st,
		registry:        registry,
		evaluator:       evaluator,
		tracker:         NewExecutionTracker(st, clock),
		clock:           clock,
		logger:          logger.New("scheduler-loop"),
		tickInterval:    cfg.TickInterval,
		dispatchTimeout: cfg.DispatchTimeout,
		inflight:        make(map[string]bool),
	}
}

// Start begins ticking. Calling Start on a running loop is a no-op.
func (l *Loop) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.stopCh != nil {
		return
	}

	l.stopCh = make(chan struct{})
	l.ticker = l.clock.NewTicker(l.tickInterval)

	go l.run(l.stopCh, l.ticker)

	l.logger.Info().
		Str("action", "loop_started").
		Dur("tick_interval", l.tickInterval).
		Msg("Scheduler loop started")
}

// Stop cancels future ticks. Dispatches already in flight run to
// completion and their results are still recorded. Calling Stop on a
// stopped loop is a no-op.
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.stopCh == nil {
		return
	}

	close(l.stopCh)
	l.ticker.Stop()
	l.stopCh = nil
	l.ticker = nil

	l.logger.Info().
		Str("action", "loop_stopped").
		Msg("Scheduler loop stopped")
}

// IsActive reports whether the loop is ticking.
func (l *Loop) IsActive() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stopCh != nil
}

// Wait blocks until all in-flight dispatches have completed. Used for
// graceful shutdown and tests.
func (l *Loop) Wait() {
	l.wg.Wait()
}

func (l *Loop) run(stopCh chan struct{}, ticker Ticker) {
	for {
		select {
		case <-stopCh:
			return
		case now := <-ticker.C():
			l.tick(now)
		}
	}
}

// tick evaluates one scheduling pass.
func (l *Loop) tick(now time.Time) {
	ctx := context.Background()

	jobs, err := l.store.ListJobs(ctx, models.JobFilter{})
	if err != nil {
		l.logger.Error().
			Err(err).
			Str("action", "tick_list_failed").
			Msg("Failed to list jobs for tick")
		return
	}

	for _, job := range jobs {
		if !job.Enabled || job.NextRun == nil || job.NextRun.After(now) {
			continue
		}

		if !l.tryAcquire(job.ID) {
			l.logger.Debug().
				Str("job_id", job.ID).
				Str("action", "dispatch_skipped_running").
				Msg("Previous dispatch still running, skipping tick")
			continue
		}

		job := job
		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			defer l.release(job.ID)

			exec := l.tracker.Open(context.Background(), job)
			l.runDispatch(job, exec)
		}()
	}
}

// DispatchNow performs an out-of-band dispatch, bypassing the due
// check and the overlap guard. The execution id is returned before the
// executor finishes so callers can poll the history for the outcome.
func (l *Loop) DispatchNow(job *models.Job) (string, error) {
	exec := l.tracker.Open(context.Background(), job)
	if exec == nil {
		return "", fmt.Errorf("failed to open execution record for job %s", job.ID)
	}

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.runDispatch(job, exec)
	}()

	return exec.ID, nil
}

// runDispatch drives one dispatch end to end: executor invocation,
// record closing, then the job's own schedule bookkeeping. The
// bookkeeping happens after the dispatch completes, which keeps
// next_run monotonically increasing per job.
func (l *Loop) runDispatch(job *models.Job, exec *models.Execution) {
	ctx, cancel := context.WithTimeout(context.Background(), l.dispatchTimeout)
	defer cancel()

	requestID := uuid.New().String()
	jobLogger := l.logger.WithRequestID(requestID).WithJob(job.ID, utils.JobSlug(job.Name))
	ctx = jobLogger.ToContext(ctx)

	jobLogger.LogJobStart(job.Name, job.Schedule)
	start := l.clock.Now()

	report := executors.ProgressFunc(func(progress int, step string) {
		if exec != nil {
			l.tracker.Progress(context.Background(), exec.ID, progress, step)
		}
	})

	outcome := l.registry.Dispatch(ctx, job, report)

	// record closing and job bookkeeping use a fresh context so a
	// dispatch timeout cannot lose the result
	l.tracker.Close(context.Background(), exec, outcome)

	now := l.clock.Now()
	next := l.evaluator.NextRun(job.Schedule, now)
	if _, err := l.store.UpdateJob(context.Background(), job.ID, models.JobPatch{
		LastRun: &now,
		NextRun: &next,
	}); err != nil {
		jobLogger.Error().
			Err(err).
			Str("action", "job_bookkeeping_failed").
			Msg("Failed to update job run times")
	}

	errCount := 0
	if outcome.Status == models.ExecutionFailed {
		errCount = 1
	}
	jobLogger.LogJobComplete(job.Name, now.Sub(start), errCount)
}

func (l *Loop) tryAcquire(jobID string) bool {
	l.imu.Lock()
	defer l.imu.Unlock()

	if l.inflight[jobID] {
		return false
	}
	l.inflight[jobID] = true
	return true
}

func (l *Loop) release(jobID string) {
	l.imu.Lock()
	defer l.imu.Unlock()
	delete(l.inflight, jobID)
}
