package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/streamweave/core/pkg/executors"
	"github.com/streamweave/core/pkg/models"
	"github.com/streamweave/core/pkg/store"
)

// countingExecutor records invocations and can be told to fail or
// panic.
type countingExecutor struct {
	calls   atomic.Int64
	failErr error
	panics  bool
}

func (e *countingExecutor) Execute(ctx context.Context, job *models.Job, report executors.ProgressFunc) (json.RawMessage, error) {
	e.calls.Add(1)
	if e.panics {
		panic("executor blew up")
	}
	if e.failErr != nil {
		return nil, e.failErr
	}
	report(100, "done")
	return json.RawMessage(`{"ok":true}`), nil
}

type testEnv struct {
	sched    *JobScheduler
	store    *store.MemoryStore
	clock    *fakeClock
	executor *countingExecutor
}

// baseTime is a round instant so minute-interval schedules land on
// predictable boundaries.
var baseTime = time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st := store.NewMemoryStore()
	clock := newFakeClock(baseTime)
	executor := &countingExecutor{}

	registry := executors.NewRegistry(0)
	for _, jobType := range models.JobTypes() {
		registry.MustRegister(jobType, executor)
	}

	sched := New(st, registry, clock, Config{
		TickInterval: time.Minute,
	})
	t.Cleanup(func() {
		sched.Stop()
		sched.Wait()
	})

	return &testEnv{sched: sched, store: st, clock: clock, executor: executor}
}

func (env *testEnv) createJob(t *testing.T, input models.JobInput) *models.Job {
	t.Helper()
	job, err := env.sched.CreateJob(context.Background(), input)
	if err != nil {
		t.Fatalf("CreateJob failed: %v", err)
	}
	return job
}

// advance moves virtual time tick by tick, letting each tick's
// dispatches finish their bookkeeping before the next one fires, then
// asserts the job's total execution count.
func (env *testEnv) advance(t *testing.T, d time.Duration, wantExecs int, jobID string) {
	t.Helper()

	for elapsed := time.Duration(0); elapsed < d; elapsed += time.Minute {
		env.clock.Advance(time.Minute)
		// barrier: the tick has been scanned and its dispatch
		// goroutines registered once Sync returns
		env.clock.Sync()
		env.sched.Wait()
	}

	execs, err := env.store.ListExecutions(context.Background(), jobID)
	if err != nil {
		t.Fatalf("ListExecutions failed: %v", err)
	}
	if len(execs) != wantExecs {
		t.Fatalf("after advancing %v: got %d executions, want %d", d, len(execs), wantExecs)
	}
}

func TestCreateJob_Validation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name  string
		input models.JobInput
		field string
	}{
		{
			name:  "empty name",
			input: models.JobInput{Name: "  ", Type: models.JobTypeDataSync},
			field: "name",
		},
		{
			name:  "unsupported type",
			input: models.JobInput{Name: "Sync", Type: "teleport"},
			field: "type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.sched.CreateJob(context.Background(), tt.input)

			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Field != tt.field {
				t.Errorf("expected field %q, got %q", tt.field, verr.Field)
			}
		})
	}
}

func TestCreateJob_InitialNextRun(t *testing.T) {
	env := newTestEnv(t)

	job := env.createJob(t, models.JobInput{
		Name:     "Sync",
		Type:     models.JobTypeDataSync,
		Schedule: "*/5 * * * *",
		Enabled:  true,
	})

	if job.NextRun == nil {
		t.Fatal("expected next run to be set on creation")
	}
	expected := baseTime.Add(5 * time.Minute)
	if !job.NextRun.Equal(expected) {
		t.Errorf("next run = %v, want %v", job.NextRun, expected)
	}
}

func TestCreateJob_UnsupportedScheduleFallsBack(t *testing.T) {
	env := newTestEnv(t)

	job := env.createJob(t, models.JobInput{
		Name:     "Nightly Report",
		Type:     models.JobTypeWorkflow,
		Schedule: "0 0 15 * * *",
		Enabled:  true,
	})

	expected := baseTime.Add(FallbackInterval)
	if job.NextRun == nil || !job.NextRun.Equal(expected) {
		t.Errorf("next run = %v, want fallback %v", job.NextRun, expected)
	}
}

func TestScheduledExecution(t *testing.T) {
	env := newTestEnv(t)

	job := env.createJob(t, models.JobInput{
		Name:     "Sync",
		Type:     models.JobTypeDataSync,
		Schedule: "*/5 * * * *",
		Enabled:  true,
		Config:   json.RawMessage(`{"dataSourceId":"ds-1"}`),
	})

	env.sched.Start()

	env.advance(t, 5*time.Minute, 1, job.ID)
	env.advance(t, 10*time.Minute, 3, job.ID)

	execs, _ := env.store.ListExecutions(context.Background(), job.ID)
	for _, exec := range execs {
		if exec.Status != models.ExecutionSuccess {
			t.Errorf("execution %s status = %s, want success", exec.ID, exec.Status)
		}
		if exec.EndTime == nil {
			t.Errorf("execution %s has no end time", exec.ID)
		}
	}

	// history is most recent first
	for i := 1; i < len(execs); i++ {
		if execs[i].StartTime.After(execs[i-1].StartTime) {
			t.Error("executions are not ordered most recent first")
		}
	}

	updated, _ := env.sched.GetJob(context.Background(), job.ID)
	if updated.LastRun == nil {
		t.Fatal("expected last run to be set after dispatch")
	}
	if updated.NextRun == nil || !updated.NextRun.After(*updated.LastRun) {
		t.Error("next run should be after last run")
	}
}

func TestDisabledJobDoesNotRun(t *testing.T) {
	env := newTestEnv(t)

	job := env.createJob(t, models.JobInput{
		Name:     "Paused Sync",
		Type:     models.JobTypeDataSync,
		Schedule: "*/5 * * * *",
		Enabled:  false,
	})

	env.sched.Start()
	env.advance(t, 30*time.Minute, 0, job.ID)

	// re-enable: next run is computed from now, no catch-up of the
	// missed half hour
	enabled := true
	updated, err := env.sched.UpdateJob(context.Background(), job.ID, models.JobPatch{Enabled: &enabled})
	if err != nil {
		t.Fatalf("UpdateJob failed: %v", err)
	}
	expected := baseTime.Add(35 * time.Minute)
	if updated.NextRun == nil || !updated.NextRun.Equal(expected) {
		t.Errorf("next run after re-enable = %v, want %v", updated.NextRun, expected)
	}

	env.advance(t, 5*time.Minute, 1, job.ID)
}

func TestDisableFreezesNextRun(t *testing.T) {
	env := newTestEnv(t)

	job := env.createJob(t, models.JobInput{
		Name:     "Sync",
		Type:     models.JobTypeDataSync,
		Schedule: "*/5 * * * *",
		Enabled:  true,
	})
	before := *job.NextRun

	disabled := false
	updated, err := env.sched.UpdateJob(context.Background(), job.ID, models.JobPatch{Enabled: &disabled})
	if err != nil {
		t.Fatalf("UpdateJob failed: %v", err)
	}
	if updated.NextRun == nil || !updated.NextRun.Equal(before) {
		t.Errorf("disabling changed next run: %v, want frozen %v", updated.NextRun, before)
	}
}

func TestUpdateScheduleTakesEffectForNextOccurrence(t *testing.T) {
	env := newTestEnv(t)

	job := env.createJob(t, models.JobInput{
		Name:     "Sync",
		Type:     models.JobTypeDataSync,
		Schedule: "*/5 * * * *",
		Enabled:  true,
	})

	env.sched.Start()
	env.advance(t, 10*time.Minute, 2, job.ID) // 12:05, 12:10

	// at 12:10, switch to every 10 minutes: next occurrence is 12:20,
	// ten minutes after the update instant, not 12:15
	schedule := "*/10 * * * *"
	updated, err := env.sched.UpdateJob(context.Background(), job.ID, models.JobPatch{Schedule: &schedule})
	if err != nil {
		t.Fatalf("UpdateJob failed: %v", err)
	}
	expected := baseTime.Add(20 * time.Minute)
	if updated.NextRun == nil || !updated.NextRun.Equal(expected) {
		t.Fatalf("next run after reschedule = %v, want %v", updated.NextRun, expected)
	}

	env.advance(t, 5*time.Minute, 2, job.ID)  // 12:15, nothing new
	env.advance(t, 5*time.Minute, 3, job.ID)  // 12:20
	env.advance(t, 10*time.Minute, 4, job.ID) // 12:30
}

func TestStopHaltsFutureScheduling(t *testing.T) {
	env := newTestEnv(t)

	job := env.createJob(t, models.JobInput{
		Name:     "Sync",
		Type:     models.JobTypeDataSync,
		Schedule: "*/5 * * * *",
		Enabled:  true,
	})

	env.sched.Start()
	if !env.sched.IsActive() {
		t.Fatal("scheduler should be active after Start")
	}
	env.advance(t, 5*time.Minute, 1, job.ID)

	env.sched.Stop()
	if env.sched.IsActive() {
		t.Fatal("scheduler should be inactive after Stop")
	}
	env.advance(t, 30*time.Minute, 1, job.ID)

	// resumes from the current instant: the overdue job fires on the
	// first tick after restart
	env.sched.Start()
	env.advance(t, time.Minute, 2, job.ID)
}

func TestStartStopIdempotent(t *testing.T) {
	env := newTestEnv(t)

	env.sched.Start()
	env.sched.Start()
	if !env.sched.IsActive() {
		t.Fatal("scheduler should be active")
	}

	env.sched.Stop()
	env.sched.Stop()
	if env.sched.IsActive() {
		t.Fatal("scheduler should be inactive")
	}
}

func TestExecuteJob_FailureIsRecorded(t *testing.T) {
	env := newTestEnv(t)
	env.executor.failErr = fmt.Errorf("pipeline p-404 does not exist")

	job := env.createJob(t, models.JobInput{
		Name:     "Broken Pipeline",
		Type:     models.JobTypePipeline,
		Schedule: "0 * * * *",
		Enabled:  true,
	})

	execID, err := env.sched.ExecuteJob(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("ExecuteJob failed: %v", err)
	}
	if execID == "" {
		t.Fatal("expected an execution id even for a failing handler")
	}

	env.sched.Wait()

	execs, err := env.sched.GetJobExecutions(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("GetJobExecutions failed: %v", err)
	}
	if len(execs) != 1 {
		t.Fatalf("expected 1 execution, got %d", len(execs))
	}
	if execs[0].ID != execID {
		t.Errorf("execution id mismatch: %s vs %s", execs[0].ID, execID)
	}
	if execs[0].Status != models.ExecutionFailed {
		t.Errorf("status = %s, want failed", execs[0].Status)
	}
	if execs[0].Error == "" {
		t.Error("expected error message on failed execution")
	}
}

func TestExecuteJob_PanicIsContained(t *testing.T) {
	env := newTestEnv(t)
	env.executor.panics = true

	job := env.createJob(t, models.JobInput{
		Name:     "Panicky Script",
		Type:     models.JobTypeCustomScript,
		Schedule: "0 0 * * *",
		Enabled:  true,
	})

	execID, err := env.sched.ExecuteJob(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("ExecuteJob failed: %v", err)
	}

	env.sched.Wait()

	execs, _ := env.sched.GetJobExecutions(context.Background(), job.ID)
	if len(execs) != 1 || execs[0].ID != execID {
		t.Fatalf("expected the panicking dispatch to be recorded")
	}
	if execs[0].Status != models.ExecutionFailed {
		t.Errorf("status = %s, want failed", execs[0].Status)
	}
}

func TestExecuteJob_UnknownID(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.sched.ExecuteJob(context.Background(), "nope")
	if !errors.Is(err, ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}

func TestFailingJobDoesNotBlockSiblings(t *testing.T) {
	st := store.NewMemoryStore()
	clock := newFakeClock(baseTime)

	registry := executors.NewRegistry(0)
	registry.MustRegister(models.JobTypeBackup, &countingExecutor{failErr: fmt.Errorf("boom")})
	healthyExecutor := &countingExecutor{}
	registry.MustRegister(models.JobTypeCleanup, healthyExecutor)

	sched := New(st, registry, clock, Config{TickInterval: time.Minute})
	t.Cleanup(func() {
		sched.Stop()
		sched.Wait()
	})
	env := &testEnv{sched: sched, store: st, clock: clock}

	broken := env.createJob(t, models.JobInput{
		Name:     "Broken",
		Type:     models.JobTypeBackup,
		Schedule: "*/5 * * * *",
		Enabled:  true,
	})
	healthy := env.createJob(t, models.JobInput{
		Name:     "Healthy",
		Type:     models.JobTypeCleanup,
		Schedule: "*/5 * * * *",
		Enabled:  true,
	})

	sched.Start()
	env.advance(t, 5*time.Minute, 1, healthy.ID)

	healthyExecs, _ := st.ListExecutions(context.Background(), healthy.ID)
	if healthyExecs[0].Status != models.ExecutionSuccess {
		t.Errorf("healthy job status = %s, want success", healthyExecs[0].Status)
	}
	if healthyExecutor.calls.Load() != 1 {
		t.Errorf("healthy executor called %d times, want 1", healthyExecutor.calls.Load())
	}

	brokenExecs, _ := st.ListExecutions(context.Background(), broken.ID)
	if len(brokenExecs) != 1 {
		t.Fatalf("broken job should still get its execution record, got %d", len(brokenExecs))
	}
	if brokenExecs[0].Status != models.ExecutionFailed {
		t.Errorf("broken job status = %s, want failed", brokenExecs[0].Status)
	}
}

func TestDeleteJob(t *testing.T) {
	env := newTestEnv(t)

	job := env.createJob(t, models.JobInput{
		Name:     "Ephemeral",
		Type:     models.JobTypeCleanup,
		Schedule: "*/5 * * * *",
		Enabled:  true,
	})

	// record some history first
	if _, err := env.sched.ExecuteJob(context.Background(), job.ID); err != nil {
		t.Fatalf("ExecuteJob failed: %v", err)
	}
	env.sched.Wait()

	deleted, err := env.sched.DeleteJob(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("DeleteJob failed: %v", err)
	}
	if !deleted {
		t.Fatal("expected delete to report true for existing job")
	}

	got, err := env.sched.GetJob(context.Background(), job.ID)
	if err != nil || got != nil {
		t.Errorf("GetJob after delete = %v, %v; want nil, nil", got, err)
	}

	jobs, _ := env.sched.GetJobs(context.Background(), models.JobFilter{})
	for _, j := range jobs {
		if j.ID == job.ID {
			t.Error("deleted job still listed")
		}
	}

	execs, _ := env.sched.GetJobExecutions(context.Background(), job.ID)
	if len(execs) != 0 {
		t.Errorf("expected execution history to cascade, got %d records", len(execs))
	}

	// idempotent delete reports false
	deleted, err = env.sched.DeleteJob(context.Background(), job.ID)
	if err != nil || deleted {
		t.Errorf("second delete = %v, %v; want false, nil", deleted, err)
	}
}

func TestUpdateJob_UnknownID(t *testing.T) {
	env := newTestEnv(t)

	name := "renamed"
	updated, err := env.sched.UpdateJob(context.Background(), "nope", models.JobPatch{Name: &name})
	if err != nil {
		t.Fatalf("UpdateJob on unknown id should not error, got %v", err)
	}
	if updated != nil {
		t.Errorf("expected nil for unknown id, got %+v", updated)
	}
}

func TestGetJobs_ProjectFilter(t *testing.T) {
	env := newTestEnv(t)

	env.createJob(t, models.JobInput{Name: "A", Type: models.JobTypeDataSync, Schedule: "0 * * * *", ProjectID: "p1"})
	env.createJob(t, models.JobInput{Name: "B", Type: models.JobTypeDataSync, Schedule: "0 * * * *", ProjectID: "p2"})

	jobs, err := env.sched.GetJobs(context.Background(), models.JobFilter{ProjectID: "p1"})
	if err != nil {
		t.Fatalf("GetJobs failed: %v", err)
	}
	if len(jobs) != 1 || jobs[0].Name != "A" {
		t.Errorf("project filter returned wrong jobs: %+v", jobs)
	}
}
