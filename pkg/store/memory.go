package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/streamweave/core/pkg/models"
)

// MemoryStore is an in-process JobStore used for tests and
// single-binary deployments without a database.
type MemoryStore struct {
	mu         sync.RWMutex
	jobs       map[string]*models.Job
	executions map[string]*models.Execution
	// byJob preserves insertion order of executions per job
	byJob map[string][]string
	now   func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:       make(map[string]*models.Job),
		executions: make(map[string]*models.Execution),
		byJob:      make(map[string][]string),
		now:        time.Now,
	}
}

func (s *MemoryStore) CreateJob(ctx context.Context, job *models.Job) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *job
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = s.now()
	}
	stored.UpdatedAt = stored.CreatedAt

	s.jobs[stored.ID] = &stored
	out := stored
	return &out, nil
}

func (s *MemoryStore) GetJob(ctx context.Context, id string) (*models.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, nil
	}
	out := *job
	return &out, nil
}

func (s *MemoryStore) ListJobs(ctx context.Context, filter models.JobFilter) ([]*models.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]*models.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		if filter.ProjectID != "" && job.ProjectID != filter.ProjectID {
			continue
		}
		out := *job
		jobs = append(jobs, &out)
	}

	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].ID < jobs[j].ID
		}
		return jobs[i].CreatedAt.Before(jobs[j].CreatedAt)
	})
	return jobs, nil
}

func (s *MemoryStore) UpdateJob(ctx context.Context, id string, patch models.JobPatch) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, nil
	}

	if patch.Name != nil {
		job.Name = *patch.Name
	}
	if patch.Description != nil {
		job.Description = *patch.Description
	}
	if patch.Type != nil {
		job.Type = *patch.Type
	}
	if patch.Schedule != nil {
		job.Schedule = *patch.Schedule
	}
	if patch.Enabled != nil {
		job.Enabled = *patch.Enabled
	}
	if patch.Config != nil {
		job.Config = *patch.Config
	}
	if patch.ProjectID != nil {
		job.ProjectID = *patch.ProjectID
	}
	if patch.LastRun != nil {
		job.LastRun = patch.LastRun
	}
	if patch.NextRun != nil {
		job.NextRun = patch.NextRun
	}
	job.UpdatedAt = s.now()

	out := *job
	return &out, nil
}

func (s *MemoryStore) DeleteJob(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[id]; !ok {
		return false, nil
	}
	delete(s.jobs, id)

	// cascade execution history
	for _, execID := range s.byJob[id] {
		delete(s.executions, execID)
	}
	delete(s.byJob, id)

	return true, nil
}

func (s *MemoryStore) CreateExecution(ctx context.Context, exec *models.Execution) (*models.Execution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *exec
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}
	if stored.StartTime.IsZero() {
		stored.StartTime = s.now()
	}
	if stored.Status == "" {
		stored.Status = models.ExecutionPending
	}

	s.executions[stored.ID] = &stored
	s.byJob[stored.JobID] = append(s.byJob[stored.JobID], stored.ID)

	out := stored
	return &out, nil
}

func (s *MemoryStore) UpdateExecution(ctx context.Context, id string, patch models.ExecutionPatch) (*models.Execution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	exec, ok := s.executions[id]
	if !ok {
		return nil, nil
	}

	if patch.Status != nil {
		exec.Status = *patch.Status
	}
	if patch.EndTime != nil {
		exec.EndTime = patch.EndTime
	}
	if patch.DurationMS != nil {
		exec.DurationMS = *patch.DurationMS
	}
	if patch.Progress != nil {
		exec.Progress = *patch.Progress
	}
	if patch.CurrentStep != nil {
		exec.CurrentStep = *patch.CurrentStep
	}
	if patch.Result != nil {
		exec.Result = *patch.Result
	}
	if patch.Error != nil {
		exec.Error = *patch.Error
	}
	if patch.RetryCount != nil {
		exec.RetryCount = *patch.RetryCount
	}

	out := *exec
	return &out, nil
}

func (s *MemoryStore) ListExecutions(ctx context.Context, jobID string) ([]*models.Execution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byJob[jobID]
	execs := make([]*models.Execution, 0, len(ids))
	for _, id := range ids {
		if exec, ok := s.executions[id]; ok {
			out := *exec
			execs = append(execs, &out)
		}
	}

	// most recent first, stable for identical start times
	sort.SliceStable(execs, func(i, j int) bool {
		return execs[i].StartTime.After(execs[j].StartTime)
	})
	return execs, nil
}
