package executors

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/streamweave/core/pkg/models"
)

// CleanupRunner prunes expired platform data.
type CleanupRunner interface {
	Cleanup(ctx context.Context, scope string, retentionDays int) (json.RawMessage, error)
}

type CleanupExecutor struct {
	runner CleanupRunner
}

func NewCleanupExecutor(runner CleanupRunner) *CleanupExecutor {
	return &CleanupExecutor{runner: runner}
}

type cleanupConfig struct {
	Scope         string `json:"scope"`
	RetentionDays int    `json:"retentionDays"`
}

func (e *CleanupExecutor) Execute(ctx context.Context, job *models.Job, report ProgressFunc) (json.RawMessage, error) {
	var cfg cleanupConfig
	if err := json.Unmarshal(job.Config, &cfg); err != nil {
		return nil, fmt.Errorf("invalid cleanup config: %w", err)
	}
	if cfg.Scope == "" {
		cfg.Scope = "default"
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 30
	}

	report(0, "cleaning "+cfg.Scope)
	result, err := e.runner.Cleanup(ctx, cfg.Scope, cfg.RetentionDays)
	if err != nil {
		return nil, fmt.Errorf("cleanup of %s failed: %w", cfg.Scope, err)
	}
	report(100, "done")
	return result, nil
}
