package executors

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/streamweave/core/pkg/models"
)

// BackupRunner performs the platform's backup mechanism.
type BackupRunner interface {
	Backup(ctx context.Context, target string) (json.RawMessage, error)
}

type BackupExecutor struct {
	runner BackupRunner
}

func NewBackupExecutor(runner BackupRunner) *BackupExecutor {
	return &BackupExecutor{runner: runner}
}

type backupConfig struct {
	Target string `json:"target"`
}

func (e *BackupExecutor) Execute(ctx context.Context, job *models.Job, report ProgressFunc) (json.RawMessage, error) {
	var cfg backupConfig
	if err := json.Unmarshal(job.Config, &cfg); err != nil {
		return nil, fmt.Errorf("invalid backup config: %w", err)
	}
	if cfg.Target == "" {
		return nil, fmt.Errorf("backup config missing target")
	}

	report(0, "backing up "+cfg.Target)
	result, err := e.runner.Backup(ctx, cfg.Target)
	if err != nil {
		return nil, fmt.Errorf("backup of %s failed: %w", cfg.Target, err)
	}
	report(100, "done")
	return result, nil
}
