package executors

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/streamweave/core/pkg/models"
)

// ScriptRunner executes user scripts inside the platform's sandbox.
type ScriptRunner interface {
	RunScript(ctx context.Context, script string, args []string) (json.RawMessage, error)
}

type ScriptExecutor struct {
	runner ScriptRunner
}

func NewScriptExecutor(runner ScriptRunner) *ScriptExecutor {
	return &ScriptExecutor{runner: runner}
}

type scriptConfig struct {
	Script string   `json:"script"`
	Args   []string `json:"args,omitempty"`
}

func (e *ScriptExecutor) Execute(ctx context.Context, job *models.Job, report ProgressFunc) (json.RawMessage, error) {
	var cfg scriptConfig
	if err := json.Unmarshal(job.Config, &cfg); err != nil {
		return nil, fmt.Errorf("invalid custom_script config: %w", err)
	}
	if cfg.Script == "" {
		return nil, fmt.Errorf("custom_script config missing script")
	}

	report(0, "running script")
	result, err := e.runner.RunScript(ctx, cfg.Script, cfg.Args)
	if err != nil {
		return nil, fmt.Errorf("script failed: %w", err)
	}
	report(100, "done")
	return result, nil
}
