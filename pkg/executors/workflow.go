package executors

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/streamweave/core/pkg/models"
)

// WorkflowEngine triggers a workflow by id.
type WorkflowEngine interface {
	TriggerWorkflow(ctx context.Context, workflowID string) (json.RawMessage, error)
}

type WorkflowExecutor struct {
	engine WorkflowEngine
}

func NewWorkflowExecutor(engine WorkflowEngine) *WorkflowExecutor {
	return &WorkflowExecutor{engine: engine}
}

type workflowConfig struct {
	WorkflowID string `json:"workflowId"`
}

func (e *WorkflowExecutor) Execute(ctx context.Context, job *models.Job, report ProgressFunc) (json.RawMessage, error) {
	var cfg workflowConfig
	if err := json.Unmarshal(job.Config, &cfg); err != nil {
		return nil, fmt.Errorf("invalid workflow config: %w", err)
	}
	if cfg.WorkflowID == "" {
		return nil, fmt.Errorf("workflow config missing workflowId")
	}

	report(0, "triggering workflow "+cfg.WorkflowID)
	result, err := e.engine.TriggerWorkflow(ctx, cfg.WorkflowID)
	if err != nil {
		return nil, fmt.Errorf("workflow %s failed: %w", cfg.WorkflowID, err)
	}
	report(100, "done")
	return result, nil
}
