package executors

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/streamweave/core/pkg/models"
)

// PipelineEngine is the platform's pipeline runner. The scheduler only
// invokes it; pipeline semantics live elsewhere.
type PipelineEngine interface {
	RunPipeline(ctx context.Context, pipelineID string) (json.RawMessage, error)
}

type PipelineExecutor struct {
	engine PipelineEngine
}

func NewPipelineExecutor(engine PipelineEngine) *PipelineExecutor {
	return &PipelineExecutor{engine: engine}
}

type pipelineConfig struct {
	PipelineID string `json:"pipelineId"`
}

func (e *PipelineExecutor) Execute(ctx context.Context, job *models.Job, report ProgressFunc) (json.RawMessage, error) {
	var cfg pipelineConfig
	if err := json.Unmarshal(job.Config, &cfg); err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}
	if cfg.PipelineID == "" {
		return nil, fmt.Errorf("pipeline config missing pipelineId")
	}

	report(0, "running pipeline "+cfg.PipelineID)
	result, err := e.engine.RunPipeline(ctx, cfg.PipelineID)
	if err != nil {
		return nil, fmt.Errorf("pipeline %s failed: %w", cfg.PipelineID, err)
	}
	report(100, "done")
	return result, nil
}
