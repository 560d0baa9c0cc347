package executors

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/streamweave/core/pkg/models"
	"github.com/streamweave/core/pkg/services"
)

// Poller performs one HTTP poll. Satisfied by *services.PollClient.
type Poller interface {
	Poll(ctx context.Context, method, url string) (*services.PollResult, error)
}

type APIPollExecutor struct {
	poller Poller
}

func NewAPIPollExecutor(poller Poller) *APIPollExecutor {
	return &APIPollExecutor{poller: poller}
}

type apiPollConfig struct {
	URL    string `json:"url"`
	Method string `json:"method,omitempty"`
}

func (e *APIPollExecutor) Execute(ctx context.Context, job *models.Job, report ProgressFunc) (json.RawMessage, error) {
	var cfg apiPollConfig
	if err := json.Unmarshal(job.Config, &cfg); err != nil {
		return nil, fmt.Errorf("invalid api_poll config: %w", err)
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("api_poll config missing url")
	}

	report(0, "polling "+cfg.URL)
	result, err := e.poller.Poll(ctx, cfg.Method, cfg.URL)
	if err != nil {
		return nil, err
	}
	report(100, "done")

	payload, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to encode poll result: %w", err)
	}
	return payload, nil
}
