package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/streamweave/core/internal/config"
)

// PlatformClient calls the platform API that hosts the type-specific
// engines (pipelines, data sources, backups, scripts, workflows). The
// scheduler only invokes these engines; their semantics live behind
// the API.
type PlatformClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewPlatformClient(cfg *config.Config) *PlatformClient {
	return &PlatformClient{
		baseURL: strings.TrimRight(cfg.Platform.BaseURL, "/"),
		apiKey:  cfg.Platform.APIKey,
		client: &http.Client{
			Timeout: cfg.Platform.Timeout,
		},
	}
}

// RunPipeline triggers a pipeline run and returns its summary.
func (c *PlatformClient) RunPipeline(ctx context.Context, pipelineID string) (json.RawMessage, error) {
	return c.post(ctx, fmt.Sprintf("/api/pipelines/%s/run", pipelineID), nil)
}

// SyncDataSource triggers a data source synchronization.
func (c *PlatformClient) SyncDataSource(ctx context.Context, dataSourceID string) (json.RawMessage, error) {
	return c.post(ctx, fmt.Sprintf("/api/datasources/%s/sync", dataSourceID), nil)
}

// Backup triggers a backup of the given target.
func (c *PlatformClient) Backup(ctx context.Context, target string) (json.RawMessage, error) {
	return c.post(ctx, "/api/backups", map[string]string{"target": target})
}

// Cleanup prunes expired data in the given scope.
func (c *PlatformClient) Cleanup(ctx context.Context, scope string, retentionDays int) (json.RawMessage, error) {
	return c.post(ctx, "/api/cleanups", map[string]any{
		"scope":         scope,
		"retentionDays": retentionDays,
	})
}

// RunScript executes a user script in the platform sandbox.
func (c *PlatformClient) RunScript(ctx context.Context, script string, args []string) (json.RawMessage, error) {
	return c.post(ctx, "/api/scripts/run", map[string]any{
		"script": script,
		"args":   args,
	})
}

// TriggerWorkflow starts a workflow run.
func (c *PlatformClient) TriggerWorkflow(ctx context.Context, workflowID string) (json.RawMessage, error) {
	return c.post(ctx, fmt.Sprintf("/api/workflows/%s/trigger", workflowID), nil)
}

func (c *PlatformClient) post(ctx context.Context, path string, body any) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = strings.NewReader(string(encoded))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("platform API returned status %d after %v", resp.StatusCode, time.Since(start))
	}

	if len(payload) == 0 || !json.Valid(payload) {
		return json.RawMessage(`{}`), nil
	}
	return json.RawMessage(payload), nil
}
