package executors

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/streamweave/core/pkg/models"
)

// SyncService synchronizes a configured data source.
type SyncService interface {
	SyncDataSource(ctx context.Context, dataSourceID string) (json.RawMessage, error)
}

type DataSyncExecutor struct {
	service SyncService
}

func NewDataSyncExecutor(service SyncService) *DataSyncExecutor {
	return &DataSyncExecutor{service: service}
}

type dataSyncConfig struct {
	DataSourceID string `json:"dataSourceId"`
}

func (e *DataSyncExecutor) Execute(ctx context.Context, job *models.Job, report ProgressFunc) (json.RawMessage, error) {
	var cfg dataSyncConfig
	if err := json.Unmarshal(job.Config, &cfg); err != nil {
		return nil, fmt.Errorf("invalid data_sync config: %w", err)
	}
	if cfg.DataSourceID == "" {
		return nil, fmt.Errorf("data_sync config missing dataSourceId")
	}

	report(0, "syncing "+cfg.DataSourceID)
	result, err := e.service.SyncDataSource(ctx, cfg.DataSourceID)
	if err != nil {
		return nil, fmt.Errorf("sync of %s failed: %w", cfg.DataSourceID, err)
	}
	report(100, "done")
	return result, nil
}
