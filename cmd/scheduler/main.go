package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/streamweave/core/internal/config"
	"github.com/streamweave/core/pkg/database/pool"
	"github.com/streamweave/core/pkg/executors"
	"github.com/streamweave/core/pkg/logger"
	"github.com/streamweave/core/pkg/models"
	"github.com/streamweave/core/pkg/scheduler"
	"github.com/streamweave/core/pkg/services"
	"github.com/streamweave/core/pkg/store"
)

func main() {
	// Parse command line flags
	var (
		jobID = flag.String("job", "", "Dispatch a specific job by id once")
		once  = flag.Bool("once", false, "Run the -job dispatch and exit")
	)
	flag.Parse()

	logger.SetupLogger()
	log := logger.New("scheduler-main")
	cfg := config.Load()

	// Store selection: Postgres when a database is configured, in-memory
	// otherwise (useful for local runs)
	var jobStore store.JobStore
	if os.Getenv("DATABASE_URL") != "" || os.Getenv("DB_HOST") != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		db, err := pool.New(ctx, cfg.DatabaseURL(), nil)
		cancel()
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()

		pg := store.NewPostgresStore(db)
		if err := pg.EnsureSchema(context.Background()); err != nil {
			log.Fatalf("Failed to apply schema: %v", err)
		}
		jobStore = pg
	} else {
		log.Warn().Msg("No database configured, using in-memory store")
		jobStore = store.NewMemoryStore()
	}

	// Engine collaborators
	platform := services.NewPlatformClient(cfg)
	poller := services.NewPollClient(cfg)

	// One executor per job type
	registry := executors.NewRegistry(cfg.Scheduler.MaxRetries)
	registry.MustRegister(models.JobTypePipeline, executors.NewPipelineExecutor(platform))
	registry.MustRegister(models.JobTypeDataSync, executors.NewDataSyncExecutor(platform))
	registry.MustRegister(models.JobTypeBackup, executors.NewBackupExecutor(platform))
	registry.MustRegister(models.JobTypeCleanup, executors.NewCleanupExecutor(platform))
	registry.MustRegister(models.JobTypeCustomScript, executors.NewScriptExecutor(platform))
	registry.MustRegister(models.JobTypeAPIPoll, executors.NewAPIPollExecutor(poller))
	registry.MustRegister(models.JobTypeWorkflow, executors.NewWorkflowExecutor(platform))

	sched := scheduler.Default(jobStore, registry, scheduler.NewRealClock(), scheduler.Config{
		TickInterval:    cfg.Scheduler.TickInterval,
		DispatchTimeout: cfg.Scheduler.DispatchTimeout,
	})

	// Handle single job execution
	if *once && *jobID != "" {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Scheduler.DispatchTimeout)
		defer cancel()

		execID, err := sched.ExecuteJob(ctx, *jobID)
		if err != nil {
			log.Fatalf("Failed to dispatch job %s: %v", *jobID, err)
		}
		sched.Wait()

		execs, err := sched.GetJobExecutions(ctx, *jobID)
		if err != nil {
			log.Fatalf("Failed to read execution history: %v", err)
		}
		for _, exec := range execs {
			if exec.ID != execID {
				continue
			}
			log.Info().
				Str("execution_id", exec.ID).
				Str("status", string(exec.Status)).
				Int64("duration_ms", exec.DurationMS).
				Str("error", exec.Error).
				Msg("One-off dispatch finished")
		}
		return
	}

	sched.Start()
	log.Info().
		Dur("tick_interval", cfg.Scheduler.TickInterval).
		Msg("Scheduler running")

	// Block until shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("Shutting down scheduler")
	sched.Stop()
	sched.Wait()
}
