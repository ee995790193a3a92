package di

import (
	"fmt"

	"github.com/aristath/sharpe/internal/clientdata"
	"github.com/aristath/sharpe/internal/config"
	"github.com/aristath/sharpe/internal/scheduler"
	"github.com/rs/zerolog"
)

// walCheckSchedule runs the WAL check every 30 minutes (seconds field first)
const walCheckSchedule = "0 */30 * * * *"

// RegisterJobs creates the maintenance jobs and registers them with a scheduler.
// The scheduler is returned unstarted.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	jobs := &JobInstances{
		Scheduler: scheduler.New(log),
	}

	if container.ClientDataRepo == nil {
		return jobs, nil
	}

	jobs.ClientDataCleanup = clientdata.NewCleanupJob(container.ClientDataRepo, log)
	if err := jobs.Scheduler.AddJob(cfg.CacheCleanupSchedule, jobs.ClientDataCleanup); err != nil {
		return nil, fmt.Errorf("failed to register client data cleanup job: %w", err)
	}

	jobs.CheckWALCheckpoints = scheduler.NewCheckWALCheckpointsJob(log, container.ClientDataDB)
	if err := jobs.Scheduler.AddJob(walCheckSchedule, jobs.CheckWALCheckpoints); err != nil {
		return nil, fmt.Errorf("failed to register WAL checkpoint job: %w", err)
	}

	return jobs, nil
}
