package di

import (
	"fmt"

	"github.com/islandsafe/patrolplan/internal/config"
	"github.com/islandsafe/patrolplan/internal/reliability"
	"github.com/islandsafe/patrolplan/internal/scheduler"
	"github.com/rs/zerolog"
)

// maintenanceSchedule runs the store check at 03:30 every day.
const maintenanceSchedule = "0 30 3 * * *"

// RegisterJobs creates the retraining and maintenance jobs and schedules
// them. The scheduler is not started here.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) error {
	container.Scheduler = scheduler.New(log)

	container.RetrainJob = scheduler.NewRetrainJob(
		container.DB,
		container.IntelligenceRepo,
		container.Predictor,
		container.AllocationService,
		container.ModelState,
		scheduler.RetrainConfig{
			Interval:      cfg.TrainingInterval,
			MinNewRecords: cfg.MinNewRecords,
		},
		container.EventManager,
		container.Metrics,
		log,
	)
	if err := container.Scheduler.AddJob("@every "+cfg.CheckInterval.String(), container.RetrainJob); err != nil {
		return fmt.Errorf("failed to register retrain job: %w", err)
	}

	container.MaintenanceJob = reliability.NewMaintenanceJob(container.DB, cfg.DataDir, log)
	if err := container.Scheduler.AddJob(maintenanceSchedule, container.MaintenanceJob); err != nil {
		return fmt.Errorf("failed to register maintenance job: %w", err)
	}

	log.Info().Int("jobs", container.Scheduler.JobCount()).Msg("Jobs registered")
	return nil
}
