package di

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// SeedStore inserts missing catalog regions and the pool size setting,
// then overlays settings-backed configuration.
func SeedStore(ctx context.Context, container *Container, log zerolog.Logger) error {
	if _, err := container.RegionRepo.Seed(ctx, container.Catalog.Regions); err != nil {
		return fmt.Errorf("failed to seed regions: %w", err)
	}

	if err := container.SettingsService.SeedDefaults(container.Config.TotalOfficers); err != nil {
		return err
	}

	if err := container.Config.UpdateFromSettings(container.SettingsRepo); err != nil {
		log.Warn().Err(err).Msg("Failed to update config from settings DB, using environment variables")
	}
	return nil
}

// Warmup restores the last trained model and, on a fresh store where no
// officer is assigned yet, runs a first allocation.
func Warmup(ctx context.Context, container *Container, log zerolog.Logger) error {
	if err := container.Predictor.LoadLatest(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to load stored model, predictions use severity fallback")
	}

	list, err := container.RegionRepo.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list regions: %w", err)
	}
	for _, r := range list {
		if r.Allocated > 0 {
			return nil
		}
	}

	res, err := container.AllocationService.Reallocate(ctx)
	if err != nil {
		return fmt.Errorf("initial allocation failed: %w", err)
	}
	log.Info().Str("run_id", res.Run.ID).Int("regions", len(res.Allocations)).Msg("Initial allocation stored")
	return nil
}
