package di

import (
	"context"
	"fmt"
	"time"

	"github.com/islandsafe/patrolplan/internal/config"
	"github.com/islandsafe/patrolplan/internal/modules/allocation"
	"github.com/islandsafe/patrolplan/internal/modules/insights"
	"github.com/islandsafe/patrolplan/internal/modules/intelligence"
	"github.com/islandsafe/patrolplan/internal/modules/prediction"
	"github.com/islandsafe/patrolplan/internal/modules/regions"
	"github.com/islandsafe/patrolplan/internal/modules/settings"
	"github.com/islandsafe/patrolplan/internal/reliability"
	"github.com/rs/zerolog"
)

// archiveKeep is how many model snapshots stay in the bucket.
const archiveKeep = 20

// InitializeSettings creates the settings service. It is separate from
// InitializeServices because seeding and the settings overlay must run
// before the archive client is configured.
func InitializeSettings(container *Container, cfg *config.Config, log zerolog.Logger) {
	container.SettingsService = settings.NewService(container.SettingsRepo, log)
	container.SettingsService.SetMinimumPool(cfg.MinOfficersPerRegion * len(container.Catalog.Regions))
}

// InitializeServices creates the domain services in dependency order.
func InitializeServices(ctx context.Context, container *Container, cfg *config.Config, log zerolog.Logger) error {
	weights := allocation.WeightsFromCatalog(container.Catalog)

	container.RegionService = regions.NewService(container.RegionRepo, log)
	container.IntelligenceService = intelligence.NewService(
		container.IntelligenceRepo,
		container.RegionRepo,
		container.EventManager,
		container.Metrics,
		log,
	)

	container.ModelState = prediction.NewModelState(time.Now())
	container.Predictor = prediction.NewPredictor(
		container.IntelligenceRepo,
		container.ModelRepo,
		container.RegionRepo,
		container.ModelState,
		weights,
		cfg.PredictionWindow,
		container.EventManager,
		container.Metrics,
		log,
	)

	if cfg.Archive.Enabled {
		archive, err := newModelArchive(ctx, cfg.Archive, log)
		if err != nil {
			return err
		}
		container.ModelArchive = archive
		container.Predictor.SetArchiver(archive)
	}

	container.AllocationService = allocation.NewService(
		container.DB.Conn(),
		container.RegionRepo,
		container.AuditRepo,
		container.Predictor,
		container.SettingsService,
		container.EventManager,
		container.Metrics,
		allocation.Options{
			Weights:     weights,
			DefaultPool: cfg.TotalOfficers,
			Floor:       cfg.MinOfficersPerRegion,
		},
		log,
	)

	container.InsightsService = insights.NewService(container.AllocationService, container.IntelligenceRepo, log)

	log.Info().Bool("model_archive", container.ModelArchive != nil).Msg("Services initialized")
	return nil
}

func newModelArchive(ctx context.Context, cfg config.ArchiveConfig, log zerolog.Logger) (*reliability.ModelArchive, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("model archive enabled without a bucket")
	}
	client, err := reliability.NewS3Client(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive client: %w", err)
	}
	return reliability.NewModelArchive(client, cfg.Prefix, archiveKeep, log), nil
}
