package di

import (
	"fmt"

	"github.com/islandsafe/patrolplan/internal/config"
	"github.com/islandsafe/patrolplan/internal/events"
	"github.com/islandsafe/patrolplan/internal/metrics"
	"github.com/islandsafe/patrolplan/internal/modules/allocation"
	"github.com/islandsafe/patrolplan/internal/modules/intelligence"
	"github.com/islandsafe/patrolplan/internal/modules/prediction"
	"github.com/islandsafe/patrolplan/internal/modules/regions"
	"github.com/islandsafe/patrolplan/internal/modules/settings"
	"github.com/rs/zerolog"
)

// InitializeRepositories creates the repositories, the event bus and the
// metrics registry, and loads the region catalog.
func InitializeRepositories(container *Container, log zerolog.Logger) error {
	if container == nil || container.DB == nil {
		return fmt.Errorf("container database not initialized")
	}

	catalog, err := config.LoadRegionCatalog(container.Config.RegionsFile)
	if err != nil {
		return err
	}
	container.Catalog = catalog

	container.Metrics = metrics.New()
	container.EventBus = events.NewBus(log)
	container.EventManager = events.NewManager(container.EventBus, log)

	db := container.DB.Conn()
	container.RegionRepo = regions.NewRepository(db, log)
	container.IntelligenceRepo = intelligence.NewRepository(db, log)
	container.SettingsRepo = settings.NewRepository(db, log)
	container.ModelRepo = prediction.NewRepository(db, log)
	container.AuditRepo = allocation.NewAuditRepository(db, log)

	log.Info().Int("regions", len(catalog.Regions)).Msg("Repositories initialized")
	return nil
}
