/**
 * Package di provides dependency injection type definitions.
 *
 * The Container holds every long-lived component of the service and is
 * passed to the HTTP server so handlers share one instance of each.
 */
package di

import (
	"github.com/islandsafe/patrolplan/internal/config"
	"github.com/islandsafe/patrolplan/internal/database"
	"github.com/islandsafe/patrolplan/internal/events"
	"github.com/islandsafe/patrolplan/internal/metrics"
	"github.com/islandsafe/patrolplan/internal/modules/allocation"
	"github.com/islandsafe/patrolplan/internal/modules/insights"
	"github.com/islandsafe/patrolplan/internal/modules/intelligence"
	"github.com/islandsafe/patrolplan/internal/modules/prediction"
	"github.com/islandsafe/patrolplan/internal/modules/regions"
	"github.com/islandsafe/patrolplan/internal/modules/settings"
	"github.com/islandsafe/patrolplan/internal/reliability"
	"github.com/islandsafe/patrolplan/internal/scheduler"
)

// Container holds all dependencies for the application.
type Container struct {
	Config  *config.Config
	Catalog *config.RegionCatalog

	// Storage
	DB *database.DB

	// Observability
	Metrics      *metrics.Metrics
	EventBus     *events.Bus
	EventManager *events.Manager

	// Repositories
	RegionRepo       *regions.Repository
	IntelligenceRepo *intelligence.Repository
	SettingsRepo     *settings.Repository
	ModelRepo        *prediction.Repository
	AuditRepo        *allocation.AuditRepository

	// Services
	RegionService       *regions.Service
	IntelligenceService *intelligence.Service
	SettingsService     *settings.Service
	AllocationService   *allocation.Service
	InsightsService     *insights.Service

	// Prediction
	ModelState   *prediction.ModelState
	Predictor    *prediction.Predictor
	ModelArchive *reliability.ModelArchive // nil when archiving is disabled

	// Background jobs
	Scheduler      *scheduler.Scheduler
	RetrainJob     *scheduler.RetrainJob
	MaintenanceJob *reliability.MaintenanceJob
}

// Close releases the database.
func (c *Container) Close() error {
	if c.DB == nil {
		return nil
	}
	return c.DB.Close()
}
