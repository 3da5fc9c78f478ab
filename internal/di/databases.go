// Package di wires the database, repositories, services and jobs.
package di

import (
	"fmt"

	"github.com/islandsafe/patrolplan/internal/config"
	"github.com/islandsafe/patrolplan/internal/database"
	"github.com/rs/zerolog"
)

// InitializeDatabase opens patrol.db under the data directory and applies
// the schema.
func InitializeDatabase(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	db, err := database.New(database.Config{
		Path:    cfg.DatabasePath(),
		Profile: database.ProfileStandard,
		Name:    "patrol",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize patrol database: %w", err)
	}

	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate patrol database: %w", err)
	}

	log.Info().Str("path", db.Path()).Msg("Database initialized")

	return &Container{Config: cfg, DB: db}, nil
}
