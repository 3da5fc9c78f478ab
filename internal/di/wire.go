package di

import (
	"context"
	"fmt"

	"github.com/islandsafe/patrolplan/internal/config"
	"github.com/rs/zerolog"
)

// Wire initializes all dependencies and returns a fully configured container
// Order of operations:
// 1. Open and migrate the database
// 2. Repositories, event bus, metrics, region catalog
// 3. Settings, then seed regions and the pool size
// 4. Services (the archive client reads settings-backed credentials)
// 5. Restore the stored model and run a first allocation if needed
// 6. Register jobs
func Wire(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container, err := InitializeDatabase(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	fail := func(step string, err error) (*Container, error) {
		container.Close()
		return nil, fmt.Errorf("failed to %s: %w", step, err)
	}

	if err := InitializeRepositories(container, log); err != nil {
		return fail("initialize repositories", err)
	}

	InitializeSettings(container, cfg, log)
	if err := SeedStore(ctx, container, log); err != nil {
		return fail("seed store", err)
	}

	if err := InitializeServices(ctx, container, cfg, log); err != nil {
		return fail("initialize services", err)
	}

	if err := Warmup(ctx, container, log); err != nil {
		return fail("warm up", err)
	}

	if err := RegisterJobs(container, cfg, log); err != nil {
		return fail("register jobs", err)
	}

	return container, nil
}
