package reliability

import (
	"context"
	"fmt"
	"time"

	"github.com/islandsafe/patrolplan/internal/database"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"
)

// Free space thresholds for the data directory.
const (
	criticalFreeBytes = 500 * 1000 * 1000
	lowFreeBytes      = 5 * 1000 * 1000 * 1000
)

// DiskUsage reports free bytes for a path.
type DiskUsage func(path string) (free uint64, err error)

// MaintenanceJob checks database integrity, truncates the WAL and checks
// free disk space.
type MaintenanceJob struct {
	db      *database.DB
	dataDir string
	usage   DiskUsage
	log     zerolog.Logger
}

// NewMaintenanceJob creates a new maintenance job
func NewMaintenanceJob(db *database.DB, dataDir string, log zerolog.Logger) *MaintenanceJob {
	return &MaintenanceJob{
		db:      db,
		dataDir: dataDir,
		usage:   freeBytes,
		log:     log.With().Str("job", "maintenance").Logger(),
	}
}

// Name returns the job name for scheduler
func (j *MaintenanceJob) Name() string {
	return "maintenance"
}

// Run executes the maintenance steps. A failed integrity check or a
// critically full disk is returned as an error; WAL problems are logged.
func (j *MaintenanceJob) Run() error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := j.db.HealthCheck(ctx); err != nil {
		j.log.Error().Err(err).Msg("Database integrity check failed")
		return err
	}

	if err := j.db.WALCheckpoint("TRUNCATE"); err != nil {
		j.log.Warn().Err(err).Msg("WAL checkpoint failed")
	}

	if err := j.checkDiskSpace(); err != nil {
		return err
	}

	if stats, err := j.db.GetStats(); err == nil {
		j.log.Info().
			Int64("size_bytes", stats.SizeBytes).
			Int64("wal_size_bytes", stats.WALSizeBytes).
			Dur("duration_ms", time.Since(start)).
			Msg("Maintenance completed")
	}
	return nil
}

func (j *MaintenanceJob) checkDiskSpace() error {
	free, err := j.usage(j.dataDir)
	if err != nil {
		return fmt.Errorf("failed to read disk usage for %s: %w", j.dataDir, err)
	}
	gb := float64(free) / 1e9

	switch {
	case free < criticalFreeBytes:
		j.log.Error().Float64("available_gb", gb).Msg("Insufficient disk space")
		return fmt.Errorf("only %.2f GB free in %s", gb, j.dataDir)
	case free < lowFreeBytes:
		j.log.Warn().Float64("available_gb", gb).Msg("Disk space running low")
	default:
		j.log.Debug().Float64("available_gb", gb).Msg("Disk space check")
	}
	return nil
}

func freeBytes(path string) (uint64, error) {
	u, err := disk.Usage(path)
	if err != nil {
		return 0, err
	}
	return u.Free, nil
}
