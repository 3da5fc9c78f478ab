package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSettings map[string]string

func (f fakeSettings) Get(key string) (*string, error) {
	v, ok := f[key]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATA_DIR", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 1000, cfg.TotalOfficers)
	assert.Equal(t, 30, cfg.MinOfficersPerRegion)
	assert.Equal(t, 14, cfg.RegionCount)
	assert.Equal(t, 60*time.Second, cfg.TrainingInterval)
	assert.Equal(t, 60*time.Second, cfg.CheckInterval)
	assert.Equal(t, 5, cfg.MinNewRecords)
	assert.Equal(t, 50, cfg.PredictionWindow)
	assert.False(t, cfg.Archive.Enabled)
	assert.True(t, filepath.IsAbs(cfg.DataDir))
	assert.Equal(t, filepath.Join(cfg.DataDir, "patrol.db"), cfg.DatabasePath())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DATA_DIR", t.TempDir())
	t.Setenv("TOTAL_OFFICERS", "1200")
	t.Setenv("MIN_OFFICERS_PER_REGION", "25")
	t.Setenv("TRAINING_INTERVAL", "90")
	t.Setenv("CHECK_INTERVAL", "2m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 1200, cfg.TotalOfficers)
	assert.Equal(t, 25, cfg.MinOfficersPerRegion)
	assert.Equal(t, 90*time.Second, cfg.TrainingInterval)
	assert.Equal(t, 2*time.Minute, cfg.CheckInterval)
}

func TestLoad_RejectsArchiveWithoutBucket(t *testing.T) {
	t.Setenv("DATA_DIR", t.TempDir())
	t.Setenv("MODEL_ARCHIVE_ENABLED", "true")

	_, err := Load()
	assert.Error(t, err)
}

func TestUpdateFromSettings(t *testing.T) {
	cfg := &Config{Archive: ArchiveConfig{Bucket: "env-bucket", AccessKeyID: "env-key"}}

	err := cfg.UpdateFromSettings(fakeSettings{
		"archive_bucket":        "db-bucket",
		"archive_access_key_id": "",
		"archive_enabled":       "true",
	})
	require.NoError(t, err)

	assert.Equal(t, "db-bucket", cfg.Archive.Bucket)
	assert.Equal(t, "env-key", cfg.Archive.AccessKeyID, "empty setting keeps env value")
	assert.True(t, cfg.Archive.Enabled)
}

func TestLoadRegionCatalog_Default(t *testing.T) {
	cat, err := LoadRegionCatalog("")
	require.NoError(t, err)
	require.Len(t, cat.Regions, 14)
	assert.Equal(t, "Kingston", cat.Regions[0].Name)

	density, tourism := cat.Factors()
	assert.InDelta(t, 0.9, density[1], 1e-9)
	assert.InDelta(t, 0.8, tourism[9], 1e-9)
}

func TestLoadRegionCatalog_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "regions.yaml")
	content := `regions:
  - id: 2
    name: "North"
    lat: 1.5
    lng: 2.5
    density: 0.2
    tourism: 0.1
  - id: 1
    name: "South"
    density: 0.7
    tourism: 0.0
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cat, err := LoadRegionCatalog(path)
	require.NoError(t, err)
	require.Len(t, cat.Regions, 2)
	assert.Equal(t, 1, cat.Regions[0].ID, "sorted by id")
	assert.Equal(t, "North", cat.Regions[1].Name)
	assert.InDelta(t, 1.5, cat.Regions[1].Lat, 1e-9)
}

func TestLoadRegionCatalog_Duplicate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "regions.yaml")
	content := "regions:\n  - id: 1\n    name: A\n  - id: 1\n    name: B\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := LoadRegionCatalog(path)
	assert.Error(t, err)
}

func TestLoadRegionCatalog_ShippedFile(t *testing.T) {
	cat, err := LoadRegionCatalog(filepath.Join("..", "..", "configs", "regions.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultRegionCatalog().Regions, cat.Regions)
}
