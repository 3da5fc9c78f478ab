// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir     string // Base directory for the database (always absolute)
	LogLevel    string
	RegionsFile string // optional YAML region catalog
	Port        int
	DevMode     bool

	// Pool. TotalOfficers is only the fallback: the persisted
	// total_officers setting is read fresh for every computation.
	TotalOfficers        int
	MinOfficersPerRegion int
	RegionCount          int

	// Retraining
	TrainingInterval time.Duration
	CheckInterval    time.Duration
	MinNewRecords    int
	PredictionWindow int

	Archive ArchiveConfig
}

// ArchiveConfig configures the optional off-site copy of model snapshots.
type ArchiveConfig struct {
	Bucket          string
	Endpoint        string // S3-compatible endpoint, empty for AWS
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string
	Enabled         bool
}

// SettingsReader is the part of the settings repository config needs.
type SettingsReader interface {
	Get(key string) (*string, error)
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir, err := filepath.Abs(getEnv("DATA_DIR", "./data"))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:              dataDir,
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		RegionsFile:          getEnv("REGIONS_FILE", ""),
		Port:                 getEnvAsInt("PORT", 8000),
		DevMode:              getEnvAsBool("DEV_MODE", false),
		TotalOfficers:        getEnvAsInt("TOTAL_OFFICERS", 1000),
		MinOfficersPerRegion: getEnvAsInt("MIN_OFFICERS_PER_REGION", 30),
		RegionCount:          getEnvAsInt("REGION_COUNT", 14),
		TrainingInterval:     getEnvAsDuration("TRAINING_INTERVAL", 60*time.Second),
		CheckInterval:        getEnvAsDuration("CHECK_INTERVAL", 60*time.Second),
		MinNewRecords:        getEnvAsInt("MIN_NEW_RECORDS", 5),
		PredictionWindow:     getEnvAsInt("PREDICTION_WINDOW", 50),
		Archive: ArchiveConfig{
			Enabled:         getEnvAsBool("MODEL_ARCHIVE_ENABLED", false),
			Bucket:          getEnv("MODEL_ARCHIVE_BUCKET", ""),
			Endpoint:        getEnv("MODEL_ARCHIVE_ENDPOINT", ""),
			Region:          getEnv("MODEL_ARCHIVE_REGION", "auto"),
			AccessKeyID:     getEnv("MODEL_ARCHIVE_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("MODEL_ARCHIVE_SECRET_ACCESS_KEY", ""),
			Prefix:          getEnv("MODEL_ARCHIVE_PREFIX", "models/"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// UpdateFromSettings overlays archive credentials stored in the settings
// database. Non-empty settings take precedence over the environment.
func (c *Config) UpdateFromSettings(settingsRepo SettingsReader) error {
	overrides := map[string]*string{
		"archive_bucket":            &c.Archive.Bucket,
		"archive_endpoint":          &c.Archive.Endpoint,
		"archive_access_key_id":     &c.Archive.AccessKeyID,
		"archive_secret_access_key": &c.Archive.SecretAccessKey,
	}

	for key, dst := range overrides {
		v, err := settingsRepo.Get(key)
		if err != nil {
			return fmt.Errorf("failed to get %s from settings: %w", key, err)
		}
		if v != nil && *v != "" {
			*dst = *v
		}
	}

	enabled, err := settingsRepo.Get("archive_enabled")
	if err != nil {
		return fmt.Errorf("failed to get archive_enabled from settings: %w", err)
	}
	if enabled != nil && *enabled != "" {
		if b, err := strconv.ParseBool(*enabled); err == nil {
			c.Archive.Enabled = b
		}
	}

	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT %d", c.Port)
	}
	if c.TotalOfficers <= 0 {
		return fmt.Errorf("TOTAL_OFFICERS must be positive, got %d", c.TotalOfficers)
	}
	if c.MinOfficersPerRegion < 0 {
		return fmt.Errorf("MIN_OFFICERS_PER_REGION must be >= 0, got %d", c.MinOfficersPerRegion)
	}
	if c.MinNewRecords < 1 {
		return fmt.Errorf("MIN_NEW_RECORDS must be >= 1, got %d", c.MinNewRecords)
	}
	if c.CheckInterval < time.Second {
		return fmt.Errorf("CHECK_INTERVAL must be at least 1s, got %s", c.CheckInterval)
	}
	if c.PredictionWindow < 1 {
		return fmt.Errorf("PREDICTION_WINDOW must be >= 1, got %d", c.PredictionWindow)
	}
	if c.Archive.Enabled && c.Archive.Bucket == "" {
		return fmt.Errorf("MODEL_ARCHIVE_BUCKET is required when the model archive is enabled")
	}
	return nil
}

// DatabasePath is where the SQLite file lives.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "patrol.db")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return v
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if v, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return v
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("90s") or plain seconds ("90").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
