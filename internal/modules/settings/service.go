package settings

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/islandsafe/patrolplan/internal/domain"
	"github.com/rs/zerolog"
)

// Service validates settings and resolves the effective pool size.
type Service struct {
	repo    *Repository
	minPool int
	log     zerolog.Logger
}

// NewService creates a new settings service
func NewService(repo *Repository, log zerolog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.With().Str("service", "settings").Logger(),
	}
}

// SetMinimumPool sets the smallest total_officers value Set accepts,
// normally the per-region floor times the number of regions.
func (s *Service) SetMinimumPool(n int) {
	s.minPool = n
}

// Get returns the raw value of key, or nil if it was never set.
func (s *Service) Get(key string) (*string, error) {
	return s.repo.Get(key)
}

// GetAll returns every known setting with defaults filled in. Secrets
// are masked.
func (s *Service) GetAll() (map[string]interface{}, error) {
	stored, err := s.repo.GetAll()
	if err != nil {
		return nil, err
	}

	result := make(map[string]interface{}, len(SettingDefaults)+len(stored))
	for k, v := range SettingDefaults {
		result[k] = v
	}
	for k, v := range stored {
		if secretKeys[k] && v != "" {
			result[k] = "********"
			continue
		}
		if n, err := strconv.Atoi(v); err == nil {
			result[k] = n
			continue
		}
		result[k] = v
	}
	return result, nil
}

// Set validates and stores a value. Unknown keys are rejected.
func (s *Service) Set(key string, value interface{}) error {
	raw, err := normalize(key, value)
	if err != nil {
		return err
	}
	if key == KeyTotalOfficers && s.minPool > 0 {
		if n, _ := strconv.Atoi(raw); n < s.minPool {
			return &domain.ValidationError{
				Err:     domain.ErrInsufficientPool,
				Field:   key,
				Message: fmt.Sprintf("must be at least %d to cover the per-region minimum", s.minPool),
			}
		}
	}
	if err := s.repo.Set(key, raw, nil); err != nil {
		return err
	}
	s.log.Info().Str("key", key).Msg("Setting updated")
	return nil
}

// normalize converts a JSON value to its stored string form.
func normalize(key string, value interface{}) (string, error) {
	switch key {
	case KeyTotalOfficers:
		n, ok := asInt(value)
		if !ok || n <= 0 {
			return "", domain.NewValidationError(key, "must be a positive integer")
		}
		return strconv.Itoa(n), nil
	case KeyArchiveEnabled:
		switch v := value.(type) {
		case bool:
			return strconv.FormatBool(v), nil
		case string:
			b, err := strconv.ParseBool(v)
			if err != nil {
				return "", domain.NewValidationError(key, "must be a boolean")
			}
			return strconv.FormatBool(b), nil
		}
		return "", domain.NewValidationError(key, "must be a boolean")
	case KeyArchiveBucket, KeyArchiveEndpoint, KeyArchiveAccessKeyID, KeyArchiveSecretAccessKey:
		v, ok := value.(string)
		if !ok {
			return "", domain.NewValidationError(key, "must be a string")
		}
		return strings.TrimSpace(v), nil
	}
	return "", domain.NewValidationError(key, "unknown setting")
}

func asInt(value interface{}) (int, bool) {
	switch v := value.(type) {
	case float64:
		if v != float64(int(v)) {
			return 0, false
		}
		return int(v), true
	case int:
		return v, true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		return n, err == nil
	}
	return 0, false
}

// TotalOfficers returns the persisted pool size, or fallback when it was
// never set or cannot be read. Callers invoke it once per computation.
func (s *Service) TotalOfficers(fallback int) int {
	n, err := s.repo.GetInt(KeyTotalOfficers, fallback)
	if err != nil {
		s.log.Warn().Err(err).Int("fallback", fallback).Msg("Failed to read total_officers, using configured value")
		return fallback
	}
	if n <= 0 {
		return fallback
	}
	return n
}

// SeedDefaults stores total_officers from configuration on first start.
func (s *Service) SeedDefaults(totalOfficers int) error {
	inserted, err := s.repo.SetIfMissing(KeyTotalOfficers, strconv.Itoa(totalOfficers), "Total officers in the allocation pool")
	if err != nil {
		return fmt.Errorf("failed to seed settings: %w", err)
	}
	if inserted {
		s.log.Info().Int("total_officers", totalOfficers).Msg("Seeded pool size setting")
	}
	return nil
}
