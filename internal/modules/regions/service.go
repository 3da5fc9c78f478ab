package regions

import (
	"context"
	"time"

	"github.com/islandsafe/patrolplan/internal/domain"
	"github.com/rs/zerolog"
)

// Service applies validated patches to regions.
type Service struct {
	repo *Repository
	log  zerolog.Logger
}

// NewService creates a new region service
func NewService(repo *Repository, log zerolog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.With().Str("service", "regions").Logger(),
	}
}

func (s *Service) List(ctx context.Context) ([]domain.Region, error) {
	return s.repo.List(ctx)
}

func (s *Service) Get(ctx context.Context, id int) (*domain.Region, error) {
	return s.repo.Get(ctx, id)
}

// ListWithStats includes event counts, with "recent" meaning the last 7 days.
func (s *Service) ListWithStats(ctx context.Context) ([]RegionStats, error) {
	return s.repo.ListWithStats(ctx, time.Now().AddDate(0, 0, -7))
}

// Patch applies a partial update. Last writer wins: concurrent patches
// are not serialized against allocation runs.
func (s *Service) Patch(ctx context.Context, id int, patch domain.RegionPatch) (*domain.Region, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	reg, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.Empty() {
		return reg, nil
	}

	patch.Apply(reg)
	if err := s.repo.Update(ctx, *reg); err != nil {
		return nil, err
	}

	if patch.Allocated != nil {
		s.log.Warn().
			Int("region_id", id).
			Int("police_allocated", reg.Allocated).
			Msg("Allocation edited directly; pool sum may no longer match until the next run")
	}
	return reg, nil
}
