package allocation

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/islandsafe/patrolplan/internal/database"
	"github.com/islandsafe/patrolplan/internal/domain"
	"github.com/islandsafe/patrolplan/internal/events"
	"github.com/islandsafe/patrolplan/internal/metrics"
	"github.com/islandsafe/patrolplan/internal/modules/regions"
	"github.com/rs/zerolog"
)

// RiskPredictor produces a region's risk score. It never fails; a
// predictor that cannot use its model falls back on its own.
type RiskPredictor interface {
	PredictRisk(ctx context.Context, regionID int) int
}

// PoolSource returns the current pool size, or fallback if none is stored.
type PoolSource interface {
	TotalOfficers(fallback int) int
}

// Options are the fixed allocation parameters.
type Options struct {
	Weights     AuxiliaryWeights
	DefaultPool int
	Floor       int
}

// Service runs reallocations and plan executions against the store.
type Service struct {
	db        database.Session
	regions   *regions.Repository
	audit     *AuditRepository
	predictor RiskPredictor
	pool      PoolSource
	events    *events.Manager
	metrics   *metrics.Metrics
	opts      Options
	log       zerolog.Logger
	now       func() time.Time
}

// NewService creates the allocation service. db is the pool used for
// API-triggered runs; the scheduler passes its own connection to
// ReallocateOn.
func NewService(
	db database.Session,
	regionRepo *regions.Repository,
	audit *AuditRepository,
	predictor RiskPredictor,
	pool PoolSource,
	eventManager *events.Manager,
	m *metrics.Metrics,
	opts Options,
	log zerolog.Logger,
) *Service {
	return &Service{
		db:        db,
		regions:   regionRepo,
		audit:     audit,
		predictor: predictor,
		pool:      pool,
		events:    eventManager,
		metrics:   m,
		opts:      opts,
		log:       log.With().Str("service", "allocation").Logger(),
		now:       time.Now,
	}
}

// PoolTotal reads the pool size. It is called once per computation so a
// settings change applies to the next run.
func (s *Service) PoolTotal() int {
	if s.pool == nil {
		return s.opts.DefaultPool
	}
	return s.pool.TotalOfficers(s.opts.DefaultPool)
}

// RegionAllocation is one row of a computed allocation.
type RegionAllocation struct {
	CurrentRisk *int   `json:"current_crime_level"`
	Name        string `json:"name"`
	RegionID    int    `json:"parish_id"`
	Allocated   int    `json:"police_allocated"`
	Recommended int    `json:"recommended_allocation"`
}

// Preview is an allocation computed from stored risk and not persisted.
type Preview struct {
	Current     map[int]int        `json:"-"`
	Recommended map[int]int        `json:"-"`
	Allocated   map[int]int        `json:"-"`
	Regions     []RegionAllocation `json:"regions"`
	PoolTotal   int                `json:"pool_total"`
	Floor       int                `json:"floor"`
}

// Recommendations computes both allocations from the stored risk scores.
// Nothing is written. Current holds the stored allocated counts.
func (s *Service) Recommendations(ctx context.Context) (*Preview, error) {
	return s.preview(ctx, func(reg domain.Region) *int { return reg.CurrentRisk })
}

// Forecast is Recommendations with a fresh prediction for every region.
// Neither the risks nor the allocations are stored.
func (s *Service) Forecast(ctx context.Context) (*Preview, error) {
	return s.preview(ctx, func(reg domain.Region) *int {
		risk := s.predictor.PredictRisk(ctx, reg.ID)
		return &risk
	})
}

func (s *Service) preview(ctx context.Context, riskOf func(domain.Region) *int) (*Preview, error) {
	list, err := s.regions.List(ctx)
	if err != nil {
		return nil, err
	}

	pool := s.PoolTotal()
	risks := make([]domain.RegionRisk, 0, len(list))
	current := make(map[int]int, len(list))
	riskByID := make(map[int]*int, len(list))
	for _, reg := range list {
		risk := riskOf(reg)
		riskByID[reg.ID] = risk
		risks = append(risks, domain.RegionRisk{RegionID: reg.ID, Risk: risk})
		current[reg.ID] = reg.Allocated
	}

	rec, err := Recommend(risks, pool, s.opts.Floor)
	if err != nil {
		return nil, err
	}
	act, err := Allocate(risks, pool, s.opts.Floor, s.opts.Weights)
	if err != nil {
		return nil, err
	}

	p := &Preview{
		Current:     current,
		Recommended: rec,
		Allocated:   act,
		PoolTotal:   pool,
		Floor:       s.opts.Floor,
	}
	for _, reg := range list {
		p.Regions = append(p.Regions, RegionAllocation{
			CurrentRisk: riskByID[reg.ID],
			Name:        reg.Name,
			RegionID:    reg.ID,
			Allocated:   act[reg.ID],
			Recommended: rec[reg.ID],
		})
	}
	return p, nil
}

// RunResult is the outcome of a persisted reallocation.
type RunResult struct {
	Run         domain.AllocationRun      `json:"run"`
	Allocations map[int]int               `json:"allocations"`
	Recommended map[int]int               `json:"recommended"`
	Risks       map[int]int               `json:"risks"`
	Changes     []domain.AllocationChange `json:"changes"`
}

// Reallocate runs ReallocateOn against the pool.
func (s *Service) Reallocate(ctx context.Context) (*RunResult, error) {
	return s.ReallocateOn(ctx, s.db)
}

// ReallocateOn predicts a fresh risk for every region, computes the
// recommended and allocated counts and writes them with the audit rows in
// one transaction on sess. Events are emitted after commit.
func (s *Service) ReallocateOn(ctx context.Context, sess database.Session) (*RunResult, error) {
	start := time.Now()

	list, err := s.regions.WithQuerier(sess).List(ctx)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, domain.NewValidationError("regions", "no regions to allocate")
	}

	riskByRegion := make(map[int]int, len(list))
	risks := make([]domain.RegionRisk, 0, len(list))
	for _, reg := range list {
		risk := s.predictor.PredictRisk(ctx, reg.ID)
		riskByRegion[reg.ID] = risk
		r := risk
		risks = append(risks, domain.RegionRisk{RegionID: reg.ID, Risk: &r})
	}

	pool := s.PoolTotal()
	rec, err := Recommend(risks, pool, s.opts.Floor)
	if err != nil {
		return nil, err
	}
	act, err := Allocate(risks, pool, s.opts.Floor, s.opts.Weights)
	if err != nil {
		return nil, err
	}

	now := s.now()
	run := domain.AllocationRun{
		CreatedAt: now,
		ID:        uuid.NewString(),
		Source:    domain.RunSourceModel,
		PoolTotal: pool,
	}
	preds := make([]domain.Prediction, 0, len(list))
	var changes []domain.AllocationChange
	for _, reg := range list {
		preds = append(preds, domain.Prediction{
			CreatedAt:           now,
			RunID:               run.ID,
			RegionID:            reg.ID,
			PredictedRisk:       riskByRegion[reg.ID],
			RecommendedOfficers: rec[reg.ID],
		})
		if act[reg.ID] != reg.Allocated {
			changes = append(changes, domain.AllocationChange{
				RunID:      run.ID,
				RegionName: reg.Name,
				RegionID:   reg.ID,
				Previous:   reg.Allocated,
				New:        act[reg.ID],
				Delta:      act[reg.ID] - reg.Allocated,
			})
		}
	}

	err = database.WithTransactionContext(ctx, sess, func(tx *sql.Tx) error {
		repo := s.regions.WithQuerier(tx)
		for _, reg := range list {
			if err := repo.SetRisk(ctx, reg.ID, riskByRegion[reg.ID]); err != nil {
				return err
			}
			recommended := rec[reg.ID]
			if err := repo.SetAllocation(ctx, reg.ID, act[reg.ID], &recommended); err != nil {
				return err
			}
		}
		audit := s.audit.WithQuerier(tx)
		if err := audit.InsertRun(ctx, run); err != nil {
			return err
		}
		if err := audit.InsertPredictions(ctx, preds); err != nil {
			return err
		}
		return audit.InsertChanges(ctx, changes)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to persist reallocation: %w", err)
	}

	s.metrics.AllocationRun(string(domain.RunSourceModel), time.Since(start))
	s.log.Info().
		Str("run_id", run.ID).
		Int("pool", pool).
		Int("changed", len(changes)).
		Dur("duration", time.Since(start)).
		Msg("Reallocation complete")

	s.emitAllocation(run, act)
	if s.events != nil {
		s.events.EmitTyped(events.PredictionsUpdated, "allocation", &events.PredictionsUpdatedData{Risks: riskByRegion})
	}

	return &RunResult{
		Run:         run,
		Allocations: act,
		Recommended: rec,
		Risks:       riskByRegion,
		Changes:     changes,
	}, nil
}

// emitAllocation sends the full map and then one event per region.
func (s *Service) emitAllocation(run domain.AllocationRun, alloc map[int]int) {
	if s.events == nil {
		return
	}
	s.events.EmitTyped(events.ResourceAllocation, "allocation", &events.ResourceAllocationData{
		Allocations: alloc,
		RunID:       run.ID,
		Source:      string(run.Source),
		PoolTotal:   run.PoolTotal,
	})

	ids := make([]int, 0, len(alloc))
	for id := range alloc {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		s.events.EmitTyped(events.OfficersAllocated, "allocation", &events.OfficersAllocatedData{
			RegionID: id,
			Officers: alloc[id],
		})
	}
}

// Runs lists the newest audit runs.
func (s *Service) Runs(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.audit.ListRuns(ctx, limit)
}

// RunChanges returns the change rows of one run.
func (s *Service) RunChanges(ctx context.Context, runID string) ([]domain.AllocationChange, error) {
	return s.audit.Changes(ctx, runID)
}
