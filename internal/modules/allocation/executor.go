package allocation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/islandsafe/patrolplan/internal/database"
	"github.com/islandsafe/patrolplan/internal/domain"
)

// ExecutionResult describes an applied plan.
type ExecutionResult struct {
	RunID          string                    `json:"run_id"`
	Changes        []domain.AllocationChange `json:"changes"`
	Allocations    map[int]int               `json:"allocations"`
	TotalAllocated int                       `json:"total_allocated"`
	RegionsUpdated int                       `json:"regions_updated"`
}

// Apply writes an explicit plan of region id to officer count. Regions
// absent from the plan keep their count, and the resulting total must
// equal the pool. The whole plan is validated before anything is written
// and is applied in one transaction.
func (s *Service) Apply(ctx context.Context, plan map[int]int) (*ExecutionResult, error) {
	return s.ApplyOn(ctx, s.db, plan)
}

// ApplyOn is Apply on a given session.
func (s *Service) ApplyOn(ctx context.Context, sess database.Session, plan map[int]int) (*ExecutionResult, error) {
	start := time.Now()
	if len(plan) == 0 {
		s.metrics.PlanRejected("empty")
		return nil, domain.NewValidationError("allocations", "plan is empty")
	}

	ids := make([]int, 0, len(plan))
	for id := range plan {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	pool := s.PoolTotal()
	run := domain.AllocationRun{
		CreatedAt: s.now(),
		ID:        uuid.NewString(),
		Source:    domain.RunSourcePlan,
		PoolTotal: pool,
	}

	var (
		rejected error
		result   ExecutionResult
	)
	err := database.WithTransactionContext(ctx, sess, func(tx *sql.Tx) error {
		repo := s.regions.WithQuerier(tx)
		list, err := repo.List(ctx)
		if err != nil {
			return err
		}
		byID := make(map[int]domain.Region, len(list))
		for _, reg := range list {
			byID[reg.ID] = reg
		}

		if rejected = validatePlan(ids, plan, byID, pool); rejected != nil {
			return rejected
		}

		alloc := make(map[int]int, len(list))
		for _, reg := range list {
			alloc[reg.ID] = reg.Allocated
		}
		var changes []domain.AllocationChange
		for _, id := range ids {
			reg := byID[id]
			n := plan[id]
			alloc[id] = n
			if n == reg.Allocated {
				continue
			}
			if err := repo.SetAllocation(ctx, id, n, nil); err != nil {
				return err
			}
			changes = append(changes, domain.AllocationChange{
				RunID:      run.ID,
				RegionName: reg.Name,
				RegionID:   id,
				Previous:   reg.Allocated,
				New:        n,
				Delta:      n - reg.Allocated,
			})
		}

		audit := s.audit.WithQuerier(tx)
		if err := audit.InsertRun(ctx, run); err != nil {
			return err
		}
		if err := audit.InsertChanges(ctx, changes); err != nil {
			return err
		}

		result = ExecutionResult{
			RunID:          run.ID,
			Changes:        changes,
			Allocations:    alloc,
			TotalAllocated: Sum(alloc),
			RegionsUpdated: len(changes),
		}
		return nil
	})
	if rejected != nil {
		s.metrics.PlanRejected(rejectReason(rejected))
		s.log.Warn().Err(rejected).Msg("Allocation plan rejected")
		return nil, rejected
	}
	if err != nil {
		return nil, fmt.Errorf("failed to apply allocation plan: %w", err)
	}

	s.metrics.AllocationRun(string(domain.RunSourcePlan), time.Since(start))
	for _, c := range result.Changes {
		s.log.Info().Str("change", c.String()).Msg("Allocation changed")
	}
	s.emitAllocation(run, result.Allocations)

	return &result, nil
}

func validatePlan(ids []int, plan map[int]int, regions map[int]domain.Region, pool int) error {
	for _, id := range ids {
		if _, ok := regions[id]; !ok {
			return &domain.InvalidRegionError{RegionID: id}
		}
		if plan[id] < 0 {
			return domain.NewValidationError("allocations", "region %d: officer count must not be negative", id)
		}
	}

	total := 0
	for id, reg := range regions {
		if n, ok := plan[id]; ok {
			total += n
		} else {
			total += reg.Allocated
		}
	}
	if total != pool {
		return &domain.AllocationMismatchError{Planned: total, Pool: pool}
	}
	return nil
}

func rejectReason(err error) string {
	var (
		ie *domain.InvalidRegionError
		me *domain.AllocationMismatchError
	)
	switch {
	case errors.As(err, &ie):
		return "invalid_region"
	case errors.As(err, &me):
		return "mismatch"
	default:
		return "invalid"
	}
}
