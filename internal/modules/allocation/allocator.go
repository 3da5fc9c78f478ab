// Package allocation distributes the officer pool across regions and
// persists allocation runs.
package allocation

import (
	"fmt"
	"math"
	"sort"

	"github.com/islandsafe/patrolplan/internal/domain"
)

// Recommend splits total across regions in proportion to risk, after
// giving every region floor officers. An unscored region counts as risk
// 0. The result sums to total exactly.
func Recommend(regions []domain.RegionRisk, total, floor int) (map[int]int, error) {
	if err := checkInputs(regions, total, floor); err != nil {
		return nil, err
	}
	weights := make([]float64, len(regions))
	for i, r := range regions {
		if r.Risk != nil {
			weights[i] = float64(*r.Risk)
		}
	}
	return distribute(regions, total, floor, weights), nil
}

// Allocate splits total using max(risk,1) × (1 + density + tourism) as
// the weight. It shares Recommend's floor and exact-sum guarantees but
// never reads Recommend's output.
func Allocate(regions []domain.RegionRisk, total, floor int, aux AuxiliaryWeights) (map[int]int, error) {
	if err := checkInputs(regions, total, floor); err != nil {
		return nil, err
	}
	weights := make([]float64, len(regions))
	for i, r := range regions {
		risk := 1
		if r.Risk != nil && *r.Risk > 0 {
			risk = *r.Risk
		}
		weights[i] = float64(risk) * aux.Factor(r.RegionID)
	}
	return distribute(regions, total, floor, weights), nil
}

func checkInputs(regions []domain.RegionRisk, total, floor int) error {
	if len(regions) == 0 {
		return domain.NewValidationError("regions", "no regions to allocate across")
	}
	if floor < 0 {
		return domain.NewValidationError("floor", "must be >= 0, got %d", floor)
	}
	if total < floor*len(regions) {
		return &domain.ValidationError{
			Err:   domain.ErrInsufficientPool,
			Field: "total_officers",
			Message: fmt.Sprintf("pool of %d cannot cover %d regions at %d officers each",
				total, len(regions), floor),
		}
	}
	seen := make(map[int]bool, len(regions))
	for _, r := range regions {
		if seen[r.RegionID] {
			return domain.NewValidationError("regions", "duplicate region id %d", r.RegionID)
		}
		seen[r.RegionID] = true
		if r.Risk != nil && (*r.Risk < 0 || *r.Risk > domain.MaxRisk) {
			return domain.NewValidationError("risk", "region %d risk %d outside 0..%d", r.RegionID, *r.Risk, domain.MaxRisk)
		}
	}
	return nil
}

// distribute gives each region floor, hands out the remainder by
// floor(remaining × w/Σw), then repairs the rounding difference one unit
// at a time. Additions go to the heaviest regions first, removals come
// from the lightest regions still above floor. Ties break by region id.
// All-zero weights are treated as uniform.
func distribute(regions []domain.RegionRisk, total, floor int, weights []float64) map[int]int {
	n := len(regions)
	out := make(map[int]int, n)
	remaining := total - floor*n

	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	if sum <= 0 {
		for i := range weights {
			weights[i] = 1
		}
		sum = float64(n)
	}

	assigned := 0
	for i, r := range regions {
		extra := int(math.Floor(float64(remaining) * weights[i] / sum))
		out[r.RegionID] = floor + extra
		assigned += floor + extra
	}

	diff := total - assigned
	if diff == 0 {
		return out
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	adding := diff > 0
	sort.SliceStable(order, func(a, b int) bool {
		wa, wb := weights[order[a]], weights[order[b]]
		if wa != wb {
			if adding {
				return wa > wb
			}
			return wa < wb
		}
		return regions[order[a]].RegionID < regions[order[b]].RegionID
	})

	for diff != 0 {
		progressed := false
		for _, idx := range order {
			if diff == 0 {
				break
			}
			id := regions[idx].RegionID
			if adding {
				out[id]++
				diff--
				progressed = true
			} else if out[id] > floor {
				out[id]--
				diff++
				progressed = true
			}
		}
		if !progressed {
			// unreachable while total >= floor*n
			break
		}
	}
	return out
}

// Sum adds up an allocation map.
func Sum(m map[int]int) int {
	total := 0
	for _, v := range m {
		total += v
	}
	return total
}
