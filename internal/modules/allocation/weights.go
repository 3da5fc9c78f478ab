package allocation

import "github.com/islandsafe/patrolplan/internal/config"

// Defaults for regions missing from the weighting table.
const (
	DefaultDensity = 0.5
	DefaultTourism = 0.3
)

// AuxiliaryWeights holds the per-region density and tourism factors
// Allocate multiplies into the risk weight.
type AuxiliaryWeights struct {
	Density map[int]float64
	Tourism map[int]float64
}

// WeightsFromCatalog builds the table from the region catalog.
func WeightsFromCatalog(cat *config.RegionCatalog) AuxiliaryWeights {
	density, tourism := cat.Factors()
	return AuxiliaryWeights{Density: density, Tourism: tourism}
}

// Lookup returns the density and tourism factors of a region, falling
// back to the defaults.
func (w AuxiliaryWeights) Lookup(regionID int) (density, tourism float64) {
	density, ok := w.Density[regionID]
	if !ok {
		density = DefaultDensity
	}
	tourism, ok = w.Tourism[regionID]
	if !ok {
		tourism = DefaultTourism
	}
	return density, tourism
}

// Factor returns 1 + density + tourism for a region.
func (w AuxiliaryWeights) Factor(regionID int) float64 {
	d, t := w.Lookup(regionID)
	return 1 + d + t
}
