package config

import (
	"fmt"
	"sort"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// RegionSpec is one entry of the region catalog. Density and Tourism feed
// the auxiliary allocation weights.
type RegionSpec struct {
	Name    string  `koanf:"name"`
	ID      int     `koanf:"id"`
	Lat     float64 `koanf:"lat"`
	Lng     float64 `koanf:"lng"`
	Density float64 `koanf:"density"`
	Tourism float64 `koanf:"tourism"`
}

// RegionCatalog is the fixed set of regions the system allocates across.
type RegionCatalog struct {
	Regions []RegionSpec `koanf:"regions"`
}

// LoadRegionCatalog reads a YAML catalog from path. An empty path yields
// the built-in catalog.
func LoadRegionCatalog(path string) (*RegionCatalog, error) {
	if path == "" {
		return DefaultRegionCatalog(), nil
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load region catalog %s: %w", path, err)
	}

	var cat RegionCatalog
	if err := k.UnmarshalWithConf("", &cat, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("failed to decode region catalog %s: %w", path, err)
	}
	if err := cat.Validate(); err != nil {
		return nil, fmt.Errorf("invalid region catalog %s: %w", path, err)
	}

	sort.Slice(cat.Regions, func(i, j int) bool { return cat.Regions[i].ID < cat.Regions[j].ID })
	return &cat, nil
}

// Validate rejects empty catalogs, duplicate ids and out-of-range factors.
func (c *RegionCatalog) Validate() error {
	if len(c.Regions) == 0 {
		return fmt.Errorf("catalog has no regions")
	}
	seen := make(map[int]bool, len(c.Regions))
	for _, r := range c.Regions {
		if r.ID <= 0 {
			return fmt.Errorf("region %q has non-positive id %d", r.Name, r.ID)
		}
		if seen[r.ID] {
			return fmt.Errorf("duplicate region id %d", r.ID)
		}
		seen[r.ID] = true
		if r.Name == "" {
			return fmt.Errorf("region %d has no name", r.ID)
		}
		if r.Density < 0 || r.Tourism < 0 {
			return fmt.Errorf("region %d has negative weighting factor", r.ID)
		}
	}
	return nil
}

// Factors returns density and tourism keyed by region id.
func (c *RegionCatalog) Factors() (density, tourism map[int]float64) {
	density = make(map[int]float64, len(c.Regions))
	tourism = make(map[int]float64, len(c.Regions))
	for _, r := range c.Regions {
		density[r.ID] = r.Density
		tourism[r.ID] = r.Tourism
	}
	return density, tourism
}

// DefaultRegionCatalog is the fourteen parishes of Jamaica.
func DefaultRegionCatalog() *RegionCatalog {
	return &RegionCatalog{Regions: []RegionSpec{
		{ID: 1, Name: "Kingston", Lat: 18.0179, Lng: -76.8099, Density: 0.9, Tourism: 0.5},
		{ID: 2, Name: "St. Andrew", Lat: 18.0429, Lng: -76.8015, Density: 0.85, Tourism: 0.4},
		{ID: 3, Name: "St. Catherine", Lat: 18.0420, Lng: -77.0260, Density: 0.7, Tourism: 0.2},
		{ID: 4, Name: "Clarendon", Lat: 17.9592, Lng: -77.2350, Density: 0.5, Tourism: 0.1},
		{ID: 5, Name: "Manchester", Lat: 18.0442, Lng: -77.5047, Density: 0.4, Tourism: 0.2},
		{ID: 6, Name: "St. Elizabeth", Lat: 18.0724, Lng: -77.6757, Density: 0.3, Tourism: 0.2},
		{ID: 7, Name: "Westmoreland", Lat: 18.2194, Lng: -78.1290, Density: 0.4, Tourism: 0.5},
		{ID: 8, Name: "Hanover", Lat: 18.4005, Lng: -78.1317, Density: 0.3, Tourism: 0.3},
		{ID: 9, Name: "St. James", Lat: 18.4762, Lng: -77.9145, Density: 0.6, Tourism: 0.8},
		{ID: 10, Name: "Trelawny", Lat: 18.3521, Lng: -77.6570, Density: 0.4, Tourism: 0.3},
		{ID: 11, Name: "St. Ann", Lat: 18.4286, Lng: -77.1988, Density: 0.5, Tourism: 0.7},
		{ID: 12, Name: "St. Mary", Lat: 18.3638, Lng: -76.9113, Density: 0.4, Tourism: 0.3},
		{ID: 13, Name: "Portland", Lat: 18.1818, Lng: -76.4543, Density: 0.3, Tourism: 0.4},
		{ID: 14, Name: "St. Thomas", Lat: 17.9877, Lng: -76.4772, Density: 0.4, Tourism: 0.2},
	}}
}
