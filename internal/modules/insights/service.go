// Package insights explains how a fresh allocation would differ from the
// current one.
package insights

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/islandsafe/patrolplan/internal/modules/allocation"
	"github.com/islandsafe/patrolplan/internal/modules/intelligence"
	"github.com/rs/zerolog"
)

// MinDelta is the smallest change in officers worth reporting.
const MinDelta = 5

const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"

	ActionIncrease = "Increase"
	ActionReduce   = "Reduce"
)

// Forecaster computes an unpersisted allocation from fresh predictions.
type Forecaster interface {
	Forecast(ctx context.Context) (*allocation.Preview, error)
}

// Insight is one suggested adjustment.
type Insight struct {
	RegionName string `json:"parish_name"`
	Action     string `json:"action"`
	Confidence string `json:"confidence"`
	Reason     string `json:"reason"`
	RegionID   int    `json:"parish_id"`
	Officers   int    `json:"officers"`
}

// Service builds resource insights.
type Service struct {
	forecaster Forecaster
	intel      *intelligence.Repository
	log        zerolog.Logger
	now        func() time.Time
}

// NewService creates a new insights service
func NewService(forecaster Forecaster, intel *intelligence.Repository, log zerolog.Logger) *Service {
	return &Service{
		forecaster: forecaster,
		intel:      intel,
		log:        log.With().Str("service", "insights").Logger(),
		now:        time.Now,
	}
}

// Resources compares the current allocation with a freshly computed one
// and returns the regions whose count would move by at least MinDelta,
// most confident and largest first.
func (s *Service) Resources(ctx context.Context) ([]Insight, error) {
	p, err := s.forecaster.Forecast(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	out := []Insight{}
	for _, reg := range p.Regions {
		diff := reg.Allocated - p.Current[reg.RegionID]
		if abs(diff) < MinDelta {
			continue
		}

		recent, err := s.intel.Window(ctx, reg.RegionID, now.AddDate(0, 0, -14), now)
		if err != nil {
			return nil, err
		}
		in := Insight{
			RegionName: reg.Name,
			RegionID:   reg.RegionID,
			Officers:   abs(diff),
			Confidence: confidence(recent.Count),
		}
		if diff > 0 {
			in.Action = ActionIncrease
			in.Reason, err = s.increaseReason(ctx, reg.RegionID, now)
		} else {
			in.Action = ActionReduce
			in.Reason, err = s.decreaseReason(ctx, reg.RegionID, now)
		}
		if err != nil {
			return nil, err
		}
		out = append(out, in)
	}

	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := confidenceRank(out[i].Confidence), confidenceRank(out[j].Confidence)
		if ri != rj {
			return ri < rj
		}
		return out[i].Officers > out[j].Officers
	})
	s.log.Debug().Int("insights", len(out)).Msg("Generated resource insights")
	return out, nil
}

func (s *Service) increaseReason(ctx context.Context, regionID int, now time.Time) (string, error) {
	week, err := s.intel.Window(ctx, regionID, now.AddDate(0, 0, -7), now)
	if err != nil {
		return "", err
	}
	if week.Count == 0 {
		return "Increase based on predicted crime level trends", nil
	}

	level := "recent"
	switch {
	case week.AverageSeverity > 7:
		level = "high-severity"
	case week.AverageSeverity > 4:
		level = "moderate"
	}
	return fmt.Sprintf("Increase due to %s %s reports in this area", level, strings.ToLower(string(week.TopType))), nil
}

func (s *Service) decreaseReason(ctx context.Context, regionID int, now time.Time) (string, error) {
	monthAgo := now.AddDate(0, 0, -30)
	mid := monthAgo.AddDate(0, 0, 15)
	older, err := s.intel.Window(ctx, regionID, monthAgo, mid)
	if err != nil {
		return "", err
	}
	newer, err := s.intel.Window(ctx, regionID, mid, now)
	if err != nil {
		return "", err
	}
	if float64(older.Count) > float64(newer.Count)*1.5 {
		return "Decrease due to significant reduction in reported incidents", nil
	}
	return "Resources needed more urgently in other areas based on relative crime levels", nil
}

func confidence(recentCount int) string {
	switch {
	case recentCount > 20:
		return ConfidenceHigh
	case recentCount > 10:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

func confidenceRank(c string) int {
	switch c {
	case ConfidenceHigh:
		return 0
	case ConfidenceMedium:
		return 1
	default:
		return 2
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
