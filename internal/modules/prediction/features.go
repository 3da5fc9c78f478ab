// Package prediction turns intelligence events into region risk scores and
// retrains the severity model behind them.
package prediction

import (
	"math"
	"strings"
	"time"

	"github.com/islandsafe/patrolplan/internal/domain"
	"github.com/islandsafe/patrolplan/internal/modules/allocation"
)

// FeatureNames lists the model inputs in column order. It is stored with
// every model version.
func FeatureNames() []string {
	names := []string{"confidence", "is_verified", "feedback_score"}
	for _, t := range domain.EventTypes() {
		names = append(names, "type_"+strings.ToLower(strings.ReplaceAll(string(t), " ", "_")))
	}
	return append(names,
		"hour_sin", "hour_cos",
		"day_of_week_sin", "day_of_week_cos",
		"is_weekend",
		"region_density", "region_tourism",
	)
}

type featureExtractor struct {
	weights allocation.AuxiliaryWeights
}

func (f featureExtractor) row(e domain.Event) []float64 {
	out := make([]float64, 0, len(FeatureNames()))
	out = append(out, e.Confidence, boolToFloat(e.Verified), float64(e.FeedbackScore))
	for _, t := range domain.EventTypes() {
		out = append(out, boolToFloat(e.Type == t))
	}

	hour := float64(e.CreatedAt.Hour())
	dow := float64(e.CreatedAt.Weekday())
	out = append(out,
		math.Sin(2*math.Pi*hour/24), math.Cos(2*math.Pi*hour/24),
		math.Sin(2*math.Pi*dow/7), math.Cos(2*math.Pi*dow/7),
		boolToFloat(isWeekend(e.CreatedAt)),
	)

	density, tourism := f.weights.Lookup(e.RegionID)
	return append(out, density, tourism)
}

func (f featureExtractor) matrix(evs []domain.Event) [][]float64 {
	x := make([][]float64, len(evs))
	for i, e := range evs {
		x[i] = f.row(e)
	}
	return x
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
