package prediction

import (
	"testing"
	"time"

	"github.com/islandsafe/patrolplan/internal/domain"
	"github.com/islandsafe/patrolplan/internal/modules/allocation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRidgeModel_FitsLinearSignal(t *testing.T) {
	// severity = 2 + 6*x0, x1 is noise-free filler
	var x [][]float64
	var y []float64
	for i := 0; i <= 10; i++ {
		v := float64(i) / 10
		x = append(x, []float64{v, float64(i % 3)})
		y = append(y, 2+6*v)
	}

	m := NewRidgeModel(0.01)
	require.NoError(t, m.Fit(x, y))

	preds, err := m.Predict([][]float64{{0, 0}, {1, 0}})
	require.NoError(t, err)
	assert.InDelta(t, 2, preds[0], 0.2)
	assert.InDelta(t, 8, preds[1], 0.2)
}

func TestRidgeModel_ConstantColumnsAndSingleRow(t *testing.T) {
	m := NewRidgeModel(DefaultLambda)
	require.NoError(t, m.Fit([][]float64{{1, 1}}, []float64{6}))

	preds, err := m.Predict([][]float64{{1, 1}})
	require.NoError(t, err)
	assert.InDelta(t, 6, preds[0], 1e-9)
}

func TestRidgeModel_Errors(t *testing.T) {
	m := NewRidgeModel(DefaultLambda)
	_, err := m.Predict([][]float64{{1}})
	assert.ErrorIs(t, err, ErrNotFitted)

	assert.Error(t, m.Fit(nil, nil))
	assert.Error(t, m.Fit([][]float64{{1, 2}, {1}}, []float64{1, 2}))
	assert.Error(t, m.Fit([][]float64{{1}}, []float64{1, 2}))

	require.NoError(t, m.Fit([][]float64{{1}, {2}}, []float64{3, 4}))
	_, err = m.Predict([][]float64{{1, 2}})
	assert.Error(t, err)
}

func TestRidgeModel_SnapshotRestoresPredictions(t *testing.T) {
	m := NewRidgeModel(DefaultLambda)
	require.NoError(t, m.Fit([][]float64{{0}, {1}, {2}, {3}}, []float64{1, 3, 5, 7}))

	b, err := m.MarshalBinary()
	require.NoError(t, err)
	restored, err := DecodeRidgeModel(b)
	require.NoError(t, err)

	want, _ := m.Predict([][]float64{{1.5}})
	got, err := restored.Predict([][]float64{{1.5}})
	require.NoError(t, err)
	assert.InDelta(t, want[0], got[0], 1e-12)

	_, err = DecodeRidgeModel([]byte{0xc0})
	assert.Error(t, err)
}

func TestFeatureExtractor_Row(t *testing.T) {
	f := featureExtractor{weights: allocation.AuxiliaryWeights{
		Density: map[int]float64{1: 0.9},
		Tourism: map[int]float64{1: 0.5},
	}}
	saturdayNoon := time.Date(2026, 3, 14, 12, 0, 0, 0, time.Local)
	row := f.row(domain.Event{
		RegionID:      1,
		Type:          domain.EventTypeGangActivity,
		Confidence:    0.8,
		Verified:      true,
		FeedbackScore: -1,
		CreatedAt:     saturdayNoon,
	})

	names := FeatureNames()
	require.Len(t, row, len(names))
	byName := map[string]float64{}
	for i, n := range names {
		byName[n] = row[i]
	}
	assert.Equal(t, 0.8, byName["confidence"])
	assert.Equal(t, 1.0, byName["is_verified"])
	assert.Equal(t, -1.0, byName["feedback_score"])
	assert.Equal(t, 1.0, byName["type_gang_activity"])
	assert.Equal(t, 0.0, byName["type_crime"])
	assert.Equal(t, 1.0, byName["is_weekend"])
	assert.InDelta(t, -1, byName["hour_cos"], 1e-9)
	assert.Equal(t, 0.9, byName["region_density"])

	other := f.row(domain.Event{RegionID: 7, CreatedAt: saturdayNoon})
	assert.Equal(t, allocation.DefaultDensity, other[len(other)-2])
	assert.Equal(t, allocation.DefaultTourism, other[len(other)-1])
}
