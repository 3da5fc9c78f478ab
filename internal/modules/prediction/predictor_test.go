package prediction

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/islandsafe/patrolplan/internal/database"
	"github.com/islandsafe/patrolplan/internal/domain"
	"github.com/islandsafe/patrolplan/internal/events"
	"github.com/islandsafe/patrolplan/internal/modules/allocation"
	"github.com/islandsafe/patrolplan/internal/modules/intelligence"
	"github.com/islandsafe/patrolplan/internal/modules/regions"
	"github.com/islandsafe/patrolplan/internal/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type constModel float64

func (c constModel) Fit([][]float64, []float64) error { return nil }
func (c constModel) Predict(x [][]float64) ([]float64, error) {
	out := make([]float64, len(x))
	for i := range out {
		out[i] = float64(c)
	}
	return out, nil
}
func (c constModel) MarshalBinary() ([]byte, error) { return []byte{1}, nil }

type brokenModel struct{ panics bool }

func (b brokenModel) Fit([][]float64, []float64) error { return errors.New("cannot fit") }
func (b brokenModel) Predict([][]float64) ([]float64, error) {
	if b.panics {
		panic("index out of range")
	}
	return nil, errors.New("predict failed")
}
func (b brokenModel) MarshalBinary() ([]byte, error) { return nil, nil }

type recordingArchive struct{ got []domain.ModelVersion }

func (r *recordingArchive) Archive(_ context.Context, v domain.ModelVersion) error {
	r.got = append(r.got, v)
	return nil
}

type fixture struct {
	db      *database.DB
	p       *Predictor
	regions *regions.Repository
	trained []*events.Event
}

func newFixture(t *testing.T, evs ...testutil.EventFixture) *fixture {
	t.Helper()
	db := testutil.NewTestDB(t)
	testutil.SeedRegions(t, db.Conn(),
		testutil.RegionFixture{ID: 1, Name: "Kingston"},
		testutil.RegionFixture{ID: 2, Name: "Portland"},
	)
	testutil.SeedEvents(t, db.Conn(), evs...)

	log := zerolog.New(nil).Level(zerolog.Disabled)
	bus := events.NewBus(log)
	f := &fixture{db: db, regions: regions.NewRepository(db.Conn(), log)}
	bus.Subscribe(events.ModelTrained, func(e *events.Event) { f.trained = append(f.trained, e) })

	f.p = NewPredictor(
		intelligence.NewRepository(db.Conn(), log),
		NewRepository(db.Conn(), log),
		f.regions,
		NewModelState(time.Now()),
		allocation.AuxiliaryWeights{},
		0,
		events.NewManager(bus, log),
		nil,
		log,
	)
	return f
}

func TestPredictRisk_NoEventsReturnsBaseline(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, BaselineRisk, f.p.PredictRisk(context.Background(), 1))
}

func TestPredictRisk_FallsBackToMeanSeverity(t *testing.T) {
	seed := []testutil.EventFixture{
		{RegionID: 1, Severity: 4},
		{RegionID: 1, Severity: 7},
		{RegionID: 2, Severity: 1},
	}

	t.Run("no active model", func(t *testing.T) {
		f := newFixture(t, seed...)
		assert.Equal(t, 55, f.p.PredictRisk(context.Background(), 1))
	})

	t.Run("model returns an error", func(t *testing.T) {
		f := newFixture(t, seed...)
		f.p.state.SetActive(brokenModel{}, nil)
		assert.Equal(t, 55, f.p.PredictRisk(context.Background(), 1))
	})

	t.Run("mean is truncated", func(t *testing.T) {
		f := newFixture(t,
			testutil.EventFixture{RegionID: 1, Severity: 6},
			testutil.EventFixture{RegionID: 1, Severity: 7},
			testutil.EventFixture{RegionID: 1, Severity: 7},
		)
		assert.Equal(t, 66, f.p.PredictRisk(context.Background(), 1))
	})

	t.Run("model panics", func(t *testing.T) {
		f := newFixture(t, seed...)
		f.p.state.SetActive(brokenModel{panics: true}, nil)
		assert.Equal(t, 10, f.p.PredictRisk(context.Background(), 2))
	})
}

func TestPredictRisk_UsesModelAndClamps(t *testing.T) {
	f := newFixture(t, testutil.EventFixture{RegionID: 1, Severity: 2})
	ctx := context.Background()

	f.p.state.SetActive(constModel(7.34), nil)
	assert.Equal(t, 73, f.p.PredictRisk(ctx, 1))

	f.p.state.SetActive(constModel(6.78), nil)
	assert.Equal(t, 67, f.p.PredictRisk(ctx, 1), "fractional risk is truncated")

	f.p.state.SetActive(constModel(14), nil)
	assert.Equal(t, 100, f.p.PredictRisk(ctx, 1))

	f.p.state.SetActive(constModel(-3), nil)
	assert.Equal(t, 0, f.p.PredictRisk(ctx, 1))
}

func TestPredictRisk_StoreErrorReturnsNeutral(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()
	mock.ExpectQuery("SELECT .* FROM intelligence").WillReturnError(errors.New("database is locked"))

	log := zerolog.Nop()
	p := NewPredictor(intelligence.NewRepository(conn, log), NewRepository(conn, log), nil,
		NewModelState(time.Now()), allocation.AuxiliaryWeights{}, 0, nil, nil, log)

	assert.Equal(t, UnknownRisk, p.PredictRisk(context.Background(), 1))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTrain_StoresAndActivatesModel(t *testing.T) {
	base := time.Date(2026, 3, 9, 8, 0, 0, 0, time.Local)
	var seed []testutil.EventFixture
	for i := 0; i < 12; i++ {
		seed = append(seed, testutil.EventFixture{
			RegionID:  1 + i%2,
			Type:      string(domain.EventTypes()[i%len(domain.EventTypes())]),
			Severity:  1 + i%10,
			CreatedAt: base.Add(time.Duration(i) * 5 * time.Hour),
		})
	}
	f := newFixture(t, seed...)
	archive := &recordingArchive{}
	f.p.SetArchiver(archive)
	ctx := context.Background()

	acc, err := f.p.Train(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, acc, 0.0)
	assert.LessOrEqual(t, acc, 1.0)

	model, version := f.p.state.Active()
	require.NotNil(t, model)
	require.NotNil(t, version)
	assert.Equal(t, ModelTypeRidge, version.ModelType)
	assert.Equal(t, FeatureNames(), version.Features)
	assert.Len(t, f.trained, 1)
	require.Len(t, archive.got, 1)
	assert.Equal(t, version.ID, archive.got[0].ID)

	risk := f.p.PredictRisk(ctx, 1)
	assert.GreaterOrEqual(t, risk, 0)
	assert.LessOrEqual(t, risk, 100)

	versions, err := f.p.Versions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Nil(t, versions[0].Snapshot)

	// A fresh predictor on the same store picks the model up.
	restarted := NewPredictor(f.p.intel, f.p.versions, f.regions, NewModelState(time.Now()),
		allocation.AuxiliaryWeights{}, 0, nil, nil, zerolog.Nop())
	require.NoError(t, restarted.LoadLatest(ctx))
	m, v := restarted.state.Active()
	require.NotNil(t, m)
	assert.Equal(t, version.ID, v.ID)
	assert.Equal(t, risk, restarted.PredictRisk(ctx, 1))
}

func TestTrain_FailureKeepsActiveModel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.p.Train(ctx)
	assert.ErrorIs(t, err, ErrNoTrainingData)

	testutil.SeedEvents(t, f.db.Conn(), testutil.EventFixture{RegionID: 1, Severity: 3})
	f.p.state.SetActive(constModel(5), nil)
	f.p.newModel = func() SeverityModel { return brokenModel{} }

	_, err = f.p.Train(ctx)
	require.Error(t, err)
	model, _ := f.p.state.Active()
	assert.Equal(t, constModel(5), model)
	assert.Empty(t, f.trained)
}

func TestLoadLatest_NoStoredModel(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.p.LoadLatest(context.Background()))
	model, _ := f.p.state.Active()
	assert.Nil(t, model)
}

func TestPredictAll_StoresRisk(t *testing.T) {
	f := newFixture(t, testutil.EventFixture{RegionID: 1, Severity: 8})
	ctx := context.Background()

	risks, err := f.p.PredictAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[int]int{1: 80, 2: BaselineRisk}, risks)

	reg, err := f.regions.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, reg.CurrentRisk)
	assert.Equal(t, 80, *reg.CurrentRisk)
}
