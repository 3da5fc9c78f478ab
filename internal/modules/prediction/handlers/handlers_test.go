package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/islandsafe/patrolplan/internal/domain"
	"github.com/islandsafe/patrolplan/internal/modules/allocation"
	"github.com/islandsafe/patrolplan/internal/modules/intelligence"
	"github.com/islandsafe/patrolplan/internal/modules/prediction"
	"github.com/islandsafe/patrolplan/internal/modules/regions"
	"github.com/islandsafe/patrolplan/internal/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRetrainer struct {
	res *prediction.TrainingResult
	err error
}

func (s stubRetrainer) RunNow(context.Context) (*prediction.TrainingResult, error) {
	return s.res, s.err
}

func setupRouter(t *testing.T, rt Retrainer) chi.Router {
	db := testutil.NewTestDB(t)
	log := zerolog.Nop()
	testutil.SeedRegions(t, db.Conn(), testutil.RegionFixture{ID: 1, Name: "Kingston"})
	testutil.SeedEvents(t, db.Conn(),
		testutil.EventFixture{RegionID: 1, Severity: 6},
		testutil.EventFixture{RegionID: 1, Severity: 8},
	)
	p := prediction.NewPredictor(
		intelligence.NewRepository(db.Conn(), log),
		prediction.NewRepository(db.Conn(), log),
		regions.NewRepository(db.Conn(), log),
		prediction.NewModelState(time.Now()),
		allocation.AuxiliaryWeights{}, 0, nil, nil, log)

	r := chi.NewRouter()
	NewHandler(p, rt, log).RegisterRoutes(r)
	return r
}

func TestHandleStatusAndVersions(t *testing.T) {
	r := setupRouter(t, stubRetrainer{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/model/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var status StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Nil(t, status.Active)
	assert.Equal(t, prediction.FeatureNames(), status.Features)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/model/versions", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestHandlePredict(t *testing.T) {
	r := setupRouter(t, stubRetrainer{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/model/predict/1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"parish_id":1,"predicted_crime_level":70}`, rec.Body.String())
}

func TestHandleRetrain(t *testing.T) {
	ok := setupRouter(t, stubRetrainer{res: &prediction.TrainingResult{Accuracy: 0.5, Samples: 2}})
	rec := httptest.NewRecorder()
	ok.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/model/retrain", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var res prediction.TrainingResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, 2, res.Samples)

	failing := setupRouter(t, stubRetrainer{err: errors.New("boom")})
	rec = httptest.NewRecorder()
	failing.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/model/retrain", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	invalid := setupRouter(t, stubRetrainer{err: domain.NewValidationError("", "nothing to train")})
	rec = httptest.NewRecorder()
	invalid.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/model/retrain", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
