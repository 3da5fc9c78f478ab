package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/islandsafe/patrolplan/internal/modules/allocation"
	"github.com/islandsafe/patrolplan/internal/modules/regions"
	"github.com/islandsafe/patrolplan/internal/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flatRisk int

func (f flatRisk) PredictRisk(context.Context, int) int { return int(f) }

func setupRouter(t *testing.T) chi.Router {
	db := testutil.NewTestDB(t)
	log := zerolog.Nop()
	testutil.SeedRegions(t, db.Conn(),
		testutil.RegionFixture{ID: 1, Name: "Kingston", Allocated: 60},
		testutil.RegionFixture{ID: 2, Name: "Portland", Allocated: 40},
	)
	svc := allocation.NewService(db.Conn(),
		regions.NewRepository(db.Conn(), log),
		allocation.NewAuditRepository(db.Conn(), log),
		flatRisk(20), nil, nil, nil,
		allocation.Options{DefaultPool: 100, Floor: 10}, log)

	r := chi.NewRouter()
	NewHandler(svc, log).RegisterRoutes(r)
	return r
}

func TestHandleRun(t *testing.T) {
	r := setupRouter(t)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/allocations/run", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		RunID       string         `json:"run_id"`
		Allocations map[string]int `json:"allocations"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body.RunID)
	assert.Equal(t, map[string]int{"1": 50, "2": 50}, body.Allocations)
}

func TestHandleExecute(t *testing.T) {
	r := setupRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/allocations/execute",
		strings.NewReader(`{"allocations":{"1":70,"2":30}}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	var ok map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ok))
	assert.Equal(t, true, ok["success"])
	assert.EqualValues(t, 100, ok["total_allocated"])
	assert.EqualValues(t, 2, ok["parishes_updated"])

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/allocations/execute",
		strings.NewReader(`{"allocations":{"1":90}}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var mismatch map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &mismatch))
	assert.EqualValues(t, 120, mismatch["planned"])
	assert.EqualValues(t, 100, mismatch["pool"])

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/allocations/execute",
		strings.NewReader(`{"allocations":{"x":90}}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleRecommendationsAndRuns(t *testing.T) {
	r := setupRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/allocations/recommendations", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var p allocation.Preview
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, 100, p.PoolTotal)
	assert.Len(t, p.Regions, 2)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/allocations/runs", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/allocations/runs?limit=0", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
