package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/islandsafe/patrolplan/internal/domain"
	"github.com/islandsafe/patrolplan/internal/modules/regions"
	"github.com/islandsafe/patrolplan/internal/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRouter(t *testing.T) chi.Router {
	db := testutil.NewTestDB(t)
	log := zerolog.Nop()
	testutil.SeedRegions(t, db.Conn(),
		testutil.RegionFixture{ID: 1, Name: "Kingston", Risk: testutil.IntPtr(40), Allocated: 500},
		testutil.RegionFixture{ID: 2, Name: "Portland", Allocated: 500},
	)
	svc := regions.NewService(regions.NewRepository(db.Conn(), log), log)

	r := chi.NewRouter()
	NewHandler(svc, log).RegisterRoutes(r)
	return r
}

func TestHandleList(t *testing.T) {
	r := setupRouter(t)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/regions/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var list []domain.Region
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 2)
	assert.Equal(t, "Kingston", list[0].Name)
	assert.Equal(t, 500, list[1].Allocated)
}

func TestHandleGet_NotFoundAndBadID(t *testing.T) {
	r := setupRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/regions/77", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/regions/abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlePatch(t *testing.T) {
	r := setupRouter(t)

	rec := httptest.NewRecorder()
	body := strings.NewReader(`{"current_crime_level": 85}`)
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/regions/2", body))

	require.Equal(t, http.StatusOK, rec.Code)
	var reg domain.Region
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reg))
	require.NotNil(t, reg.CurrentRisk)
	assert.Equal(t, 85, *reg.CurrentRisk)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/regions/2", strings.NewReader(`{"police_allocated": -4}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleListWithStats(t *testing.T) {
	r := setupRouter(t)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/regions/with-stats", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 2)
	assert.EqualValues(t, 0, list[0]["intelligence_count"])
}
