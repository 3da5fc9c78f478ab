package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/islandsafe/patrolplan/internal/events"
	"github.com/islandsafe/patrolplan/internal/modules/settings"
	"github.com/islandsafe/patrolplan/internal/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRouter(t *testing.T) (chi.Router, *settings.Service, *events.Bus) {
	db := testutil.NewTestDB(t)
	log := zerolog.New(nil).Level(zerolog.Disabled)
	svc := settings.NewService(settings.NewRepository(db.Conn(), log), log)
	bus := events.NewBus(log)

	r := chi.NewRouter()
	NewHandler(svc, events.NewManager(bus, log), log).RegisterRoutes(r)
	return r, svc, bus
}

func TestHandleUpdate_TotalOfficers(t *testing.T) {
	r, svc, bus := setupRouter(t)
	var changed []string
	bus.Subscribe(events.SettingsChanged, func(e *events.Event) {
		changed = append(changed, e.Data["key"].(string))
	})

	req := httptest.NewRequest(http.MethodPut, "/settings/total_officers", strings.NewReader(`{"value":1200}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1200, svc.TotalOfficers(1000))
	assert.Equal(t, []string{"total_officers"}, changed)
}

func TestHandleUpdate_Invalid(t *testing.T) {
	r, _, _ := setupRouter(t)

	req := httptest.NewRequest(http.MethodPut, "/settings/total_officers", strings.NewReader(`{"value":"abc"}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleGetAll(t *testing.T) {
	r, svc, _ := setupRouter(t)
	require.NoError(t, svc.SeedDefaults(1000))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/settings/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.EqualValues(t, 1000, body["total_officers"])
}
