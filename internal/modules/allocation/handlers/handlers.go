// Package handlers provides HTTP handlers for allocation runs and plans.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/islandsafe/patrolplan/internal/domain"
	"github.com/islandsafe/patrolplan/internal/httpjson"
	"github.com/islandsafe/patrolplan/internal/modules/allocation"
	"github.com/rs/zerolog"
)

// Handler serves /api/allocations.
type Handler struct {
	service *allocation.Service
	log     zerolog.Logger
}

// NewHandler creates a new allocation handler
func NewHandler(service *allocation.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "allocation").Logger(),
	}
}

// RegisterRoutes registers allocation routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/allocations", func(r chi.Router) {
		r.Post("/run", h.HandleRun)
		r.Get("/recommendations", h.HandleRecommendations)
		r.Post("/execute", h.HandleExecute)
		r.Get("/runs", h.HandleListRuns)
		r.Get("/runs/{runID}/changes", h.HandleRunChanges)
	})
}

// HandleRun handles POST /api/allocations/run. It predicts, allocates and
// persists, then returns the new allocation keyed by region id.
func (h *Handler) HandleRun(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.Reallocate(r.Context())
	if err != nil {
		httpjson.DomainError(w, h.log, err)
		return
	}
	httpjson.Write(w, h.log, http.StatusOK, map[string]any{
		"run_id":      res.Run.ID,
		"pool_total":  res.Run.PoolTotal,
		"allocations": keyed(res.Allocations),
		"recommended": keyed(res.Recommended),
		"changes":     changesOrEmpty(res.Changes),
	})
}

// HandleRecommendations handles GET /api/allocations/recommendations
func (h *Handler) HandleRecommendations(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Recommendations(r.Context())
	if err != nil {
		httpjson.DomainError(w, h.log, err)
		return
	}
	httpjson.Write(w, h.log, http.StatusOK, p)
}

// ExecuteRequest is the body of POST /api/allocations/execute. Keys are
// region ids.
type ExecuteRequest struct {
	Allocations map[string]int `json:"allocations"`
}

// HandleExecute handles POST /api/allocations/execute
func (h *Handler) HandleExecute(w http.ResponseWriter, r *http.Request) {
	var req ExecuteRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.DomainError(w, h.log, err)
		return
	}

	plan := make(map[int]int, len(req.Allocations))
	for k, v := range req.Allocations {
		id, err := strconv.Atoi(k)
		if err != nil {
			httpjson.DomainError(w, h.log, domain.NewValidationError("allocations", "region id %q is not an integer", k))
			return
		}
		plan[id] = v
	}

	res, err := h.service.Apply(r.Context(), plan)
	if err != nil {
		httpjson.DomainError(w, h.log, err)
		return
	}
	httpjson.Write(w, h.log, http.StatusOK, map[string]any{
		"success":          true,
		"run_id":           res.RunID,
		"changes":          changesOrEmpty(res.Changes),
		"total_allocated":  res.TotalAllocated,
		"parishes_updated": res.RegionsUpdated,
		"allocations":      keyed(res.Allocations),
	})
}

func (h *Handler) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := httpjson.QueryInt(r, "limit", 20)
	if err != nil {
		httpjson.DomainError(w, h.log, err)
		return
	}
	if limit < 1 || limit > 500 {
		httpjson.DomainError(w, h.log, domain.NewValidationError("limit", "must be between 1 and 500"))
		return
	}
	runs, err := h.service.Runs(r.Context(), limit)
	if err != nil {
		httpjson.DomainError(w, h.log, err)
		return
	}
	if runs == nil {
		runs = []allocation.RunSummary{}
	}
	httpjson.Write(w, h.log, http.StatusOK, runs)
}

func (h *Handler) HandleRunChanges(w http.ResponseWriter, r *http.Request) {
	changes, err := h.service.RunChanges(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		httpjson.DomainError(w, h.log, err)
		return
	}
	httpjson.Write(w, h.log, http.StatusOK, changesOrEmpty(changes))
}

func keyed(m map[int]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[strconv.Itoa(k)] = v
	}
	return out
}

func changesOrEmpty(c []domain.AllocationChange) []domain.AllocationChange {
	if c == nil {
		return []domain.AllocationChange{}
	}
	return c
}
