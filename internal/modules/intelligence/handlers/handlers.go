// Package handlers provides HTTP handlers for intelligence reports.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/islandsafe/patrolplan/internal/domain"
	"github.com/islandsafe/patrolplan/internal/httpjson"
	"github.com/islandsafe/patrolplan/internal/modules/intelligence"
	"github.com/rs/zerolog"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
)

// Handler serves /api/intelligence.
type Handler struct {
	service *intelligence.Service
	log     zerolog.Logger
}

// NewHandler creates a new intelligence handler
func NewHandler(service *intelligence.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "intelligence").Logger(),
	}
}

// RegisterRoutes registers intelligence routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/intelligence", func(r chi.Router) {
		r.Post("/", h.HandleCreate)
		r.Get("/", h.HandleList)
		r.Get("/types", h.HandleTypes)
		r.Get("/trends/{regionID}", h.HandleTrends)
		r.Get("/{id}", h.HandleGet)
		r.Patch("/{id}", h.HandlePatch)
		r.Delete("/{id}", h.HandleDelete)
	})
}

// HandleCreate handles POST /api/intelligence
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var rep intelligence.Report
	if err := httpjson.Decode(r, &rep); err != nil {
		httpjson.DomainError(w, h.log, err)
		return
	}

	res, err := h.service.Create(r.Context(), rep)
	if err != nil {
		httpjson.DomainError(w, h.log, err)
		return
	}
	httpjson.Write(w, h.log, http.StatusCreated, res)
}

// HandleList handles GET /api/intelligence?parish_id=&type=&skip=&limit=
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	skip, err := httpjson.QueryInt(r, "skip", 0)
	if err != nil {
		httpjson.DomainError(w, h.log, err)
		return
	}
	limit, err := httpjson.QueryInt(r, "limit", defaultLimit)
	if err != nil {
		httpjson.DomainError(w, h.log, err)
		return
	}
	if skip < 0 || limit < 1 || limit > maxLimit {
		httpjson.Error(w, h.log, http.StatusBadRequest, "skip must be >= 0 and limit between 1 and 1000")
		return
	}

	f := intelligence.Filter{Offset: skip, Limit: limit}
	if raw := r.URL.Query().Get("parish_id"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil {
			httpjson.Error(w, h.log, http.StatusBadRequest, "parish_id must be an integer")
			return
		}
		f.RegionID = &id
	}
	if raw := r.URL.Query().Get("type"); raw != "" {
		t := domain.EventType(raw)
		f.Type = &t
	}

	list, err := h.service.List(r.Context(), f)
	if err != nil {
		httpjson.DomainError(w, h.log, err)
		return
	}
	if list == nil {
		list = []domain.Event{}
	}
	httpjson.Write(w, h.log, http.StatusOK, list)
}

// HandleTypes handles GET /api/intelligence/types
func (h *Handler) HandleTypes(w http.ResponseWriter, r *http.Request) {
	httpjson.Write(w, h.log, http.StatusOK, domain.EventTypes())
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.eventID(w, r)
	if !ok {
		return
	}
	e, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpjson.DomainError(w, h.log, err)
		return
	}
	httpjson.Write(w, h.log, http.StatusOK, e)
}

// HandlePatch handles PATCH /api/intelligence/{id}
func (h *Handler) HandlePatch(w http.ResponseWriter, r *http.Request) {
	id, ok := h.eventID(w, r)
	if !ok {
		return
	}
	var patch domain.EventPatch
	if err := httpjson.Decode(r, &patch); err != nil {
		httpjson.DomainError(w, h.log, err)
		return
	}
	e, err := h.service.Patch(r.Context(), id, patch)
	if err != nil {
		httpjson.DomainError(w, h.log, err)
		return
	}
	httpjson.Write(w, h.log, http.StatusOK, e)
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.eventID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		httpjson.DomainError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleTrends handles GET /api/intelligence/trends/{regionID}
func (h *Handler) HandleTrends(w http.ResponseWriter, r *http.Request) {
	regionID, err := httpjson.IntParam(r, "regionID")
	if err != nil {
		httpjson.DomainError(w, h.log, err)
		return
	}
	t, err := h.service.Trends(r.Context(), regionID)
	if err != nil {
		httpjson.DomainError(w, h.log, err)
		return
	}
	httpjson.Write(w, h.log, http.StatusOK, t)
}

func (h *Handler) eventID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpjson.Error(w, h.log, http.StatusBadRequest, "id must be an integer")
		return 0, false
	}
	return id, true
}
