// Package handlers provides HTTP handlers for regions.
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/islandsafe/patrolplan/internal/domain"
	"github.com/islandsafe/patrolplan/internal/httpjson"
	"github.com/islandsafe/patrolplan/internal/modules/regions"
	"github.com/rs/zerolog"
)

// Handler serves /api/regions.
type Handler struct {
	service *regions.Service
	log     zerolog.Logger
}

// NewHandler creates a new regions handler
func NewHandler(service *regions.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "regions").Logger(),
	}
}

// RegisterRoutes registers region routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/regions", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Get("/with-stats", h.HandleListWithStats)
		r.Get("/{id}", h.HandleGet)
		r.Patch("/{id}", h.HandlePatch)
	})
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		httpjson.DomainError(w, h.log, err)
		return
	}
	if list == nil {
		list = []domain.Region{}
	}
	httpjson.Write(w, h.log, http.StatusOK, list)
}

func (h *Handler) HandleListWithStats(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListWithStats(r.Context())
	if err != nil {
		httpjson.DomainError(w, h.log, err)
		return
	}
	if list == nil {
		list = []regions.RegionStats{}
	}
	httpjson.Write(w, h.log, http.StatusOK, list)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := httpjson.IntParam(r, "id")
	if err != nil {
		httpjson.DomainError(w, h.log, err)
		return
	}
	reg, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpjson.DomainError(w, h.log, err)
		return
	}
	httpjson.Write(w, h.log, http.StatusOK, reg)
}

// HandlePatch handles PATCH /api/regions/{id}
func (h *Handler) HandlePatch(w http.ResponseWriter, r *http.Request) {
	id, err := httpjson.IntParam(r, "id")
	if err != nil {
		httpjson.DomainError(w, h.log, err)
		return
	}

	var patch domain.RegionPatch
	if err := httpjson.Decode(r, &patch); err != nil {
		httpjson.DomainError(w, h.log, err)
		return
	}

	reg, err := h.service.Patch(r.Context(), id, patch)
	if err != nil {
		httpjson.DomainError(w, h.log, err)
		return
	}
	httpjson.Write(w, h.log, http.StatusOK, reg)
}
