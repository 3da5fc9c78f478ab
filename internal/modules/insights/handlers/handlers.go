// Package handlers provides HTTP handlers for resource insights.
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/islandsafe/patrolplan/internal/httpjson"
	"github.com/islandsafe/patrolplan/internal/modules/insights"
	"github.com/rs/zerolog"
)

// Handler serves /api/insights.
type Handler struct {
	service *insights.Service
	log     zerolog.Logger
}

// NewHandler creates a new insights handler
func NewHandler(service *insights.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "insights").Logger(),
	}
}

// RegisterRoutes registers insight routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/insights", func(r chi.Router) {
		r.Get("/resources", h.HandleResources)
	})
}

// HandleResources handles GET /api/insights/resources
func (h *Handler) HandleResources(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.Resources(r.Context())
	if err != nil {
		httpjson.DomainError(w, h.log, err)
		return
	}
	httpjson.Write(w, h.log, http.StatusOK, list)
}
