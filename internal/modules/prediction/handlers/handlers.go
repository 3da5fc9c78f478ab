// Package handlers provides HTTP handlers for the risk model.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/islandsafe/patrolplan/internal/domain"
	"github.com/islandsafe/patrolplan/internal/httpjson"
	"github.com/islandsafe/patrolplan/internal/modules/prediction"
	"github.com/rs/zerolog"
)

// Retrainer forces a training cycle outside the schedule.
type Retrainer interface {
	RunNow(ctx context.Context) (*prediction.TrainingResult, error)
}

// Handler serves /api/model.
type Handler struct {
	predictor *prediction.Predictor
	retrainer Retrainer
	log       zerolog.Logger
}

// NewHandler creates a new model handler
func NewHandler(predictor *prediction.Predictor, retrainer Retrainer, log zerolog.Logger) *Handler {
	return &Handler{
		predictor: predictor,
		retrainer: retrainer,
		log:       log.With().Str("handler", "model").Logger(),
	}
}

// RegisterRoutes registers model routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/model", func(r chi.Router) {
		r.Get("/", h.HandleStatus)
		r.Get("/versions", h.HandleVersions)
		r.Get("/predict/{regionID}", h.HandlePredict)
		r.Post("/retrain", h.HandleRetrain)
	})
}

// StatusResponse describes the active model.
type StatusResponse struct {
	Active       *domain.ModelVersion `json:"active"`
	LastTraining time.Time            `json:"last_training"`
	Features     []string             `json:"features"`
}

func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	state := h.predictor.State()
	_, version := state.Active()
	httpjson.Write(w, h.log, http.StatusOK, StatusResponse{
		Active:       version,
		LastTraining: state.LastTraining(),
		Features:     prediction.FeatureNames(),
	})
}

func (h *Handler) HandleVersions(w http.ResponseWriter, r *http.Request) {
	limit, err := httpjson.QueryInt(r, "limit", 20)
	if err != nil {
		httpjson.DomainError(w, h.log, err)
		return
	}
	if limit < 1 || limit > 200 {
		httpjson.DomainError(w, h.log, domain.NewValidationError("limit", "must be between 1 and 200"))
		return
	}
	versions, err := h.predictor.Versions(r.Context(), limit)
	if err != nil {
		httpjson.DomainError(w, h.log, err)
		return
	}
	if versions == nil {
		versions = []domain.ModelVersion{}
	}
	httpjson.Write(w, h.log, http.StatusOK, versions)
}

// HandlePredict returns a region's current risk score without storing it.
func (h *Handler) HandlePredict(w http.ResponseWriter, r *http.Request) {
	id, err := httpjson.IntParam(r, "regionID")
	if err != nil {
		httpjson.DomainError(w, h.log, err)
		return
	}
	httpjson.Write(w, h.log, http.StatusOK, map[string]int{
		"parish_id":             id,
		"predicted_crime_level": h.predictor.PredictRisk(r.Context(), id),
	})
}

// HandleRetrain handles POST /api/model/retrain. It trains regardless of
// the schedule gates and reallocates on success.
func (h *Handler) HandleRetrain(w http.ResponseWriter, r *http.Request) {
	res, err := h.retrainer.RunNow(r.Context())
	if err != nil {
		httpjson.DomainError(w, h.log, err)
		return
	}
	httpjson.Write(w, h.log, http.StatusOK, res)
}
