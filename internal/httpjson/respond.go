// Package httpjson holds the JSON response helpers shared by the HTTP handlers.
package httpjson

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/islandsafe/patrolplan/internal/domain"
	"github.com/rs/zerolog"
)

// Write encodes data as the response body.
func Write(w http.ResponseWriter, log zerolog.Logger, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// Error writes {"error": message}.
func Error(w http.ResponseWriter, log zerolog.Logger, status int, message string) {
	Write(w, log, status, map[string]string{"error": message})
}

// DomainError maps err to a status code. Client errors become 400 (with
// the totals for an allocation mismatch), ErrNotFound becomes 404 and
// anything else is logged and reported as 500.
func DomainError(w http.ResponseWriter, log zerolog.Logger, err error) {
	var mismatch *domain.AllocationMismatchError
	switch {
	case errors.As(err, &mismatch):
		Write(w, log, http.StatusBadRequest, map[string]any{
			"error":   mismatch.Error(),
			"planned": mismatch.Planned,
			"pool":    mismatch.Pool,
		})
	case domain.IsClientError(err):
		Error(w, log, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		Error(w, log, http.StatusNotFound, err.Error())
	default:
		log.Error().Err(err).Msg("Request failed")
		Error(w, log, http.StatusInternalServerError, "internal error")
	}
}

// Decode reads a JSON body, rejecting unknown fields.
func Decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return &domain.ValidationError{Err: err, Message: "invalid request body: " + err.Error()}
	}
	return nil
}

// IntParam parses a chi URL parameter as an int.
func IntParam(r *http.Request, name string) (int, error) {
	v, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil {
		return 0, domain.NewValidationError(name, "must be an integer")
	}
	return v, nil
}

// QueryInt parses an optional query parameter, returning def when absent.
func QueryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.NewValidationError(name, "must be an integer")
	}
	return v, nil
}
