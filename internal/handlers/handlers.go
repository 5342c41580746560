package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"iou/internal/db"
	"iou/internal/services"

	"go.uber.org/zap"
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps a service error kind to its status. Unclassified errors are
// logged and reported with the fallback message.
func (h *Handler) respondServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrForbidden):
		respondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, services.ErrInvalidOperation):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrUnauthenticated):
		respondError(w, http.StatusUnauthorized, err.Error())
	case db.IsUniqueViolation(err), errors.Is(err, db.ErrRetryLimit):
		respondError(w, http.StatusConflict, "conflicting update, please retry")
	default:
		h.log.Error(fallback, zap.String("path", r.URL.Path), zap.Error(err))
		respondError(w, http.StatusInternalServerError, fallback)
	}
}

func decodeJSON(r *http.Request, dest any) error {
	return json.NewDecoder(r.Body).Decode(dest)
}
