package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"iou/internal/middleware"
	"iou/internal/models"
	"iou/internal/validator"

	"github.com/jmoiron/sqlx"
)

const searchLimit = 20

func (h *Handler) SearchUsers(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	term := strings.TrimSpace(r.URL.Query().Get("q"))
	if term == "" {
		respondJSON(w, http.StatusOK, []models.UserSummary{})
		return
	}
	users, err := h.users.Search(r.Context(), userID, term, searchLimit)
	if err != nil {
		h.respondServiceError(w, r, err, "unable to search users")
		return
	}
	if users == nil {
		users = []models.UserSummary{}
	}
	respondJSON(w, http.StatusOK, users)
}

type updateMeRequest struct {
	Name string `json:"name"`
}

// UpdateMe renames the caller. Friends' Person records pick up the new name the next
// time a friend request between them is accepted.
func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req updateMeRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if err := validator.ValidateName(req.Name); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	name := strings.TrimSpace(req.Name)
	err := h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		if err := h.users.UpdateName(r.Context(), tx, user.ID, name); err != nil {
			return err
		}
		return h.audit.Log(r.Context(), tx, user.ID, "user.update", "user", user.ID, auditFields(map[string]string{
			"old_name": user.Name,
			"name":     name,
		}))
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusUnauthorized, "unknown user")
			return
		}
		h.respondServiceError(w, r, err, "unable to update profile")
		return
	}
	respondJSON(w, http.StatusOK, models.UserSummary{ID: user.ID, Name: name, Email: user.Email})
}
