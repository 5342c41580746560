package handlers

import (
	"errors"
	"io"
	"net/http"

	"iou/internal/middleware"
	"iou/internal/models"
	"iou/internal/websocket"
)

func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	notifications, err := h.notifications.List(r.Context(), userID)
	if err != nil {
		h.respondServiceError(w, r, err, "unable to load notifications")
		return
	}
	if notifications == nil {
		notifications = []models.Notification{}
	}
	respondJSON(w, http.StatusOK, notifications)
}

type markReadRequest struct {
	IDs []string `json:"ids"`
}

// MarkNotificationsRead marks the given ids, or every unread notification when the
// body is empty or carries no ids.
func (h *Handler) MarkNotificationsRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req markReadRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	updated, err := h.notifications.MarkRead(r.Context(), userID, req.IDs)
	if err != nil {
		h.respondServiceError(w, r, err, "unable to mark notifications read")
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"updated": updated})
}

func (h *Handler) ClearNotifications(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	deleted, err := h.notifications.Clear(r.Context(), userID)
	if err != nil {
		h.respondServiceError(w, r, err, "unable to clear notifications")
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"deleted": deleted})
}

func (h *Handler) WSNotifications(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	websocket.ServeWS(w, r, h.hub, userID, h.log)
}
