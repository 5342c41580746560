package handlers

import (
	"net/http"
	"strings"

	"iou/internal/middleware"
	"iou/internal/models"
)

type friendRequestRequest struct {
	Email    string  `json:"email"`
	PersonID *string `json:"person_id"`
}

func (h *Handler) SendFriendRequest(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req friendRequestRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		respondError(w, http.StatusBadRequest, "email is required")
		return
	}
	if req.PersonID != nil && strings.TrimSpace(*req.PersonID) == "" {
		req.PersonID = nil
	}
	result, err := h.friendships.SendRequest(r.Context(), userID, req.Email, req.PersonID)
	if err != nil {
		h.respondServiceError(w, r, err, "unable to send friend request")
		return
	}
	status := http.StatusCreated
	if result.Accepted != nil {
		status = http.StatusOK
	}
	respondJSON(w, status, result)
}

func (h *Handler) ListFriendRequests(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	lists, err := h.friendships.ListRequests(r.Context(), userID)
	if err != nil {
		h.respondServiceError(w, r, err, "unable to load friend requests")
		return
	}
	if lists.Incoming == nil {
		lists.Incoming = []models.FriendRequestView{}
	}
	if lists.Outgoing == nil {
		lists.Outgoing = []models.FriendRequestView{}
	}
	respondJSON(w, http.StatusOK, lists)
}

type respondRequest struct {
	RequestID string `json:"request_id"`
	Action    string `json:"action"`
}

func (h *Handler) RespondFriendRequest(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req respondRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.RequestID == "" {
		respondError(w, http.StatusBadRequest, "request_id is required")
		return
	}
	result, err := h.friendships.Respond(r.Context(), req.RequestID, userID, strings.ToLower(strings.TrimSpace(req.Action)))
	if err != nil {
		h.respondServiceError(w, r, err, "unable to respond to friend request")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

type cancelRequest struct {
	RequestID string `json:"request_id"`
}

func (h *Handler) CancelFriendRequest(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req cancelRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.RequestID == "" {
		respondError(w, http.StatusBadRequest, "request_id is required")
		return
	}
	request, err := h.friendships.Cancel(r.Context(), req.RequestID, userID)
	if err != nil {
		h.respondServiceError(w, r, err, "unable to cancel friend request")
		return
	}
	respondJSON(w, http.StatusOK, request)
}

func (h *Handler) ListFriends(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	friends, err := h.friendships.ListFriends(r.Context(), userID)
	if err != nil {
		h.respondServiceError(w, r, err, "unable to load friends")
		return
	}
	if friends == nil {
		friends = []models.UserSummary{}
	}
	respondJSON(w, http.StatusOK, friends)
}
