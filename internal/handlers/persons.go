package handlers

import (
	"net/http"

	"iou/internal/middleware"
	"iou/internal/services"

	"github.com/go-chi/chi/v5"
)

type personRequest struct {
	Name           string `json:"name"`
	Nickname       string `json:"nickname"`
	PaymentAddress string `json:"payment_address"`
}

type personPatchRequest struct {
	Name           *string `json:"name"`
	Nickname       *string `json:"nickname"`
	PaymentAddress *string `json:"payment_address"`
}

func (h *Handler) ListPersons(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	ledgers, err := h.persons.ListPersonsWithTransactions(r.Context(), userID)
	if err != nil {
		h.respondServiceError(w, r, err, "unable to load people")
		return
	}
	if ledgers == nil {
		ledgers = []services.PersonLedger{}
	}
	respondJSON(w, http.StatusOK, ledgers)
}

func (h *Handler) CreatePerson(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req personRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	person, err := h.persons.CreatePerson(r.Context(), userID, services.PersonInput{
		Name:           req.Name,
		Nickname:       req.Nickname,
		PaymentAddress: req.PaymentAddress,
	})
	if err != nil {
		h.respondServiceError(w, r, err, "unable to create person")
		return
	}
	respondJSON(w, http.StatusCreated, person)
}

func (h *Handler) UpdatePerson(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req personPatchRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	person, err := h.persons.UpdatePerson(r.Context(), chi.URLParam(r, "id"), userID, services.PersonPatch{
		Name:           req.Name,
		Nickname:       req.Nickname,
		PaymentAddress: req.PaymentAddress,
	})
	if err != nil {
		h.respondServiceError(w, r, err, "unable to update person")
		return
	}
	respondJSON(w, http.StatusOK, person)
}

func (h *Handler) DeletePerson(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	personID := chi.URLParam(r, "id")
	if err := h.persons.DeletePerson(r.Context(), personID, userID); err != nil {
		h.respondServiceError(w, r, err, "unable to delete person")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"deleted": personID})
}

func (h *Handler) SendReminder(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	reminder, err := h.persons.SendReminder(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		h.respondServiceError(w, r, err, "unable to send reminder")
		return
	}
	respondJSON(w, http.StatusOK, reminder)
}
