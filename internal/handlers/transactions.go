package handlers

import (
	"encoding/json"
	"net/http"

	"iou/internal/middleware"
	"iou/internal/models"
	"iou/internal/services"

	"github.com/go-chi/chi/v5"
)

type transactionRequest struct {
	Amount      json.Number `json:"amount"`
	Description string      `json:"description"`
	Date        string      `json:"date"`
	Type        string      `json:"type"`
}

func (req transactionRequest) input() (services.TransactionInput, error) {
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return services.TransactionInput{}, err
	}
	date, err := parseDate(req.Date)
	if err != nil {
		return services.TransactionInput{}, err
	}
	return services.TransactionInput{
		Amount:      amount,
		Description: req.Description,
		Date:        date,
		Type:        parseType(req.Type),
	}, nil
}

type bulkTransactionRequest struct {
	transactionRequest
	PersonIDs []string `json:"person_ids"`
}

type transactionPatchRequest struct {
	Amount      *json.Number `json:"amount"`
	Description *string      `json:"description"`
	Date        *string      `json:"date"`
	Type        *string      `json:"type"`
}

func (req transactionPatchRequest) patch() (services.TransactionPatch, error) {
	var patch services.TransactionPatch
	if req.Amount != nil {
		amount, err := parseAmount(*req.Amount)
		if err != nil {
			return patch, err
		}
		patch.Amount = &amount
	}
	if req.Date != nil {
		date, err := parseDate(*req.Date)
		if err != nil {
			return patch, err
		}
		patch.Date = date
	}
	if req.Type != nil {
		txType := parseType(*req.Type)
		patch.Type = &txType
	}
	patch.Description = req.Description
	return patch, nil
}

func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req transactionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	input, err := req.input()
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	created, err := h.ledger.CreateTransaction(r.Context(), userID, chi.URLParam(r, "personID"), input)
	if err != nil {
		h.respondServiceError(w, r, err, "unable to create transaction")
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (h *Handler) CreateBulkTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req bulkTransactionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	input, err := req.input()
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	created, err := h.ledger.CreateBulkTransaction(r.Context(), userID, req.PersonIDs, input)
	if err != nil {
		h.respondServiceError(w, r, err, "unable to create transactions")
		return
	}
	if created == nil {
		created = []models.Transaction{}
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"count":        len(created),
		"transactions": created,
	})
}

func (h *Handler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req transactionPatchRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	patch, err := req.patch()
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	updated, err := h.ledger.UpdateTransaction(r.Context(), chi.URLParam(r, "id"), userID, patch)
	if err != nil {
		h.respondServiceError(w, r, err, "unable to update transaction")
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

func (h *Handler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	transactionID := chi.URLParam(r, "id")
	if err := h.ledger.DeleteTransaction(r.Context(), transactionID, userID); err != nil {
		h.respondServiceError(w, r, err, "unable to delete transaction")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"deleted": transactionID})
}

