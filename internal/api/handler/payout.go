package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/marketloop/earnings/internal/domain"
	"github.com/marketloop/earnings/internal/models"
	"github.com/marketloop/earnings/internal/payout"
)

// PayoutHistoryStore narrows the repository to the history listing.
type PayoutHistoryStore interface {
	ListPayoutTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.PayoutTransaction, error)
}

// PayoutHandler exposes the auto-payout surface: status, threshold,
// manual trigger and disbursement history.
type PayoutHandler struct {
	processor *payout.Processor
	history   PayoutHistoryStore
}

func NewPayoutHandler(processor *payout.Processor, history PayoutHistoryStore) *PayoutHandler {
	return &PayoutHandler{processor: processor, history: history}
}

// GetStatus handles GET /v1/payouts/status.
func (h *PayoutHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	userID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-context", err.Error())
		return
	}

	status, err := h.processor.AutoPayoutStatus(r.Context(), userID)
	if err != nil {
		RespondError(w, r, http.StatusInternalServerError, "payout/status-unavailable", "failed to load payout status")
		return
	}
	RespondJSON(w, http.StatusOK, status)
}

type thresholdRequest struct {
	ThresholdCents int64 `json:"threshold_cents"`
}

// UpdateThreshold handles PUT /v1/payouts/threshold.
func (h *PayoutHandler) UpdateThreshold(w http.ResponseWriter, r *http.Request) {
	userID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-context", err.Error())
		return
	}

	var req thresholdRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "invalid JSON body")
		return
	}

	status, err := h.processor.UpdateAutoPayoutThreshold(r.Context(), userID, req.ThresholdCents)
	if err != nil {
		var validationErr *domain.ValidationError
		if errors.As(err, &validationErr) {
			RespondError(w, r, http.StatusUnprocessableEntity, "payout/invalid-threshold", validationErr.Error())
			return
		}
		RespondError(w, r, http.StatusInternalServerError, "payout/threshold-update-failed", "failed to update threshold")
		return
	}
	RespondJSON(w, http.StatusOK, status)
}

// Trigger handles POST /v1/payouts/trigger. It runs the same state machine
// as the background sweep; an ineligible user gets the structured outcome,
// not an error.
func (h *PayoutHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	userID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-context", err.Error())
		return
	}

	outcome, err := h.processor.ProcessAutoPayout(r.Context(), userID)
	if err != nil {
		var transferErr *domain.ExternalTransferError
		if errors.As(err, &transferErr) {
			RespondError(w, r, http.StatusBadGateway, "payout/transfer-failed", transferErr.Error())
			return
		}
		var notConfigured *domain.NotConfiguredError
		if errors.As(err, &notConfigured) {
			RespondError(w, r, http.StatusServiceUnavailable, "payout/rail-not-configured", notConfigured.Error())
			return
		}
		RespondError(w, r, http.StatusInternalServerError, "payout/trigger-failed", "failed to process payout")
		return
	}
	RespondJSON(w, http.StatusOK, outcome)
}

// ListHistory handles GET /v1/payouts/history.
func (h *PayoutHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	userID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-context", err.Error())
		return
	}

	limit := queryInt(r, "limit", 50)
	if limit < 1 || limit > 200 {
		limit = 50
	}
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	txs, err := h.history.ListPayoutTransactions(r.Context(), userID, limit, offset)
	if err != nil {
		RespondError(w, r, http.StatusInternalServerError, "payout/history-unavailable", "failed to load payout history")
		return
	}
	if txs == nil {
		txs = []models.PayoutTransaction{}
	}
	RespondJSON(w, http.StatusOK, map[string]any{
		"transactions": txs,
		"limit":        limit,
		"offset":       offset,
	})
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
