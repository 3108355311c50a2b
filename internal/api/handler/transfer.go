package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/marketloop/earnings/internal/domain"
	"github.com/marketloop/earnings/internal/payout"
)

// TransferHandler moves earnings into the user's internal wallet.
type TransferHandler struct {
	processor *payout.Processor
}

func NewTransferHandler(processor *payout.Processor) *TransferHandler {
	return &TransferHandler{processor: processor}
}

type walletTransferRequest struct {
	AmountCents int64 `json:"amount_cents"`
}

// TransferToWallet handles POST /v1/wallet/transfer.
func (h *TransferHandler) TransferToWallet(w http.ResponseWriter, r *http.Request) {
	userID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-context", err.Error())
		return
	}

	var req walletTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "invalid JSON body")
		return
	}

	if err := h.processor.TransferToWallet(r.Context(), userID, req.AmountCents); err != nil {
		var validationErr *domain.ValidationError
		switch {
		case errors.As(err, &validationErr):
			RespondError(w, r, http.StatusUnprocessableEntity, "wallet/invalid-amount", validationErr.Error())
		case errors.Is(err, domain.ErrInsufficientFunds):
			RespondError(w, r, http.StatusUnprocessableEntity, "wallet/insufficient-funds", "available balance is below the requested amount")
		default:
			RespondError(w, r, http.StatusInternalServerError, "wallet/transfer-failed", "failed to transfer to wallet")
		}
		return
	}
	RespondJSON(w, http.StatusOK, map[string]any{
		"transferred_cents": req.AmountCents,
	})
}
