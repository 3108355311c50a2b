package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/marketloop/earnings/internal/domain"
	"github.com/marketloop/earnings/internal/payout"
)

// AccountHandler exposes payout destination management: one connect
// endpoint per rail, a disconnect, and an admin status override.
type AccountHandler struct {
	manager *payout.AccountManager
}

func NewAccountHandler(manager *payout.AccountManager) *AccountHandler {
	return &AccountHandler{manager: manager}
}

// ConnectCardAcquirer handles POST /v1/payout-accounts/card-acquirer.
func (h *AccountHandler) ConnectCardAcquirer(w http.ResponseWriter, r *http.Request) {
	userID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-context", err.Error())
		return
	}
	res, err := h.manager.ConnectCardAcquirer(r.Context(), userID)
	h.respondConnect(w, r, res, err)
}

type walletConnectRequest struct {
	Email string `json:"email"`
}

// ConnectDigitalWallet handles POST /v1/payout-accounts/digital-wallet.
func (h *AccountHandler) ConnectDigitalWallet(w http.ResponseWriter, r *http.Request) {
	userID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-context", err.Error())
		return
	}
	var req walletConnectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "invalid JSON body")
		return
	}
	res, err := h.manager.ConnectDigitalWallet(r.Context(), userID, req.Email)
	h.respondConnect(w, r, res, err)
}

// ConnectBankTransfer handles POST /v1/payout-accounts/bank-transfer.
func (h *AccountHandler) ConnectBankTransfer(w http.ResponseWriter, r *http.Request) {
	userID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-context", err.Error())
		return
	}
	var req payout.BankTransferPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "invalid JSON body")
		return
	}
	res, err := h.manager.ConnectBankTransfer(r.Context(), userID, req)
	h.respondConnect(w, r, res, err)
}

type globalPayoutConnectRequest struct {
	PayeeID string `json:"payee_id"`
}

// ConnectGlobalPayout handles POST /v1/payout-accounts/global-payout.
func (h *AccountHandler) ConnectGlobalPayout(w http.ResponseWriter, r *http.Request) {
	userID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-context", err.Error())
		return
	}
	var req globalPayoutConnectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "invalid JSON body")
		return
	}
	res, err := h.manager.ConnectGlobalPayout(r.Context(), userID, req.PayeeID)
	h.respondConnect(w, r, res, err)
}

// Disconnect handles DELETE /v1/payout-accounts.
func (h *AccountHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	userID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-context", err.Error())
		return
	}
	res, err := h.manager.Disconnect(r.Context(), userID)
	if err != nil {
		RespondError(w, r, http.StatusInternalServerError, "payout-account/disconnect-failed", "failed to disconnect payout account")
		return
	}
	RespondJSON(w, http.StatusOK, res)
}

type statusRequest struct {
	UserID string `json:"user_id"`
	Status string `json:"status"`
}

// SetStatus handles PUT /v1/admin/payout-accounts/status. Admin only; used
// by the deposit-verification callback and risk operations.
func (h *AccountHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "invalid JSON body")
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-user-id", "invalid user_id")
		return
	}

	if err := h.manager.SetAccountStatus(r.Context(), userID, req.Status); err != nil {
		var validationErr *domain.ValidationError
		switch {
		case errors.As(err, &validationErr):
			RespondError(w, r, http.StatusUnprocessableEntity, "payout-account/invalid-status", validationErr.Error())
		case errors.Is(err, domain.ErrNoPayoutAccount):
			RespondError(w, r, http.StatusNotFound, "payout-account/not-found", "no payout account connected")
		default:
			RespondError(w, r, http.StatusInternalServerError, "payout-account/status-update-failed", "failed to update account status")
		}
		return
	}
	RespondJSON(w, http.StatusOK, map[string]string{"status": req.Status})
}

func (h *AccountHandler) respondConnect(w http.ResponseWriter, r *http.Request, res *payout.ConnectResult, err error) {
	if err != nil {
		var validationErr *domain.ValidationError
		var conflictErr *domain.ConflictError
		var disabledErr *domain.RailDisabledError
		switch {
		case errors.As(err, &validationErr):
			RespondError(w, r, http.StatusUnprocessableEntity, "payout-account/invalid-destination", validationErr.Error())
		case errors.As(err, &conflictErr):
			RespondError(w, r, http.StatusConflict, "payout-account/rail-conflict", conflictErr.Error())
		case errors.As(err, &disabledErr):
			RespondError(w, r, http.StatusForbidden, "payout-account/rail-disabled", disabledErr.Error())
		default:
			if status, problemType, message, ok := mapDBError(err); ok {
				RespondError(w, r, status, problemType, message)
				return
			}
			RespondError(w, r, http.StatusInternalServerError, "payout-account/connect-failed", "failed to connect payout account")
		}
		return
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	RespondJSON(w, status, res)
}
