package handler

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/marketloop/earnings/internal/observability"
	"github.com/marketloop/earnings/internal/risk"
)

// RiskHandler exposes transaction risk assessment to the checkout flow.
type RiskHandler struct {
	engine *risk.Engine
}

func NewRiskHandler(engine *risk.Engine) *RiskHandler {
	return &RiskHandler{engine: engine}
}

type assessRequest struct {
	UserID            string `json:"user_id"`
	AmountCents       int64  `json:"amount_cents"`
	Currency          string `json:"currency"`
	IPAddress         string `json:"ip_address"`
	CountryCode       string `json:"country_code"`
	DeviceFingerprint string `json:"device_fingerprint"`
	PaymentMethod     string `json:"payment_method"`
}

// Assess handles POST /v1/risk/assess. Guest checkouts omit user_id.
func (h *RiskHandler) Assess(w http.ResponseWriter, r *http.Request) {
	var req assessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "invalid JSON body")
		return
	}
	if req.AmountCents <= 0 {
		RespondError(w, r, http.StatusUnprocessableEntity, "risk/invalid-amount", "amount_cents must be greater than zero")
		return
	}

	input := risk.AssessmentInput{
		AmountCents:       req.AmountCents,
		Currency:          req.Currency,
		IPAddress:         req.IPAddress,
		CountryCode:       req.CountryCode,
		DeviceFingerprint: req.DeviceFingerprint,
		PaymentMethod:     req.PaymentMethod,
	}
	if req.UserID != "" {
		userID, err := uuid.Parse(req.UserID)
		if err != nil {
			RespondError(w, r, http.StatusBadRequest, "request/invalid-user-id", "invalid user_id")
			return
		}
		input.UserID = &userID
	}

	result := h.engine.Assess(r.Context(), input)
	observability.IncrementRiskLevel(result.RiskLevel)
	RespondJSON(w, http.StatusOK, result)
}
