package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"

	"github.com/marketloop/earnings/internal/fraud"
	"go.uber.org/zap"
)

// WebhookHandler receives provider fraud events over HTTP. Events are
// HMAC-signed by the provider and acknowledged with 200 even when dropped,
// so the provider never retries events this system chose to ignore.
type WebhookHandler struct {
	ingestor *fraud.Ingestor
	hmacKey  []byte
	skipSig  bool
}

func NewWebhookHandler(ingestor *fraud.Ingestor, hmacKey string, skipSignature bool) *WebhookHandler {
	return &WebhookHandler{
		ingestor: ingestor,
		hmacKey:  []byte(hmacKey),
		skipSig:  skipSignature,
	}
}

type fraudEventEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// HandleFraudEvent handles POST /v1/webhooks/fraud.
func (h *WebhookHandler) HandleFraudEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		zap.L().Error("read webhook body failed", zap.Error(err))
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "failed to read request body")
		return
	}

	if !h.verifyHMAC(body, r.Header.Get("X-Webhook-Signature")) {
		RespondError(w, r, http.StatusUnauthorized, "webhook/invalid-signature", "invalid signature")
		return
	}

	var env fraudEventEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "invalid JSON body")
		return
	}

	if err := h.ingestor.ProcessRaw(r.Context(), env.Type, env.Data); err != nil {
		RespondError(w, r, http.StatusBadRequest, "webhook/invalid-event", err.Error())
		return
	}
	RespondJSON(w, http.StatusOK, map[string]string{"status": "received"})
}

func (h *WebhookHandler) verifyHMAC(payload []byte, signature string) bool {
	if h.skipSig {
		return true
	}
	if len(h.hmacKey) == 0 {
		return false
	}

	mac := hmac.New(sha256.New, h.hmacKey)
	mac.Write(payload)
	expected := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(signature), []byte(expected))
}
