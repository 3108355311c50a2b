package api_test

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/marketloop/earnings/internal/api"
	"github.com/marketloop/earnings/internal/api/middleware"
	"github.com/marketloop/earnings/internal/domain"
	"github.com/marketloop/earnings/internal/fraud"
	"github.com/marketloop/earnings/internal/locker"
	"github.com/marketloop/earnings/internal/models"
	"github.com/marketloop/earnings/internal/payout"
	"github.com/marketloop/earnings/internal/platform"
	"github.com/marketloop/earnings/internal/rail"
	"github.com/marketloop/earnings/internal/repository"
	"github.com/marketloop/earnings/internal/risk"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testJWTSecret   = "test-secret-0123456789-test-secret"
	testJWTIssuer   = "marketloop-earnings-test"
	testJWTAudience = "earnings-api-test"
	testHMACKey     = "webhook-test-key"
)

type chargeResolver struct {
	store *repository.MemoryStore
}

func (c chargeResolver) ResolveCharge(ctx context.Context, ref string) (*fraud.Charge, error) {
	charge, err := c.store.GetChargeByRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	return &fraud.Charge{UserID: charge.UserID, AmountCents: charge.AmountCents, Currency: charge.Currency}, nil
}

func testServer(t *testing.T) (*httptest.Server, *repository.MemoryStore) {
	t.Helper()
	middleware.SetJWTSecret(testJWTSecret)
	middleware.SetJWTValidation(testJWTIssuer, testJWTAudience)

	store := repository.NewMemoryStore()
	provider := &platform.Static{
		Mode:     domain.PaymentModeAuto,
		MinCents: 5000,
		MaxCents: 100000,
		Rails:    domain.SupportedRails,
		Credentials: map[string]platform.Credentials{
			domain.RailDigitalWallet: {APIKey: "sk_wal", AccountID: "acct_1"},
		},
	}
	registry := rail.NewRegistry(rail.NewDigitalWalletAdapter(rail.NewMockTransport(), provider))
	processor := payout.NewProcessor(store, provider, registry, locker.NewMemoryLocker())

	router := &api.Router{
		Logger:               zap.NewNop(),
		Processor:            processor,
		Accounts:             payout.NewAccountManager(store, provider, registry),
		Risk:                 risk.NewEngine(store),
		Ingestor:             fraud.NewIngestor(store, chargeResolver{store}),
		History:              store,
		WebhookHMACKey:       testHMACKey,
		WebhookSkipSignature: false,
		PublicRateLimitRPS:   100,
		AuthRateLimitRPS:     100,
	}

	srv := httptest.NewServer(router.Routes())
	t.Cleanup(srv.Close)
	return srv, store
}

func bearerToken(t *testing.T, userID uuid.UUID, role string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"user_id": userID.String(),
		"role":    role,
		"sub":     userID.String(),
		"iss":     testJWTIssuer,
		"aud":     testJWTAudience,
		"exp":     time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return "Bearer " + token
}

func TestPayoutStatusRequiresAuth(t *testing.T) {
	srv, _ := testServer(t)

	resp, err := http.Get(srv.URL + "/v1/payouts/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "application/problem+json", resp.Header.Get("Content-Type"))
}

func TestPayoutStatusEndpoint(t *testing.T) {
	srv, store := testServer(t)
	userID := uuid.New()
	store.Ledgers[userID] = &models.EarningsLedger{UserID: userID, AvailableCents: 8000, Currency: "USD"}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/v1/payouts/status", nil)
	req.Header.Set("Authorization", bearerToken(t, userID, "user"))
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status struct {
		Mode           string `json:"mode"`
		AvailableCents int64  `json:"available_cents"`
		ThresholdCents int64  `json:"threshold_cents"`
		Eligible       bool   `json:"eligible"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	require.Equal(t, domain.PaymentModeAuto, status.Mode)
	require.Equal(t, int64(8000), status.AvailableCents)
	require.Equal(t, int64(5000), status.ThresholdCents)
	require.False(t, status.Eligible) // no payout account connected
}

func TestConnectAndTriggerFlow(t *testing.T) {
	srv, store := testServer(t)
	userID := uuid.New()
	store.Ledgers[userID] = &models.EarningsLedger{UserID: userID, AvailableCents: 15000, Currency: "USD"}
	auth := bearerToken(t, userID, "user")

	connectBody := bytes.NewBufferString(`{"email":"creator@example.com"}`)
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/v1/payout-accounts/digital-wallet", connectBody)
	req.Header.Set("Authorization", auth)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	req, _ = http.NewRequest(http.MethodPost, srv.URL+"/v1/payouts/trigger", nil)
	req.Header.Set("Authorization", auth)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var outcome struct {
		Processed bool   `json:"processed"`
		Reason    string `json:"reason"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&outcome))
	require.True(t, outcome.Processed)
	require.Len(t, store.Transactions, 1)
}

func TestFraudWebhookSignature(t *testing.T) {
	srv, store := testServer(t)
	userID := uuid.New()
	store.Charges["ch_123"] = &models.Charge{UserID: userID, ExternalRef: "ch_123", AmountCents: 4200, Currency: "USD"}

	payload := `{"type":"dispute","data":{"event_id":"evt_1","charge_ref":"ch_123","reason":"fraudulent"}}`

	// Unsigned request is rejected.
	resp, err := http.Post(srv.URL+"/v1/webhooks/fraud", "application/json", bytes.NewBufferString(payload))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Empty(t, store.Alerts)

	mac := hmac.New(sha256.New, []byte(testHMACKey))
	mac.Write([]byte(payload))
	signature := "sha256=" + hex.EncodeToString(mac.Sum(nil))

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/v1/webhooks/fraud", bytes.NewBufferString(payload))
	req.Header.Set("X-Webhook-Signature", signature)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.Len(t, store.Alerts, 1)
	require.Equal(t, userID, store.Alerts[0].UserID)
	require.Equal(t, domain.RiskLevelHigh, store.Alerts[0].RiskLevel)
}
