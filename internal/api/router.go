package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/marketloop/earnings/internal/api/handler"
	"github.com/marketloop/earnings/internal/api/middleware"
	"github.com/marketloop/earnings/internal/api/spec"
	"github.com/marketloop/earnings/internal/fraud"
	"github.com/marketloop/earnings/internal/payout"
	"github.com/marketloop/earnings/internal/risk"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Router assembles the HTTP surface from the already-wired core components.
type Router struct {
	DB        *pgxpool.Pool
	Redis     redis.Cmdable
	Logger    *zap.Logger
	Processor *payout.Processor
	Accounts  *payout.AccountManager
	Risk      *risk.Engine
	Ingestor  *fraud.Ingestor
	History   handler.PayoutHistoryStore

	WebhookHMACKey       string
	WebhookSkipSignature bool
	PublicRateLimitRPS   int
	AuthRateLimitRPS     int
}

func (api *Router) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.TraceMiddleware)
	r.Use(middleware.RecoverMiddleware(api.Logger))
	r.Use(middleware.LoggingMiddleware(api.Logger))
	r.Use(middleware.MetricsMiddleware)

	payoutHandler := handler.NewPayoutHandler(api.Processor, api.History)
	accountHandler := handler.NewAccountHandler(api.Accounts)
	transferHandler := handler.NewTransferHandler(api.Processor)
	riskHandler := handler.NewRiskHandler(api.Risk)
	webhookHandler := handler.NewWebhookHandler(api.Ingestor, api.WebhookHMACKey, api.WebhookSkipSignature)
	healthHandler := handler.NewHealthHandler(api.DB, api.Redis)

	// Public routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.PublicRateLimiter(api.PublicRateLimitRPS))
		r.Get("/healthz", healthHandler.Live)
		r.Get("/readyz", healthHandler.Ready)
		r.Get("/v1/openapi.yaml", spec.OpenAPIHandler())
		r.Post("/v1/webhooks/fraud", webhookHandler.HandleFraudEvent)
	})

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware)
		r.Use(middleware.AuthRateLimiter(api.AuthRateLimitRPS))

		r.Get("/v1/payouts/status", payoutHandler.GetStatus)
		r.Put("/v1/payouts/threshold", payoutHandler.UpdateThreshold)
		r.Post("/v1/payouts/trigger", payoutHandler.Trigger)
		r.Get("/v1/payouts/history", payoutHandler.ListHistory)

		r.Post("/v1/payout-accounts/card-acquirer", accountHandler.ConnectCardAcquirer)
		r.Post("/v1/payout-accounts/digital-wallet", accountHandler.ConnectDigitalWallet)
		r.Post("/v1/payout-accounts/bank-transfer", accountHandler.ConnectBankTransfer)
		r.Post("/v1/payout-accounts/global-payout", accountHandler.ConnectGlobalPayout)
		r.Delete("/v1/payout-accounts", accountHandler.Disconnect)

		r.Post("/v1/wallet/transfer", transferHandler.TransferToWallet)
		r.Post("/v1/risk/assess", riskHandler.Assess)

		r.With(middleware.RequireRole("admin")).
			Put("/v1/admin/payout-accounts/status", accountHandler.SetStatus)
	})

	return r
}
