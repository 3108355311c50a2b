package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/marketloop/earnings/internal/api"
	"github.com/marketloop/earnings/internal/api/middleware"
	"github.com/marketloop/earnings/internal/config"
	"github.com/marketloop/earnings/internal/consumer"
	"github.com/marketloop/earnings/internal/db"
	"github.com/marketloop/earnings/internal/fraud"
	"github.com/marketloop/earnings/internal/locker"
	"github.com/marketloop/earnings/internal/observability"
	"github.com/marketloop/earnings/internal/payout"
	"github.com/marketloop/earnings/internal/rail"
	"github.com/marketloop/earnings/internal/repository"
	"github.com/marketloop/earnings/internal/retry"
	"github.com/marketloop/earnings/internal/risk"
	"github.com/marketloop/earnings/internal/worker"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Run bootstraps the HTTP server, background workers and the fraud-event
// consumer, blocking until shutdown.
func Run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	observability.Init()
	middleware.SetJWTSecret(cfg.JWTSecret)
	middleware.SetJWTValidation(cfg.JWTIssuer, cfg.JWTAudience)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	redisClient, err := newRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}

	var locks locker.UserLocker
	var redisCmd redis.Cmdable
	if redisClient != nil {
		defer redisClient.Close()
		redisCmd = redisClient
		locks = locker.NewRedisLocker(redisClient, cfg.LockTTL)
	} else {
		// No Redis means a single-instance deployment; an in-process lock
		// still keeps concurrent payout attempts per user exclusive.
		logger.Warn("redis unavailable, using in-process payout locks")
		locks = locker.NewMemoryLocker()
	}

	repo := repository.NewRepository(pool)
	provider := cfg.Provider()

	transport := rail.NewMockTransport()
	registry := rail.NewRegistry(
		rail.NewCardAcquirerAdapter(transport, provider, rail.WithTimeout(cfg.TransferTimeout)),
		rail.NewDigitalWalletAdapter(transport, provider, rail.WithTimeout(cfg.TransferTimeout)),
		rail.NewBankTransferAdapter(transport, provider, rail.WithTimeout(cfg.TransferTimeout)),
		rail.NewGlobalPayoutAdapter(transport, provider, rail.WithTimeout(cfg.TransferTimeout)),
	)

	processor := payout.NewProcessor(repo, provider, registry, locks)
	accounts := payout.NewAccountManager(repo, provider, registry)
	riskEngine := risk.NewEngine(repo)
	ingestor := fraud.NewIngestor(repo, chargeResolver{repo})

	sweeper := worker.NewPayoutSweeper(processor, provider, repo).
		WithInterval(cfg.PayoutSweepInterval).
		WithBatchSize(cfg.PayoutBatchSize)
	stopSweeper := sweeper.Run(ctx)
	logger.Info("payout sweeper started",
		zap.Duration("interval", cfg.PayoutSweepInterval),
		zap.Int32("batch", cfg.PayoutBatchSize),
	)

	settler := worker.NewSettlementWorker(repo).WithInterval(cfg.ReconciliationInterval)
	stopSettler := settler.Run(ctx)
	logger.Info("settlement worker started", zap.Duration("interval", cfg.ReconciliationInterval))

	if cfg.AMQPURL != "" {
		fraudConsumer := consumer.NewFraudConsumer(cfg.AMQPURL, cfg.FraudQueue, ingestor)
		go func() {
			if err := fraudConsumer.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("fraud consumer stopped", zap.Error(err))
			}
		}()
		logger.Info("fraud consumer started", zap.String("queue", cfg.FraudQueue))
	}

	router := &api.Router{
		DB:                   pool,
		Redis:                redisCmd,
		Logger:               logger,
		Processor:            processor,
		Accounts:             accounts,
		Risk:                 riskEngine,
		Ingestor:             ingestor,
		History:              repo,
		WebhookHMACKey:       cfg.WebhookHMACKey,
		WebhookSkipSignature: cfg.WebhookSkipSignature,
		PublicRateLimitRPS:   cfg.PublicRateLimitRPS,
		AuthRateLimitRPS:     cfg.AuthRateLimitRPS,
	}

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("port", cfg.HTTPPort))
		serverErr <- server.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("stopping background workers")
	stopSweeper()
	stopSettler()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return nil
}

// chargeResolver adapts the repository's charge lookup to the fraud
// ingestor's resolver interface.
type chargeResolver struct {
	repo *repository.Repository
}

func (c chargeResolver) ResolveCharge(ctx context.Context, chargeRef string) (*fraud.Charge, error) {
	charge, err := c.repo.GetChargeByRef(ctx, chargeRef)
	if err != nil {
		return nil, err
	}
	return &fraud.Charge{
		UserID:      charge.UserID,
		AmountCents: charge.AmountCents,
		Currency:    charge.Currency,
	}, nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	switch strings.ToLower(level) {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info", "":
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return cfg.Build()
}

// newRedisClient returns nil without error when Redis is unreachable; the
// caller falls back to in-process locking.
func newRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	err = retry.Do(ctx, retry.Policy{Attempts: 3, Base: 500 * time.Millisecond, Max: 2 * time.Second}, func(ctx context.Context) error {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		return client.Ping(pingCtx).Err()
	})
	if err != nil {
		client.Close()
		zap.L().Warn("redis ping failed", zap.Error(err))
		return nil, nil
	}
	return client, nil
}
