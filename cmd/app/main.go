// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"saas-subscription-api/internal/config"
	"saas-subscription-api/internal/infra/api"
	"saas-subscription-api/internal/infra/catalog"
	pg "saas-subscription-api/internal/infra/db/postgres"
	"saas-subscription-api/internal/infra/logging"
	"saas-subscription-api/internal/infra/metrics"
	"saas-subscription-api/internal/infra/payment"
	red "saas-subscription-api/internal/infra/redis"
	"saas-subscription-api/internal/infra/sched"
	"saas-subscription-api/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (test-verify route, unsigned webhooks)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("developer mode enabled")
	}

	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connect failed")
	}
	defer pool.Close()

	// ---- Redis (optional: lock + login rate limit) ----
	var limiter *red.RateLimiter
	var locker red.Locker
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connect failed")
		}
		defer redisClient.Close()
		limiter = red.NewRateLimiter(redisClient)
		locker = red.NewLocker(redisClient)
	} else {
		logger.Warn().Msg("redis.url not set; reference locking and login rate limiting disabled")
	}

	// ---- Repositories ----
	userRepo := pg.NewPostgresUserRepo(pool)
	txRepo := pg.NewTransactionRepo(pool)
	tm := pg.NewTxManager(pool)
	plans := catalog.NewStaticCatalog()

	// ---- Gateway ----
	gateway := payment.NewPaystackGateway(&cfg.Paystack, cfg.Runtime.Dev)

	// ---- Use cases ----
	userUC := usecase.NewUserUseCase(userRepo)
	callbackURL := cfg.Server.BaseURL + "/api/v1/subscriptions/verify"
	subUC := usecase.NewSubscriptionUseCase(userRepo, txRepo, plans, gateway, tm, callbackURL, cfg.Scheduler.ExpirySweepBatchSize, logger)
	notifUC := usecase.NewNotificationUseCase(userRepo, logger)

	// ---- Workers ----
	expiry := sched.NewExpiryWorker(cfg.Scheduler.ExpiryInterval, subUC, logger)
	go func() { _ = expiry.Run(ctx) }()
	notify := sched.NewNotificationWorker(cfg.Scheduler.NotifyInterval, cfg.Scheduler.NotifyWithinDays, notifUC, logger)
	go func() { _ = notify.Run(ctx) }()
	reconciler := sched.NewPaymentReconciler(subUC, txRepo, cfg.Scheduler.ReconcileInterval, cfg.Scheduler.ReconcileStaleAfter, cfg.Scheduler.ReconcileBatchLimit, logger)
	go func() { _ = reconciler.Run(ctx) }()

	// ---- HTTP ----
	srv := api.NewServer(cfg, userUC, subUC, plans, gateway, limiter, locker, logger)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown failed")
	}
}
