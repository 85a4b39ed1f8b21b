package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"confix/internal/api"
	"confix/internal/api/handlers"
	"confix/internal/api/middleware"
	"confix/internal/engine/payments"
	"confix/internal/engine/shipments"
	"confix/internal/engine/tracking"
	"confix/internal/engine/webhooks"
	"confix/internal/pkg/clientip"
	"confix/internal/pkg/logger"
	"confix/internal/pkg/ratelimit"
	"confix/internal/platform/audit"
	"confix/internal/platform/auth"
	"confix/internal/platform/config"
	"confix/internal/platform/database"
	"confix/internal/platform/repositories"
	"confix/internal/platform/secrets"
	"confix/migrations"

	"github.com/rs/zerolog/log"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	logger.Init(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	if err := database.Migrate(ctx, db, migrations.FS); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}

	secretStore, err := secrets.NewStore(db, cfg.Secrets.Key)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise secret store")
	}

	// Repositories
	quoteRepo := repositories.NewQuoteRepository(db)
	shipmentRepo := repositories.NewShipmentRepository(db)
	integrationRepo := repositories.NewIntegrationRepository(db)
	logRepo := repositories.NewWebhookLogRepository(db)
	blockRepo := repositories.NewIPBlockRepository(db)
	trackingRepo := repositories.NewTrackingRepository(db, cfg.Tracking.ViewRequestsPerMinute)

	// Services
	limiter := ratelimit.New()
	defer limiter.Stop()
	auditor := audit.NewLogger(logRepo)
	tokenSvc := auth.NewTokenService(cfg.JWT)
	receiver := payments.NewReceiver(quoteRepo, logRepo, cfg.Payments)
	dispatcher := webhooks.NewDispatcher(shipmentRepo, integrationRepo, logRepo, secretStore, cfg.Webhooks)
	carrierSvc := shipments.NewService(shipmentRepo)
	gateway := tracking.NewGateway(blockRepo, trackingRepo, logRepo, limiter, auditor, cfg.Tracking)

	ips, err := clientip.NewResolver(cfg.Tracking.TrustedProxyHeaders, cfg.Tracking.TrustedProxies)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid tracking.trusted_proxies")
	}
	rateLimiter := middleware.NewRateLimiter(limiter)
	for family, perMinute := range cfg.Server.RateLimits {
		rateLimiter = rateLimiter.WithLimit(family, perMinute)
	}

	deps := &api.Dependencies{
		PaymentWebhookHandler:  handlers.NewPaymentWebhookHandler(receiver),
		CarrierCallbackHandler: handlers.NewCarrierCallbackHandler(carrierSvc, dispatcher, auditor),
		TrackingHandler:        handlers.NewTrackingHandler(gateway),
		DispatchHandler:        handlers.NewDispatchHandler(dispatcher),
		IntegrationHandler:     handlers.NewIntegrationHandler(integrationRepo, secretStore),
		WebhookLogHandler:      handlers.NewWebhookLogHandler(logRepo),
		HealthHandler:          handlers.NewHealthHandler(db),
		MetricsHandler:         handlers.NewMetricsHandler(logRepo),
		AuthMiddleware:         middleware.NewAuthMiddleware(tokenSvc),
		RateLimiter:            rateLimiter,
		CarrierTokenHash:       cfg.Carrier.CallbackTokenHash,
		ClientIP:               ips,
		PaymentWebhookToken:    cfg.Payments.WebhookToken != "",
	}

	if cfg.JWT.Secret == "" {
		log.Warn().Msg("jwt.secret is empty; admin endpoints will reject every request")
	}
	if cfg.Payments.WebhookToken == "" {
		log.Warn().Msg("payments.webhook_token is empty; provider callbacks are not authenticated")
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      api.NewRouter(deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
