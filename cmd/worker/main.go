package main

import (
	"context"
	"flag"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"confix/internal/engine/webhooks"
	"confix/internal/pkg/logger"
	"confix/internal/platform/config"
	"confix/internal/platform/database"
	"confix/internal/platform/repositories"
	"confix/internal/platform/secrets"
	"confix/internal/workers"
	"confix/migrations"

	"github.com/rs/zerolog/log"
)

// Tracking rate windows are per minute; an hour of history is more than the view ever reads.
const rateWindowRetention = time.Hour

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	logger.Init(cfg.Logging)
	log.Info().Msg("starting confix background workers")

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

	logRepo := repositories.NewWebhookLogRepository(db)
	dispatcher := webhooks.NewDispatcher(
		repositories.NewShipmentRepository(db),
		repositories.NewIntegrationRepository(db),
		logRepo,
		secretStore,
		cfg.Webhooks,
	)
	retry := workers.NewRetryWorker(logRepo, dispatcher, cfg.Webhooks)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		workers.Every(ctx, "webhook_retry", cfg.Webhooks.Interval, func(ctx context.Context) error {
			stats, err := retry.RunOnce(ctx)
			if stats.Picked > 0 {
				log.Info().
					Int("picked", stats.Picked).
					Int("completed", stats.Completed).
					Int("retrying", stats.Retrying).
					Int("exhausted", stats.Exhausted).
					Msg("retry pass finished")
			}
			return err
		})
	}()

	go func() {
		defer wg.Done()
		workers.Every(ctx, "tracking_rate_prune", 10*time.Minute,
			workers.PruneTrackingWindows(repositories.NewTrackingRepository(db, cfg.Tracking.ViewRequestsPerMinute), rateWindowRetention))
	}()

	wg.Wait()
	log.Info().Msg("workers stopped")
}
