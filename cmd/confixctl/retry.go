package main

import (
	"encoding/json"
	"fmt"

	"confix/internal/engine/webhooks"
	"confix/internal/platform/database"
	"confix/internal/platform/repositories"
	"confix/internal/platform/secrets"
	"confix/internal/workers"
	"confix/migrations"

	"github.com/spf13/cobra"
)

func retryCmd(load configLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "retry",
		Short: "Drive the auto-dispatch retry worker",
	}

	once := &cobra.Command{
		Use:   "once",
		Short: "Run a single retry pass and print its stats",
		Long: `Run one pass of the auto-dispatch retry worker and exit.

Meant for an external scheduler (cron, Kubernetes CronJob) when the long-running worker is not deployed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}

			db, err := database.NewDB(cfg.Database)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			if err := database.Migrate(cmd.Context(), db, migrations.FS); err != nil {
				return err
			}

			secretStore, err := secrets.NewStore(db, cfg.Secrets.Key)
			if err != nil {
				return err
			}

			logRepo := repositories.NewWebhookLogRepository(db)
			dispatcher := webhooks.NewDispatcher(
				repositories.NewShipmentRepository(db),
				repositories.NewIntegrationRepository(db),
				logRepo,
				secretStore,
				cfg.Webhooks,
			)

			stats, err := workers.NewRetryWorker(logRepo, dispatcher, cfg.Webhooks).RunOnce(cmd.Context())
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(stats)
		},
	}

	cmd.AddCommand(once)
	return cmd
}
