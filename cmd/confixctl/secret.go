package main

import (
	"fmt"
	"io"
	"strings"

	"confix/internal/platform/database"
	"confix/internal/platform/secrets"
	"confix/migrations"

	"github.com/spf13/cobra"
)

func secretCmd(load configLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage encrypted integration secrets",
	}

	seal := &cobra.Command{
		Use:   "seal",
		Short: "Encrypt a secret read from stdin and print its reference",
		Long: `Encrypt an integration bearer secret and print the reference to store on the integration.

The plaintext is read from stdin so it never appears in shell history:
  printf '%s' "$ERP_TOKEN" | confixctl secret seal`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}

			raw, err := io.ReadAll(io.LimitReader(cmd.InOrStdin(), 64<<10))
			if err != nil {
				return fmt.Errorf("read secret: %w", err)
			}
			plaintext := strings.TrimRight(string(raw), "\r\n")

			db, err := database.NewDB(cfg.Database)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			if err := database.Migrate(cmd.Context(), db, migrations.FS); err != nil {
				return err
			}

			store, err := secrets.NewStore(db, cfg.Secrets.Key)
			if err != nil {
				return err
			}
			ref, err := store.Seal(cmd.Context(), plaintext)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ref)
			return nil
		},
	}

	cmd.AddCommand(seal)
	return cmd
}
