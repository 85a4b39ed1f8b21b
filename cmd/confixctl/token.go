package main

import (
	"fmt"

	"confix/internal/platform/auth"

	"github.com/spf13/cobra"
)

func tokenCmd(load configLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue admin tokens and hash carrier callback tokens",
	}

	var subject, role string
	issue := &cobra.Command{
		Use:   "issue",
		Short: "Issue a signed admin access token",
		Long: `Issue a JWT for the admin API, signed with jwt.secret.

Examples:
  confixctl token issue --subject ops@example.com
  JWT_SECRET=... confixctl token issue --subject ci --role admin`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if subject == "" {
				return fmt.Errorf("--subject is required")
			}

			token, err := auth.NewTokenService(cfg.JWT).GenerateAccessToken(subject, role)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	issue.Flags().StringVar(&subject, "subject", "", "operator the token is issued to")
	issue.Flags().StringVar(&role, "role", auth.RoleAdmin, "role claim")

	hashCallback := &cobra.Command{
		Use:   "hash-callback [token]",
		Short: "Print the bcrypt hash to configure as carrier.callback_token_hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := auth.HashCallbackToken(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}

	cmd.AddCommand(issue, hashCallback)
	return cmd
}
