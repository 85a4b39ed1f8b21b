package main

import (
	"fmt"
	"os"

	"confix/internal/pkg/logger"
	"confix/internal/platform/config"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "confixctl",
		Short:         "Operator tooling for the confix payment pipeline",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/config.yaml", "path to config file")

	load := func() (*config.Config, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		logger.Init(cfg.Logging)
		return cfg, nil
	}

	rootCmd.AddCommand(migrateCmd(load))
	rootCmd.AddCommand(tokenCmd(load))
	rootCmd.AddCommand(retryCmd(load))
	rootCmd.AddCommand(secretCmd(load))

	return rootCmd
}

type configLoader func() (*config.Config, error)
