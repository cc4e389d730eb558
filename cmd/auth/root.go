package main

import (
	"log/slog"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/Skotchmaster/auth_service/internal/config"
	"github.com/Skotchmaster/auth_service/pkg/logging"
)

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "auth",
		Short:        "Credential-based authentication service",
		SilenceUsage: true,
	}
	config.BindFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewSeedAdminCmd())
	return cmd
}

// bootstrap loads configuration and builds the process logger.
func bootstrap(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, nil, oops.Code("CONFIG_INVALID").With("operation", "load config").Wrap(err)
	}
	l := logging.New(cfg.LogLevel).With("service", "auth", "env", cfg.Env)
	slog.SetDefault(l)
	cfg.LogWarnings(l)
	return cfg, l, nil
}
