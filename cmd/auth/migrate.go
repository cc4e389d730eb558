package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/Skotchmaster/auth_service/internal/migrations"
	"github.com/Skotchmaster/auth_service/pkg/db"
)

func NewMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE:  runMigrate,
	}
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, l, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	gdb, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").Wrap(err)
	}
	defer sqlDB.Close()

	l.Info("migrations_started")
	if err := migrations.Up(ctx, sqlDB); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "run migrations").Wrap(err)
	}
	l.Info("migrations_completed")
	return nil
}
