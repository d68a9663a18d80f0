package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/clefbot/clef/internal/config"
	"github.com/clefbot/clef/internal/db"
	"github.com/clefbot/clef/internal/logging"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log, err := logging.New(cfg.Logging)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			conn, err := db.Open(ctx, db.Config{DSN: cfg.DatabaseDSN})
			if err != nil {
				return err
			}
			defer conn.Close()

			if err := db.RunMigrations(ctx, conn, log); err != nil {
				return err
			}
			log.Info("database migrations up to date")
			return nil
		},
	}
}
