package main

import (
	"context"
	"time"

	"recruit-intake/internal/common/database"
	"recruit-intake/internal/common/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the schools and vacancies schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
		defer zapLog.Sync()

		ctx := context.Background()

		var pg *database.PostgresClient
		err = retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return pg.Ping(ctx)
		}, 5, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			return err
		}
		defer pg.Close()

		if err := database.Migrate(ctx, pg.GetDB()); err != nil {
			return err
		}
		zapLog.Info("Schema applied", zap.String("database", cfg.Database.Postgres.Database))
		return nil
	},
}
