package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/theauditor/loremshelf/internal/config"
	"github.com/theauditor/loremshelf/internal/ledger"
	"github.com/theauditor/loremshelf/pkg/logger"
)

func migrateCmd(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply ledger database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configFile)
			if err != nil {
				return err
			}
			log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

			if cfg.Ledger.Driver == ledger.DriverNone {
				return errors.New("ledger is disabled (LEDGER_DRIVER=none), nothing to migrate")
			}

			l, err := ledger.Open(context.Background(), cfg.Ledger.Driver, cfg.Ledger.DSN, log)
			if err != nil {
				return fmt.Errorf("open ledger: %w", err)
			}
			defer l.Close()

			if err := l.RunMigrations(cfg.Ledger.MigrationsPath); err != nil {
				return err
			}
			log.Info("ledger migrations applied", "driver", cfg.Ledger.Driver, "path", cfg.Ledger.MigrationsPath)
			return nil
		},
	}
}
