package main

import (
	"fmt"

	"github.com/Prygunov-Andrei/finance-sub003/internal/config"
	"github.com/Prygunov-Andrei/finance-sub003/pkg/database"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadRuntime()
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Database.Driver != config.DriverSQLite {
		return fmt.Errorf("migrations apply to the sqlite driver only, configured driver is %q", cfg.Database.Driver)
	}

	sqlDB, err := database.Open(database.Config{
		Path:         cfg.Database.Path,
		MaxOpenConns: 1,
		BusyTimeout:  cfg.Database.BusyTimeout,
	}, logger)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	migrator := database.NewMigrator(sqlDB, logger)
	if err := migrator.Up(); err != nil {
		return err
	}

	version, dirty, err := migrator.Version()
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Schema version %d (dirty: %t)\n", version, dirty)
	return nil
}
