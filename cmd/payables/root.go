package main

import (
	"fmt"
	"os"

	"github.com/Prygunov-Andrei/finance-sub003/internal/config"
	"github.com/Prygunov-Andrei/finance-sub003/pkg/utils"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var version = "1.0.0"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "payables",
	Short: "Accounts payable invoice lifecycle service",
	Long: `payables tracks supplier invoices from intake through approval to payment.

Configuration is read from the YAML file given by --config, a .env file in the
working directory and PAYABLES_* environment variables, in increasing priority.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/config.yaml", "Path to the YAML configuration file")
}

// loadRuntime loads configuration and builds the logger shared by all commands
func loadRuntime() (*config.Config, *zap.Logger, error) {
	path := configPath
	if _, err := os.Stat(path); os.IsNotExist(err) && !rootCmd.PersistentFlags().Changed("config") {
		path = ""
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return cfg, logger, nil
}
