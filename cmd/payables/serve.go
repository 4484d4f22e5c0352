package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/Prygunov-Andrei/finance-sub003/internal/container"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, CRM webhook and background workers",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadRuntime()
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger.Info("Starting payables service",
		zap.String("version", version),
		zap.String("driver", cfg.Database.Driver),
		zap.Int("port", cfg.Server.Port))

	if cfg.Logger.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := container.NewContainer(cfg, logger)
	if err != nil {
		return err
	}
	if err := c.Start(ctx); err != nil {
		return fmt.Errorf("failed to start container: %w", err)
	}

	serveErr := c.NewHTTPServer().Start(ctx)
	if serveErr != nil && ctx.Err() == nil {
		logger.Error("HTTP server failed", zap.Error(serveErr))
	}

	logger.Info("Shutting down")
	closeErr := c.Close()

	if serveErr != nil {
		return serveErr
	}
	return closeErr
}

// runOneShot starts a container without workers, runs fn and closes it
func runOneShot(cmd *cobra.Command, fn func(ctx context.Context, c *container.Container) error) error {
	cfg, logger, err := loadRuntime()
	if err != nil {
		return err
	}
	defer logger.Sync()

	c, err := container.NewContainer(cfg, logger, container.WithoutWorkers())
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if err := c.Start(ctx); err != nil {
		return fmt.Errorf("failed to start container: %w", err)
	}
	defer c.Close()

	return fn(ctx, c)
}
