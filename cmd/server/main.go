package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/utafrali/EcommerceGo/storefront/internal/app"
	"github.com/utafrali/EcommerceGo/storefront/internal/config"
	"github.com/utafrali/EcommerceGo/storefront/pkg/logger"
)

func main() {
	// Load configuration from environment variables.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Initialize structured logger, optionally teeing into a rotating file.
	log, logFile := logger.NewWithFile("storefront", cfg.LogLevel, cfg.LogFileConfig())
	log.Info("starting storefront sync service",
		slog.String("environment", cfg.Environment),
		slog.Int("http_port", cfg.HTTPPort),
		slog.String("api_url", cfg.APIURL),
		slog.String("persistence", cfg.Persistence),
	)

	if err := run(cfg, log); err != nil {
		log.Error("application error", slog.String("error", err.Error()))
		_ = logFile.Close()
		os.Exit(1)
	}

	log.Info("storefront sync service stopped")
	_ = logFile.Close()
}

func run(cfg *config.Config, log *slog.Logger) error {
	// Create the application with all dependencies wired.
	application, err := app.NewApp(cfg, log)
	if err != nil {
		return err
	}

	// Create a context that is cancelled on SIGINT or SIGTERM.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Run the application. This blocks until shutdown.
	return application.Run(ctx)
}
