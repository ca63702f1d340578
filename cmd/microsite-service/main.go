package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"microsite/internal/config"
	"microsite/internal/constants"
	"microsite/internal/logger"
	"microsite/pkg/logging"
)

var (
	configFile string
)

// @title           Microsite Service API
// @version         1.0
// @description     Early access signups, announcements feed and page analytics for the marketing microsite

// @contact.name   API Support
// @contact.url    http://www.example.com/support
// @contact.email  support@example.com

// @host      localhost:8080
// @BasePath  /

// @schemes   http https

func main() {
	rootCmd := &cobra.Command{
		Use:   constants.ServiceName,
		Short: "Marketing microsite backend",
		Long:  "Serves the microsite, accepts early access signups, renders announcements and collects page analytics",
		RunE:  serveCmd().RunE,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (required)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(archiveCmd())
	rootCmd.AddCommand(renderFeedCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig resolves the config path from the flag or CONFIG_FILE and builds
// the service logger.
func loadConfig() (*config.Config, logger.Logger, error) {
	earlyLog := logging.NewEarlyLog()

	if configFile == "" {
		configFile = os.Getenv("CONFIG_FILE")
		if configFile == "" {
			earlyLog.Error("Config file is required. Use --config flag or CONFIG_FILE environment variable")
			return nil, nil, fmt.Errorf("config file is required")
		}
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		earlyLog.Error("Failed to load config: %v", err)
		return nil, nil, err
	}

	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		earlyLog.Error("Failed to init logger: %v", err)
		return nil, nil, err
	}
	return cfg, log, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the microsite service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			log.InfowCtx(ctx, "Starting Microsite Service",
				"environment", cfg.Site.Environment,
				"version", cfg.Site.Version,
			)

			app := NewApp(cfg, log)
			if err := app.Initialize(ctx); err != nil {
				log.ErrorwCtx(ctx, "Failed to initialize application", "error", err)
				return err
			}

			if err := app.Run(ctx); err != nil {
				log.ErrorwCtx(ctx, "Application error", "error", err)
				return err
			}
			return nil
		},
	}
}

func archiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "archive",
		Short: "Archive analytics events from the broker into MongoDB",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			worker := NewArchiveWorker(cfg, log)
			if err := worker.Initialize(ctx); err != nil {
				log.ErrorwCtx(ctx, "Failed to initialize archive worker", "error", err)
				return err
			}

			if err := worker.Run(ctx); err != nil {
				log.ErrorwCtx(ctx, "Archive worker error", "error", err)
				return err
			}
			return nil
		},
	}
}

func renderFeedCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "render-feed",
		Short: "Render the announcements file once and print the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			defer log.Sync()

			return renderFeed(cmd.Context(), cfg, log, format, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&format, "format", "html", "Output format: html, json or yaml")
	return cmd
}
