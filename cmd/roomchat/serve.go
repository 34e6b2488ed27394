package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/roomchat/internal/app"
	"github.com/vovakirdan/roomchat/internal/config"
	"github.com/vovakirdan/roomchat/internal/log"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		addr       string
		logLevel   string
		logFormat  string
		storage    string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the chat room server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			bootLogger := log.New(logLevel, log.FormatConsole)

			cfg, path, err := config.Load(bootLogger, configPath)
			if err != nil {
				return err
			}

			// Flags beat the config file.
			if addr != "" {
				cfg.Addr = addr
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			if logFormat != "" {
				cfg.LogFormat = logFormat
			}
			if storage != "" {
				cfg.Storage = storage
			}

			logger := log.New(cfg.LogLevel, cfg.LogFormat)
			logger.Info().Str("config", path).Str("addr", cfg.Addr).Msg("starting roomchat server")

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			application, err := app.New(&cfg, logger)
			if err != nil {
				return err
			}

			if err := application.Run(ctx); err != nil {
				return err
			}
			logger.Info().Msg("server stopped")
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address (overrides config)")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&logFormat, "log-format", "", "log output: console or json (overrides config)")
	cmd.Flags().StringVar(&storage, "storage", "", "storage backend: pebble, sqlite, memory (overrides config)")

	return cmd
}
