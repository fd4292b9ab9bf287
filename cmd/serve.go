package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"poe-router/internal/config"
	"poe-router/internal/provider"
	providerfactory "poe-router/internal/provider/factory"
	"poe-router/internal/router"
	"poe-router/internal/server"
)

func newServeCmd() *cobra.Command {
	var cfgPath string
	var overridePort int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("port") {
				if overridePort <= 0 || overridePort > 65535 {
					return fmt.Errorf("port override %d must be a valid TCP port", overridePort)
				}
				cfg.Server.Port = overridePort
			}

			slog.SetDefault(newLogger(cfg.Log))

			ctx := cmd.Context()
			registry := provider.NewRegistry()
			fallback, err := providerfactory.RegisterConfiguredProviders(ctx, cfg, registry)
			if err != nil {
				return err
			}

			rt := router.New(registry, router.Options{
				DefaultModel:       cfg.Poe.DefaultModel,
				DefaultTemperature: cfg.Poe.DefaultTemperature,
				AllowUnlistedBots:  cfg.Poe.AllowUnlistedBots,
				Fallback:           fallback,
			})

			srv, err := server.New(cfg, rt)
			if err != nil {
				return err
			}

			return srv.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&cfgPath, "config", "", "path to YAML configuration file (default $"+config.ConfigPathEnv+" or ./config.yaml)")
	cmd.Flags().IntVar(&overridePort, "port", 0, "override server port")
	return cmd
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
