package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/polisai/polis-cipher/pkg/config"
	"github.com/polisai/polis-cipher/pkg/logging"
	"github.com/polisai/polis-cipher/pkg/server"
	"github.com/polisai/polis-cipher/pkg/telemetry"
)

type serveOptions struct {
	configPath string
	addr       string
	watch      bool
}

func (a *app) serveCmd() *cobra.Command {
	opts := serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the codec HTTP service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.runServe(ctx, cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Path to configuration file (YAML or TOML)")
	cmd.Flags().StringVar(&opts.addr, "addr", "", "Listen address (overrides config)")
	cmd.Flags().BoolVar(&opts.watch, "watch", true, "Reload configuration when the file changes")
	return cmd
}

// loadServeConfig loads the file and applies command line overrides.
func loadServeConfig(cmd *cobra.Command, opts serveOptions, level, format string) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.addr != "" {
		cfg.Server.Address = opts.addr
	}
	// explicit flags win over the file
	if cmd.Flags().Changed("log-level") {
		cfg.Logging.Level = level
	}
	if cmd.Flags().Changed("log-format") {
		cfg.Logging.Format = format
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (a *app) runServe(ctx context.Context, cmd *cobra.Command, opts serveOptions) error {
	cfg, err := loadServeConfig(cmd, opts, a.logLevel, a.logFormat)
	if err != nil {
		return err
	}

	logger := logging.NewLogger(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cmd.ErrOrStderr(),
	})

	shutdownTelemetry, err := telemetry.SetupProvider(ctx, telemetry.Config{
		ServiceName: cfg.Telemetry.ServiceName,
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		Environment: cfg.Telemetry.Environment,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     cfg.Telemetry.Headers,
	})
	if err != nil {
		return fmt.Errorf("failed to set up telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Warn("Telemetry shutdown failed", "error", err)
		}
	}()

	srv, err := server.New(ctx, server.Options{Config: cfg, Logger: logger})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	if opts.watch && opts.configPath != "" {
		watcher, err := config.NewWatcher(opts.configPath, func(next *config.Config) error {
			if opts.addr != "" {
				next.Server.Address = opts.addr
			}
			return srv.Reload(ctx, next)
		}, logger)
		if err != nil {
			return fmt.Errorf("failed to watch config: %w", err)
		}
		if err := watcher.Start(ctx); err != nil {
			return fmt.Errorf("failed to watch config: %w", err)
		}
		defer func() { _ = watcher.Stop() }()
	}

	logger.Info("Starting polis-cipher",
		"addr", cfg.Server.Address,
		"config", opts.configPath,
		"keys", len(cfg.Keys),
	)

	if err := srv.Start(ctx); err != nil {
		return err
	}
	logger.Info("Server stopped")
	return nil
}
