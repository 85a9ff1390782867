package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/dcmetro"
	"github.com/jpalmerr/dcmetro/config"
)

const (
	shutdownTimeout = 10 * time.Second
)

// newLogger creates a JSON logger for CLI use.
func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// serveCmd starts polling and the dashboard server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start polling and the dashboard server",
	Long: `Start polling WMATA and serving the dashboard.

The server will:
  - Load configuration from the specified YAML file
  - Start one polling session per configured session
  - Serve the dashboard UI and SSE API on the configured port

The server runs until interrupted (Ctrl+C) or receives SIGTERM.

Example:
  dcmetro serve -c config.yaml
  dcmetro serve --config /etc/dcmetro/config.yaml --env-file /etc/dcmetro/.env`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	serveCmd.Flags().Bool("debug", false, "log every poll at debug level")
	_ = serveCmd.MarkFlagRequired("config")
}

func runServe(cmd *cobra.Command, args []string) error {
	debug, _ := cmd.Flags().GetBool("debug")
	logger := newLogger(debug)

	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	sessions, err := config.BuildSessions(cfg)
	if err != nil {
		return fmt.Errorf("failed to build sessions: %w", err)
	}
	logger.Info("config loaded", "sessions", len(sessions), "port", cfg.Port)

	opts := append(config.BoardOptions(cfg),
		dcmetro.WithSessions(sessions...),
		dcmetro.WithLogger(logger),
	)
	board, err := dcmetro.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create board: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		errChan <- board.Start(ctx)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		logger.Info("shutdown complete")
		return nil

	case <-ctx.Done():
		select {
		case err := <-errChan:
			if err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			logger.Info("shutdown complete")
			return nil
		case <-time.After(shutdownTimeout):
			logger.Warn("shutdown timed out",
				"timeout", shutdownTimeout.String(),
				"action", "forcing exit",
			)
			return nil
		}
	}
}
