package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/goodtune/focuswatch/internal/systemd"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve statistics from an existing activity log",
	Long: `Start the read-only query API (and metrics, when enabled) without
tracking windows. Focus-mode and live tracker routes are not available.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	env, err := loadEnvironment(os.Stdout, true)
	if err != nil {
		return err
	}
	defer env.close()

	logger := env.logger
	log.Logger = logger

	if !env.cfg.API.Enabled {
		return fmt.Errorf("api.enabled is false, nothing to serve")
	}

	sdListeners, err := systemd.GetListeners()
	if err != nil {
		return fmt.Errorf("failed to get systemd listeners: %w", err)
	}

	srv, err := startServers(env, nil, sdListeners)
	if err != nil {
		return err
	}

	logger.Info().
		Str("version", version).
		Str("storage", env.cfg.Storage.Type).
		Msgf("Serving statistics on http://%s:%d/api", env.cfg.API.BindAddress, env.cfg.API.Port)

	if err := systemd.NotifyReady(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd ready notification")
	}
	notifyStatus(logger, "Serving statistics (read-only)")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Info().Msg("Shutdown signal received, gracefully stopping...")
	if err := systemd.NotifyStopping(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd stopping notification")
	}
	srv.stop(logger)
	return nil
}
