package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ingatd/internal/backend"
	"github.com/fyrsmithlabs/ingatd/internal/config"
	"github.com/fyrsmithlabs/ingatd/internal/domain"
	"github.com/fyrsmithlabs/ingatd/internal/server"
	"github.com/fyrsmithlabs/ingatd/internal/store"
	"github.com/fyrsmithlabs/ingatd/internal/supervisor"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the owning context service",
	Long: `Run the HTTP service that owns the embedded store. Exactly one serve
process can hold the store's write lock; a second attempt fails fast instead
of corrupting data.`,
	RunE: runServe,
}

var superviseCmd = &cobra.Command{
	Use:   "supervise",
	Short: "Monitor the service and restart it when it stops answering",
	Long: `Poll the service health endpoint and restart the service after a run of
consecutive failures, with exponential backoff between restart attempts. The
service is spawned detached so it survives this terminal.`,
	RunE: runSupervise,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting ingatd",
		zap.String("addr", cfg.Service.Addr()),
		zap.String("data_dir", cfg.DataDir),
		zap.String("version", version),
	)

	st, err := store.Open(cfg.StorePath(), logger)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			return fmt.Errorf("cannot serve: %w", err)
		}
		return err
	}

	settings, err := config.LoadSettings(cfg.SettingsPath(), cfg.Embedding)
	if err != nil {
		_ = st.Close()
		return err
	}

	local, err := backend.NewLocal(st, settings, logger)
	if err != nil {
		_ = st.Close()
		return err
	}

	srv, err := server.NewServer(local, logger, &server.Config{
		Host:    cfg.Service.Host,
		Port:    cfg.Service.Port,
		DataDir: cfg.DataDir,
	})
	if err != nil {
		_ = local.Close()
		return err
	}

	service := server.NewService(srv, local, logger)

	ctx := signalContext(cmd.Context(), logger)
	return service.Run(ctx)
}

func runSupervise(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting supervisor",
		zap.String("service", cfg.Service.BaseURL()),
		zap.Duration("poll_interval", cfg.Supervisor.PollInterval.Duration()),
		zap.Int("failure_threshold", cfg.Supervisor.FailureThreshold),
	)

	sup := supervisor.New(cfg, logger)

	ctx := signalContext(cmd.Context(), logger)
	if err := sup.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// signalContext cancels the returned context on SIGINT or SIGTERM.
func signalContext(parent context.Context, logger *zap.Logger) context.Context {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down gracefully", zap.String("signal", sig.String()))
		cancel()
	}()

	return ctx
}
