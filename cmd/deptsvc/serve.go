package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/jbweber/homelab/deptsvc/internal/api"
	"github.com/jbweber/homelab/deptsvc/internal/observability"
	"github.com/jbweber/homelab/deptsvc/internal/repository"
	"github.com/jbweber/homelab/deptsvc/internal/service"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cmd.Flags())
		},
	}
}

func serve(ctx context.Context, flags *pflag.FlagSet) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}

	logger, err := observability.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ds, err := cfg.InitializeDatabase(ctx)
	if err != nil {
		logger.Error("failed to initialize database", zap.Error(err))
		return err
	}
	defer func() {
		if err := ds.Close(); err != nil {
			logger.Warn("failed to close database", zap.Error(err))
		}
	}()

	repo := repository.NewDepartmentRepository(ds)
	svc := service.NewDepartmentService(repo, logger)
	router := api.NewRouter(api.NewAPI(svc, cfg.Greeting, logger))

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting department service",
			zap.String("addr", srv.Addr),
			zap.String("driver", cfg.Database.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", zap.Error(err))
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down", zap.Duration("timeout", cfg.Server.ShutdownTimeout()))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
		return err
	}
	return nil
}
