package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"civicsync-issues/config"
	"civicsync-issues/lifecycle"
	"civicsync-issues/middlewares"
	"civicsync-issues/models"
	"civicsync-issues/routes"
	"civicsync-issues/store"

	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if port != "" {
				cfg.Port = port
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "listen port (overrides PORT)")
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config) error {
	logger := config.NewLogger(os.Stderr, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	deps := routes.Deps{
		Config: cfg,
		Store:  st,
		Issues: lifecycle.NewService(st, st, st, lifecycle.WithLogger(logger)),
		Logger: logger,
	}

	if cfg.IssueRateLimit > 0 && cfg.RedisAddress != "" {
		rdb, err := config.ConnectRedis(ctx, cfg)
		if err != nil {
			return err
		}
		defer rdb.Close()
		deps.RateCounter = &middlewares.RedisRateCounter{Client: rdb}
	} else {
		logger.Warn("issue rate limiting disabled", "limit", cfg.IssueRateLimit)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           routes.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "port", cfg.Port, "storage", cfg.Storage)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// openStore returns the configured backend and a function releasing it.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, func(), error) {
	if cfg.Storage == config.StorageMemory {
		slog.Warn("using in-memory storage, data is lost on restart")
		return store.NewMemory(), func() {}, nil
	}

	client, db, err := config.ConnectDB(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := client.Disconnect(context.Background()); err != nil {
			slog.Error("disconnect MongoDB", "error", err)
		}
	}
	if err := models.EnsureIndexes(ctx, db); err != nil {
		closeFn()
		return nil, nil, err
	}
	return store.NewMongo(db), closeFn, nil
}
