package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nhle/supertodo/internal/api"
	"github.com/nhle/supertodo/internal/service"
	"github.com/nhle/supertodo/internal/store"
	"github.com/nhle/supertodo/internal/telemetry"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the task API until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx)
		},
	}
	cmd.Flags().StringVar(&addrFlag, "addr", "", "listen address (overrides server.addr)")
	return cmd
}

func runServe(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Log.Level)

	shutdownTelemetry, err := telemetry.Init(ctx, cfg.Telemetry, "supertodo", Version)
	if err != nil {
		return err
	}

	st, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		_ = shutdownTelemetry(ctx)
		return fmt.Errorf("opening store %s: %w", cfg.Store.Path, err)
	}
	defer st.Close()

	svc := service.New(st, logger, service.OptionsFromConfig(cfg.Tasks))
	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      api.NewHandler(svc, logger).Routes(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSec) * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("supertodo listening", "addr", cfg.Server.Addr, "db", cfg.Store.Path, "version", Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		sctx, cancel := context.WithTimeout(context.Background(),
			time.Duration(cfg.Server.ShutdownTimeoutSec)*time.Second)
		defer cancel()

		return errors.Join(srv.Shutdown(sctx), shutdownTelemetry(sctx))
	})

	return g.Wait()
}
