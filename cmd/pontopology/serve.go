package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"pontopology/internal/config"
	"pontopology/internal/metrics"
	"pontopology/internal/observability"
	"pontopology/internal/scheduler"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(o *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the topology API and keep the snapshot fresh",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := o.cfg
			if addr != "" {
				cfg.Server.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, observability.GetLogger())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	reg := metrics.NewRegistry()
	a, err := newApp(ctx, cfg, log, reg)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.workdir != nil && cfg.Workdir.ArchiveSnapshots {
		if err := a.workdir.EnsureStructure(); err != nil {
			log.Warn("workdir structure", zap.String("path", a.workdir.Path()), zap.Error(err))
		}
	}

	gate, err := newGate(cfg.Auth)
	if err != nil {
		return err
	}
	sched := scheduler.New(a.refresher, cfg.Refresh.Interval, reg, log)
	srv := newServer(a, gate, sched, log)
	a.refresher.Notify = srv.onSnapshot

	httpSrv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      srv.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sched.Run(gctx)
	})
	g.Go(func() error {
		log.Info("topology API listening",
			zap.String("addr", httpSrv.Addr),
			zap.String("source", cfg.Source.Kind),
			zap.Bool("auth", cfg.Auth.Enabled),
			zap.Duration("refresh_interval", cfg.Refresh.Interval))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		if srv.hub != nil {
			srv.hub.Close()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
