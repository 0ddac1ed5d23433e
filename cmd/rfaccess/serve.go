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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/gregLibert/rfaccess/pkg/access"
	"github.com/gregLibert/rfaccess/pkg/config"
	"github.com/gregLibert/rfaccess/pkg/distribution"
	"github.com/gregLibert/rfaccess/pkg/emulation"
	"github.com/gregLibert/rfaccess/pkg/httpapi"
	"github.com/gregLibert/rfaccess/pkg/provisioning"
)

const shutdownTimeout = 10 * time.Second

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the management API and the emulation notifier",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromContext(cmd.Context())
			if cfg == nil {
				return errors.New("no config found in context")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serveRun(ctx, cfg, slog.Default())
		},
	}
}

func serveRun(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	backend, closeStore, err := openStore(cfg.Storage, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Error("error closing storage", "error", err)
		}
	}()

	linker := provisioning.NewLinker(cfg.LinkScheme)
	credentials := distribution.New(backend,
		distribution.WithLogger(logger),
		distribution.WithLinker(linker),
	)
	settings := emulation.NewSettingsStore(backend, logger)
	state, err := restoreState(ctx, cfg.Emulation, settings)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := emulation.NewMetrics(reg)
	metrics.SetStatus(state.Status())

	notifier := emulation.NewNotifier(cfg.Emulation.SignalBuffer,
		emulation.WithLogger(logger),
		emulation.WithMetrics(metrics),
	)
	svc := access.New(credentials, settings, state,
		access.WithLogger(logger),
		access.WithLinker(linker),
		access.WithMetrics(metrics),
	)

	dispatcher := emulation.NewDispatcher(state, notifier)
	api := httpapi.New(svc, logger, httpapi.WithFrames(dispatcher))

	servers := []*http.Server{newServer(cfg.HTTP.ListenAddr, api.Router())}
	if cfg.Metrics.ListenAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
		servers = append(servers, newServer(cfg.Metrics.ListenAddr, mux))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return notifier.Run(gctx)
	})
	for _, srv := range servers {
		g.Go(func() error {
			logger.Info("http server starting", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server %s: %w", srv.Addr, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		var errs []error
		for _, srv := range servers {
			errs = append(errs, srv.Shutdown(shutdownCtx))
		}
		return errors.Join(errs...)
	})

	logger.Info("rfaccess started",
		"listen_addr", cfg.HTTP.ListenAddr,
		"metrics_addr", cfg.Metrics.ListenAddr,
		"storage", cfg.Storage.Driver,
		"emulation_active", state.Status().Active,
	)
	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("shutdown complete", "dropped_events", notifier.Dropped())
	return nil
}

func newServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
