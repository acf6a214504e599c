package main

import (
	"context"
	"errors"
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

	"github.com/BTreeMap/shiftengine/internal/api"
	"github.com/BTreeMap/shiftengine/internal/config"
	"github.com/BTreeMap/shiftengine/internal/flow"
	"github.com/BTreeMap/shiftengine/internal/metrics"
)

func newServeCmd(root *rootFlags) *cobra.Command {
	var (
		apiAddr     string
		metricsAddr string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the engine over HTTP",
		Long:  "serve exposes session start, turns, snapshots and history over HTTP, with Prometheus metrics on /metrics or on a separate listener.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd, root)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("api-addr") {
				cfg.APIAddr = apiAddr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, metricsAddr)
		},
	}
	cmd.Flags().StringVar(&apiAddr, "api-addr", "", "API server address (overrides $API_ADDR)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve /metrics on this address instead of the API listener")
	return cmd
}

// newMetricsRegistry returns a registry carrying the runtime collectors.
func newMetricsRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// runServe runs the API listener, and the metrics listener when metricsAddr
// is set, until ctx is cancelled or either fails.
func runServe(ctx context.Context, cfg config.Config, metricsAddr string) error {
	reg := newMetricsRegistry()
	recorder := metrics.NewPrometheusRecorder(reg)
	metricsHandler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})

	a, err := buildApp(cfg, "serve", flow.WithRecorder(recorder))
	if err != nil {
		return err
	}
	defer a.Close()

	apiOpts := cfg.APIOptions()
	if metricsAddr == "" {
		apiOpts = append(apiOpts, api.WithMetricsHandler(metricsHandler))
	}
	server := api.NewServer(a.engine, apiOpts...)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(gctx)
	})
	if metricsAddr != "" {
		g.Go(func() error {
			return serveMetrics(gctx, metricsAddr, metricsHandler)
		})
	}

	slog.Info("shiftengine serving", "api_addr", server.Addr(), "metrics_addr", metricsAddr)
	if err := g.Wait(); err != nil {
		slog.Error("shiftengine stopped with error", "error", err)
		return err
	}
	slog.Info("shiftengine exited successfully")
	return nil
}

// serveMetrics runs a dedicated /metrics listener until ctx is cancelled.
func serveMetrics(ctx context.Context, addr string, h http.Handler) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", h)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("serveMetrics: metrics listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
