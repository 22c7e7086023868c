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

	"github.com/aretw0/proofline"
	"github.com/aretw0/proofline/internal/logging"
	"github.com/aretw0/proofline/internal/metrics"
	"github.com/aretw0/proofline/internal/presentation/tui"
	httpAdapter "github.com/aretw0/proofline/pkg/adapters/http"
	"github.com/aretw0/proofline/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Serves editing sessions over a JSON API with Server-Sent Events for state changes.
Sessions live in memory unless store.redis_url is configured. Prometheus metrics are
served at /metrics, or on server.metrics_addr when it is set.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Address to listen on (overrides server.addr)")
	serveCmd.Flags().String("metrics-addr", "", "Separate address for /metrics (overrides server.metrics_addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApp(cmd, logging.NewJSON)
	if err != nil {
		return err
	}
	cfg := app.Config()
	logger := app.Logger()

	addr := cfg.Server.Addr
	if v, _ := cmd.Flags().GetString("addr"); v != "" {
		addr = v
	}
	metricsAddr := cfg.Server.MetricsAddr
	if v, _ := cmd.Flags().GetString("metrics-addr"); v != "" {
		metricsAddr = v
	}

	backend, err := app.OpenBackend(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := backend.Close(); err != nil {
			logger.Warn("Failed to close session store", "err", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.New(reg)
	streams := httpAdapter.NewStreamManager(logger)

	mgr := app.NewSessionManager(backend,
		session.WithLifecycleHooks(streams.Hooks().Merge(recorder.Hooks())),
	)

	opts := []httpAdapter.Option{
		httpAdapter.WithStreams(streams),
		httpAdapter.WithSanitizer(app.Sanitizer()),
		httpAdapter.WithVersion(proofline.Version),
		httpAdapter.WithLogger(logger),
	}
	if metricsAddr == "" {
		opts = append(opts, httpAdapter.WithMetricsHandler(metrics.Handler(reg)))
	}
	api := httpAdapter.NewServer(mgr, opts...)

	tui.PrintBanner(cmd.ErrOrStderr())
	fmt.Fprintf(cmd.ErrOrStderr(), "proofline %s serving on %s\n\n", proofline.Version, addr)

	g, ctx := errgroup.WithContext(ctx)
	serveHTTP(ctx, g, logger, "api", &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	})
	if metricsAddr != "" {
		serveHTTP(ctx, g, logger, "metrics", &http.Server{
			Addr:              metricsAddr,
			Handler:           metrics.Handler(reg),
			ReadHeaderTimeout: 10 * time.Second,
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Server stopped gracefully")
	return nil
}

// serveHTTP runs srv in g and shuts it down when ctx is done.
func serveHTTP(ctx context.Context, g *errgroup.Group, logger *slog.Logger, name string, srv *http.Server) {
	g.Go(func() error {
		logger.Info("Listening", "server", name, "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s server: %w", name, err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Graceful shutdown did not complete", "server", name, "timeout", shutdownTimeout, "err", err)
			return srv.Close()
		}
		return nil
	})
}
