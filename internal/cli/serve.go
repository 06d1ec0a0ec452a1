package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"pepplus/internal/adapters/mutation"
	"pepplus/internal/core"
	telemetry "pepplus/internal/platform/otel"
)

const shutdownTimeout = 10 * time.Second

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the mutation API over HTTP",
		Long: `Serve the mutation API over HTTP.

Routes:
  POST /api/v1/mutations           mutation envelope
  GET  /api/v1/entities/{entity}   current rows of one entity type
  GET  /metrics                    Prometheus metrics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (overrides PEPPLUS_HTTP_ADDR)")

	return cmd
}

// newServeMux assembles the API and metrics routes around svc.
func newServeMux(opts *ServeOptions, svc *core.Service, reg *prometheus.Registry) http.Handler {
	auth := mutation.NewAuthenticator([]byte(opts.Config.JWTSecret), svc.Gate().Registry())
	api := mutation.NewHandler(mutation.NewEnvelope(svc, opts.logger()), svc, auth)

	mux := http.NewServeMux()
	mux.Handle("/api/", api)
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

func serve(ctx context.Context, opts *ServeOptions) error {
	if opts.Config.JWTSecret == "" {
		return errors.New("PEPPLUS_JWT_SECRET is required to serve")
	}

	shutdownTracing, err := telemetry.Setup(ctx, "pepplus", opts.Config.OTelEndpoint)
	if err != nil {
		return err
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := core.NewPrometheusMetricsRecorder(reg)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	svc, closeStore, err := openService(ctx, opts.RootOptions,
		core.WithMetricsRecorder(metrics),
		core.WithTracer(core.NewOTelTracer(nil)),
	)
	if err != nil {
		return err
	}
	defer func() { _ = closeStore() }()

	addr := opts.Addr
	if addr == "" {
		addr = opts.Config.HTTPAddr
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           newServeMux(opts, svc, reg),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		opts.Logger.Info("http server listening", "addr", addr, "storage", string(opts.Config.Storage().Driver))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		opts.Logger.Info("http server shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	}
}
