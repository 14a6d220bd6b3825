package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/devpulse/devpulse/internal/observability"
	"github.com/devpulse/devpulse/internal/server"
)

const (
	serverReadHeaderTimeout = 10 * time.Second
	serverShutdownTimeout   = 15 * time.Second
)

const (
	addrFlag      = "addr"
	addrFlagUsage = "listen address (overrides config)"
)

// NewServeCommand creates the serve subcommand.
func NewServeCommand() *cobra.Command {
	var (
		configPath string
		verbose    bool
		addr       string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(configPath, verbose)
			if err != nil {
				return err
			}

			if addr != "" {
				a.cfg.Server.Addr = addr
			}

			return a.serve(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&configPath, configFlag, "", configFlagUsage)
	cmd.Flags().BoolVarP(&verbose, verboseFlag, "v", false, verboseFlagUsage)
	cmd.Flags().StringVar(&addr, addrFlag, "", addrFlagUsage)

	return cmd
}

func (a *app) serve(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	telemetry, telemetryErr := observability.NewTelemetry()
	if telemetryErr != nil {
		return telemetryErr
	}

	red, redErr := observability.NewREDMetrics(telemetry.Meter)
	if redErr != nil {
		return redErr
	}

	pipeline, pipelineErr := observability.NewPipelineMetrics(telemetry.Meter)
	if pipelineErr != nil {
		return pipelineErr
	}

	a.pipeline = pipeline

	dashboards := a.dashboards()

	// Warm the snapshot so the first request does not pay for the
	// build. A failure only delays readiness; the API retries lazily.
	_, warmErr := dashboards.Refresh(false)
	if warmErr != nil {
		a.logger.Warn("initial snapshot load failed", "error", warmErr)
	}

	mappings, mappingErr := a.mappingStore()
	if mappingErr != nil {
		return mappingErr
	}

	srv := server.New(server.Options{
		Config:     a.cfg.Server,
		Logger:     a.logger,
		Dashboards: dashboards,
		PRStore:    a.prs,
		IssueStore: a.issues,
		Mappings:   mappings,
		Fetch: func(ctx context.Context) []server.StageResult {
			return a.runFetchStages(ctx, false)
		},
		RED:     red,
		Metrics: telemetry.Handler,
	})

	httpServer := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: serverReadHeaderTimeout,
	}

	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("http server listening", "addr", a.cfg.Server.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}

		return nil
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
	defer cancel()

	shutdownErr := httpServer.Shutdown(shutdownCtx)

	telemetryErr = telemetry.Shutdown(shutdownCtx)
	if telemetryErr != nil {
		a.logger.Warn("telemetry shutdown failed", "error", telemetryErr)
	}

	if shutdownErr != nil {
		return fmt.Errorf("shutdown http server: %w", shutdownErr)
	}

	return nil
}
