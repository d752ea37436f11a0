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

	"github.com/smartcity/dispatcher/internal/api"
	"github.com/smartcity/dispatcher/internal/ingest"
	"github.com/smartcity/dispatcher/internal/types"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	var o overrides
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and optionally poll the alerts API",
		Long: `Serve the dispatcher HTTP API (/health, /api/v1/routes,
/api/v1/classify, /api/v1/alerts, /api/v1/alerts/{id}, /metrics). When a source URL is
configured, also poll {source-url}/alerts?take=N on an interval and
process every batch.

Examples:
  # Push-only
  dispatcher serve --base-url https://dispatch.city.gov

  # Push and pull every 30 seconds
  dispatcher serve -c dispatcher.yaml --source-url https://alerts.city.gov --poll-interval 30`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, &o)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg.LogLevel)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			a, err := buildApp(cfg, logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, a)
		},
	}

	addDeliveryFlags(cmd, &o)
	cmd.Flags().StringVar(&o.listen, "listen", "", "HTTP listen address (default :8080).")
	cmd.Flags().StringVar(&o.sourceURL, "source-url", "", "Alerts API base URL to poll. Empty disables polling.")
	cmd.Flags().IntVar(&o.pollInterval, "poll-interval", 0, "Polling interval in seconds.")

	return cmd
}

// runServe blocks until ctx is cancelled or the HTTP server fails.
func runServe(ctx context.Context, a *app) error {
	a.dispatcher.Start(ctx)
	a.engine.Start(ctx)

	srv := &http.Server{
		Addr:              a.cfg.ListenAddress,
		Handler:           api.NewMux(a.classifier, a.engine, a.index, a.logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var poller *ingest.Poller
	if a.cfg.Source.URL != "" {
		var err error
		poller, err = ingest.NewPoller(a.logger, ingest.PollerConfig{
			URL:            a.cfg.Source.URL,
			Take:           a.cfg.Source.Take,
			TimeoutSeconds: a.cfg.Source.TimeoutSeconds,
		})
		if err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("Serving HTTP API", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.logger.Info("Shutting down HTTP API")
		return srv.Shutdown(shutdownCtx)
	})

	if poller != nil {
		interval := time.Duration(a.cfg.Source.PollIntervalSeconds) * time.Second
		g.Go(func() error {
			err := poller.Run(gctx, interval, func(ctx context.Context, alerts []types.AlertRecord) error {
				_, err := a.engine.ProcessBatch(ctx, alerts)
				return err
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	return g.Wait()
}
