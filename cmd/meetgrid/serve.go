package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

const (
	limiterSweepInterval = time.Minute
	pruneInterval        = time.Hour
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, logger, err := opts.load(cmd.OutOrStdout())
			if err != nil {
				return err
			}

			storage, _, err := openStorage(cmd, cfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := storage.Close(); cerr != nil {
					logger.Error("failed to close storage", "error", cerr)
				}
			}()

			svc, err := wire(ctx, cfg, storage, logger)
			if err != nil {
				return err
			}
			defer svc.close()

			handler, limiter := svc.handler(cfg, logger)

			go every(ctx, limiterSweepInterval, func(context.Context) { limiter.Sweep() })
			if cfg.AvailabilityRetention > 0 {
				go every(ctx, pruneInterval, func(ctx context.Context) {
					_, _ = svc.availability.PruneAvailability(ctx, cfg.AvailabilityRetention)
				})
			}

			if cfg.MetricsAddr != "" {
				metricsMux := http.NewServeMux()
				metricsMux.Handle("GET /metrics", svc.metrics.Handler())
				metricsServer := &http.Server{
					Addr:              cfg.MetricsAddr,
					Handler:           metricsMux,
					ReadHeaderTimeout: 10 * time.Second,
				}
				go func() {
					if err := serveUntilDone(ctx, metricsServer, logger, "metrics"); err != nil {
						logger.Error("metrics server stopped", "error", err)
					}
				}()
			}

			server := &http.Server{
				Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
				Handler:           handler,
				ReadHeaderTimeout: 10 * time.Second,
				ReadTimeout:       30 * time.Second,
				WriteTimeout:      30 * time.Second,
				IdleTimeout:       60 * time.Second,
			}
			return serveUntilDone(ctx, server, logger, "api")
		},
	}
}
