package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"floppy/internal/blobstore"
	"floppy/internal/config"
	"floppy/internal/guardian"
	"floppy/internal/ledger"
	"floppy/internal/observability"
	"floppy/internal/server"
)

const shutdownGrace = 15 * time.Second

func newSrvCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "srv",
		Short: "Run the floppy upload server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg == nil {
				return fmt.Errorf("config not initialized")
			}

			addr, err := server.ListenAddr(cfg.ListenAddr)
			if err != nil {
				return err
			}

			ctx := cmd.Context()

			obs, err := observability.New(ctx, observability.Config{
				OTLPEndpoint:   cfg.Observability.OTLPEndpoint,
				OTLPProtocol:   cfg.Observability.OTLPProtocol,
				ServiceName:    cfg.Observability.ServiceName,
				ServiceVersion: version,
			}, slog.Default())
			if err != nil {
				return err
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
				defer cancel()
				if err := obs.Close(shutdownCtx); err != nil {
					slog.Error("shutdown", "error", err)
				}
			}()

			var metrics *observability.Metrics
			srvOpts := []server.Option{
				server.WithLogger(slog.Default().With("component", "server")),
				server.WithGuardianInterval(cfg.Guardian.Interval()),
			}
			if cfg.Observability.Metrics {
				metrics = obs.Metrics
				srvOpts = append(srvOpts, server.WithMetricsHandler(obs.MetricsHandler()))
			}

			storeOpts := []blobstore.Option{
				blobstore.WithLogger(slog.Default().With("component", "blobstore")),
				blobstore.WithMetrics(metrics),
			}
			if cfg.LedgerPath != "" {
				slog.Info("opening ledger", "path", cfg.LedgerPath)
				l, err := ledger.Open(cfg.LedgerPath)
				if err != nil {
					return err
				}
				obs.Shutdown.Register("ledger", func(context.Context) error { return l.Close() })
				storeOpts = append(storeOpts, blobstore.WithEventSink(l))
				srvOpts = append(srvOpts, server.WithLedger(l))
			}

			st, err := blobstore.New(cfg.StorageRoot, cfg.PublicURL, storeOpts...)
			if err != nil {
				return err
			}
			g := guardian.New(st,
				guardian.WithLogger(slog.Default().With("component", "guardian")),
				guardian.WithMetrics(metrics),
				guardian.WithWorkers(cfg.Guardian.Workers),
				guardian.WithStagingMaxAge(cfg.Guardian.Interval()),
			)

			return server.New(addr, st, g, srvOpts...).Run(ctx)
		},
	}
}
