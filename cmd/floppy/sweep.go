package main

import (
	"context"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"floppy/internal/blobstore"
	"floppy/internal/config"
	"floppy/internal/guardian"
	"floppy/internal/ledger"
)

func newSweepCmd(cfg *config.Config) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired blobs from the local storage root",
		Long: "Runs one retention sweep directly against the storage root, " +
			"without going through a server.",
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := runSweep(cmd.Context(), cfg, dryRun)
			if err != nil {
				return err
			}
			if structuredOutput() {
				return writeStructured(report)
			}
			return writeSweepText(report, dryRun)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list expired blobs without deleting them")
	return cmd
}

func runSweep(ctx context.Context, cfg *config.Config, dryRun bool) (guardian.SweepReport, error) {
	opts := []blobstore.Option{blobstore.WithLogger(slog.Default().With("component", "blobstore"))}
	if cfg.LedgerPath != "" && !dryRun {
		l, err := ledger.Open(cfg.LedgerPath)
		if err != nil {
			return guardian.SweepReport{}, err
		}
		defer l.Close()
		opts = append(opts, blobstore.WithEventSink(l))
	}

	st, err := blobstore.New(cfg.StorageRoot, cfg.PublicURL, opts...)
	if err != nil {
		return guardian.SweepReport{}, err
	}
	g := guardian.New(st,
		guardian.WithLogger(slog.Default().With("component", "guardian")),
		guardian.WithWorkers(cfg.Guardian.Workers),
		guardian.WithStagingMaxAge(cfg.Guardian.Interval()),
	)
	if dryRun {
		return g.DryRun(ctx)
	}
	return g.Sweep(ctx)
}

func writeSweepText(report guardian.SweepReport, dryRun bool) error {
	verb := "evicted"
	if dryRun {
		verb = "would evict"
	}
	if err := writePlain("scanned %d, %s %d, failed %d, staging files pruned %d\n",
		report.Scanned, verb, len(report.Expired), report.Failed, report.StagingPruned); err != nil {
		return err
	}
	if len(report.Expired) == 0 {
		return nil
	}
	return writePlain("%s\n", strings.Join(report.Expired, "\n"))
}
