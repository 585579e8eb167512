package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"floppy/internal/api"
	"floppy/internal/config"
	"floppy/internal/keys"
)

func newInfoCmd(cfg *config.Config) *cobra.Command {
	var key string

	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show server storage and retention details",
		Long: "Shows server storage and retention details. With --key, shows the " +
			"ledger history of one blob instead.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if key != "" {
				if err := keys.ValidateUserKey(key); err != nil {
					return fmt.Errorf("invalid key %q: %w", key, err)
				}
			}
			return withClient(cfg, func(client *api.Client) error {
				if key != "" {
					history, err := client.History(cmd.Context(), key)
					if err != nil {
						return err
					}
					if structuredOutput() {
						return writeStructured(history)
					}
					return writeHistoryText(history)
				}

				info, err := client.GetInfo(cmd.Context())
				if err != nil {
					return err
				}
				if structuredOutput() {
					return writeStructured(info)
				}
				return writeInfoText(info)
			})
		},
	}

	cmd.Flags().StringVar(&key, "key", "", "show the ledger history of one blob")
	return cmd
}

func writeInfoText(info api.InfoResponse) error {
	lastSweep := "never"
	if info.LastSweep != nil {
		lastSweep = formatTime(*info.LastSweep)
	}
	if err := writePlain("storage_root: %s\npublic_url: %s\nblobs: %d\nbytes: %d\nmax_blob_bytes: %d\nguardian_interval_minutes: %d\nlast_sweep: %s\n",
		info.StorageRoot, info.PublicURL, info.Blobs, info.Bytes, info.MaxBlobBytes,
		info.GuardianIntervalMinutes, lastSweep); err != nil {
		return err
	}
	if info.Ledger == nil {
		return nil
	}
	return writePlain("ledger_stored: %d (%d bytes)\nledger_deleted: %d (%d bytes)\n",
		info.Ledger.StoredCount, info.Ledger.StoredBytes,
		info.Ledger.DeletedCount, info.Ledger.DeletedBytes)
}

func writeHistoryText(history api.HistoryResponse) error {
	if len(history.Events) == 0 {
		return writePlain("no recorded events for %s\n", history.Key)
	}
	for _, ev := range history.Events {
		if err := writePlain("%s  %-7s  %d bytes\n", formatTime(ev.At), ev.Kind, ev.SizeBytes); err != nil {
			return err
		}
	}
	return nil
}
