package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"floppy/internal/api"
	"floppy/internal/config"
	"floppy/internal/keys"
)

func newGetCmd(cfg *config.Config) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Download a file by key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			if err := keys.ValidateUserKey(key); err != nil {
				return fmt.Errorf("invalid key %q: %w", key, err)
			}

			return withClient(cfg, func(client *api.Client) error {
				if out == "" || out == "-" {
					_, err := client.Download(cmd.Context(), key, cmd.OutOrStdout())
					return err
				}
				return downloadToFile(cmd, client, key, out)
			})
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "write to file instead of stdout")
	return cmd
}

// downloadToFile writes into a temporary sibling and renames it, so a failed
// download never leaves a truncated file at path.
func downloadToFile(cmd *cobra.Command, client *api.Client, key, path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".floppy-get-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	n, err := client.Download(cmd.Context(), key, tmp)
	if err != nil {
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return err
	}
	_, err = fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d bytes to %s\n", n, path)
	return err
}
