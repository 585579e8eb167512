package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"floppy/internal/api"
	"floppy/internal/config"
	"floppy/internal/keys"
)

type putOutput struct {
	Key    string `json:"key" yaml:"key"`
	Report string `json:"report" yaml:"report"`
}

func newPutCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "put <file|->",
		Short: "Upload a file and print where to fetch it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, name, err := readUpload(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}

			return withClient(cfg, func(client *api.Client) error {
				report, err := client.Upload(cmd.Context(), name, bytes.NewReader(data), int64(len(data)))
				if err != nil {
					return err
				}
				if structuredOutput() {
					return writeStructured(putOutput{Key: keys.Derive(data), Report: report})
				}
				return writePlain("%s", report)
			})
		},
	}
}

// readUpload reads the payload from path, or from stdin when path is "-".
func readUpload(stdin io.Reader, path string) ([]byte, string, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, "", fmt.Errorf("read stdin: %w", err)
		}
		return data, "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	return data, filepath.Base(path), nil
}
