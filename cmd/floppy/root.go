package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"floppy/internal/config"
	"floppy/internal/format"
)

func newRootCmd(cfg *config.Config) *cobra.Command {
	var (
		logLevel string
		output   string
	)

	cmd := &cobra.Command{
		Use:           "floppy",
		Short:         "Floppy is a temporary, content-addressed file drop",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			warning, err := configureLoggerForCLI(logLevel, cfg.LogLevel, cfg.LogFormat)
			if err != nil {
				return err
			}
			if warning != "" {
				fmt.Fprintln(cmd.ErrOrStderr(), warning)
			}
			formatter, err := format.ForName(output)
			if err != nil {
				return err
			}
			outputFormatter = formatter
			return nil
		},
	}

	cmd.Version = version
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&output, "output", "text", "output format: text, json or yaml")

	cmd.AddCommand(
		newSrvCmd(cfg),
		newPutCmd(cfg),
		newGetCmd(cfg),
		newInfoCmd(cfg),
		newSweepCmd(cfg),
		newConfigCmd(cfg),
	)

	return cmd
}
