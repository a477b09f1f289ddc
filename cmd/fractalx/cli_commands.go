package main

import (
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:   "fractalx",
		Short: "Runs a fractal component board",
		Long: `fractalx merges a board of counter components into one module and
exposes its interfaces in the terminal or over HTTP.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "configuration file (defaults are used when empty)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override module.log_level")

	rootCmd.AddCommand(
		newInitCmd(),
		newRunCmd(opts),
		newServeCmd(opts),
		newDotCmd(opts),
	)
	return rootCmd
}
