package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/comalice/fractalx/internal/production"
)

func newDotCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "dot",
		Short: "Prints the component tree as Graphviz DOT",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			logger := newLogger(cmd.ErrOrStderr(), cfg.Module.Level())
			s, err := newSession(cmd.Context(), cfg, logger, sessionOptions{})
			if err != nil {
				return err
			}
			defer s.close()

			return printTree(cmd.OutOrStdout(), s, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of DOT")
	return cmd
}

func printTree(w io.Writer, s *session, asJSON bool) error {
	if !asJSON {
		_, err := fmt.Fprint(w, s.module.Visualize())
		return err
	}
	data, err := (&production.DefaultVisualizer{}).ExportJSON(s.module.Tree())
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
