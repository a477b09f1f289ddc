package main

import (
	"errors"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/comalice/fractalx"
	"github.com/comalice/fractalx/handlers/tui"
	"github.com/comalice/fractalx/internal/app"
)

func newRunCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Runs the board in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
				return errors.New("run needs a terminal; use serve or dot")
			}
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			// the terminal belongs to the program; logs go to stderr as JSON
			logger := newLogger(os.Stderr, cfg.Module.Level())

			h := tui.New()
			providers, err := newProviders(cfg, prometheus.NewRegistry(), os.Stderr)
			if err != nil {
				return err
			}
			s, err := newSession(cmd.Context(), cfg, logger, sessionOptions{
				handlers:  map[string]fractalx.HandlerFactory{app.TUIInterface: h.Factory()},
				providers: providers,
			})
			if err != nil {
				return err
			}
			defer s.close()

			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error { return s.consumeRecords(ctx) })
			if cfg.HotSwap.Enabled && opts.configPath != "" {
				w, err := s.watcher(opts.configPath)
				if err != nil {
					return err
				}
				if err := w.Start(ctx); err != nil {
					return err
				}
				defer w.Stop()
			}

			runErr := h.Run(ctx)
			h.Dispose()
			s.close()
			if err := g.Wait(); err != nil {
				return err
			}
			return runErr
		},
	}
}
