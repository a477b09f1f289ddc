package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/comalice/fractalx"
	"github.com/comalice/fractalx/handlers/web"
	"github.com/comalice/fractalx/internal/app"
	"github.com/comalice/fractalx/realtime"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serves the board over HTTP and websocket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Web.Addr = addr
			}
			logger := newLogger(cmd.ErrOrStderr(), cfg.Module.Level())

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			reg := prometheus.NewRegistry()
			providers, err := newProviders(cfg, reg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			server := web.New(web.Config{
				Addr:           cfg.Web.Addr,
				WSRate:         rate.Limit(cfg.Web.WSRate),
				WSBurst:        cfg.Web.WSBurst,
				Registry:       reg,
				TracerProvider: providers.Tracer,
				Logger:         logger,
			})
			s, err := newSession(ctx, cfg, logger, sessionOptions{
				handlers:  map[string]fractalx.HandlerFactory{app.WebInterface: server.Factory(app.WebInterface)},
				providers: providers,
			})
			if err != nil {
				return err
			}
			defer s.close()

			rt := realtime.NewRuntime(s.module, realtime.Config{
				TickRate:         cfg.Realtime.TickRate,
				MaxEventsPerTick: cfg.Realtime.MaxEventsPerTick,
				Logger:           logger,
				OnTick:           boardTicker(s.module, cfg.Realtime.TickEvery),
			})

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return server.ListenAndServe(gctx) })
			g.Go(func() error { return s.consumeRecords(gctx) })
			g.Go(func() error {
				if err := rt.Start(gctx); err != nil {
					return err
				}
				<-gctx.Done()
				return rt.Stop()
			})
			if cfg.HotSwap.Enabled && opts.configPath != "" {
				w, err := s.watcher(opts.configPath)
				if err != nil {
					return err
				}
				if err := w.Start(gctx); err != nil {
					return err
				}
				defer w.Stop()
			}

			logger.Info("serving board", "addr", cfg.Web.Addr)
			err = g.Wait()
			if cerr := s.close(); err == nil {
				err = cerr
			}
			if err == context.Canceled {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "override web.addr")
	return cmd
}

// boardTicker dispatches the board "tick" input every n ticks.
func boardTicker(m *fractalx.Module, n int) func(uint64) {
	if n <= 0 {
		return nil
	}
	root := m.Root().Name
	return func(tick uint64) {
		if tick%uint64(n) == 0 {
			m.Dispatch(fractalx.DispatchData{ID: root, Input: "tick"})
		}
	}
}
