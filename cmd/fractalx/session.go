package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/comalice/fractalx"
	"github.com/comalice/fractalx/config"
	"github.com/comalice/fractalx/hotswap"
	"github.com/comalice/fractalx/internal/app"
	"github.com/comalice/fractalx/internal/production"
	"github.com/comalice/fractalx/internal/telemetry"
	"github.com/comalice/fractalx/stream"
	"github.com/comalice/fractalx/tasks"
)

// discard is the handler of interfaces a command does not render.
type discard struct{}

func (discard) Attach(*stream.Stream[any])   {}
func (discard) Reattach(*stream.Stream[any]) {}

func discardFactory(fractalx.API) fractalx.InterfaceHandler { return discard{} }

// loadConfig reads path, or returns the defaults when path is empty.
func loadConfig(opts *rootOptions) (config.Config, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		var err error
		if cfg, err = config.Load(opts.configPath); err != nil {
			return config.Config{}, err
		}
	}
	if opts.logLevel != "" {
		cfg.Module.LogLevel = opts.logLevel
		if err := cfg.Validate(); err != nil {
			return config.Config{}, err
		}
	}
	return cfg, nil
}

// newLogger writes text to terminals and JSON everywhere else.
func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	hopts := &slog.HandlerOptions{Level: level}
	if f, ok := w.(*os.File); ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		return slog.New(slog.NewTextHandler(w, hopts))
	}
	return slog.New(slog.NewJSONHandler(w, hopts))
}

// session is one running board module and the resources it owns.
type session struct {
	cfg       config.Config
	logger    *slog.Logger
	module    *fractalx.Module
	log       *tasks.Log
	records   chan fractalx.DispatchRecord
	closeFns  []func() error
	persisted bool
	closed    bool
}

// sessionOptions are the parts of a session its command provides.
type sessionOptions struct {
	// handlers bind interfaces; the others are discarded.
	handlers map[string]fractalx.HandlerFactory
	// providers report the module telemetry and are shut down with the
	// session. Nil creates them on a private registry with stdout discarded.
	providers *telemetry.Providers
}

// newProviders creates the telemetry providers of cfg. Prometheus metrics
// register with reg and stdout exporters write to w.
func newProviders(cfg config.Config, reg *prometheus.Registry, w io.Writer) (*telemetry.Providers, error) {
	p, err := telemetry.Init(telemetry.Config{
		ServiceName: "fractalx",
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
		Interval:    cfg.Telemetry.Interval,
	}, reg, w)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}
	return p, nil
}

// newSession runs the board.
func newSession(ctx context.Context, cfg config.Config, logger *slog.Logger, sopts sessionOptions) (*session, error) {
	s := &session{
		cfg:     cfg,
		logger:  logger,
		log:     &tasks.Log{},
		records: make(chan fractalx.DispatchRecord, 256),
	}
	providers := sopts.providers
	if providers == nil {
		var err error
		if providers, err = newProviders(cfg, prometheus.NewRegistry(), io.Discard); err != nil {
			return nil, err
		}
	}
	s.closeFns = append(s.closeFns, func() error { return providers.Shutdown(context.Background()) })

	persister, closePersister, err := app.OpenPersister(cfg.Persistence)
	if err != nil {
		s.close()
		return nil, fmt.Errorf("open persister: %w", err)
	}
	s.closeFns = append(s.closeFns, closePersister)

	opts := []fractalx.Option{
		fractalx.WithLogger(logger),
		fractalx.WithQueueSize(cfg.Module.QueueSize),
		fractalx.WithVisualizer(&production.DefaultVisualizer{}),
		fractalx.WithPublisher(production.NewChannelPublisher(s.records)),
	}
	opts = append(opts, providers.Options()...)
	if cfg.Module.ID != "" {
		opts = append(opts, fractalx.WithModuleID(cfg.Module.ID))
	}
	if persister != nil {
		opts = append(opts, fractalx.WithPersister(persister))
		s.persisted = true
	}

	factories := map[string]fractalx.HandlerFactory{
		app.WebInterface: discardFactory,
		app.TUIInterface: discardFactory,
	}
	for name, f := range sopts.handlers {
		factories[name] = f
	}

	s.module = fractalx.Run(fractalx.ModuleDef{
		Root:       app.Board(cfg.Board),
		Tasks:      app.Tasks(s.log, logger, 20),
		Interfaces: factories,
	}, opts...)

	if s.persisted {
		if err := s.module.Load(ctx); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.close()
			return nil, fmt.Errorf("load snapshot: %w", err)
		}
	}
	logger.Info("module started", "module", s.module.ID(), "components", s.module.Context().Components().Len())
	return s, nil
}

// consumeRecords logs every published dispatch record until ctx is done or
// the publisher is closed.
func (s *session) consumeRecords(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case rec, ok := <-s.records:
			if !ok {
				return nil
			}
			if rec.Error != "" {
				s.logger.Warn("dispatch failed", "id", rec.Dispatch.ID, "input", rec.Dispatch.Input, "error", rec.Error)
				continue
			}
			s.logger.Debug("dispatch", "id", rec.Dispatch.ID, "input", rec.Dispatch.Input)
		}
	}
}

// watcher hot swaps the board whenever the configuration file changes.
func (s *session) watcher(path string) (*hotswap.Watcher, error) {
	reload := hotswap.Reattacher(s.module, func([]string) (*fractalx.Definition, error) {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		return app.Board(cfg.Board), nil
	})
	return hotswap.New([]string{path}, reload, hotswap.Options{
		Debounce:   s.cfg.HotSwap.Debounce,
		Extensions: []string{".yaml", ".yml"},
		Logger:     s.logger,
	})
}

// close saves the final snapshot, disposes the module and releases resources.
// Calls after the first do nothing.
func (s *session) close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	var errs []error
	if s.module != nil && !s.module.IsDisposed() {
		if s.persisted {
			errs = append(errs, s.module.Save(context.Background()))
		}
		errs = append(errs, s.module.Dispose())
	}
	for _, fn := range s.closeFns {
		errs = append(errs, fn())
	}
	return errors.Join(errs...)
}
