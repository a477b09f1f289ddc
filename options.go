package fractalx

import (
	"log/slog"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// WithLogger configures the Module with the structured logger diagnostics go to.
func WithLogger(l *slog.Logger) Option {
	return func(m *Module) {
		m.logger = l
	}
}

// WithModuleID overrides the generated module id.
func WithModuleID(id string) Option {
	return func(m *Module) {
		m.id = id
	}
}

// WithDiagnosticHook installs a hook called for every warning and error.
func WithDiagnosticHook(h DiagnosticHook) Option {
	return func(m *Module) {
		m.hook = h
	}
}

// WithQueueSize configures how many cycles may wait behind the running one.
func WithQueueSize(size int) Option {
	return func(m *Module) {
		m.queueSize = size
	}
}

// WithPersister configures the Module with a Persister. A snapshot is saved
// after every dispatch cycle.
func WithPersister(p Persister) Option {
	return func(m *Module) {
		m.persister = p
	}
}

// WithPublisher configures the Module with a Publisher of dispatch records.
func WithPublisher(p Publisher) Option {
	return func(m *Module) {
		m.publisher = p
	}
}

// WithVisualizer configures the Module with a Visualizer.
func WithVisualizer(v Visualizer) Option {
	return func(m *Module) {
		m.visualizer = v
	}
}

// WithMeterProvider reports the dispatch, execute-failure and notification
// counters to mp instead of the otel global provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(m *Module) {
		m.meterProvider = mp
	}
}

// WithTracerProvider records dispatch spans with tp instead of the otel
// global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(m *Module) {
		m.tracerProvider = tp
	}
}
