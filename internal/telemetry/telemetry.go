// Package telemetry builds the OpenTelemetry providers of the fractalx command.
//
// Metrics go to a prometheus registry, so the web handler serves them at
// /metrics, or to a writer as periodic JSON. Spans go to a writer or nowhere.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/comalice/fractalx"
)

// ErrUnknownExporter is returned by Init for an exporter name it does not know.
var ErrUnknownExporter = errors.New("unknown exporter")

// Config selects the exporters.
type Config struct {
	ServiceName    string
	ServiceVersion string
	// Metrics is "prometheus", "stdout" or "none".
	Metrics string
	// Traces is "stdout" or "none".
	Traces string
	// Interval is the export period of stdout metrics. Defaults to 10s.
	Interval time.Duration
}

// Providers are the installed meter and tracer providers. Unused signals are no-ops.
type Providers struct {
	Meter    metric.MeterProvider
	Tracer   trace.TracerProvider
	shutdown []func(context.Context) error
}

// Init creates the providers of cfg. Prometheus metrics register with reg;
// stdout exporters write to w.
func Init(cfg Config, reg prometheus.Registerer, w io.Writer) (*Providers, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "fractalx"
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	res := resource.NewWithAttributes("",
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.ServiceVersion),
	)

	p := &Providers{Meter: metricnoop.NewMeterProvider(), Tracer: tracenoop.NewTracerProvider()}

	switch cfg.Metrics {
	case "", "none":
	case "prometheus":
		exporter, err := promexporter.New(promexporter.WithRegisterer(reg))
		if err != nil {
			return nil, fmt.Errorf("create prometheus exporter: %w", err)
		}
		mp := sdkmetric.NewMeterProvider(sdkmetric.WithResource(res), sdkmetric.WithReader(exporter))
		p.Meter = mp
		p.shutdown = append(p.shutdown, mp.Shutdown)
	case "stdout":
		exporter, err := stdoutmetric.New(stdoutmetric.WithWriter(w))
		if err != nil {
			return nil, fmt.Errorf("create stdout metric exporter: %w", err)
		}
		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.Interval))),
		)
		p.Meter = mp
		p.shutdown = append(p.shutdown, mp.Shutdown)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownExporter, cfg.Metrics)
	}

	switch cfg.Traces {
	case "", "none":
	case "stdout":
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
		if err != nil {
			p.Shutdown(context.Background())
			return nil, fmt.Errorf("create stdout trace exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sdktrace.AlwaysSample()),
		)
		p.Tracer = tp
		p.shutdown = append(p.shutdown, tp.Shutdown)
	default:
		p.Shutdown(context.Background())
		return nil, fmt.Errorf("%w: %s", ErrUnknownExporter, cfg.Traces)
	}
	return p, nil
}

// Options binds the providers to a module.
func (p *Providers) Options() []fractalx.Option {
	return []fractalx.Option{
		fractalx.WithMeterProvider(p.Meter),
		fractalx.WithTracerProvider(p.Tracer),
	}
}

// Shutdown flushes and stops every provider Init created.
func (p *Providers) Shutdown(ctx context.Context) error {
	var errs []error
	for _, fn := range p.shutdown {
		errs = append(errs, fn(ctx))
	}
	p.shutdown = nil
	return errors.Join(errs...)
}
