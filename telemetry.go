package fractalx

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/comalice/fractalx"

// telemetry holds the tracer and instruments of one arena.
type telemetry struct {
	tracer          trace.Tracer
	dispatchTotal   metric.Int64Counter
	executeFailures metric.Int64Counter
	notifyTotal     metric.Int64Counter
}

var (
	globalTelemetry     *telemetry
	globalTelemetryOnce sync.Once
)

// defaultTelemetry reports through the otel global providers. The globals
// delegate to whatever provider is installed later with otel.SetMeterProvider
// and otel.SetTracerProvider.
func defaultTelemetry() *telemetry {
	globalTelemetryOnce.Do(func() {
		globalTelemetry = newTelemetry(otel.GetTracerProvider(), otel.GetMeterProvider())
	})
	return globalTelemetry
}

// newTelemetry creates the instruments on mp and the tracer on tp. An
// instrument that cannot be created reports to a no-op.
func newTelemetry(tp trace.TracerProvider, mp metric.MeterProvider) *telemetry {
	meter := mp.Meter(instrumentationName)
	noop := metricnoop.Meter{}
	counter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		if err != nil {
			c, _ = noop.Int64Counter(name)
		}
		return c
	}
	return &telemetry{
		tracer:          tp.Tracer(instrumentationName),
		dispatchTotal:   counter("fractalx_dispatch_total", "Total number of dispatch cycles"),
		executeFailures: counter("fractalx_execute_failures_total", "Executable steps aborted for a missing task runner"),
		notifyTotal:     counter("fractalx_notifications_total", "Interface values pushed to streams"),
	}
}

// startDispatch creates a span for one dispatch cycle.
func (t *telemetry) startDispatch(id, input string) (context.Context, trace.Span) {
	return t.tracer.Start(context.Background(), "fractalx.Dispatch",
		trace.WithAttributes(
			attribute.String("fractalx.id", id),
			attribute.String("fractalx.input", input),
		),
	)
}

func (t *telemetry) recordDispatch(ctx context.Context, ok bool) {
	t.dispatchTotal.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", ok)))
}

func (t *telemetry) recordExecuteFailure(task string) {
	t.executeFailures.Add(context.Background(), 1, metric.WithAttributes(attribute.String("task", task)))
}

func (t *telemetry) recordNotify(n int) {
	if n == 0 {
		return
	}
	t.notifyTotal.Add(context.Background(), int64(n))
}
