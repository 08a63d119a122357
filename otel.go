package inbox

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/rbaliyan/inbox"

// otelInstrumentation holds OpenTelemetry instrumentation for the
// inbox service. All methods are safe to call when instrumentation is
// disabled; they become no-ops.
type otelInstrumentation struct {
	enabled bool

	tracingEnabled bool
	tracer         trace.Tracer

	metricsEnabled bool

	sendLatency   metric.Float64Histogram
	sendCount     metric.Int64Counter
	sendDeduped   metric.Int64Counter
	sendErrors    metric.Int64Counter
	getLatency    metric.Float64Histogram
	getCount      metric.Int64Counter
	getErrors     metric.Int64Counter
	queryLatency  metric.Float64Histogram
	queryCount    metric.Int64Counter
	queryResults  metric.Int64Counter
	queryErrors   metric.Int64Counter
	labelLatency  metric.Float64Histogram
	labelCount    metric.Int64Counter
	labelErrors   metric.Int64Counter
	exportLatency metric.Float64Histogram
	exportCount   metric.Int64Counter
	exportErrors  metric.Int64Counter
}

// newOtelInstrumentation creates new OTel instrumentation from options.
func newOtelInstrumentation(opts *options) (*otelInstrumentation, error) {
	o := &otelInstrumentation{
		enabled:        opts.tracingEnabled || opts.metricsEnabled,
		tracingEnabled: opts.tracingEnabled,
		metricsEnabled: opts.metricsEnabled,
	}

	if !o.enabled {
		return o, nil
	}

	if opts.tracingEnabled {
		tp := opts.tracerProvider
		if tp == nil {
			tp = otel.GetTracerProvider()
		}
		o.tracer = tp.Tracer(instrumentationName)
	}

	if opts.metricsEnabled {
		mp := opts.meterProvider
		if mp == nil {
			mp = otel.GetMeterProvider()
		}
		if err := o.initMetrics(mp); err != nil {
			return nil, err
		}
	}

	return o, nil
}

// initMetrics initializes all metric instruments.
func (o *otelInstrumentation) initMetrics(mp metric.MeterProvider) error {
	meter := mp.Meter(instrumentationName)

	var err error

	o.sendLatency, err = meter.Float64Histogram(
		"inbox.send.duration",
		metric.WithDescription("Duration of send operations"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}
	o.sendCount, err = meter.Int64Counter(
		"inbox.send.count",
		metric.WithDescription("Number of messages sent"),
	)
	if err != nil {
		return err
	}
	o.sendDeduped, err = meter.Int64Counter(
		"inbox.send.deduplicated",
		metric.WithDescription("Number of sends deduplicated by content hash"),
	)
	if err != nil {
		return err
	}
	o.sendErrors, err = meter.Int64Counter(
		"inbox.send.errors",
		metric.WithDescription("Number of send errors"),
	)
	if err != nil {
		return err
	}

	o.getLatency, err = meter.Float64Histogram(
		"inbox.get.duration",
		metric.WithDescription("Duration of get operations"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}
	o.getCount, err = meter.Int64Counter(
		"inbox.get.count",
		metric.WithDescription("Number of get operations"),
	)
	if err != nil {
		return err
	}
	o.getErrors, err = meter.Int64Counter(
		"inbox.get.errors",
		metric.WithDescription("Number of get errors"),
	)
	if err != nil {
		return err
	}

	o.queryLatency, err = meter.Float64Histogram(
		"inbox.query.duration",
		metric.WithDescription("Duration of query operations"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}
	o.queryCount, err = meter.Int64Counter(
		"inbox.query.count",
		metric.WithDescription("Number of query operations"),
	)
	if err != nil {
		return err
	}
	o.queryResults, err = meter.Int64Counter(
		"inbox.query.results",
		metric.WithDescription("Number of messages returned by queries"),
	)
	if err != nil {
		return err
	}
	o.queryErrors, err = meter.Int64Counter(
		"inbox.query.errors",
		metric.WithDescription("Number of query errors"),
	)
	if err != nil {
		return err
	}

	o.labelLatency, err = meter.Float64Histogram(
		"inbox.label.duration",
		metric.WithDescription("Duration of label operations"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}
	o.labelCount, err = meter.Int64Counter(
		"inbox.label.count",
		metric.WithDescription("Number of label operations"),
	)
	if err != nil {
		return err
	}
	o.labelErrors, err = meter.Int64Counter(
		"inbox.label.errors",
		metric.WithDescription("Number of label errors"),
	)
	if err != nil {
		return err
	}

	o.exportLatency, err = meter.Float64Histogram(
		"inbox.export.duration",
		metric.WithDescription("Duration of export operations"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}
	o.exportCount, err = meter.Int64Counter(
		"inbox.export.count",
		metric.WithDescription("Number of export operations"),
	)
	if err != nil {
		return err
	}
	o.exportErrors, err = meter.Int64Counter(
		"inbox.export.errors",
		metric.WithDescription("Number of export errors"),
	)
	if err != nil {
		return err
	}

	return nil
}

// startSpan starts a trace span if tracing is enabled.
// Returns the (possibly updated) context and a function to end the
// span with an error status.
func (o *otelInstrumentation) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	if !o.tracingEnabled || o.tracer == nil {
		return ctx, func(error) {}
	}

	ctx, span := o.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

func (o *otelInstrumentation) recordSend(ctx context.Context, d time.Duration, created bool, err error) {
	if !o.metricsEnabled {
		return
	}
	o.sendLatency.Record(ctx, d.Seconds())
	if err != nil {
		o.sendErrors.Add(ctx, 1)
		return
	}
	o.sendCount.Add(ctx, 1)
	if !created {
		o.sendDeduped.Add(ctx, 1)
	}
}

func (o *otelInstrumentation) recordGet(ctx context.Context, d time.Duration, err error) {
	if !o.metricsEnabled {
		return
	}
	o.getLatency.Record(ctx, d.Seconds())
	if err != nil {
		o.getErrors.Add(ctx, 1)
		return
	}
	o.getCount.Add(ctx, 1)
}

func (o *otelInstrumentation) recordQuery(ctx context.Context, d time.Duration, results int, err error) {
	if !o.metricsEnabled {
		return
	}
	o.queryLatency.Record(ctx, d.Seconds())
	if err != nil {
		o.queryErrors.Add(ctx, 1)
		return
	}
	o.queryCount.Add(ctx, 1)
	o.queryResults.Add(ctx, int64(results))
}

func (o *otelInstrumentation) recordLabel(ctx context.Context, d time.Duration, err error) {
	if !o.metricsEnabled {
		return
	}
	o.labelLatency.Record(ctx, d.Seconds())
	if err != nil {
		o.labelErrors.Add(ctx, 1)
		return
	}
	o.labelCount.Add(ctx, 1)
}

func (o *otelInstrumentation) recordExport(ctx context.Context, d time.Duration, results int, err error) {
	if !o.metricsEnabled {
		return
	}
	o.exportLatency.Record(ctx, d.Seconds())
	if err != nil {
		o.exportErrors.Add(ctx, 1)
		return
	}
	o.exportCount.Add(ctx, 1)
}
