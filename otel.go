package mailstore

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	instrumentationName = "github.com/inboxkit/mailstore"
)

// otelInstrumentation holds OpenTelemetry instrumentation for the service.
type otelInstrumentation struct {
	enabled bool

	// Tracing
	tracingEnabled bool
	tracer         trace.Tracer

	// Metrics
	metricsEnabled bool

	putLatency metric.Float64Histogram
	putCount   metric.Int64Counter
	putErrors  metric.Int64Counter
	putBytes   metric.Int64Counter

	getLatency metric.Float64Histogram
	getCount   metric.Int64Counter
	getErrors  metric.Int64Counter

	listLatency metric.Float64Histogram
	listCount   metric.Int64Counter
	listErrors  metric.Int64Counter

	modifyLatency metric.Float64Histogram
	modifyCount   metric.Int64Counter
	modifyErrors  metric.Int64Counter

	deleteLatency metric.Float64Histogram
	deleteCount   metric.Int64Counter
	deleteErrors  metric.Int64Counter

	purgeLatency metric.Float64Histogram
	purgeCount   metric.Int64Counter
	purgeErrors  metric.Int64Counter

	scrubLatency metric.Float64Histogram
	scrubCount   metric.Int64Counter
	scrubErrors  metric.Int64Counter
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

	instruments := []struct {
		latency *metric.Float64Histogram
		count   *metric.Int64Counter
		errors  *metric.Int64Counter
		name    string
	}{
		{&o.putLatency, &o.putCount, &o.putErrors, "put"},
		{&o.getLatency, &o.getCount, &o.getErrors, "get"},
		{&o.listLatency, &o.listCount, &o.listErrors, "list"},
		{&o.modifyLatency, &o.modifyCount, &o.modifyErrors, "modify"},
		{&o.deleteLatency, &o.deleteCount, &o.deleteErrors, "delete"},
		{&o.purgeLatency, &o.purgeCount, &o.purgeErrors, "purge"},
		{&o.scrubLatency, &o.scrubCount, &o.scrubErrors, "scrub"},
	}

	var err error
	for _, in := range instruments {
		*in.latency, err = meter.Float64Histogram(
			"mailstore."+in.name+".duration",
			metric.WithDescription("Duration of "+in.name+" operations"),
			metric.WithUnit("s"),
		)
		if err != nil {
			return err
		}
		*in.count, err = meter.Int64Counter(
			"mailstore."+in.name+".count",
			metric.WithDescription("Number of "+in.name+" operations"),
		)
		if err != nil {
			return err
		}
		*in.errors, err = meter.Int64Counter(
			"mailstore."+in.name+".errors",
			metric.WithDescription("Number of "+in.name+" errors"),
		)
		if err != nil {
			return err
		}
	}

	o.putBytes, err = meter.Int64Counter(
		"mailstore.put.bytes",
		metric.WithDescription("Raw content bytes accepted by put"),
		metric.WithUnit("By"),
	)
	return err
}

// startSpan starts a new span if tracing is enabled. The returned
// function records the outcome and ends the span.
func (o *otelInstrumentation) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	if !o.tracingEnabled || o.tracer == nil {
		return ctx, func(error) {}
	}
	ctx, span := o.tracer.Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}
}

func (o *otelInstrumentation) record(ctx context.Context, latency metric.Float64Histogram, count, errCount metric.Int64Counter, duration time.Duration, err error, attrs ...attribute.KeyValue) {
	if !o.metricsEnabled {
		return
	}
	set := metric.WithAttributes(attrs...)
	latency.Record(ctx, duration.Seconds(), set)
	count.Add(ctx, 1, set)
	if err != nil {
		errCount.Add(ctx, 1, set)
	}
}

// recordPut records put operation metrics.
func (o *otelInstrumentation) recordPut(ctx context.Context, duration time.Duration, size int64, err error) {
	o.record(ctx, o.putLatency, o.putCount, o.putErrors, duration, err)
	if o.metricsEnabled && err == nil {
		o.putBytes.Add(ctx, size)
	}
}

// recordGet records get operation metrics.
func (o *otelInstrumentation) recordGet(ctx context.Context, duration time.Duration, err error) {
	o.record(ctx, o.getLatency, o.getCount, o.getErrors, duration, err)
}

// recordList records list operation metrics.
func (o *otelInstrumentation) recordList(ctx context.Context, duration time.Duration, labelID, resultCount int, err error) {
	o.record(ctx, o.listLatency, o.listCount, o.listErrors, duration, err,
		attribute.Int("label_id", labelID),
		attribute.Int("result_count", resultCount))
}

// recordModify records modify operation metrics.
func (o *otelInstrumentation) recordModify(ctx context.Context, duration time.Duration, messageCount int, err error) {
	o.record(ctx, o.modifyLatency, o.modifyCount, o.modifyErrors, duration, err,
		attribute.Int("message_count", messageCount))
}

// recordDelete records soft delete metrics.
func (o *otelInstrumentation) recordDelete(ctx context.Context, duration time.Duration, messageCount int, err error) {
	o.record(ctx, o.deleteLatency, o.deleteCount, o.deleteErrors, duration, err,
		attribute.Int("message_count", messageCount))
}

// recordPurge records purge pass metrics.
func (o *otelInstrumentation) recordPurge(ctx context.Context, duration time.Duration, purged int, err error) {
	o.record(ctx, o.purgeLatency, o.purgeCount, o.purgeErrors, duration, err,
		attribute.Int("purged_count", purged))
}

// recordScrub records scrub pass metrics.
func (o *otelInstrumentation) recordScrub(ctx context.Context, duration time.Duration, err error) {
	o.record(ctx, o.scrubLatency, o.scrubCount, o.scrubErrors, duration, err)
}
