package otel

import (
	"context"
	"errors"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

type Options struct {
	// Process role, e.g. coordinator or worker
	Role     string
	Semester string
	// Export over OTLP gRPC (configured through OTEL_EXPORTER_OTLP_* env) instead of stderr
	UseOTLP bool
	// Zero uses the SDK default of one minute
	MetricInterval time.Duration
}

type exporters struct {
	spans   trace.SpanExporter
	metrics metric.Exporter
	logs    log.Exporter
}

func newExporters(ctx context.Context, useOTLP bool) (*exporters, error) {
	var ex exporters
	var errs [3]error
	if useOTLP {
		ex.spans, errs[0] = otlptracegrpc.New(ctx)
		ex.metrics, errs[1] = otlpmetricgrpc.New(ctx)
		ex.logs, errs[2] = otlploggrpc.New(ctx)
	} else {
		ex.spans, errs[0] = stdouttrace.New(stdouttrace.WithWriter(os.Stderr))
		ex.metrics, errs[1] = stdoutmetric.New(stdoutmetric.WithWriter(os.Stderr))
		ex.logs, errs[2] = stdoutlog.New(stdoutlog.WithWriter(os.Stderr))
	}
	if err := errors.Join(errs[:]...); err != nil {
		return nil, err
	}
	return &ex, nil
}

func newResource(opts Options) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		semconv.ServiceName("didit"),
		semconv.ServiceInstanceID(opts.Role),
	}
	if opts.Semester != "" {
		attrs = append(attrs, attribute.String("didit.semester", opts.Semester))
	}
	if host, err := os.Hostname(); err == nil {
		attrs = append(attrs, semconv.HostName(host))
	}
	return resource.Merge(resource.Default(), resource.NewWithAttributes(semconv.SchemaURL, attrs...))
}

// SetupOTelSDK installs global trace, metric and log providers for one didit process. If it
// does not return an error, make sure to call shutdown.
func SetupOTelSDK(ctx context.Context, opts Options) (func(context.Context) error, error) {
	var shutdownFuncs []func(context.Context) error

	// Each registered cleanup runs once; errors are joined
	shutdown := func(ctx context.Context) error {
		var er error
		for _, fn := range shutdownFuncs {
			er = errors.Join(er, fn(ctx))
		}
		shutdownFuncs = nil
		return er
	}

	handleErr := func(inErr error) error {
		return errors.Join(inErr, shutdown(ctx))
	}

	res, err := newResource(opts)
	if err != nil {
		return shutdown, handleErr(err)
	}

	ex, err := newExporters(ctx, opts.UseOTLP)
	if err != nil {
		return shutdown, handleErr(err)
	}

	otel.SetTextMapPropagator(newPropagator())

	tracerProvider := trace.NewTracerProvider(
		trace.WithResource(res),
		trace.WithSampler(trace.ParentBased(trace.AlwaysSample())),
		trace.WithBatcher(ex.spans),
	)
	shutdownFuncs = append(shutdownFuncs, tracerProvider.Shutdown)
	otel.SetTracerProvider(tracerProvider)

	var readerOpts []metric.PeriodicReaderOption
	if opts.MetricInterval > 0 {
		readerOpts = append(readerOpts, metric.WithInterval(opts.MetricInterval))
	}
	meterProvider := metric.NewMeterProvider(
		metric.WithResource(res),
		metric.WithReader(metric.NewPeriodicReader(ex.metrics, readerOpts...)),
	)
	shutdownFuncs = append(shutdownFuncs, meterProvider.Shutdown)
	otel.SetMeterProvider(meterProvider)

	loggerProvider := log.NewLoggerProvider(
		log.WithResource(res),
		log.WithProcessor(log.NewBatchProcessor(ex.logs)),
	)
	shutdownFuncs = append(shutdownFuncs, loggerProvider.Shutdown)
	global.SetLoggerProvider(loggerProvider)

	return shutdown, nil
}

//nolint:ireturn // no control over otel's propagator interface return.
func newPropagator() propagation.TextMapPropagator {
	return propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	)
}
