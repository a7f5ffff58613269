package telemetry

import (
	"context"
	"io"
	"time"

	"github.com/gruntwork-io/actiontree/internal/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const readerInterval = time.Second

// Meter records durations and counters.
type Meter struct {
	metric.Meter
	provider *sdkmetric.MeterProvider
	exporter sdkmetric.Exporter
}

// NewMeter creates and configures the metrics collection. It returns nil if no exporter is configured.
func NewMeter(ctx context.Context, appName, appVersion string, writer io.Writer, opts *Options) (*Meter, error) {
	exporter, err := NewMetricExporter(ctx, writer, opts)
	if err != nil {
		return nil, errors.New(err)
	}

	if exporter == nil {
		return nil, nil
	}

	r, err := newResource(appName, appVersion)
	if err != nil {
		return nil, err
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(r),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(readerInterval))),
	)

	otel.SetMeterProvider(provider)

	return &Meter{
		Meter:    provider.Meter(appName),
		provider: provider,
		exporter: exporter,
	}, nil
}

// NewMetricExporter creates a new exporter based on the telemetry options.
func NewMetricExporter(ctx context.Context, writer io.Writer, opts *Options) (sdkmetric.Exporter, error) {
	switch opts.MetricExporter {
	case otlpHTTPExporterType:
		var config []otlpmetrichttp.Option
		if opts.MetricExporterInsecureEndpoint {
			config = append(config, otlpmetrichttp.WithInsecure())
		}

		return otlpmetrichttp.New(ctx, config...)
	case otlpGrpcExporterType:
		var config []otlpmetricgrpc.Option
		if opts.MetricExporterInsecureEndpoint {
			config = append(config, otlpmetricgrpc.WithInsecure())
		}

		return otlpmetricgrpc.New(ctx, config...)
	case consoleExporterType:
		return stdoutmetric.New(stdoutmetric.WithWriter(writer))
	case "", noneExporterType:
		return nil, nil
	default:
		return nil, errors.Errorf("unknown metric exporter %q", opts.MetricExporter)
	}
}

// Time records the duration of fn in milliseconds, and counts its errors.
func (meter *Meter) Time(ctx context.Context, name string, attrs map[string]any, fn func(childCtx context.Context) error) error {
	if meter == nil || meter.provider == nil {
		return fn(ctx)
	}

	histogram, err := meter.Int64Histogram(CleanMetricName(name+"_duration"), metric.WithUnit("ms"))
	if err != nil {
		return fn(ctx)
	}

	start := time.Now()
	err = fn(ctx)

	histogram.Record(ctx, time.Since(start).Milliseconds(), metric.WithAttributes(mapToAttributes(attrs)...))

	if err != nil {
		meter.Count(ctx, name+"_errors", 1, attrs)
	}

	return err
}

// Count adds value to the counter name.
func (meter *Meter) Count(ctx context.Context, name string, value int64, attrs map[string]any) {
	if meter == nil || meter.provider == nil {
		return
	}

	counter, err := meter.Int64Counter(CleanMetricName(name))
	if err != nil {
		return
	}

	counter.Add(ctx, value, metric.WithAttributes(mapToAttributes(attrs)...))
}
