package observe

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
)

// ProviderConfig configures the OpenTelemetry SDK providers.
type ProviderConfig struct {
	// ServiceName is the service name reported in telemetry. Default: "carecoach".
	ServiceName string

	// ServiceVersion is the service version reported in telemetry.
	ServiceVersion string

	// MetricsFile, when set, receives a Prometheus text-format snapshot of
	// all metrics on shutdown. Suitable for node_exporter's textfile
	// collector.
	MetricsFile string

	// TraceExporter is an optional span exporter. When nil, spans are
	// recorded but not exported.
	TraceExporter sdktrace.SpanExporter
}

// Telemetry is the result of [InitProvider].
type Telemetry struct {
	// Registry holds the Prometheus-bridged metrics.
	Registry *prometheus.Registry

	// Metrics is built on the new meter provider.
	Metrics *Metrics

	metricsFile string
	shutdown    []func(context.Context) error
}

// InitProvider initialises the OTel SDK with the given config. It sets up a
// [sdkmetric.MeterProvider] exporting into a private Prometheus registry and a
// [sdktrace.TracerProvider] with the configured exporter. Both are registered
// as the global OTel providers.
//
// Call [Telemetry.Shutdown] in a defer from main().
func InitProvider(ctx context.Context, cfg ProviderConfig) (*Telemetry, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "carecoach"
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("observe: build resource: %w", err)
	}

	t := &Telemetry{
		Registry:    prometheus.NewRegistry(),
		metricsFile: cfg.MetricsFile,
	}

	promExp, err := promexporter.New(promexporter.WithRegisterer(t.Registry))
	if err != nil {
		return nil, fmt.Errorf("observe: prometheus exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(promExp),
	)
	otel.SetMeterProvider(mp)

	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
	}
	if cfg.TraceExporter != nil {
		tpOpts = append(tpOpts, sdktrace.WithBatcher(cfg.TraceExporter))
	}
	tp := sdktrace.NewTracerProvider(tpOpts...)
	otel.SetTracerProvider(tp)

	t.Metrics, err = NewMetrics(mp)
	if err != nil {
		_ = mp.Shutdown(ctx)
		_ = tp.Shutdown(ctx)
		return nil, fmt.Errorf("observe: create metrics: %w", err)
	}

	// The snapshot must be taken before the meter provider goes away.
	t.shutdown = append(t.shutdown, t.writeMetricsFile, mp.Shutdown, tp.Shutdown)
	return t, nil
}

func (t *Telemetry) writeMetricsFile(context.Context) error {
	if t.metricsFile == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(t.metricsFile, t.Registry); err != nil {
		return fmt.Errorf("observe: write metrics file: %w", err)
	}
	return nil
}

// Shutdown writes the metrics file (if configured), then flushes and closes
// the providers. All steps run even if an earlier one fails.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	for _, fn := range t.shutdown {
		if e := fn(ctx); e != nil {
			errs = append(errs, e)
		}
	}
	return errors.Join(errs...)
}
