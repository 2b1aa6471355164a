package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

// MetricsManager owns the meter provider. It never installs itself as the
// otel global; components receive meters explicitly.
type MetricsManager struct {
	meterProvider *sdkmetric.MeterProvider
	config        MetricsConfig
	enabled       bool
}

// NewMetricsManager builds a provider exporting through cfg.Exporter.
// A non-nil reader replaces the exporter (tests use a ManualReader).
func NewMetricsManager(ctx context.Context, cfg Config, res *resource.Resource, reader sdkmetric.Reader) (*MetricsManager, error) {
	if !cfg.Enabled || !cfg.Metrics.Enabled {
		return &MetricsManager{config: cfg.Metrics}, nil
	}

	if reader == nil {
		exporter, err := newMetricExporter(ctx, cfg.Exporter)
		if err != nil {
			return nil, err
		}
		if exporter == nil {
			return &MetricsManager{config: cfg.Metrics}, nil
		}
		reader = sdkmetric.NewPeriodicReader(
			exporter,
			sdkmetric.WithInterval(cfg.Metrics.ExportInterval),
			sdkmetric.WithTimeout(cfg.Metrics.ExportTimeout),
		)
	}

	opts := []sdkmetric.Option{sdkmetric.WithReader(reader)}
	if res != nil {
		opts = append(opts, sdkmetric.WithResource(res))
	}

	return &MetricsManager{
		meterProvider: sdkmetric.NewMeterProvider(opts...),
		config:        cfg.Metrics,
		enabled:       true,
	}, nil
}

func newMetricExporter(ctx context.Context, cfg ExporterConfig) (sdkmetric.Exporter, error) {
	switch cfg.Type {
	case "otlp":
		opts := []otlpmetricgrpc.Option{
			otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
			otlpmetricgrpc.WithTimeout(cfg.Timeout),
		}
		if cfg.Insecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		if len(cfg.Headers) > 0 {
			opts = append(opts, otlpmetricgrpc.WithHeaders(cfg.Headers))
		}
		exp, err := otlpmetricgrpc.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP metrics exporter: %w", err)
		}
		return exp, nil
	case "stdout":
		exp, err := stdoutmetric.New()
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout metrics exporter: %w", err)
		}
		return exp, nil
	case "noop":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported metrics exporter type: %s", cfg.Type)
	}
}

// Meter returns a named meter; a no-op meter when metrics are off.
func (m *MetricsManager) Meter(name string) metric.Meter {
	if m == nil || m.meterProvider == nil {
		return noop.NewMeterProvider().Meter(name)
	}
	return m.meterProvider.Meter(name)
}

// Namespace instrument name prefix
func (m *MetricsManager) Namespace() string {
	if m == nil {
		return ""
	}
	return m.config.Namespace
}

// IsEnabled whether instruments are exported
func (m *MetricsManager) IsEnabled() bool {
	return m != nil && m.enabled
}

// Shutdown flushes and stops the provider
func (m *MetricsManager) Shutdown(ctx context.Context) error {
	if m == nil || m.meterProvider == nil {
		return nil
	}
	return m.meterProvider.Shutdown(ctx)
}
