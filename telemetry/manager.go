package telemetry

import (
	"context"
	"errors"
	"fmt"

	"github.com/KOMKZ/go-yogan-assets/logger"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

// Manager wires the metric and trace providers for one process.
type Manager struct {
	config         Config
	logger         *logger.CtxZapLogger
	reader         sdkmetric.Reader
	tracerProvider *sdktrace.TracerProvider
	metricsManager *MetricsManager
}

// ManagerOption configures a Manager
type ManagerOption func(*Manager)

// WithReader routes metrics to reader instead of the configured exporter.
func WithReader(reader sdkmetric.Reader) ManagerOption {
	return func(m *Manager) { m.reader = reader }
}

// NewManager creates an unstarted manager; nil log is a no-op logger.
func NewManager(cfg Config, log *logger.CtxZapLogger, opts ...ManagerOption) *Manager {
	cfg.ApplyDefaults()
	if log == nil {
		log = logger.NewNop()
	}
	m := &Manager{config: cfg, logger: log}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start builds the providers. Disabled telemetry leaves both nil and every
// accessor falls back to no-op implementations.
func (m *Manager) Start(ctx context.Context) error {
	if !m.config.Enabled {
		m.logger.DebugCtx(ctx, "telemetry disabled")
		return nil
	}
	if err := m.config.Validate(); err != nil {
		return fmt.Errorf("invalid telemetry config: %w", err)
	}

	res, err := newResource(ctx, m.config)
	if err != nil {
		if res == nil {
			return fmt.Errorf("create resource failed: %w", err)
		}
		// partial detection still yields a usable resource
		m.logger.WarnCtx(ctx, "telemetry resource partially detected", zap.Error(err))
	}

	if m.config.Traces.Enabled {
		tp, err := newTracerProvider(ctx, m.config, res)
		if err != nil {
			return err
		}
		m.tracerProvider = tp
	}

	mm, err := NewMetricsManager(ctx, m.config, res, m.reader)
	if err != nil {
		return err
	}
	m.metricsManager = mm

	m.logger.InfoCtx(ctx, "telemetry started",
		zap.String("service", m.config.ServiceName),
		zap.String("exporter", m.config.Exporter.Type),
		zap.Bool("traces", m.tracerProvider != nil),
		zap.Bool("metrics", mm.IsEnabled()),
	)
	return nil
}

// Meter named meter, no-op before Start or when disabled
func (m *Manager) Meter(name string) metric.Meter {
	return m.metricsManager.Meter(name)
}

// Builder instrument builder under the configured namespace
func (m *Manager) Builder(name string) *MetricsBuilder {
	return NewMetricsBuilder(m.Meter(name), m.config.Metrics.Namespace)
}

// Tracer named tracer, no-op before Start or when disabled
func (m *Manager) Tracer(name string) trace.Tracer {
	if m.tracerProvider == nil {
		return tracenoop.NewTracerProvider().Tracer(name)
	}
	return m.tracerProvider.Tracer(name)
}

// TracerProvider the sdk provider, or a no-op one when traces are off
func (m *Manager) TracerProvider() trace.TracerProvider {
	if m.tracerProvider == nil {
		return tracenoop.NewTracerProvider()
	}
	return m.tracerProvider
}

// TracesEnabled whether spans are exported
func (m *Manager) TracesEnabled() bool { return m.tracerProvider != nil }

// MetricsManager exposes the metric side
func (m *Manager) MetricsManager() *MetricsManager {
	return m.metricsManager
}

// Shutdown flushes both providers
func (m *Manager) Shutdown(ctx context.Context) error {
	var errs []error
	if m.tracerProvider != nil {
		if err := m.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown tracer provider failed: %w", err))
		}
	}
	if err := m.metricsManager.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown meter provider failed: %w", err))
	}
	return errors.Join(errs...)
}
