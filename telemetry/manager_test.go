package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestManager_Disabled(t *testing.T) {
	m := NewManager(Config{Enabled: false}, nil)
	require.NoError(t, m.Start(context.Background()))

	assert.Nil(t, m.tracerProvider)
	assert.Nil(t, m.metricsManager)
	assert.NotNil(t, m.Meter("cache"))
	assert.NotNil(t, m.Tracer("manager"))
	assert.False(t, m.MetricsManager().IsEnabled())
	assert.NoError(t, m.Shutdown(context.Background()))
}

func TestManager_WithReader(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.Exporter.Type = "noop"

	m := NewManager(cfg, nil, WithReader(reader))
	require.NoError(t, m.Start(context.Background()))
	defer m.Shutdown(context.Background())

	counter, err := m.Builder("cache").Counter("probe_total", "probe")
	require.NoError(t, err)
	counter.Add(context.Background(), 3)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	found := false
	for _, sm := range rm.ScopeMetrics {
		for _, metric := range sm.Metrics {
			if metric.Name == "assets_probe_total" {
				found = true
			}
		}
	}
	assert.True(t, found)

	ctx, span := m.Tracer("manager").Start(context.Background(), "load")
	defer span.End()
	assert.True(t, span.SpanContext().HasTraceID())
	_ = ctx
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())

	cfg.Exporter.Type = "otlp"
	assert.Error(t, cfg.Validate(), "otlp without endpoint")

	cfg.Exporter.Endpoint = "localhost:4317"
	assert.NoError(t, cfg.Validate())

	cfg.Exporter.Type = "jaeger"
	assert.Error(t, cfg.Validate())
}

func TestFlattenMap(t *testing.T) {
	got := flattenMap(map[string]interface{}{
		"deployment": map[string]interface{}{"environment": "test"},
		"replicas":   2,
	}, "")
	assert.Equal(t, "test", got["deployment.environment"])
	assert.Equal(t, "2", got["replicas"])
}
