package logger

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestManagerConfig_ApplyDefaults(t *testing.T) {
	var cfg ManagerConfig
	cfg.ApplyDefaults()

	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, "json", cfg.Encoding)
	assert.Equal(t, 100, cfg.MaxSize)
	assert.NoError(t, cfg.Validate())
}

func TestManagerConfig_Validate(t *testing.T) {
	cfg := DefaultManagerConfig()
	cfg.Level = "verbose"
	assert.Error(t, cfg.Validate())

	cfg = DefaultManagerConfig()
	cfg.Encoding = "xml"
	assert.Error(t, cfg.Validate())

	cfg = DefaultManagerConfig()
	cfg.MaxSize = 0
	assert.Error(t, cfg.Validate())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, ParseLevel("warn"))
	assert.Equal(t, zapcore.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("bogus"))
}

func TestManager_GetLoggerIsCached(t *testing.T) {
	m := NewManager(ManagerConfig{})
	defer m.Close()

	a := m.GetLogger("cache")
	b := m.GetLogger("cache")
	assert.Same(t, a, b)
	assert.Equal(t, "cache", a.Module())
	assert.NotSame(t, a, m.GetLogger("pipeline"))
}

func TestManager_WritesRotatedFile(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(ManagerConfig{Dir: dir, Level: "debug"})

	m.GetLogger("cache").Info("entry evicted", zap.String("key", "model-nucleus-q2"))
	m.Close()

	data, err := os.ReadFile(filepath.Join(dir, "cache.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "entry evicted")
	assert.Contains(t, string(data), `"module":"cache"`)
}

func TestCtxZapLogger_NilIsSafe(t *testing.T) {
	var l *CtxZapLogger
	assert.NotPanics(t, func() {
		l.Info("x")
		l.WarnCtx(context.Background(), "y")
		_ = l.With(zap.Int("a", 1))
		_ = l.GetZapLogger()
	})
}

func TestCtxZapLogger_Observed(t *testing.T) {
	l, logs := NewObserved("quality", zapcore.InfoLevel)

	l.Debug("dropped")
	l.With(zap.String("from", "high")).Warn("quality stepped down")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "quality stepped down", entry.Message)
	assert.Equal(t, "high", entry.ContextMap()["from"])
	assert.Equal(t, "quality", entry.ContextMap()["module"])
}

func TestCtxZapLogger_TraceID(t *testing.T) {
	cfg := DefaultManagerConfig()
	l, logs := NewObserved("cache", zapcore.InfoLevel)
	l.cfg = &cfg

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	}))

	l.InfoCtx(ctx, "load finished")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", fields["trace_id"])
	assert.Equal(t, "scene-assets", fields["app_name"])
}
