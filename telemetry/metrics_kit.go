package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsBuilder cuts instrument boilerplate and applies a name prefix
type MetricsBuilder struct {
	meter     metric.Meter
	namespace string
}

// NewMetricsBuilder creates a builder over meter
func NewMetricsBuilder(meter metric.Meter, namespace string) *MetricsBuilder {
	return &MetricsBuilder{
		meter:     meter,
		namespace: namespace,
	}
}

func (b *MetricsBuilder) fullName(name string) string {
	if b.namespace == "" {
		return name
	}
	return b.namespace + "_" + name
}

// Counter Int64Counter with {count} unit
func (b *MetricsBuilder) Counter(name, desc string) (metric.Int64Counter, error) {
	return b.meter.Int64Counter(
		b.fullName(name),
		metric.WithDescription(desc),
		metric.WithUnit("{count}"),
	)
}

// Histogram Float64Histogram with a custom unit
func (b *MetricsBuilder) Histogram(name, desc, unit string) (metric.Float64Histogram, error) {
	return b.meter.Float64Histogram(
		b.fullName(name),
		metric.WithDescription(desc),
		metric.WithUnit(unit),
	)
}

// DurationHistogram seconds
func (b *MetricsBuilder) DurationHistogram(name, desc string) (metric.Float64Histogram, error) {
	return b.Histogram(name, desc, "s")
}

// Gauge observable Int64 gauge fed by callback
func (b *MetricsBuilder) Gauge(name, desc, unit string, callback func(context.Context) (int64, error)) (metric.Int64ObservableGauge, error) {
	return b.meter.Int64ObservableGauge(
		b.fullName(name),
		metric.WithDescription(desc),
		metric.WithUnit(unit),
		metric.WithInt64Callback(func(ctx context.Context, o metric.Int64Observer) error {
			val, err := callback(ctx)
			if err != nil {
				return err
			}
			o.Observe(val)
			return nil
		}),
	)
}

// FloatGauge observable Float64 gauge fed by callback
func (b *MetricsBuilder) FloatGauge(name, desc, unit string, callback func(context.Context) (float64, error)) (metric.Float64ObservableGauge, error) {
	return b.meter.Float64ObservableGauge(
		b.fullName(name),
		metric.WithDescription(desc),
		metric.WithUnit(unit),
		metric.WithFloat64Callback(func(ctx context.Context, o metric.Float64Observer) error {
			val, err := callback(ctx)
			if err != nil {
				return err
			}
			o.Observe(val)
			return nil
		}),
	)
}

// ========== templates ==========

// CacheStatsFunc snapshot for the cache gauges
type CacheStatsFunc func() (memoryBytes, entries int64)

// CacheMetrics asset cache instruments
type CacheMetrics struct {
	Hits         metric.Int64Counter
	Misses       metric.Int64Counter
	Evictions    metric.Int64Counter
	LoadFailures metric.Int64Counter
	Oversize     metric.Int64Counter
	LoadDuration metric.Float64Histogram
	MemoryUsed   metric.Int64ObservableGauge
	Entries      metric.Int64ObservableGauge
}

// NewCacheMetrics creates the cache instrument set
func (b *MetricsBuilder) NewCacheMetrics(prefix string, stats CacheStatsFunc) (*CacheMetrics, error) {
	var (
		m   CacheMetrics
		err error
	)
	if m.Hits, err = b.Counter(prefix+"_cache_hits_total", "Total number of "+prefix+" cache hits"); err != nil {
		return nil, err
	}
	if m.Misses, err = b.Counter(prefix+"_cache_misses_total", "Total number of "+prefix+" cache misses"); err != nil {
		return nil, err
	}
	if m.Evictions, err = b.Counter(prefix+"_cache_evictions_total", "Total number of "+prefix+" cache evictions"); err != nil {
		return nil, err
	}
	if m.LoadFailures, err = b.Counter(prefix+"_cache_load_failures_total", "Total number of failed "+prefix+" loads"); err != nil {
		return nil, err
	}
	if m.Oversize, err = b.Counter(prefix+"_cache_oversize_total", "Inserts larger than the whole "+prefix+" budget"); err != nil {
		return nil, err
	}
	if m.LoadDuration, err = b.DurationHistogram(prefix+"_cache_load_duration_seconds", prefix+" loader duration"); err != nil {
		return nil, err
	}
	if stats != nil {
		if m.MemoryUsed, err = b.Gauge(prefix+"_cache_memory_bytes", "Estimated "+prefix+" cache memory", "By",
			func(context.Context) (int64, error) {
				mem, _ := stats()
				return mem, nil
			}); err != nil {
			return nil, err
		}
		if m.Entries, err = b.Gauge(prefix+"_cache_entries", "Resident "+prefix+" cache entries", "{entry}",
			func(context.Context) (int64, error) {
				_, n := stats()
				return n, nil
			}); err != nil {
			return nil, err
		}
	}
	return &m, nil
}

// RecordLoad records one finished loader call
func (m *CacheMetrics) RecordLoad(ctx context.Context, durationSec float64, err error, attrs ...attribute.KeyValue) {
	if m == nil {
		return
	}
	opt := metric.WithAttributes(attrs...)
	m.LoadDuration.Record(ctx, durationSec, opt)
	if err != nil {
		m.LoadFailures.Add(ctx, 1, opt)
	}
}

// RecordHit records a cache hit
func (m *CacheMetrics) RecordHit(ctx context.Context, attrs ...attribute.KeyValue) {
	if m == nil {
		return
	}
	m.Hits.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordMiss records a cache miss
func (m *CacheMetrics) RecordMiss(ctx context.Context, attrs ...attribute.KeyValue) {
	if m == nil {
		return
	}
	m.Misses.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordEviction records an eviction
func (m *CacheMetrics) RecordEviction(ctx context.Context, attrs ...attribute.KeyValue) {
	if m == nil {
		return
	}
	m.Evictions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordOversize records an insert that overshoots the budget
func (m *CacheMetrics) RecordOversize(ctx context.Context, attrs ...attribute.KeyValue) {
	if m == nil {
		return
	}
	m.Oversize.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// PipelineMetrics texture derivation instruments
type PipelineMetrics struct {
	Renders     metric.Int64Counter
	Derivations metric.Int64Counter
	BelowNative metric.Int64Counter
	Duration    metric.Float64Histogram
}

// NewPipelineMetrics creates the pipeline instrument set
func (b *MetricsBuilder) NewPipelineMetrics(prefix string) (*PipelineMetrics, error) {
	var (
		m   PipelineMetrics
		err error
	)
	if m.Renders, err = b.Counter(prefix+"_renders_total", "Base renders of a "+prefix+" source"); err != nil {
		return nil, err
	}
	if m.Derivations, err = b.Counter(prefix+"_derivations_total", "Variants derived by resampling"); err != nil {
		return nil, err
	}
	if m.BelowNative, err = b.Counter(prefix+"_below_native_total", "Variants capped at a raster's native size"); err != nil {
		return nil, err
	}
	if m.Duration, err = b.DurationHistogram(prefix+"_derive_duration_seconds", prefix+" derive duration"); err != nil {
		return nil, err
	}
	return &m, nil
}

// QualityMetrics quality controller instruments
type QualityMetrics struct {
	Changes metric.Int64Counter
	Level   metric.Int64ObservableGauge
}

// NewQualityMetrics creates the controller instrument set
func (b *MetricsBuilder) NewQualityMetrics(prefix string, level func() int64) (*QualityMetrics, error) {
	changes, err := b.Counter(prefix+"_changes_total", "Quality level changes")
	if err != nil {
		return nil, err
	}
	gauge, err := b.Gauge(prefix+"_level", "Current quality level", "{level}", func(context.Context) (int64, error) {
		return level(), nil
	})
	if err != nil {
		return nil, err
	}
	return &QualityMetrics{Changes: changes, Level: gauge}, nil
}

// RecordChange counts one level change
func (m *QualityMetrics) RecordChange(ctx context.Context, attrs ...attribute.KeyValue) {
	if m == nil {
		return
	}
	m.Changes.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// FrameMetrics performance monitor instruments
type FrameMetrics struct {
	FPS       metric.Float64ObservableGauge
	FrameTime metric.Float64Histogram
}

// NewFrameMetrics creates the monitor instrument set
func (b *MetricsBuilder) NewFrameMetrics(prefix string, fps func() float64) (*FrameMetrics, error) {
	gauge, err := b.FloatGauge(prefix+"_fps", "Smoothed frames per second", "{frame}/s", func(context.Context) (float64, error) {
		return fps(), nil
	})
	if err != nil {
		return nil, err
	}
	hist, err := b.DurationHistogram(prefix+"_frame_time_seconds", "Average frame time per sample")
	if err != nil {
		return nil, err
	}
	return &FrameMetrics{FPS: gauge, FrameTime: hist}, nil
}

// RecordFrameTime records one sample's average frame time
func (m *FrameMetrics) RecordFrameTime(ctx context.Context, seconds float64) {
	if m == nil {
		return
	}
	m.FrameTime.Record(ctx, seconds)
}
