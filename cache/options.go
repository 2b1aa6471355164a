package cache

import (
	"time"

	"github.com/KOMKZ/go-yogan-assets/asset"
	"github.com/KOMKZ/go-yogan-assets/logger"
	"github.com/KOMKZ/go-yogan-assets/telemetry"
)

// Option configures an AssetCache
type Option func(*AssetCache)

// WithLogger sets the cache logger
func WithLogger(l *logger.CtxZapLogger) Option {
	return func(c *AssetCache) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock replaces time.Now for recency bookkeeping
func WithClock(now func() time.Time) Option {
	return func(c *AssetCache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithPriority replaces the priority derivation
func WithPriority(fn asset.PriorityFunc) Option {
	return func(c *AssetCache) {
		if fn != nil {
			c.priority = fn
		}
	}
}

// WithMetrics registers the cache instruments on b
func WithMetrics(b *telemetry.MetricsBuilder) Option {
	return func(c *AssetCache) { c.metricsBuilder = b }
}
