// Package cache holds renderer-owned assets under a memory budget.
//
// GetOrLoad coalesces concurrent loads of one key into a single loader call,
// eviction picks the entry with the largest
//
//	idle_seconds × 1/(access_count+1) × 1/(priority+1)
//
// and every removal path disposes the asset before dropping the map entry.
package cache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/KOMKZ/go-yogan-assets/asset"
	"github.com/KOMKZ/go-yogan-assets/logger"
	"github.com/KOMKZ/go-yogan-assets/quality"
	"github.com/KOMKZ/go-yogan-assets/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// LoaderFunc produces the resource for a missing key. It runs detached from
// the requesting caller's cancellation and always runs to completion.
type LoaderFunc func(ctx context.Context) (asset.Resource, error)

type entry struct {
	handle       *asset.Handle
	lastAccessed time.Time
	accessCount  uint64
	memoryBytes  int64
	priority     int32
}

// AssetCache bounded key → handle store. Safe for concurrent use.
type AssetCache struct {
	cfg    Config
	budget int64

	mu      sync.Mutex
	entries map[asset.Key]*entry
	used    int64
	closed  bool

	sf       singleflight.Group
	inFlight atomic.Int64

	hits         atomic.Uint64
	misses       atomic.Uint64
	evictions    atomic.Uint64
	loadFailures atomic.Uint64
	oversize     atomic.Uint64
	latency      latencyWindow

	now            func() time.Time
	priority       asset.PriorityFunc
	logger         *logger.CtxZapLogger
	metricsBuilder *telemetry.MetricsBuilder
	metrics        *telemetry.CacheMetrics
}

// New validates cfg and builds an empty cache. A budget or entry limit
// of zero or less fails with ErrConfigInvalid.
func New(cfg Config, opts ...Option) (*AssetCache, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &AssetCache{
		cfg:      cfg,
		budget:   cfg.BudgetBytes(),
		entries:  make(map[asset.Key]*entry),
		now:      time.Now,
		priority: asset.DefaultPriority(cfg.PreloadPriorityKeys),
		logger:   logger.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.metricsBuilder != nil {
		m, err := c.metricsBuilder.NewCacheMetrics("asset", c.gaugeStats)
		if err != nil {
			return nil, fmt.Errorf("register cache metrics: %w", err)
		}
		c.metrics = m
	}

	c.logger.Info("asset cache created",
		zap.Int("memory_budget_mb", cfg.MemoryBudgetMB),
		zap.Int("max_entries", cfg.MaxEntries),
	)
	return c, nil
}

// Config returns the effective configuration
func (c *AssetCache) Config() Config { return c.cfg }

// Priority exposes the key scoring used at insertion
func (c *AssetCache) Priority(key asset.Key) int32 { return c.priorityOf(key) }

// GetOrLoad returns the resident handle for key or loads it. Concurrent
// callers for one missing key share a single loader call and all observe
// the same handle or the same error. A caller whose ctx ends early gets
// ctx.Err(); the load itself continues and still inserts.
func (c *AssetCache) GetOrLoad(ctx context.Context, key asset.Key, loader LoaderFunc) (*asset.Handle, error) {
	h, err := c.lookup(key, true)
	if err != nil {
		return nil, err
	}
	if h != nil {
		c.hits.Add(1)
		c.metrics.RecordHit(ctx)
		c.logger.DebugCtx(ctx, "asset cache hit", zap.String("key", key.String()))
		return h, nil
	}

	c.misses.Add(1)
	c.metrics.RecordMiss(ctx)
	c.logger.DebugCtx(ctx, "asset cache miss", zap.String("key", key.String()))

	loadCtx := context.WithoutCancel(ctx)
	ch := c.sf.DoChan(string(key), func() (any, error) {
		return c.load(loadCtx, key, loader)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*asset.Handle), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// lookup returns a resident handle, nil on miss. touch updates recency and
// frequency; only a counted hit touches.
func (c *AssetCache) lookup(key asset.Key, touch bool) (*asset.Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrCacheClosed
	}
	e, ok := c.entries[key]
	if !ok {
		return nil, nil
	}
	if touch {
		c.touchLocked(e)
	}
	return e.handle, nil
}

func (c *AssetCache) touchLocked(e *entry) {
	e.lastAccessed = c.now()
	e.accessCount++
}

func (c *AssetCache) load(ctx context.Context, key asset.Key, loader LoaderFunc) (*asset.Handle, error) {
	// Double-check: the key may have been inserted (Offer, a finished load)
	// between the caller's lookup and this flight starting. The caller
	// already counted a miss, so the entry is not touched.
	if h, err := c.lookup(key, false); err != nil || h != nil {
		return h, err
	}

	c.inFlight.Add(1)
	defer c.inFlight.Add(-1)

	start := time.Now()
	res, err := c.runLoader(ctx, loader)
	elapsed := time.Since(start)
	c.latency.record(elapsed)
	c.metrics.RecordLoad(ctx, elapsed.Seconds(), err, attribute.Bool("texture", key.IsTexture()))

	if err == nil && res == nil {
		err = fmt.Errorf("loader for %s returned no resource", key)
	}
	if err != nil {
		c.loadFailures.Add(1)
		c.logger.WarnCtx(ctx, "asset load failed",
			zap.String("key", key.String()),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		return nil, ErrLoadFailure.Wrap(err).WithData("key", key.String())
	}

	c.logger.DebugCtx(ctx, "asset loaded",
		zap.String("key", key.String()),
		zap.Int64("bytes", res.Bytes()),
		zap.Duration("elapsed", elapsed),
	)
	return c.insert(ctx, asset.NewHandle(key, res), true)
}

func (c *AssetCache) runLoader(ctx context.Context, loader LoaderFunc) (res asset.Resource, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("loader panic: %v", r)
		}
	}()
	return loader(ctx)
}

// insert makes h resident. When the key is already present the existing
// handle wins, counts as an access when touch is set, and h is disposed.
func (c *AssetCache) insert(ctx context.Context, h *asset.Handle, touch bool) (*asset.Handle, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.dispose(h)
		return nil, ErrCacheClosed
	}
	if e, ok := c.entries[h.Key()]; ok {
		if touch {
			c.touchLocked(e)
		}
		c.mu.Unlock()
		c.dispose(h)
		return e.handle, nil
	}

	bytes := h.Bytes()
	c.ensureCapacityLocked(ctx, bytes)

	now := c.now()
	c.entries[h.Key()] = &entry{
		handle:       h,
		lastAccessed: now,
		memoryBytes:  bytes,
		priority:     c.priorityOf(h.Key()),
	}
	c.used += bytes
	overshoot := c.used > c.budget
	c.mu.Unlock()

	if overshoot {
		c.reportOversize(ctx, h.Key(), bytes)
	}
	return h, nil
}

func (c *AssetCache) priorityOf(key asset.Key) int32 {
	p := c.priority(key)
	if p < 0 {
		return 0
	}
	return p
}

// ensureCapacityLocked evicts until needed bytes fit and one entry slot is
// free, or the map is empty.
func (c *AssetCache) ensureCapacityLocked(ctx context.Context, needed int64) {
	for len(c.entries) > 0 && (c.used+needed > c.budget || len(c.entries) >= c.cfg.MaxEntries) {
		key := c.victimLocked()
		c.removeLocked(ctx, key, "evicted")
		c.evictions.Add(1)
		c.metrics.RecordEviction(ctx)
	}
}

// victimLocked returns the least useful key. Equal scores fall back to the
// older access, then the lower priority, then key order.
func (c *AssetCache) victimLocked() asset.Key {
	now := c.now()
	var (
		victim    asset.Key
		victimE   *entry
		bestScore = -1.0
	)
	for k, e := range c.entries {
		s := score(now, e)
		if victimE == nil || s > bestScore || (s == bestScore && lessUseful(k, e, victim, victimE)) {
			victim, victimE, bestScore = k, e, s
		}
	}
	return victim
}

func score(now time.Time, e *entry) float64 {
	idle := now.Sub(e.lastAccessed).Seconds()
	if idle < 0 {
		idle = 0
	}
	return idle * (1 / float64(e.accessCount+1)) * (1 / float64(e.priority+1))
}

func lessUseful(k asset.Key, e *entry, ok asset.Key, oe *entry) bool {
	if !e.lastAccessed.Equal(oe.lastAccessed) {
		return e.lastAccessed.Before(oe.lastAccessed)
	}
	if e.priority != oe.priority {
		return e.priority < oe.priority
	}
	return k < ok
}

// removeLocked disposes the entry's asset, then drops it from the map.
func (c *AssetCache) removeLocked(ctx context.Context, key asset.Key, reason string) {
	e, ok := c.entries[key]
	if !ok {
		return
	}
	c.dispose(e.handle)
	delete(c.entries, key)
	c.used -= e.memoryBytes
	c.logger.DebugCtx(ctx, "asset removed",
		zap.String("key", key.String()),
		zap.String("reason", reason),
		zap.Int64("bytes", e.memoryBytes),
	)
}

// dispose releases h, logging and swallowing any disposal error.
func (c *AssetCache) dispose(h *asset.Handle) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("asset disposal panicked",
				zap.String("key", h.Key().String()),
				zap.Any("panic", r),
			)
		}
	}()
	if err := h.Dispose(); err != nil {
		c.logger.Warn("asset disposal failed",
			zap.String("key", h.Key().String()),
			zap.Error(asset.ErrDisposal.Wrap(err)),
		)
	}
}

func (c *AssetCache) reportOversize(ctx context.Context, key asset.Key, bytes int64) {
	n := c.oversize.Add(1)
	c.metrics.RecordOversize(ctx)

	fields := []zap.Field{
		zap.String("key", key.String()),
		zap.Int64("bytes", bytes),
		zap.Int64("memory_budget_bytes", c.budget),
		zap.Uint64("occurrences", n),
		zap.Error(ErrCapacityExhausted),
	}
	if n%uint64(c.cfg.OversizeEscalation) == 0 {
		c.logger.ErrorCtx(ctx, "asset repeatedly exceeds memory budget, raise memory_budget_mb",
			append(fields, zap.Int("memory_budget_mb", c.cfg.MemoryBudgetMB))...)
		return
	}
	c.logger.WarnCtx(ctx, "asset exceeds memory budget, inserted anyway", fields...)
}

// Peek returns the resident handle without touching recency or counters.
func (c *AssetCache) Peek(key asset.Key) (*asset.Handle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	return e.handle, true
}

// Offer inserts an already built resource under key. It reports false and
// disposes res when key is resident or the cache is closed.
func (c *AssetCache) Offer(ctx context.Context, key asset.Key, res asset.Resource) bool {
	h := asset.NewHandle(key, res)
	got, err := c.insert(ctx, h, false)
	return err == nil && got == h
}

// Invalidate removes key; reports whether it was resident.
func (c *AssetCache) Invalidate(key asset.Key) bool {
	return c.InvalidateWhere(func(k asset.Key) bool { return k == key }) > 0
}

// InvalidatePrefix removes every key starting with prefix.
func (c *AssetCache) InvalidatePrefix(prefix string) int {
	return c.InvalidateWhere(func(k asset.Key) bool { return strings.HasPrefix(string(k), prefix) })
}

// InvalidateQuality removes every key built for level.
func (c *AssetCache) InvalidateQuality(level quality.Level) int {
	n := c.InvalidateWhere(func(k asset.Key) bool { return k.HasQuality(level) })
	c.logger.Info("stale quality entries invalidated",
		zap.String("quality", level.String()),
		zap.Int("count", n),
	)
	return n
}

// InvalidateWhere removes every key matching pred.
func (c *AssetCache) InvalidateWhere(pred func(asset.Key) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k := range c.entries {
		if pred(k) {
			c.removeLocked(context.Background(), k, "invalidated")
			n++
		}
	}
	return n
}

// Clear disposes every entry; counters are kept.
func (c *AssetCache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.entries)
	for k := range c.entries {
		c.removeLocked(context.Background(), k, "cleared")
	}
	if n > 0 {
		c.logger.Info("asset cache cleared", zap.Int("count", n))
	}
	return n
}

// DisposeAll tears the cache down. Idempotent; afterwards GetOrLoad
// returns ErrCacheClosed and loads still in flight dispose their result.
func (c *AssetCache) DisposeAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	n := len(c.entries)
	for k := range c.entries {
		c.removeLocked(context.Background(), k, "teardown")
	}
	c.closed = true
	c.logger.Info("asset cache disposed", zap.Int("count", n))
}

// Closed reports whether DisposeAll ran
func (c *AssetCache) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Keys snapshot of resident keys
func (c *AssetCache) Keys() []asset.Key {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]asset.Key, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	return keys
}

func (c *AssetCache) gaugeStats() (int64, int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.used, int64(len(c.entries))
}
