// Package manager is the entry point the scene layer talks to. It turns a
// category (and zoom) into a cache key at the current quality level, loads
// misses through the registered factories and keeps the cache warm across
// quality changes.
package manager

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/KOMKZ/go-yogan-assets/asset"
	"github.com/KOMKZ/go-yogan-assets/cache"
	"github.com/KOMKZ/go-yogan-assets/errcode"
	"github.com/KOMKZ/go-yogan-assets/event"
	"github.com/KOMKZ/go-yogan-assets/logger"
	"github.com/KOMKZ/go-yogan-assets/pipeline"
	"github.com/KOMKZ/go-yogan-assets/quality"
	"github.com/KOMKZ/go-yogan-assets/retry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

// Manager asset manager
type Manager struct {
	cfg        Config
	registry   *Registry
	cache      *cache.AssetCache
	pipeline   *pipeline.Pipeline
	controller *quality.Controller

	dispatcher *event.Dispatcher
	unsub      event.UnsubscribeFunc
	logger     *logger.CtxZapLogger
	tracer     trace.Tracer

	baseCtx  context.Context
	cancel   context.CancelFunc
	rewarmMu sync.Mutex
	rewarms  sync.WaitGroup
	closed   atomic.Bool
}

// Option configures a Manager
type Option func(*Manager)

// WithLogger sets the manager logger
func WithLogger(l *logger.CtxZapLogger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithTracer wraps every public load in a span
func WithTracer(t trace.Tracer) Option {
	return func(m *Manager) {
		if t != nil {
			m.tracer = t
		}
	}
}

// WithDispatcher listens for quality.ChangedEvent on d to re-warm the cache
func WithDispatcher(d *event.Dispatcher) Option {
	return func(m *Manager) { m.dispatcher = d }
}

// New wires the manager. The cache, pipeline and controller stay owned by
// the caller.
func New(cfg Config, reg *Registry, c *cache.AssetCache, p *pipeline.Pipeline, ctrl *quality.Controller, opts ...Option) (*Manager, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if reg == nil || c == nil || p == nil || ctrl == nil {
		return nil, ErrConfigInvalid.WithMsg("registry, cache, pipeline and controller are required")
	}

	m := &Manager{
		cfg:        cfg,
		registry:   reg,
		cache:      c,
		pipeline:   p,
		controller: ctrl,
		logger:     logger.NewNop(),
		tracer:     noop.NewTracerProvider().Tracer("assets"),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.baseCtx, m.cancel = context.WithCancel(context.Background())

	if m.dispatcher != nil && cfg.RewarmOnQualityChange {
		unsub, err := m.dispatcher.Subscribe(quality.ChangedEventName, event.ListenerFunc(m.onQualityChanged), event.WithAsync())
		if err != nil {
			m.cancel()
			return nil, ErrConfigInvalid.Wrap(err).WithMsg("subscribe to quality changes")
		}
		m.unsub = unsub
	}
	return m, nil
}

// Registry factories in use
func (m *Manager) Registry() *Registry { return m.registry }

// Cache underlying cache
func (m *Manager) Cache() *cache.AssetCache { return m.cache }

// Controller quality controller in use
func (m *Manager) Controller() *quality.Controller { return m.controller }

// SizeForZoom maps a zoom factor to a texture edge length.
func SizeForZoom(zoom float64) int {
	switch {
	case zoom <= 0.5:
		return 256
	case zoom <= 1:
		return 512
	case zoom <= 2:
		return 1024
	default:
		return 2048
	}
}

// GetModel returns the model of c at the current quality level.
func (m *Manager) GetModel(ctx context.Context, c asset.Category) (*asset.Handle, error) {
	if m.closed.Load() {
		return nil, ErrClosed
	}
	factory, err := m.registry.Model(c)
	if err != nil {
		return nil, err
	}
	level := m.controller.Current()
	key := asset.ModelKey(c, level)

	ctx, span := m.startSpan(ctx, "assets.GetModel", key)
	defer span.End()

	h, err := m.cache.GetOrLoad(ctx, key, m.modelLoader(key, factory, level))
	return h, m.endSpan(span, err)
}

// GetTexture returns the texture of c sized for zoom at the current quality
// level. A miss derives every configured variant size from one render.
func (m *Manager) GetTexture(ctx context.Context, c asset.Category, zoom float64) (*asset.Handle, error) {
	return m.getTexture(ctx, c, SizeForZoom(zoom))
}

func (m *Manager) getTexture(ctx context.Context, c asset.Category, size int) (*asset.Handle, error) {
	if m.closed.Load() {
		return nil, ErrClosed
	}
	factory, err := m.registry.Texture(c)
	if err != nil {
		return nil, err
	}
	level := m.controller.Current()
	key := asset.TextureKey(c, size, level)

	ctx, span := m.startSpan(ctx, "assets.GetTexture", key)
	defer span.End()
	span.SetAttributes(attribute.Int("asset.size", size))

	h, err := m.cache.GetOrLoad(ctx, key, m.textureLoader(key, c, factory, size, level))
	return h, m.endSpan(span, err)
}

func (m *Manager) modelLoader(key asset.Key, factory ModelFactory, level quality.Level) cache.LoaderFunc {
	return func(ctx context.Context) (asset.Resource, error) {
		model, err := retry.DoWithData(ctx, func(ctx context.Context) (*asset.Model, error) {
			model, err := factory(ctx, level)
			if err != nil {
				return nil, factoryError(err)
			}
			if model == nil {
				return nil, ErrFactoryFailed.WithMsg("model factory returned nothing").WithRetryable(false)
			}
			return model, nil
		}, m.retryOptions(ctx, key)...)
		if err != nil {
			return nil, err
		}
		m.checkQualityRace(ctx, key, level)
		return model, nil
	}
}

func (m *Manager) textureLoader(key asset.Key, c asset.Category, factory TextureFactory, size int, level quality.Level) cache.LoaderFunc {
	return func(ctx context.Context) (asset.Resource, error) {
		src, err := retry.DoWithData(ctx, func(ctx context.Context) (pipeline.Source, error) {
			src, err := factory(ctx, c)
			if err != nil {
				return nil, factoryError(err)
			}
			if src == nil {
				return nil, ErrFactoryFailed.WithMsg("texture factory returned nothing").WithRetryable(false)
			}
			return src, nil
		}, m.retryOptions(ctx, key)...)
		if err != nil {
			return nil, err
		}

		variants, err := m.pipeline.DeriveVariants(ctx, src, level, m.variantSizes(size))
		if err != nil {
			return nil, err
		}
		tex := variants[size]
		for s, t := range variants {
			if s == size {
				continue
			}
			// the sibling is either cached or released by Offer
			m.cache.Offer(ctx, asset.TextureKey(c, s, level), t)
		}
		m.checkQualityRace(ctx, key, level)
		return tex, nil
	}
}

// variantSizes requested size plus every configured variant when siblings
// are offered.
func (m *Manager) variantSizes(size int) []int {
	if !m.cfg.OfferSiblings {
		return []int{size}
	}
	return append(append([]int(nil), m.pipeline.Config().VariantSizes...), size)
}

func (m *Manager) retryOptions(ctx context.Context, key asset.Key) []retry.Option {
	return []retry.Option{
		retry.MaxAttempts(m.cfg.RetryAttempts + 1),
		retry.Backoff(retry.ExponentialBackoff(m.cfg.RetryBackoff)),
		retry.OnRetry(func(attempt int, err error) {
			m.logger.WarnCtx(ctx, "asset factory failed, retrying",
				zap.String("key", string(key)),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
		}),
	}
}

// factoryError keeps layered errors as the factory returned them and marks
// anything else retryable.
func factoryError(err error) error {
	if _, ok := errcode.As(err); ok {
		return err
	}
	return ErrFactoryFailed.Wrap(err)
}

// checkQualityRace logs a load that finished after the level moved on. The
// entry is inserted under its original key; the next re-warm sweeps it.
func (m *Manager) checkQualityRace(ctx context.Context, key asset.Key, level quality.Level) {
	if cur := m.controller.Current(); cur != level {
		m.logger.WarnCtx(ctx, "quality changed during load",
			zap.String("key", string(key)),
			zap.String("loaded", level.String()),
			zap.String("current", cur.String()),
			zap.Error(cache.ErrQualityRace),
		)
	}
}

// Preload warms models (and textures at PreloadTextureSize) of the cache's
// preload priority categories at the current level.
func (m *Manager) Preload(ctx context.Context) cache.PreloadReport {
	if m.closed.Load() {
		return cache.PreloadReport{}
	}
	level := m.controller.Current()
	loaders := make(map[asset.Key]cache.LoaderFunc)
	for _, c := range m.cache.Config().PreloadPriorityKeys {
		if f, err := m.registry.Model(c); err == nil {
			key := asset.ModelKey(c, level)
			loaders[key] = m.modelLoader(key, f, level)
		}
		if size := m.cfg.PreloadTextureSize; size > 0 {
			if f, err := m.registry.Texture(c); err == nil {
				key := asset.TextureKey(c, size, level)
				loaders[key] = m.textureLoader(key, c, f, size, level)
			}
		}
	}

	ctx, span := m.tracer.Start(ctx, "assets.Preload", trace.WithAttributes(
		attribute.String("asset.quality", level.String()),
		attribute.Int("asset.count", len(loaders)),
	))
	defer span.End()

	report := m.cache.PreloadBatch(ctx, loaders)
	m.logger.InfoCtx(ctx, "preload finished",
		zap.String("quality", level.String()),
		zap.Int("loaded", len(report.Loaded)),
		zap.Int("failed", len(report.Failed)),
		zap.Int("skipped", len(report.Skipped)),
	)
	return report
}

func (m *Manager) onQualityChanged(_ context.Context, e event.Event) error {
	ce, ok := e.(quality.ChangedEvent)
	if !ok {
		return nil
	}
	m.rewarmMu.Lock()
	if m.closed.Load() {
		m.rewarmMu.Unlock()
		return nil
	}
	m.rewarms.Add(1)
	m.rewarmMu.Unlock()
	defer m.rewarms.Done()
	m.Rewarm(m.baseCtx, ce.To)
	return nil
}

// Rewarm sweeps entries of every level other than level (loads that raced
// a quality change) and preloads again.
func (m *Manager) Rewarm(ctx context.Context, level quality.Level) cache.PreloadReport {
	stale := m.cache.InvalidateWhere(func(k asset.Key) bool {
		q, ok := k.Quality()
		return ok && q != level
	})
	if stale > 0 {
		m.logger.InfoCtx(ctx, "stale entries swept before re-warm",
			zap.String("quality", level.String()),
			zap.Int("count", stale),
		)
	}
	return m.Preload(ctx)
}

// PackAtlas renders the textures of categories into one shared surface and
// caches a region per category under AtlasKey(name, category, level). The
// surface is released when the last region leaves the cache. Categories
// whose factory or render failed are missing from the result and reported
// in the returned error.
func (m *Manager) PackAtlas(ctx context.Context, name string, categories []asset.Category) (map[asset.Category]*asset.Handle, error) {
	if m.closed.Load() {
		return nil, ErrClosed
	}
	level := m.controller.Current()
	ctx, span := m.tracer.Start(ctx, "assets.PackAtlas", trace.WithAttributes(
		attribute.String("asset.atlas", name),
		attribute.Int("asset.count", len(categories)),
	))
	defer span.End()

	failed := make(map[string]error)
	items := make([]pipeline.BatchItem, 0, len(categories))
	for _, c := range categories {
		src, err := m.atlasSource(ctx, name, c, level)
		if err != nil {
			failed[string(c)] = err
			continue
		}
		items = append(items, pipeline.BatchItem{ID: string(c), Source: src})
	}
	if len(items) == 0 {
		return nil, m.endSpan(span, batchError(failed))
	}

	res, err := m.pipeline.BatchProcess(ctx, items, pipeline.BatchOptions{Quality: level, Atlas: true})
	if err != nil {
		return nil, m.endSpan(span, err)
	}
	for id, err := range res.Failed {
		failed[id] = err
	}
	if len(res.Regions) == 0 {
		_ = res.Atlas.Release()
		return nil, m.endSpan(span, batchError(failed))
	}

	// every region holds a reference before any of them can be evicted
	surface := asset.NewSharedSurface(res.Atlas)
	ids := make([]string, 0, len(res.Regions))
	for id := range res.Regions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	regions := make(map[string]*asset.AtlasRegion, len(ids))
	for _, id := range ids {
		regions[id] = surface.Region(id, res.Regions[id])
	}

	out := make(map[asset.Category]*asset.Handle, len(ids))
	for _, id := range ids {
		key := asset.AtlasKey(name, id, level)
		m.cache.Offer(ctx, key, regions[id])
		if h, ok := m.cache.Peek(key); ok {
			out[asset.Category(id)] = h
		}
	}

	m.logger.InfoCtx(ctx, "atlas packed",
		zap.String("atlas", name),
		zap.String("surface", surface.ID()),
		zap.Int("regions", len(out)),
		zap.Int("failed", len(failed)),
	)
	return out, m.endSpan(span, batchError(failed))
}

// atlasSource resolves the texture source of one atlas item through retry.
func (m *Manager) atlasSource(ctx context.Context, atlas string, c asset.Category, level quality.Level) (pipeline.Source, error) {
	factory, err := m.registry.Texture(c)
	if err != nil {
		return nil, err
	}
	key := asset.AtlasKey(atlas, string(c), level)
	return retry.DoWithData(ctx, func(ctx context.Context) (pipeline.Source, error) {
		src, err := factory(ctx, c)
		if err != nil {
			return nil, factoryError(err)
		}
		if src == nil {
			return nil, ErrFactoryFailed.WithMsg("texture factory returned nothing").WithRetryable(false)
		}
		return src, nil
	}, m.retryOptions(ctx, key)...)
}

func batchError(failed map[string]error) error {
	if len(failed) == 0 {
		return nil
	}
	ids := make([]string, 0, len(failed))
	for id := range failed {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ErrFactoryFailed.WithMsgf("%d atlas items failed", len(failed)).
		WithData("items", ids).
		Wrap(failed[ids[0]])
}

// Status manager snapshot for diagnostics
type Status struct {
	Cache       cache.Status  `json:"cache"`
	Metrics     cache.Metrics `json:"metrics"`
	Quality     string        `json:"quality"`
	Mode        string        `json:"mode"`
	Renders     int64         `json:"renders"`
	Derivations int64         `json:"derivations"`
}

// Status returns the current snapshot
func (m *Manager) Status() Status {
	return Status{
		Cache:       m.cache.Status(),
		Metrics:     m.cache.Metrics(),
		Quality:     m.controller.Current().String(),
		Mode:        m.controller.Mode().String(),
		Renders:     m.pipeline.Renders(),
		Derivations: m.pipeline.Derivations(),
	}
}

// Close stops re-warming and waits for a running re-warm to finish.
// Idempotent; the cache is left to its owner.
func (m *Manager) Close() {
	m.rewarmMu.Lock()
	if !m.closed.CompareAndSwap(false, true) {
		m.rewarmMu.Unlock()
		return
	}
	m.rewarmMu.Unlock()
	if m.unsub != nil {
		m.unsub()
	}
	m.cancel()
	m.rewarms.Wait()
	m.logger.Info("asset manager closed")
}

func (m *Manager) startSpan(ctx context.Context, name string, key asset.Key) (context.Context, trace.Span) {
	return m.tracer.Start(ctx, name, trace.WithAttributes(attribute.String("asset.key", string(key))))
}

func (m *Manager) endSpan(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
