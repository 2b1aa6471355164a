// Package pipeline derives raster texture variants from vector or raster
// sources: one expensive base render, then cheap area-averaged downsamples.
package pipeline

import (
	"context"
	"fmt"
	"image"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/KOMKZ/go-yogan-assets/asset"
	"github.com/KOMKZ/go-yogan-assets/logger"
	"github.com/KOMKZ/go-yogan-assets/quality"
	"github.com/KOMKZ/go-yogan-assets/telemetry"
	"github.com/panjf2000/ants/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	xdraw "golang.org/x/image/draw"
)

// Pipeline resolution pipeline. Independent of any cache.
type Pipeline struct {
	cfg    Config
	logger *logger.CtxZapLogger
	pool   *ants.Pool

	renders     atomic.Int64
	derivations atomic.Int64

	metricsBuilder *telemetry.MetricsBuilder
	metrics        *telemetry.PipelineMetrics
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithLogger sets the pipeline logger
func WithLogger(l *logger.CtxZapLogger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithMetrics registers the pipeline instruments on b
func WithMetrics(b *telemetry.MetricsBuilder) Option {
	return func(p *Pipeline) { p.metricsBuilder = b }
}

// New builds a pipeline with its batch worker pool.
func New(cfg Config, opts ...Option) (*Pipeline, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, ErrInvalidSize.Wrap(err).WithMsg("invalid pipeline configuration")
	}

	p := &Pipeline{cfg: cfg, logger: logger.NewNop()}
	for _, opt := range opts {
		opt(p)
	}

	pool, err := ants.NewPool(cfg.Workers, ants.WithPanicHandler(func(r any) {
		p.logger.Error("pipeline worker panic", zap.Any("panic", r))
	}))
	if err != nil {
		return nil, fmt.Errorf("create pipeline pool: %w", err)
	}
	p.pool = pool

	if p.metricsBuilder != nil {
		m, err := p.metricsBuilder.NewPipelineMetrics("pipeline")
		if err != nil {
			pool.Release()
			return nil, fmt.Errorf("register pipeline metrics: %w", err)
		}
		p.metrics = m
	}
	return p, nil
}

// Config returns the effective configuration
func (p *Pipeline) Config() Config { return p.cfg }

// Renders number of base renders so far
func (p *Pipeline) Renders() int64 { return p.renders.Load() }

// Derivations number of resampled variants so far
func (p *Pipeline) Derivations() int64 { return p.derivations.Load() }

// Close releases the worker pool
func (p *Pipeline) Close() {
	p.pool.Release()
}

// DeriveVariants renders src once at the largest requested size and derives
// the smaller sizes from that base. A raster source is never upsampled:
// sizes above its native resolution are capped and flagged BelowNative.
// The result is keyed by requested size.
func (p *Pipeline) DeriveVariants(ctx context.Context, src Source, level quality.Level, sizes []int) (map[int]*Texture, error) {
	sizes, err := p.normalizeSizes(sizes)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	sampling := SamplingFor(level)

	nw, nh, scalable := src.Native()
	largest := sizes[0]
	baseSize := largest
	if !scalable {
		baseSize = min(largest, max(nw, nh))
	}

	base, err := p.render(src, nw, nh, baseSize)
	if err != nil {
		return nil, err
	}

	out := make(map[int]*Texture, len(sizes))
	for _, size := range sizes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if size >= baseSize {
			below := size > baseSize
			if below {
				p.logger.WarnCtx(ctx, "requested size above native resolution, capped",
					zap.Int("requested", size),
					zap.Int("native", baseSize),
				)
				p.countBelowNative(ctx)
			}
			out[size] = newTexture(size, cloneRGBA(base), sampling, below)
			continue
		}
		w, h := fitDims(nw, nh, size)
		out[size] = newTexture(size, resample(base, w, h), sampling, false)
		p.derivations.Add(1)
		if p.metrics != nil {
			p.metrics.Derivations.Add(ctx, 1)
		}
	}

	if p.metrics != nil {
		p.metrics.Duration.Record(ctx, time.Since(start).Seconds(),
			metric.WithAttributes(attribute.String("quality", level.String())))
	}
	p.logger.DebugCtx(ctx, "texture variants derived",
		zap.Ints("sizes", sizes),
		zap.Int("base", baseSize),
		zap.String("quality", level.String()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return out, nil
}

// normalizeSizes validates, dedupes and sorts descending.
func (p *Pipeline) normalizeSizes(sizes []int) ([]int, error) {
	if len(sizes) == 0 {
		return nil, ErrInvalidSize.WithMsg("no target sizes")
	}
	seen := make(map[int]struct{}, len(sizes))
	out := make([]int, 0, len(sizes))
	for _, s := range sizes {
		if s <= 0 || s > p.cfg.MaxTextureSize {
			return nil, ErrInvalidSize.WithMsgf("size %d outside 1..%d", s, p.cfg.MaxTextureSize)
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(out)))
	return out, nil
}

func (p *Pipeline) render(src Source, nw, nh, size int) (img *image.RGBA, err error) {
	defer func() {
		if r := recover(); r != nil {
			img, err = nil, ErrRenderFailed.Wrap(fmt.Errorf("render panic: %v", r))
		}
	}()
	w, h := fitDims(nw, nh, size)
	img, err = src.Render(w, h)
	if err != nil {
		return nil, ErrRenderFailed.Wrap(err)
	}
	p.renders.Add(1)
	if p.metrics != nil {
		p.metrics.Renders.Add(context.Background(), 1)
	}
	return img, nil
}

func (p *Pipeline) countBelowNative(ctx context.Context) {
	if p.metrics != nil {
		p.metrics.BelowNative.Add(ctx, 1)
	}
}

func cloneRGBA(src *image.RGBA) *image.RGBA {
	dst := image.NewRGBA(src.Bounds())
	copy(dst.Pix, src.Pix)
	return dst
}

// BatchItem one source in a batch
type BatchItem struct {
	ID     string
	Source Source
}

// BatchOptions batch conversion settings
type BatchOptions struct {
	Quality    quality.Level
	TargetSize int  // independent mode edge length
	Atlas      bool // pack everything into one surface
}

// BatchResult independent mode fills Textures; atlas mode fills Atlas and
// Regions. Failed holds per-item errors in either mode.
type BatchResult struct {
	Textures map[string]*Texture
	Atlas    *Texture
	Regions  map[string]asset.UVRect
	Failed   map[string]error
}

// BatchProcess converts many sources on the worker pool.
func (p *Pipeline) BatchProcess(ctx context.Context, items []BatchItem, opts BatchOptions) (*BatchResult, error) {
	if len(items) == 0 {
		return &BatchResult{}, nil
	}
	if opts.Atlas {
		return p.packAtlas(ctx, items, opts)
	}
	if opts.TargetSize <= 0 || opts.TargetSize > p.cfg.MaxTextureSize {
		return nil, ErrInvalidSize.WithMsgf("batch target size %d", opts.TargetSize)
	}

	res := &BatchResult{
		Textures: make(map[string]*Texture, len(items)),
		Failed:   make(map[string]error),
	}
	sampling := SamplingFor(opts.Quality)

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, item := range items {
		wg.Add(1)
		err := p.pool.Submit(func() {
			defer wg.Done()
			nw, nh, scalable := item.Source.Native()
			size := opts.TargetSize
			below := false
			if !scalable && size > max(nw, nh) {
				size, below = max(nw, nh), true
			}
			img, err := p.render(item.Source, nw, nh, size)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Failed[item.ID] = err
				return
			}
			res.Textures[item.ID] = newTexture(opts.TargetSize, img, sampling, below)
		})
		if err != nil {
			wg.Done()
			mu.Lock()
			res.Failed[item.ID] = ErrPipelineClosed.Wrap(err)
			mu.Unlock()
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.logger.DebugCtx(ctx, "batch converted",
		zap.Int("items", len(items)),
		zap.Int("failed", len(res.Failed)),
		zap.Int("size", opts.TargetSize),
	)
	return res, nil
}

// packAtlas renders every item into one cell of a ceil(sqrt(n)) grid.
func (p *Pipeline) packAtlas(ctx context.Context, items []BatchItem, opts BatchOptions) (*BatchResult, error) {
	atlasSize := p.cfg.AtlasSize
	grid := int(math.Ceil(math.Sqrt(float64(len(items)))))
	cell := atlasSize / grid
	if cell < 1 {
		return nil, ErrInvalidSize.WithMsgf("%d items do not fit a %dpx atlas", len(items), atlasSize)
	}

	surface := image.NewRGBA(image.Rect(0, 0, atlasSize, atlasSize))
	res := &BatchResult{
		Regions: make(map[string]asset.UVRect, len(items)),
		Failed:  make(map[string]error),
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for i, item := range items {
		col, row := i%grid, i/grid
		origin := image.Pt(col*cell, row*cell)
		wg.Add(1)
		err := p.pool.Submit(func() {
			defer wg.Done()
			nw, nh, scalable := item.Source.Native()
			size := cell
			if !scalable {
				size = min(cell, max(nw, nh))
			}
			img, err := p.render(item.Source, nw, nh, size)
			if err != nil {
				mu.Lock()
				res.Failed[item.ID] = err
				mu.Unlock()
				return
			}
			// cells are disjoint so workers draw without a lock
			dr := image.Rectangle{Min: origin, Max: origin.Add(img.Bounds().Size())}
			xdraw.Draw(surface, dr, img, image.Point{}, xdraw.Src)

			f := float64(atlasSize)
			mu.Lock()
			res.Regions[item.ID] = asset.UVRect{
				U0: float64(dr.Min.X) / f, V0: float64(dr.Min.Y) / f,
				U1: float64(dr.Max.X) / f, V1: float64(dr.Max.Y) / f,
			}
			mu.Unlock()
		})
		if err != nil {
			wg.Done()
			mu.Lock()
			res.Failed[item.ID] = ErrPipelineClosed.Wrap(err)
			mu.Unlock()
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res.Atlas = newTexture(atlasSize, surface, SamplingFor(opts.Quality), false)
	p.logger.DebugCtx(ctx, "atlas packed",
		zap.Int("items", len(items)),
		zap.Int("grid", grid),
		zap.Int("cell", cell),
	)
	return res, nil
}
