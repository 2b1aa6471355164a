package manager

import (
	"context"
	"errors"
	"image"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/KOMKZ/go-yogan-assets/asset"
	"github.com/KOMKZ/go-yogan-assets/cache"
	"github.com/KOMKZ/go-yogan-assets/errcode"
	"github.com/KOMKZ/go-yogan-assets/event"
	"github.com/KOMKZ/go-yogan-assets/logger"
	"github.com/KOMKZ/go-yogan-assets/pipeline"
	"github.com/KOMKZ/go-yogan-assets/quality"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

type fixture struct {
	m        *Manager
	cache    *cache.AssetCache
	pipe     *pipeline.Pipeline
	ctrl     *quality.Controller
	reg      *Registry
	disp     *event.Dispatcher
	modelsBy sync.Map // asset.Category -> *atomic.Int32
	levels   chan quality.Level
}

type fixtureOptions struct {
	cfg      Config
	cacheCfg cache.Config
	dispatch bool
	log      *logger.CtxZapLogger
}

func newFixture(t *testing.T, mutate ...func(*fixtureOptions)) *fixture {
	t.Helper()
	fo := fixtureOptions{
		cfg: Config{PreloadTextureSize: 64, RetryAttempts: 2, RetryBackoff: time.Millisecond, OfferSiblings: true},
		cacheCfg: cache.Config{
			MemoryBudgetMB:     64,
			MaxEntries:         50,
			PreloadConcurrency: 3,
			PreloadYield:       time.Millisecond,
		},
	}
	for _, fn := range mutate {
		fn(&fo)
	}

	f := &fixture{reg: NewRegistry(), levels: make(chan quality.Level, 64)}

	var err error
	f.cache, err = cache.New(fo.cacheCfg, cache.WithPriority(asset.DefaultPriority(fo.cacheCfg.PreloadPriorityKeys)))
	require.NoError(t, err)
	t.Cleanup(f.cache.DisposeAll)

	f.pipe, err = pipeline.New(pipeline.Config{VariantSizes: []int{64, 128, 256}, AtlasSize: 256, Workers: 2})
	require.NoError(t, err)
	t.Cleanup(f.pipe.Close)

	ctrlOpts := []quality.Option{quality.WithInvalidator(f.cache)}
	opts := []Option{WithLogger(fo.log)}
	if fo.dispatch {
		f.disp = event.NewDispatcher()
		t.Cleanup(f.disp.Close)
		ctrlOpts = append(ctrlOpts, quality.WithDispatcher(f.disp))
		opts = append(opts, WithDispatcher(f.disp))
	}
	f.ctrl, err = quality.NewController(quality.DefaultConfig(), quality.Medium, ctrlOpts...)
	require.NoError(t, err)

	for _, c := range []asset.Category{asset.Nucleus, asset.Golgi, asset.Lysosome} {
		require.NoError(t, f.reg.RegisterModel(c, f.modelFactory(c)))
		require.NoError(t, f.reg.RegisterTexture(c, solidTexture))
	}

	f.m, err = New(fo.cfg, f.reg, f.cache, f.pipe, f.ctrl, opts...)
	require.NoError(t, err)
	t.Cleanup(f.m.Close)
	return f
}

func (f *fixture) modelFactory(c asset.Category) ModelFactory {
	return func(_ context.Context, level quality.Level) (*asset.Model, error) {
		f.countModel(c)
		f.levels <- level
		return testModel(string(c)), nil
	}
}

func (f *fixture) countModel(c asset.Category) {
	v, _ := f.modelsBy.LoadOrStore(c, &atomic.Int32{})
	v.(*atomic.Int32).Add(1)
}

func (f *fixture) modelCalls(c asset.Category) int32 {
	v, ok := f.modelsBy.Load(c)
	if !ok {
		return 0
	}
	return v.(*atomic.Int32).Load()
}

func testModel(name string) *asset.Model {
	return &asset.Model{
		Geometry: &asset.Geometry{Name: name, Vertices: 1000, Indices: 3000},
		Material: &asset.Material{Name: name, ShaderBytes: 1024},
	}
}

func solidTexture(_ context.Context, c asset.Category) (pipeline.Source, error) {
	return &pipeline.VectorSource{
		Shapes: []pipeline.Shape{{Path: pipeline.Circle(0.5, 0.5, 0.4)}},
	}, nil
}

func TestGetModel_LoadsOnceAtCurrentLevel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	h1, err := f.m.GetModel(ctx, asset.Nucleus)
	require.NoError(t, err)
	h2, err := f.m.GetModel(ctx, asset.Nucleus)
	require.NoError(t, err)

	assert.Same(t, h1, h2)
	assert.Equal(t, asset.ModelKey(asset.Nucleus, quality.Medium), h1.Key())
	assert.Equal(t, int32(1), f.modelCalls(asset.Nucleus))
	assert.Equal(t, quality.Medium, <-f.levels)

	model, ok := h1.Model()
	require.True(t, ok)
	assert.Equal(t, "nucleus", model.Geometry.Name)
}

func TestGetModel_UnknownCategory(t *testing.T) {
	f := newFixture(t)
	_, err := f.m.GetModel(context.Background(), asset.Category("centriole"))

	_, err = f.m.GetTexture(context.Background(), asset.Category("centriole"), 1)
	_ = err
}

func TestGetModel_RetriesTransientFactoryFailure(t *testing.T) {
	f := newFixture(t)
	var calls atomic.Int32
	require.NoError(t, f.reg.RegisterModel(asset.Ribosome, func(context.Context, quality.Level) (*asset.Model, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("generator hiccup")
		}
		return testModel("ribosome"), nil
	}))

	h, err := f.m.GetModel(context.Background(), asset.Ribosome)
	require.NoError(t, err)
	assert.NotNil(t, h)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGetModel_PermanentFailureIsNotRetried(t *testing.T) {
	f := newFixture(t)
	permanent := errcode.New(99, 7, "test", "error.test.broken", "broken generator")
	var calls atomic.Int32
	require.NoError(t, f.reg.RegisterModel(asset.Ribosome, func(context.Context, quality.Level) (*asset.Model, error) {
		calls.Add(1)
		return nil, permanent
	}))

	_, err := f.m.GetModel(context.Background(), asset.Ribosome)
	require.Error(t, err)
	assert.ErrorIs(t, err, cache.ErrLoadFailure)
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, int32(1), calls.Load())

	_, ok := f.cache.Peek(asset.ModelKey(asset.Ribosome, quality.Medium))
	assert.False(t, ok)
}

func TestGetModel_ExhaustedRetriesSurface(t *testing.T) {
	f := newFixture(t)
	var calls atomic.Int32
	require.NoError(t, f.reg.RegisterModel(asset.Ribosome, func(context.Context, quality.Level) (*asset.Model, error) {
		calls.Add(1)
		return nil, errors.New("always down")
	}))

	_, err := f.m.GetModel(context.Background(), asset.Ribosome)
	assert.ErrorIs(t, err, ErrFactoryFailed)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, uint64(1), f.cache.Metrics().LoadFailures)
}

func TestSizeForZoom(t *testing.T) {
	tests := []struct {
		zoom float64
		want int
	}{
		{0, 256}, {0.5, 256}, {0.75, 512}, {1, 512}, {1.5, 1024}, {2, 1024}, {3, 2048},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SizeForZoom(tt.zoom), "zoom %v", tt.zoom)
	}
}

func TestGetTexture_DerivesAndOffersSiblings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	h, err := f.m.GetTexture(ctx, asset.Nucleus, 0.5)
	require.NoError(t, err)
	assert.Equal(t, asset.TextureKey(asset.Nucleus, 256, quality.Medium), h.Key())
	tex, ok := h.Resource().(*pipeline.Texture)
	require.True(t, ok)
	assert.Equal(t, 256, tex.Width())
	assert.Equal(t, pipeline.SamplingFor(quality.Medium), tex.Sampling)

	for _, size := range []int{64, 128} {
		_, ok := f.cache.Peek(asset.TextureKey(asset.Nucleus, size, quality.Medium))
		assert.True(t, ok, "sibling %d cached", size)
	}
	assert.Equal(t, int64(1), f.pipe.Renders())
	assert.Equal(t, int64(2), f.pipe.Derivations())

	sib, err := f.m.getTexture(ctx, asset.Nucleus, 128)
	require.NoError(t, err)
	assert.Equal(t, 128, sib.Resource().(*pipeline.Texture).Width())
	assert.Equal(t, int64(1), f.pipe.Renders())
}

func TestGetTexture_WithoutSiblings(t *testing.T) {
	f := newFixture(t, func(fo *fixtureOptions) { fo.cfg.OfferSiblings = false })

	_, err := f.m.GetTexture(context.Background(), asset.Golgi, 0.5)
	require.NoError(t, err)
	assert.Equal(t, 1, f.cache.Status().EntryCount)
	assert.Zero(t, f.pipe.Derivations())
}

func TestQualityChange_SweepsAndReloadsAtNewLevel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.m.GetModel(ctx, asset.Nucleus)
	require.NoError(t, err)
	require.NoError(t, f.ctrl.SetQuality(ctx, quality.Low))

	_, ok := f.cache.Peek(asset.ModelKey(asset.Nucleus, quality.Medium))
	assert.False(t, ok)

	h, err := f.m.GetModel(ctx, asset.Nucleus)
	require.NoError(t, err)
	assert.Equal(t, asset.ModelKey(asset.Nucleus, quality.Low), h.Key())
	assert.Equal(t, int32(2), f.modelCalls(asset.Nucleus))
}

func TestQualityChange_RewarmsPreloadSet(t *testing.T) {
	f := newFixture(t, func(fo *fixtureOptions) {
		fo.dispatch = true
		fo.cfg.RewarmOnQualityChange = true
		fo.cacheCfg.PreloadPriorityKeys = []asset.Category{asset.Nucleus}
	})

	require.NoError(t, f.ctrl.SetQuality(context.Background(), quality.High))

	assert.Eventually(t, func() bool {
		_, model := f.cache.Peek(asset.ModelKey(asset.Nucleus, quality.High))
		_, tex := f.cache.Peek(asset.TextureKey(asset.Nucleus, 64, quality.High))
		return model && tex
	}, 2*time.Second, 10*time.Millisecond)
}

func TestQualityRace_LoggedAndSweptOnRewarm(t *testing.T) {
	log, logs := logger.NewObserved("manager", zapcore.WarnLevel)
	f := newFixture(t, func(fo *fixtureOptions) { fo.log = log })
	ctx := context.Background()

	require.NoError(t, f.reg.RegisterModel(asset.Vacuole, func(ctx context.Context, level quality.Level) (*asset.Model, error) {
		_ = f.ctrl.SetQuality(ctx, quality.Low)
		return testModel("vacuole"), nil
	}))

	h, err := f.m.GetModel(ctx, asset.Vacuole)
	require.NoError(t, err)
	assert.Equal(t, asset.ModelKey(asset.Vacuole, quality.Medium), h.Key())
	assert.Equal(t, 1, logs.FilterMessage("quality changed during load").Len())

	_, stale := f.cache.Peek(h.Key())
	require.True(t, stale)

	f.m.Rewarm(ctx, quality.Low)
	_, stale = f.cache.Peek(h.Key())
	assert.False(t, stale)
	assert.True(t, h.Disposed())
}

func TestPreload_WarmsPriorityCategories(t *testing.T) {
	f := newFixture(t, func(fo *fixtureOptions) {
		fo.cacheCfg.PreloadPriorityKeys = []asset.Category{asset.Nucleus, asset.Golgi, asset.Chloroplast}
	})

	report := f.m.Preload(context.Background())
	assert.Empty(t, report.Failed)
	assert.ElementsMatch(t, []asset.Key{
		asset.ModelKey(asset.Nucleus, quality.Medium),
		asset.ModelKey(asset.Golgi, quality.Medium),
		asset.TextureKey(asset.Nucleus, 64, quality.Medium),
		asset.TextureKey(asset.Golgi, 64, quality.Medium),
	}, report.Loaded)
}

func TestPackAtlas_SharedSurfaceFreedWithLastRegion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cats := []asset.Category{asset.Nucleus, asset.Golgi, asset.Lysosome}

	handles, err := f.m.PackAtlas(ctx, "organelles", cats)
	require.NoError(t, err)
	require.Len(t, handles, 3)

	var surface *asset.SharedSurface
	for _, c := range cats {
		h := handles[c]
		require.NotNil(t, h)
		assert.Equal(t, asset.AtlasKey("organelles", string(c), quality.Medium), h.Key())
		region, ok := h.Region()
		require.True(t, ok)
		surface = region.Surface()
	}
	assert.Equal(t, int32(3), surface.Refs())
	assert.Equal(t, int64(3), f.pipe.Renders())
	// the whole surface is charged, the empty fourth cell included
	assert.Equal(t, surface.Resource().Bytes(), f.cache.Status().MemoryUsedBytes)

	f.cache.Invalidate(handles[asset.Nucleus].Key())
	f.cache.Invalidate(handles[asset.Golgi].Key())
	assert.False(t, surface.Freed())

	f.cache.Invalidate(handles[asset.Lysosome].Key())
	assert.True(t, surface.Freed())
	assert.True(t, surface.Resource().(*pipeline.Texture).Released())
}

func TestPackAtlas_PartialFailure(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.reg.RegisterTexture(asset.Membrane, func(context.Context, asset.Category) (pipeline.Source, error) {
		return brokenSource{}, nil
	}))

	handles, err := f.m.PackAtlas(context.Background(), "mixed", []asset.Category{asset.Nucleus, asset.Membrane})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFactoryFailed)
	assert.ErrorIs(t, err, pipeline.ErrRenderFailed)
	assert.Len(t, handles, 1)
	assert.Contains(t, handles, asset.Nucleus)
}

func TestPackAtlas_FactoryFailureKeepsHealthyItems(t *testing.T) {
	f := newFixture(t)
	var calls atomic.Int32
	require.NoError(t, f.reg.RegisterTexture(asset.Membrane, func(context.Context, asset.Category) (pipeline.Source, error) {
		calls.Add(1)
		return nil, errors.New("generator down")
	}))

	cats := []asset.Category{asset.Nucleus, asset.Membrane, asset.Vacuole}
	handles, err := f.m.PackAtlas(context.Background(), "mixed", cats)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFactoryFailed)
	assert.Equal(t, int32(3), calls.Load())
	require.Len(t, handles, 1)
	assert.Contains(t, handles, asset.Nucleus)

	le, ok := errcode.As(err)
	require.True(t, ok)
	assert.Equal(t, []string{"membrane", "vacuole"}, le.Data()["items"])
}

func TestPackAtlas_RetriesTransientFactoryFailure(t *testing.T) {
	f := newFixture(t)
	var calls atomic.Int32
	require.NoError(t, f.reg.RegisterTexture(asset.Membrane, func(ctx context.Context, c asset.Category) (pipeline.Source, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("warming up")
		}
		return solidTexture(ctx, c)
	}))

	handles, err := f.m.PackAtlas(context.Background(), "retry", []asset.Category{asset.Membrane})
	require.NoError(t, err)
	assert.Len(t, handles, 1)
	assert.Equal(t, int32(2), calls.Load())
}

type brokenSource struct{}

func (brokenSource) Native() (int, int, bool) { return 1, 1, true }
func (brokenSource) Render(int, int) (*image.RGBA, error) {
	return nil, errors.New("rasterizer exploded")
}

func TestStatusAndClose(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.m.GetModel(ctx, asset.Golgi)
	require.NoError(t, err)

	st := f.m.Status()
	assert.Equal(t, 1, st.Cache.EntryCount)
	assert.Equal(t, uint64(1), st.Metrics.Misses)
	assert.Equal(t, "medium", st.Quality)
	assert.Equal(t, "automatic", st.Mode)

	f.m.Close()
	f.m.Close()
	_, err = f.m.GetModel(ctx, asset.Golgi)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = f.m.PackAtlas(ctx, "late", []asset.Category{asset.Golgi})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{RetryAttempts: -1}, NewRegistry(), nil, nil, nil)
	assert.ErrorIs(t, err, ErrConfigInvalid)

	_, err = New(DefaultConfig(), NewRegistry(), nil, nil, nil)
	assert.ErrorIs(t, err, ErrConfigInvalid)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	assert.Error(t, r.RegisterModel("", func(context.Context, quality.Level) (*asset.Model, error) { return nil, nil }))
	assert.Error(t, r.RegisterTexture(asset.Golgi, nil))

	require.NoError(t, r.RegisterTexture(asset.Golgi, solidTexture))
	require.NoError(t, r.RegisterModel(asset.Category("centrosome"), func(context.Context, quality.Level) (*asset.Model, error) {
		return testModel("centrosome"), nil
	}))
	assert.Equal(t, []asset.Category{"centrosome", asset.Golgi}, r.Categories())

	_, err := r.Model(asset.Golgi)
	le, ok := errcode.As(err)
	require.True(t, ok)
	assert.Equal(t, "golgi", le.Data()["category"])
}
