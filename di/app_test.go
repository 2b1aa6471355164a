package di

import (
	"context"
	"testing"
	"time"

	"github.com/KOMKZ/go-yogan-assets/asset"
	"github.com/KOMKZ/go-yogan-assets/cache"
	"github.com/KOMKZ/go-yogan-assets/config"
	"github.com/KOMKZ/go-yogan-assets/health"
	"github.com/KOMKZ/go-yogan-assets/manager"
	"github.com/KOMKZ/go-yogan-assets/pipeline"
	"github.com/KOMKZ/go-yogan-assets/quality"
	"github.com/samber/do/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry(t *testing.T) *manager.Registry {
	t.Helper()
	reg := manager.NewRegistry()
	for _, c := range []asset.Category{asset.Nucleus, asset.Golgi} {
		name := string(c)
		require.NoError(t, reg.RegisterModel(c, func(context.Context, quality.Level) (*asset.Model, error) {
			return &asset.Model{Geometry: &asset.Geometry{Name: name, Vertices: 64, Indices: 192}}, nil
		}))
		require.NoError(t, reg.RegisterTexture(c, func(context.Context, asset.Category) (pipeline.Source, error) {
			return &pipeline.VectorSource{Shapes: []pipeline.Shape{{Path: pipeline.Circle(0.5, 0.5, 0.3)}}}, nil
		}))
	}
	return reg
}

func testConfig() config.AppConfig {
	cfg := config.Default()
	cfg.Logger.EnableConsole = false
	cfg.Cache.PreloadPriorityKeys = []asset.Category{asset.Nucleus, asset.Golgi}
	cfg.Cache.PreloadYield = 0
	cfg.Quality.Initial = "medium"
	cfg.Pipeline.VariantSizes = []int{64, 128}
	cfg.Pipeline.AtlasSize = 256
	cfg.Manager.PreloadTextureSize = 64
	cfg.Monitor.SampleInterval = 20 * time.Millisecond
	return cfg
}

func TestApp_Lifecycle(t *testing.T) {
	app := NewApp(WithConfig(testConfig()), WithRegistry(testRegistry(t)), WithName("test"))
	assert.Equal(t, StateInit, app.State())

	require.NoError(t, app.Setup())
	assert.Equal(t, StateSetup, app.State())
	require.NotNil(t, app.Manager())
	assert.Equal(t, quality.Medium, app.Controller().Current())

	ctx := context.Background()
	require.NoError(t, app.Start(ctx))
	assert.Equal(t, StateRunning, app.State())

	// both categories preloaded as model + 64px texture, plus the 128px sibling
	st := app.Manager().Status()
	assert.Equal(t, 6, st.Cache.EntryCount)
	for _, c := range []asset.Category{asset.Nucleus, asset.Golgi} {
		_, ok := app.Manager().Cache().Peek(asset.TextureKey(c, 128, quality.Medium))
		assert.True(t, ok, c)
	}

	c := app.Manager().Cache()
	require.NoError(t, app.Shutdown(ctx))
	assert.Equal(t, StateStopped, app.State())
	assert.True(t, c.Closed())
}

func TestApp_MonitorDrivesController(t *testing.T) {
	cfg := testConfig()
	cfg.Quality.QualityChangeCooldownMS = 1
	cfg.Quality.ConsecutiveSamples = 1
	app := NewApp(WithConfig(cfg), WithRegistry(testRegistry(t)))
	require.NoError(t, app.Setup())
	ctx := context.Background()
	require.NoError(t, app.Start(ctx))
	t.Cleanup(func() { _ = app.Shutdown(context.Background()) })

	time.Sleep(5 * time.Millisecond)
	for range 10 {
		app.Monitor().RecordFrameDuration(100 * time.Millisecond) // 10 fps
	}
	assert.Eventually(t, func() bool {
		return app.Controller().Current() == quality.Low
	}, 2*time.Second, 10*time.Millisecond)
}

func TestApp_SetupRequiresRegistry(t *testing.T) {
	app := NewApp(WithConfig(testConfig()))
	assert.Error(t, app.Setup())
}

func TestApp_StartWithoutSetup(t *testing.T) {
	app := NewApp(WithRegistry(testRegistry(t)))
	assert.Error(t, app.Start(context.Background()))
}

func TestApp_InvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Cache.MemoryBudgetMB = 0
	app := NewApp(WithConfig(cfg), WithRegistry(testRegistry(t)))

	err := app.Setup()
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrConfigInvalid)
}

func TestRegister_Graph(t *testing.T) {
	i := New()
	do.Provide(i, config.ProvideValue(testConfig()))
	do.ProvideValue(i, testRegistry(t))
	Register(i)

	mgr := do.MustInvoke[*manager.Manager](i)
	c := do.MustInvoke[*cache.AssetCache](i)
	assert.Same(t, c, mgr.Cache())
	t.Cleanup(func() {
		mgr.Close()
		c.DisposeAll()
	})

	// the controller sweeps the same cache the manager fills
	_, err := mgr.GetModel(context.Background(), asset.Nucleus)
	require.NoError(t, err)
	require.NoError(t, mgr.Controller().SetQuality(context.Background(), quality.High))
	_, ok := c.Peek(asset.ModelKey(asset.Nucleus, quality.Medium))
	assert.False(t, ok)

	agg := do.MustInvoke[*health.Aggregator](i)
	resp := agg.Check(context.Background())
	assert.Contains(t, resp.Checks, "asset_cache")
}
