package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/KOMKZ/go-yogan-assets/asset"
	"github.com/KOMKZ/go-yogan-assets/logger"
	"github.com/KOMKZ/go-yogan-assets/quality"
	"github.com/KOMKZ/go-yogan-assets/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap/zapcore"
)

const mb = int64(1) << 20

// blob is a texture-like resource of a fixed size.
type blob struct {
	size     int64
	releases atomic.Int32
	fail     bool
}

func (b *blob) Kind() asset.Kind { return asset.KindTexture }
func (b *blob) Bytes() int64     { return b.size }
func (b *blob) Release() error {
	b.releases.Add(1)
	if b.fail {
		return errors.New("context lost")
	}
	return nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestCache(t *testing.T, budgetMB, maxEntries int, opts ...Option) *AssetCache {
	t.Helper()
	cfg := DefaultConfig()
	cfg.MemoryBudgetMB = budgetMB
	cfg.MaxEntries = maxEntries
	cfg.PreloadYield = time.Millisecond
	c, err := New(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(c.DisposeAll)
	return c
}

func loaderOf(res asset.Resource, calls *atomic.Int32) LoaderFunc {
	return func(ctx context.Context) (asset.Resource, error) {
		if calls != nil {
			calls.Add(1)
		}
		return res, nil
	}
}

// fixedPriority scores keys from a table, unknown keys get 1.
func fixedPriority(table map[asset.Key]int32) asset.PriorityFunc {
	return func(k asset.Key) int32 {
		if p, ok := table[k]; ok {
			return p
		}
		return 1
	}
}

func TestNew_RejectsInvalidBudget(t *testing.T) {
	for _, cfg := range []Config{
		{MemoryBudgetMB: 0, MaxEntries: 10},
		{MemoryBudgetMB: -5, MaxEntries: 10},
		{MemoryBudgetMB: 10, MaxEntries: 0},
	} {
		_, err := New(cfg)
		assert.ErrorIs(t, err, ErrConfigInvalid)
	}
}

func TestGetOrLoad_ConcurrentRequestsShareOneLoad(t *testing.T) {
	c := newTestCache(t, 100, 50)

	var calls atomic.Int32
	loader := func(ctx context.Context) (asset.Resource, error) {
		calls.Add(1)
		time.Sleep(50 * time.Millisecond)
		return &blob{size: 2 * mb}, nil
	}

	const n = 5
	handles := make([]*asset.Handle, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			handles[i], errs[i] = c.GetOrLoad(context.Background(), "nucleus", loader)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 1, c.Status().EntryCount)
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Same(t, handles[0], handles[i])
	}
}

func TestGetOrLoad_HitUpdatesCounters(t *testing.T) {
	c := newTestCache(t, 100, 50)
	var calls atomic.Int32
	res := &blob{size: mb}

	h1, err := c.GetOrLoad(context.Background(), "model-nucleus-q2", loaderOf(res, &calls))
	require.NoError(t, err)
	h2, err := c.GetOrLoad(context.Background(), "model-nucleus-q2", loaderOf(res, &calls))
	require.NoError(t, err)

	assert.Same(t, h1, h2)
	assert.Equal(t, int32(1), calls.Load())
	m := c.Metrics()
	assert.Equal(t, uint64(1), m.Hits)
	assert.Equal(t, uint64(1), m.Misses)
	assert.InDelta(t, 0.5, m.HitRatio, 1e-9)
	assert.Equal(t, mb, m.MemoryUsedBytes)
}

func TestGetOrLoad_FailurePropagatesAndIsNotCached(t *testing.T) {
	c := newTestCache(t, 100, 50)
	boom := errors.New("generator failed")

	var calls atomic.Int32
	failing := func(ctx context.Context) (asset.Resource, error) {
		calls.Add(1)
		time.Sleep(20 * time.Millisecond)
		return nil, boom
	}

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.GetOrLoad(context.Background(), "golgi", failing)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, err := range errs {
		assert.ErrorIs(t, err, ErrLoadFailure)
		assert.ErrorIs(t, err, boom)
	}
	assert.Zero(t, c.Status().EntryCount)

	// next call retries
	h, err := c.GetOrLoad(context.Background(), "golgi", loaderOf(&blob{size: mb}, &calls))
	require.NoError(t, err)
	assert.NotNil(t, h)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, uint64(1), c.Metrics().LoadFailures)
}

func TestGetOrLoad_LoaderPanicBecomesLoadFailure(t *testing.T) {
	c := newTestCache(t, 100, 50)
	_, err := c.GetOrLoad(context.Background(), "lysosome", func(ctx context.Context) (asset.Resource, error) {
		panic("generator bug")
	})
	assert.ErrorIs(t, err, ErrLoadFailure)
	assert.Zero(t, c.Status().EntryCount)

	_, err = c.GetOrLoad(context.Background(), "ribosome", func(ctx context.Context) (asset.Resource, error) {
		return nil, nil
	})
	assert.ErrorIs(t, err, ErrLoadFailure)
}

func TestGetOrLoad_CallerCancellationDoesNotAbortLoad(t *testing.T) {
	c := newTestCache(t, 100, 50)
	release := make(chan struct{})
	loader := func(ctx context.Context) (asset.Resource, error) {
		<-release
		assert.NoError(t, ctx.Err())
		return &blob{size: mb}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := c.GetOrLoad(ctx, "vacuole", loader)
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	close(release)
	require.Eventually(t, func() bool {
		_, ok := c.Peek("vacuole")
		return ok
	}, time.Second, 5*time.Millisecond)
}

func TestEviction_ThirdInsertEvictsOldestLowPriority(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(t, 10, 50,
		WithClock(clock.Now),
		WithPriority(fixedPriority(map[asset.Key]int32{"a": 1, "b": 1, "c": 5})),
	)

	for _, k := range []asset.Key{"a", "b", "c"} {
		_, err := c.GetOrLoad(context.Background(), k, loaderOf(&blob{size: 4 * mb}, nil))
		require.NoError(t, err)
		clock.Advance(time.Second)
	}

	_, aResident := c.Peek("a")
	_, bResident := c.Peek("b")
	_, cResident := c.Peek("c")
	assert.False(t, aResident)
	assert.True(t, bResident)
	assert.True(t, cResident)
	assert.Equal(t, 8*mb, c.Status().MemoryUsedBytes)
	assert.Equal(t, uint64(1), c.Metrics().Evictions)
}

func TestEviction_PrefersIdleRarelyUsedLowPriority(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(t, 10, 50,
		WithClock(clock.Now),
		WithPriority(fixedPriority(map[asset.Key]int32{"old-low": 1, "hot-high": 8})),
	)
	ctx := context.Background()

	resA := &blob{size: 4 * mb}
	_, err := c.GetOrLoad(ctx, "old-low", loaderOf(resA, nil))
	require.NoError(t, err)
	clock.Advance(10 * time.Second)

	_, err = c.GetOrLoad(ctx, "hot-high", loaderOf(&blob{size: 4 * mb}, nil))
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		clock.Advance(time.Second)
		_, err = c.GetOrLoad(ctx, "hot-high", loaderOf(&blob{size: 4 * mb}, nil))
		require.NoError(t, err)
	}

	_, err = c.GetOrLoad(ctx, "new", loaderOf(&blob{size: 4 * mb}, nil))
	require.NoError(t, err)

	_, ok := c.Peek("old-low")
	assert.False(t, ok)
	_, ok = c.Peek("hot-high")
	assert.True(t, ok)
	assert.Equal(t, int32(1), resA.releases.Load(), "evicted asset disposed")
}

func TestEviction_MaxEntries(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(t, 100, 2, WithClock(clock.Now))
	for _, k := range []asset.Key{"a", "b", "c"} {
		_, err := c.GetOrLoad(context.Background(), k, loaderOf(&blob{size: mb}, nil))
		require.NoError(t, err)
		clock.Advance(time.Second)
	}
	assert.Equal(t, 2, c.Status().EntryCount)
	_, ok := c.Peek("a")
	assert.False(t, ok)
}

func TestMemoryBound_HoldsAfterManyInserts(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(t, 10, 50, WithClock(clock.Now))
	sizes := []int64{3, 1, 4, 1, 5, 2, 6, 5, 3, 5}
	for i, s := range sizes {
		key := asset.TextureKey(asset.Nucleus, 256*(i+1), quality.Medium)
		_, err := c.GetOrLoad(context.Background(), key, loaderOf(&blob{size: s * mb}, nil))
		require.NoError(t, err)
		clock.Advance(100 * time.Millisecond)

		st := c.Status()
		assert.LessOrEqual(t, st.MemoryUsedBytes, st.MemoryBudgetBytes)
	}
}

func TestOversize_InsertedWithWarningAndEscalation(t *testing.T) {
	log, logs := logger.NewObserved("cache", zapcore.DebugLevel)
	cfg := DefaultConfig()
	cfg.MemoryBudgetMB = 1
	cfg.OversizeEscalation = 2
	c, err := New(cfg, WithLogger(log))
	require.NoError(t, err)
	defer c.DisposeAll()

	small := &blob{size: mb / 2}
	_, err = c.GetOrLoad(context.Background(), "small", loaderOf(small, nil))
	require.NoError(t, err)

	h, err := c.GetOrLoad(context.Background(), "huge", loaderOf(&blob{size: 3 * mb}, nil))
	require.NoError(t, err)
	assert.NotNil(t, h)
	assert.Equal(t, 1, c.Status().EntryCount)
	assert.Equal(t, int32(1), small.releases.Load())
	assert.Equal(t, 1, logs.FilterMessage("asset exceeds memory budget, inserted anyway").Len())

	_, err = c.GetOrLoad(context.Background(), "huge-2", loaderOf(&blob{size: 3 * mb}, nil))
	require.NoError(t, err)
	escalated := logs.FilterMessage("asset repeatedly exceeds memory budget, raise memory_budget_mb").All()
	require.Len(t, escalated, 1)
	assert.Equal(t, zapcore.ErrorLevel, escalated[0].Level)
	assert.Equal(t, uint64(2), c.Metrics().OversizeInserts)
}

func TestDisposal_IdempotentAndErrorsSwallowed(t *testing.T) {
	log, logs := logger.NewObserved("cache", zapcore.DebugLevel)
	c, err := New(Config{MemoryBudgetMB: 10, MaxEntries: 10}, WithLogger(log))
	require.NoError(t, err)

	res := &blob{size: mb, fail: true}
	h, err := c.GetOrLoad(context.Background(), "membrane", loaderOf(res, nil))
	require.NoError(t, err)

	assert.Equal(t, 1, c.Clear())
	assert.Zero(t, c.Clear())
	assert.NoError(t, h.Dispose())
	assert.Equal(t, int32(1), res.releases.Load())
	assert.Equal(t, 1, logs.FilterMessage("asset disposal failed").Len())

	c.DisposeAll()
	c.DisposeAll()
	assert.True(t, c.Closed())
	_, err = c.GetOrLoad(context.Background(), "membrane", loaderOf(&blob{size: mb}, nil))
	assert.ErrorIs(t, err, ErrCacheClosed)
}

func TestDisposeAll_InFlightResultDisposed(t *testing.T) {
	c, err := New(Config{MemoryBudgetMB: 10, MaxEntries: 10})
	require.NoError(t, err)

	release := make(chan struct{})
	res := &blob{size: mb}
	done := make(chan error, 1)
	go func() {
		_, err := c.GetOrLoad(context.Background(), "late", func(ctx context.Context) (asset.Resource, error) {
			<-release
			return res, nil
		})
		done <- err
	}()
	time.Sleep(10 * time.Millisecond)
	c.DisposeAll()
	close(release)

	assert.ErrorIs(t, <-done, ErrCacheClosed)
	assert.Equal(t, int32(1), res.releases.Load())
}

func TestOffer_SkipsResidentKey(t *testing.T) {
	c := newTestCache(t, 100, 50)
	ctx := context.Background()

	first := &blob{size: mb}
	assert.True(t, c.Offer(ctx, "texture-nucleus-256-q1", first))

	dup := &blob{size: mb}
	assert.False(t, c.Offer(ctx, "texture-nucleus-256-q1", dup))
	assert.Equal(t, int32(1), dup.releases.Load())
	assert.Zero(t, first.releases.Load())

	var calls atomic.Int32
	h, err := c.GetOrLoad(ctx, "texture-nucleus-256-q1", loaderOf(&blob{size: mb}, &calls))
	require.NoError(t, err)
	assert.Same(t, first, h.Resource())
	assert.Zero(t, calls.Load())
}

func TestLoad_ResidentAfterMissIsNotTouched(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(t, 100, 50, WithClock(clock.Now))
	ctx := context.Background()
	key := asset.Key("texture-golgi-256-q1")

	offered := &blob{size: mb}
	require.True(t, c.Offer(ctx, key, offered))
	before := entrySnapshot(c, key)
	clock.Advance(time.Minute)

	// a flight that finds the key already resident serves it untouched
	var calls atomic.Int32
	h, err := c.load(ctx, key, loaderOf(&blob{size: mb}, &calls))
	require.NoError(t, err)
	assert.Same(t, offered, h.Resource())
	assert.Zero(t, calls.Load())
	assert.Equal(t, before, entrySnapshot(c, key))
	assert.Zero(t, c.Metrics().Hits)
}

func entrySnapshot(c *AssetCache, key asset.Key) entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return *c.entries[key]
}

func TestInvalidate(t *testing.T) {
	c := newTestCache(t, 100, 50)
	ctx := context.Background()
	keys := []asset.Key{
		asset.ModelKey(asset.Nucleus, quality.High),
		asset.TextureKey(asset.Nucleus, 512, quality.High),
		asset.ModelKey(asset.Golgi, quality.Medium),
		asset.TextureKey(asset.Golgi, 256, quality.Medium),
	}
	for _, k := range keys {
		_, err := c.GetOrLoad(ctx, k, loaderOf(&blob{size: mb}, nil))
		require.NoError(t, err)
	}

	assert.Equal(t, 2, c.InvalidateQuality(quality.High))
	assert.Equal(t, 1, c.InvalidatePrefix("texture-"))
	assert.True(t, c.Invalidate(asset.ModelKey(asset.Golgi, quality.Medium)))
	assert.False(t, c.Invalidate(asset.ModelKey(asset.Golgi, quality.Medium)))
	assert.Zero(t, c.Status().EntryCount)
	assert.Zero(t, c.Status().MemoryUsedBytes)
}

func TestNegativePriorityClamped(t *testing.T) {
	c := newTestCache(t, 100, 50, WithPriority(func(asset.Key) int32 { return -3 }))
	assert.Equal(t, int32(0), c.Priority("anything"))
}

func TestPreloadBatch_PriorityOrderAndFailures(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PreloadConcurrency = 1
	cfg.PreloadYield = time.Millisecond
	c, err := New(cfg, WithPriority(fixedPriority(map[asset.Key]int32{"p9": 9, "p5": 5, "p1": 1, "bad": 3})))
	require.NoError(t, err)
	defer c.DisposeAll()

	var mu sync.Mutex
	var order []asset.Key
	record := func(k asset.Key, err error) LoaderFunc {
		return func(ctx context.Context) (asset.Resource, error) {
			mu.Lock()
			order = append(order, k)
			mu.Unlock()
			if err != nil {
				return nil, err
			}
			return &blob{size: mb}, nil
		}
	}

	report := c.PreloadBatch(context.Background(), map[asset.Key]LoaderFunc{
		"p1":  record("p1", nil),
		"p9":  record("p9", nil),
		"bad": record("bad", errors.New("no generator")),
		"p5":  record("p5", nil),
	})

	assert.Equal(t, []asset.Key{"p9", "p5", "bad", "p1"}, order)
	assert.ElementsMatch(t, []asset.Key{"p9", "p5", "p1"}, report.Loaded)
	require.Contains(t, report.Failed, asset.Key("bad"))
	assert.ErrorIs(t, report.Failed["bad"], ErrLoadFailure)
	assert.Empty(t, report.Skipped)
}

func TestPreloadBatch_StopsOnCancel(t *testing.T) {
	c := newTestCache(t, 100, 50)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := c.PreloadBatch(ctx, map[asset.Key]LoaderFunc{
		"a": loaderOf(&blob{size: mb}, nil),
		"b": loaderOf(&blob{size: mb}, nil),
	})
	assert.Len(t, report.Skipped, 2)
	assert.Empty(t, report.Loaded)
}

func TestMetrics_Instruments(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(context.Background())

	c := newTestCache(t, 100, 50, WithMetrics(telemetry.NewMetricsBuilder(mp.Meter("cache"), "assets")))
	ctx := context.Background()
	_, err := c.GetOrLoad(ctx, "a", loaderOf(&blob{size: 3 * mb}, nil))
	require.NoError(t, err)
	_, err = c.GetOrLoad(ctx, "a", loaderOf(&blob{size: 3 * mb}, nil))
	require.NoError(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	got := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			got[m.Name] = m
		}
	}
	assert.Equal(t, int64(1), got["assets_asset_cache_hits_total"].Data.(metricdata.Sum[int64]).DataPoints[0].Value)
	assert.Equal(t, 3*mb, got["assets_asset_cache_memory_bytes"].Data.(metricdata.Gauge[int64]).DataPoints[0].Value)
	assert.Greater(t, c.Metrics().AvgLoadLatency, time.Duration(-1))
}

func TestStatus_Utilization(t *testing.T) {
	c := newTestCache(t, 10, 50)
	_, err := c.GetOrLoad(context.Background(), "a", loaderOf(&blob{size: 5 * mb}, nil))
	require.NoError(t, err)
	st := c.Status()
	assert.Equal(t, 1, st.EntryCount)
	assert.Equal(t, 10*mb, st.MemoryBudgetBytes)
	assert.InDelta(t, 50.0, st.UtilizationPct, 1e-9)
}
