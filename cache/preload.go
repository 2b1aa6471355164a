package cache

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/KOMKZ/go-yogan-assets/asset"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// PreloadReport outcome of one PreloadBatch call
type PreloadReport struct {
	Loaded  []asset.Key
	Failed  map[asset.Key]error
	Skipped []asset.Key // not started because ctx ended
}

// PreloadBatch warms the cache in descending priority order, a few keys at
// a time with a short pause between batches so the render loop keeps its
// time slice. Ordering is soft: keys inside one batch race each other.
func (c *AssetCache) PreloadBatch(ctx context.Context, loaders map[asset.Key]LoaderFunc) PreloadReport {
	report := PreloadReport{Failed: make(map[asset.Key]error)}
	keys := c.preloadOrder(loaders)
	size := c.cfg.PreloadConcurrency

	var mu sync.Mutex
	for start := 0; start < len(keys); start += size {
		if ctx.Err() != nil {
			report.Skipped = append(report.Skipped, keys[start:]...)
			break
		}
		end := min(start+size, len(keys))

		var g errgroup.Group
		for _, key := range keys[start:end] {
			g.Go(func() error {
				_, err := c.GetOrLoad(ctx, key, loaders[key])
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					report.Failed[key] = err
					return nil
				}
				report.Loaded = append(report.Loaded, key)
				return nil
			})
		}
		_ = g.Wait()

		if end < len(keys) && c.cfg.PreloadYield > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(c.cfg.PreloadYield):
			}
		}
	}

	c.logger.InfoCtx(ctx, "asset preload finished",
		zap.Int("loaded", len(report.Loaded)),
		zap.Int("failed", len(report.Failed)),
		zap.Int("skipped", len(report.Skipped)),
	)
	return report
}

// preloadOrder sorts by descending priority, ties by key.
func (c *AssetCache) preloadOrder(loaders map[asset.Key]LoaderFunc) []asset.Key {
	keys := make([]asset.Key, 0, len(loaders))
	for k := range loaders {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		pi, pj := c.priorityOf(keys[i]), c.priorityOf(keys[j])
		if pi != pj {
			return pi > pj
		}
		return keys[i] < keys[j]
	})
	return keys
}
