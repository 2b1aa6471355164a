package cache

import (
	"sync"
	"time"
)

const latencyWindowSize = 32

// Status diagnostics view of the cache
type Status struct {
	EntryCount        int     `json:"entry_count"`
	MaxEntries        int     `json:"max_entries"`
	MemoryUsedBytes   int64   `json:"memory_used_bytes"`
	MemoryBudgetBytes int64   `json:"memory_budget_bytes"`
	UtilizationPct    float64 `json:"utilization_pct"`
	InFlight          int64   `json:"in_flight"`
}

// Metrics derived counters; informational only
type Metrics struct {
	Hits            uint64        `json:"hits"`
	Misses          uint64        `json:"misses"`
	Evictions       uint64        `json:"evictions"`
	LoadFailures    uint64        `json:"load_failures"`
	OversizeInserts uint64        `json:"oversize_inserts"`
	InFlight        int64         `json:"in_flight"`
	HitRatio        float64       `json:"hit_ratio"`
	AvgLoadLatency  time.Duration `json:"avg_load_latency_ns"`
	MemoryUsedBytes int64         `json:"memory_used_bytes"`
}

// Status returns a consistent snapshot of occupancy
func (c *AssetCache) Status() Status {
	c.mu.Lock()
	used, n := c.used, len(c.entries)
	c.mu.Unlock()

	return Status{
		EntryCount:        n,
		MaxEntries:        c.cfg.MaxEntries,
		MemoryUsedBytes:   used,
		MemoryBudgetBytes: c.budget,
		UtilizationPct:    float64(used) / float64(c.budget) * 100,
		InFlight:          c.inFlight.Load(),
	}
}

// Metrics returns the counters
func (c *AssetCache) Metrics() Metrics {
	hits, misses := c.hits.Load(), c.misses.Load()
	m := Metrics{
		Hits:            hits,
		Misses:          misses,
		Evictions:       c.evictions.Load(),
		LoadFailures:    c.loadFailures.Load(),
		OversizeInserts: c.oversize.Load(),
		InFlight:        c.inFlight.Load(),
		AvgLoadLatency:  c.latency.average(),
	}
	if total := hits + misses; total > 0 {
		m.HitRatio = float64(hits) / float64(total)
	}
	c.mu.Lock()
	m.MemoryUsedBytes = c.used
	c.mu.Unlock()
	return m
}

// latencyWindow rolling average over the last loads
type latencyWindow struct {
	mu      sync.Mutex
	samples [latencyWindowSize]time.Duration
	next    int
	count   int
}

func (w *latencyWindow) record(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.samples[w.next] = d
	w.next = (w.next + 1) % latencyWindowSize
	if w.count < latencyWindowSize {
		w.count++
	}
}

func (w *latencyWindow) average() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.count == 0 {
		return 0
	}
	var sum time.Duration
	for i := 0; i < w.count; i++ {
		sum += w.samples[i]
	}
	return sum / time.Duration(w.count)
}
