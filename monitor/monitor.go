// Package monitor turns per-frame timing into a smoothed performance signal.
//
// RecordFrame is cheap and runs every frame; the figures are recomputed on a
// fixed wall-clock tick so a single slow frame never triggers a reaction.
package monitor

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/KOMKZ/go-yogan-assets/event"
	"github.com/KOMKZ/go-yogan-assets/logger"
	"github.com/KOMKZ/go-yogan-assets/telemetry"
	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// Monitor performance monitor
type Monitor struct {
	cfg Config

	mu     sync.Mutex
	ring   []time.Duration
	next   int
	count  int
	last   time.Time
	latest Sample

	subscribers atomic.Int32

	dispatcher    *event.Dispatcher
	ownDispatcher bool

	schedMu   sync.Mutex
	scheduler gocron.Scheduler

	now            func() time.Time
	heapAlloc      func() uint64
	logger         *logger.CtxZapLogger
	metricsBuilder *telemetry.MetricsBuilder
	metrics        *telemetry.FrameMetrics
}

// Option configures a Monitor
type Option func(*Monitor)

// WithClock replaces time.Now for frame deltas
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) {
		if now != nil {
			m.now = now
		}
	}
}

// WithLogger sets the monitor logger
func WithLogger(l *logger.CtxZapLogger) Option {
	return func(m *Monitor) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithDispatcher shares a dispatcher instead of creating one
func WithDispatcher(d *event.Dispatcher) Option {
	return func(m *Monitor) { m.dispatcher = d }
}

// WithHeapReader replaces the runtime heap reading
func WithHeapReader(fn func() uint64) Option {
	return func(m *Monitor) {
		if fn != nil {
			m.heapAlloc = fn
		}
	}
}

// WithMetrics registers the frame instruments on b
func WithMetrics(b *telemetry.MetricsBuilder) Option {
	return func(m *Monitor) { m.metricsBuilder = b }
}

// New creates a stopped monitor.
func New(cfg Config, opts ...Option) (*Monitor, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid monitor config: %w", err)
	}

	m := &Monitor{
		cfg:       cfg,
		ring:      make([]time.Duration, cfg.WindowSize),
		now:       time.Now,
		heapAlloc: readHeapAlloc,
		logger:    logger.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.dispatcher == nil {
		m.dispatcher = event.NewDispatcher(
			event.WithMaxListeners(cfg.MaxSubscribers),
			event.WithLogger(m.logger),
		)
		m.ownDispatcher = true
	}
	if m.metricsBuilder != nil {
		fm, err := m.metricsBuilder.NewFrameMetrics("monitor", func() float64 { return m.Latest().FPS })
		if err != nil {
			return nil, fmt.Errorf("register monitor metrics: %w", err)
		}
		m.metrics = fm
	}
	return m, nil
}

func readHeapAlloc() uint64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return ms.HeapAlloc
}

// Config returns the effective configuration
func (m *Monitor) Config() Config { return m.cfg }

// Dispatcher the dispatcher samples are published on
func (m *Monitor) Dispatcher() *event.Dispatcher { return m.dispatcher }

// RecordFrame marks the end of a frame. The first call only sets the
// reference point.
func (m *Monitor) RecordFrame() {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.last.IsZero() {
		m.pushLocked(now.Sub(m.last))
	}
	m.last = now
}

// RecordFrameDuration adds a measured frame time directly.
func (m *Monitor) RecordFrameDuration(d time.Duration) {
	if d <= 0 {
		return
	}
	m.mu.Lock()
	m.pushLocked(d)
	m.mu.Unlock()
}

func (m *Monitor) pushLocked(d time.Duration) {
	m.ring[m.next] = d
	m.next = (m.next + 1) % len(m.ring)
	if m.count < len(m.ring) {
		m.count++
	}
}

// Recompute derives a Sample from the window and fans it out to every
// subscriber. Subscriber failures are logged by the dispatcher and never
// reach the caller.
func (m *Monitor) Recompute(ctx context.Context) Sample {
	m.mu.Lock()
	var sum, worst time.Duration
	for i := 0; i < m.count; i++ {
		d := m.ring[i]
		sum += d
		worst = max(worst, d)
	}
	s := Sample{Frames: m.count, At: m.now(), MaxFrameTime: worst}
	if m.count > 0 && sum > 0 {
		s.AvgFrameTime = sum / time.Duration(m.count)
		s.FPS = float64(time.Second) / float64(s.AvgFrameTime)
		s.MinFPS = float64(time.Second) / float64(worst)
	}
	m.mu.Unlock()

	s.HeapAllocBytes = m.heapAlloc()

	m.mu.Lock()
	m.latest = s
	m.mu.Unlock()

	if m.metrics != nil && !s.Empty() {
		m.metrics.RecordFrameTime(ctx, s.AvgFrameTime.Seconds())
	}
	if err := m.dispatcher.Dispatch(ctx, newSampleEvent(s)); err != nil {
		m.logger.DebugCtx(ctx, "sample subscribers reported errors", zap.Error(err))
	}
	return s
}

// Latest last computed sample
func (m *Monitor) Latest() Sample {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latest
}

// Subscribe registers fn for every recompute. Panics inside fn are
// recovered and logged. Fails with event.ErrTooManyListeners past
// MaxSubscribers.
func (m *Monitor) Subscribe(fn func(context.Context, Sample)) (event.UnsubscribeFunc, error) {
	if fn == nil {
		return func() {}, fmt.Errorf("subscriber is required")
	}
	if n := m.subscribers.Add(1); int(n) > m.cfg.MaxSubscribers {
		m.subscribers.Add(-1)
		return func() {}, fmt.Errorf("%w: %s (max %d)", event.ErrTooManyListeners, SampleEventName, m.cfg.MaxSubscribers)
	}

	unsub, err := m.dispatcher.Subscribe(SampleEventName, event.ListenerFunc(func(ctx context.Context, e event.Event) error {
		if se, ok := e.(SampleEvent); ok {
			fn(ctx, se.Sample)
		}
		return nil
	}))
	if err != nil {
		m.subscribers.Add(-1)
		return func() {}, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			unsub()
			m.subscribers.Add(-1)
		})
	}, nil
}

// Start schedules Recompute every SampleInterval. Calling Start twice is a
// no-op.
func (m *Monitor) Start(ctx context.Context) error {
	m.schedMu.Lock()
	defer m.schedMu.Unlock()
	if m.scheduler != nil {
		return nil
	}

	s, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("create monitor scheduler: %w", err)
	}
	_, err = s.NewJob(
		gocron.DurationJob(m.cfg.SampleInterval),
		gocron.NewTask(func() { m.Recompute(ctx) }),
		gocron.WithName("monitor.recompute"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return fmt.Errorf("schedule monitor recompute: %w", err)
	}
	s.Start()
	m.scheduler = s

	m.logger.InfoCtx(ctx, "performance monitor started",
		zap.Duration("interval", m.cfg.SampleInterval),
		zap.Int("window", m.cfg.WindowSize),
	)
	return nil
}

// Stop shuts the scheduler down. Idempotent.
func (m *Monitor) Stop() error {
	m.schedMu.Lock()
	defer m.schedMu.Unlock()
	if m.scheduler == nil {
		return nil
	}
	err := m.scheduler.Shutdown()
	m.scheduler = nil
	m.logger.Info("performance monitor stopped")
	return err
}

// Close stops the scheduler and releases an owned dispatcher.
func (m *Monitor) Close() error {
	err := m.Stop()
	if m.ownDispatcher {
		m.dispatcher.Close()
	}
	return err
}
