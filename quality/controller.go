package quality

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/KOMKZ/go-yogan-assets/event"
	"github.com/KOMKZ/go-yogan-assets/logger"
	"github.com/KOMKZ/go-yogan-assets/monitor"
	"github.com/KOMKZ/go-yogan-assets/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ChangedEventName dispatched after every level change
const ChangedEventName = "quality.changed"

// Change reasons
const (
	ReasonLowFPS   = "fps_below_target"
	ReasonHeadroom = "fps_headroom"
	ReasonManual   = "manual"
)

// ChangedEvent level transition
type ChangedEvent struct {
	event.BaseEvent
	From   Level
	To     Level
	Reason string
}

// Invalidator drops cache entries built for a level
type Invalidator interface {
	InvalidateQuality(level Level) int
}

// Controller closed-loop quality state machine.
//
// States are Level × Mode. In Automatic mode a sample below target-DownMargin
// votes down, above target+UpMargin votes up, anything between clears both
// streaks. A step needs ConsecutiveSamples votes in a row and the cooldown
// elapsed since the last change.
type Controller struct {
	cfg Config

	mu         sync.Mutex
	level      Level
	mode       Mode
	lastChange time.Time
	downStreak int
	upStreak   int

	invalidator    Invalidator
	dispatcher     *event.Dispatcher
	now            func() time.Time
	logger         *logger.CtxZapLogger
	metricsBuilder *telemetry.MetricsBuilder
	metrics        *telemetry.QualityMetrics
}

// Option configures a Controller
type Option func(*Controller)

// WithInvalidator sets the cache swept on every change
func WithInvalidator(inv Invalidator) Option {
	return func(c *Controller) { c.invalidator = inv }
}

// WithDispatcher publishes ChangedEvent on d
func WithDispatcher(d *event.Dispatcher) Option {
	return func(c *Controller) { c.dispatcher = d }
}

// WithClock replaces time.Now for cooldown checks
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets the controller logger
func WithLogger(l *logger.CtxZapLogger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics registers the controller instruments on b
func WithMetrics(b *telemetry.MetricsBuilder) Option {
	return func(c *Controller) { c.metricsBuilder = b }
}

// NewController starts in Automatic mode at initial. Construction counts
// as the last change, so the first automatic step waits one cooldown.
func NewController(cfg Config, initial Level, opts ...Option) (*Controller, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !initial.Valid() {
		return nil, ErrInvalidLevel.WithMsgf("invalid initial level %d", int(initial))
	}

	c := &Controller{
		cfg:    cfg,
		level:  initial,
		mode:   Automatic,
		now:    time.Now,
		logger: logger.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.lastChange = c.now()

	if c.metricsBuilder != nil {
		m, err := c.metricsBuilder.NewQualityMetrics("quality", func() int64 { return int64(c.Current()) })
		if err != nil {
			return nil, fmt.Errorf("register quality metrics: %w", err)
		}
		c.metrics = m
	}

	c.logger.Info("quality controller created",
		zap.String("level", initial.String()),
		zap.Float64("target_fps", cfg.TargetFPS),
		zap.Duration("cooldown", cfg.Cooldown()),
	)
	return c, nil
}

// InitialLevel resolves the configured startup level, probing when unset.
func InitialLevel(cfg Config, device DeviceInfo) (Level, error) {
	if cfg.Initial == "" {
		return Probe(device), nil
	}
	return ParseLevel(cfg.Initial)
}

// Config returns the effective configuration
func (c *Controller) Config() Config { return c.cfg }

// Current level
func (c *Controller) Current() Level {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.level
}

// Mode current mode
func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// LastChange time of the last level change (or construction)
func (c *Controller) LastChange() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastChange
}

// Observe feeds one monitor sample. Returns true when the level changed.
// Ignored in ManualOverride mode and for empty samples.
func (c *Controller) Observe(ctx context.Context, s monitor.Sample) bool {
	if s.Empty() {
		return false
	}

	c.mu.Lock()
	if c.mode != Automatic {
		c.mu.Unlock()
		return false
	}

	switch {
	case s.FPS < c.cfg.TargetFPS-c.cfg.DownMargin:
		c.downStreak++
		c.upStreak = 0
	case s.FPS > c.cfg.TargetFPS+c.cfg.UpMargin:
		c.upStreak++
		c.downStreak = 0
	default:
		c.downStreak, c.upStreak = 0, 0
	}

	now := c.now()
	cooled := now.Sub(c.lastChange) >= c.cfg.Cooldown()
	from, to, reason := c.level, c.level, ""
	switch {
	case c.downStreak >= c.cfg.ConsecutiveSamples && cooled && c.level > Low:
		to, reason = c.level.Down(), ReasonLowFPS
	case c.upStreak >= c.cfg.ConsecutiveSamples && cooled && c.level < High:
		to, reason = c.level.Up(), ReasonHeadroom
	}
	if to == from {
		c.mu.Unlock()
		return false
	}
	c.applyLocked(to, now)
	c.mu.Unlock()

	c.logger.InfoCtx(ctx, "quality level adjusted",
		zap.String("from", from.String()),
		zap.String("to", to.String()),
		zap.String("reason", reason),
		zap.Float64("fps", s.FPS),
		zap.Float64("target_fps", c.cfg.TargetFPS),
	)
	c.afterChange(ctx, from, to, reason)
	return true
}

func (c *Controller) applyLocked(to Level, now time.Time) {
	c.level = to
	c.lastChange = now
	c.downStreak, c.upStreak = 0, 0
}

// afterChange sweeps entries of the previous level, then notifies.
func (c *Controller) afterChange(ctx context.Context, from, to Level, reason string) {
	if c.invalidator != nil {
		n := c.invalidator.InvalidateQuality(from)
		c.logger.DebugCtx(ctx, "stale quality swept", zap.String("level", from.String()), zap.Int("entries", n))
	}
	c.metrics.RecordChange(ctx,
		attribute.String("from", from.String()),
		attribute.String("to", to.String()),
		attribute.String("reason", reason),
	)
	if c.dispatcher != nil {
		e := ChangedEvent{BaseEvent: event.NewEventAt(ChangedEventName, c.now()), From: from, To: to, Reason: reason}
		if err := c.dispatcher.Dispatch(ctx, e); err != nil {
			c.logger.DebugCtx(ctx, "quality listeners reported errors", zap.Error(err))
		}
	}
}

// SetQuality pins level and suspends automatic adjustment until
// ResumeAutomatic.
func (c *Controller) SetQuality(ctx context.Context, level Level) error {
	if !level.Valid() {
		return ErrInvalidLevel.WithMsgf("invalid quality level %d", int(level))
	}

	c.mu.Lock()
	c.mode = ManualOverride
	from := c.level
	if from == level {
		c.mu.Unlock()
		c.logger.InfoCtx(ctx, "quality pinned", zap.String("level", level.String()))
		return nil
	}
	c.applyLocked(level, c.now())
	c.mu.Unlock()

	c.logger.InfoCtx(ctx, "quality set manually",
		zap.String("from", from.String()),
		zap.String("to", level.String()),
	)
	c.afterChange(ctx, from, level, ReasonManual)
	return nil
}

// ResumeAutomatic returns control to the feedback loop. Streaks restart;
// the cooldown still counts from the last change.
func (c *Controller) ResumeAutomatic(ctx context.Context) {
	c.mu.Lock()
	c.mode = Automatic
	c.downStreak, c.upStreak = 0, 0
	level := c.level
	c.mu.Unlock()
	c.logger.InfoCtx(ctx, "automatic quality resumed", zap.String("level", level.String()))
}

// Attach feeds every sample of m into Observe.
func (c *Controller) Attach(m *monitor.Monitor) (event.UnsubscribeFunc, error) {
	return m.Subscribe(func(ctx context.Context, s monitor.Sample) {
		c.Observe(ctx, s)
	})
}
