package event

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/KOMKZ/go-yogan-assets/logger"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

// UnsubscribeFunc removes a listener.
type UnsubscribeFunc func()

// Dispatcher event dispatcher
type Dispatcher struct {
	mu           sync.RWMutex
	listeners    map[string][]listenerEntry
	nextID       uint64
	pool         *ants.Pool
	poolSize     int
	maxListeners int
	logger       *logger.CtxZapLogger
	closed       int32

	failures atomic.Int64
}

// NewDispatcher creates a dispatcher with an ants pool for async delivery.
func NewDispatcher(opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		listeners:    make(map[string][]listenerEntry),
		poolSize:     16,
		maxListeners: 32,
	}
	for _, opt := range opts {
		opt(d)
	}

	var err error
	d.pool, err = ants.NewPool(d.poolSize)
	if err != nil {
		d.logger.Error("failed to create listener pool, falling back to default size", zap.Error(err))
		d.pool, _ = ants.NewPool(16)
	}
	return d
}

// Subscribe registers listener for eventName.
func (d *Dispatcher) Subscribe(eventName string, listener Listener, opts ...SubscribeOption) (UnsubscribeFunc, error) {
	if eventName == "" || listener == nil {
		return func() {}, fmt.Errorf("event name and listener are required")
	}
	if atomic.LoadInt32(&d.closed) == 1 {
		return func() {}, ErrDispatcherClosed
	}

	entry := listenerEntry{
		id:       atomic.AddUint64(&d.nextID, 1),
		listener: listener,
	}
	for _, opt := range opts {
		opt(&entry)
	}

	d.mu.Lock()
	if len(d.listeners[eventName]) >= d.maxListeners {
		d.mu.Unlock()
		return func() {}, fmt.Errorf("%w: %s (max %d)", ErrTooManyListeners, eventName, d.maxListeners)
	}
	d.listeners[eventName] = append(d.listeners[eventName], entry)
	sort.SliceStable(d.listeners[eventName], func(i, j int) bool {
		return d.listeners[eventName][i].priority < d.listeners[eventName][j].priority
	})
	d.mu.Unlock()

	return func() { d.unsubscribe(eventName, entry.id) }, nil
}

func (d *Dispatcher) unsubscribe(eventName string, id uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	entries := d.listeners[eventName]
	for i, e := range entries {
		if e.id == id {
			d.listeners[eventName] = append(entries[:i:i], entries[i+1:]...)
			return
		}
	}
}

// Dispatch delivers event to every listener in priority order.
// Sync listener errors and panics are logged and joined into the returned
// error; they never stop the other listeners.
func (d *Dispatcher) Dispatch(ctx context.Context, event Event) error {
	if event == nil {
		return nil
	}
	if atomic.LoadInt32(&d.closed) == 1 {
		return ErrDispatcherClosed
	}

	d.mu.RLock()
	entries := make([]listenerEntry, len(d.listeners[event.Name()]))
	copy(entries, d.listeners[event.Name()])
	d.mu.RUnlock()

	var errs []error
	for _, entry := range entries {
		if entry.async {
			d.submit(ctx, event, entry.listener)
			continue
		}
		err := d.safeHandle(ctx, event, entry.listener)
		if errors.Is(err, ErrStopPropagation) {
			break
		}
		if err != nil {
			errs = append(errs, err)
		}
	}

	d.cleanupOnce(event.Name(), entries)
	return errors.Join(errs...)
}

// DispatchAsync delivers event on the pool and returns immediately.
func (d *Dispatcher) DispatchAsync(ctx context.Context, event Event) {
	if event == nil || atomic.LoadInt32(&d.closed) == 1 {
		return
	}
	asyncCtx := context.WithoutCancel(ctx)
	if err := d.pool.Submit(func() { _ = d.Dispatch(asyncCtx, event) }); err != nil {
		d.logger.ErrorCtx(ctx, "failed to submit async dispatch",
			zap.String("event", event.Name()), zap.Error(err))
	}
}

func (d *Dispatcher) submit(ctx context.Context, event Event, l Listener) {
	asyncCtx := context.WithoutCancel(ctx)
	if err := d.pool.Submit(func() { _ = d.safeHandle(asyncCtx, event, l) }); err != nil {
		d.logger.ErrorCtx(ctx, "failed to submit async listener",
			zap.String("event", event.Name()), zap.Error(err))
	}
}

// safeHandle runs one listener, converting panics into errors.
func (d *Dispatcher) safeHandle(ctx context.Context, event Event, l Listener) (err error) {
	defer func() {
		if r := recover(); r != nil {
			d.failures.Add(1)
			err = fmt.Errorf("listener panic: %v", r)
			d.logger.ErrorCtx(ctx, "event listener panicked",
				zap.String("event", event.Name()),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
		}
	}()

	err = l.Handle(ctx, event)
	if err != nil && !errors.Is(err, ErrStopPropagation) {
		d.failures.Add(1)
		d.logger.ErrorCtx(ctx, "event listener failed",
			zap.String("event", event.Name()), zap.Error(err))
	}
	return err
}

func (d *Dispatcher) cleanupOnce(eventName string, executed []listenerEntry) {
	for _, e := range executed {
		if e.once {
			d.unsubscribe(eventName, e.id)
		}
	}
}

// ListenerCount returns the number of listeners for eventName.
func (d *Dispatcher) ListenerCount(eventName string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.listeners[eventName])
}

// Failures returns the number of listener errors and panics so far.
func (d *Dispatcher) Failures() int64 {
	return d.failures.Load()
}

// Close stops accepting work and releases the pool.
func (d *Dispatcher) Close() {
	if !atomic.CompareAndSwapInt32(&d.closed, 0, 1) {
		return
	}
	if d.pool != nil {
		d.pool.Release()
	}
}
