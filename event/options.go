package event

import "github.com/KOMKZ/go-yogan-assets/logger"

// listener entry
type listenerEntry struct {
	id       uint64
	listener Listener
	priority int  // smaller runs first
	async    bool // runs on the pool, never blocks Dispatch
	once     bool // unsubscribed after the first delivery
}

// SubscribeOption subscription options
type SubscribeOption func(*listenerEntry)

// WithPriority sets the priority
// The smaller the number, the earlier the listener runs. Default 0.
func WithPriority(priority int) SubscribeOption {
	return func(e *listenerEntry) {
		e.priority = priority
	}
}

// WithAsync runs the listener on the dispatcher pool.
func WithAsync() SubscribeOption {
	return func(e *listenerEntry) {
		e.async = true
	}
}

// WithOnce executes only once and then automatically unsubscribes
func WithOnce() SubscribeOption {
	return func(e *listenerEntry) {
		e.once = true
	}
}

// DispatcherOption Dispatcher configuration options
type DispatcherOption func(*Dispatcher)

// WithPoolSize sets the size of the async goroutine pool
func WithPoolSize(size int) DispatcherOption {
	return func(d *Dispatcher) {
		if size > 0 {
			d.poolSize = size
		}
	}
}

// WithMaxListeners bounds the fan-out per event name.
func WithMaxListeners(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.maxListeners = n
		}
	}
}

// WithLogger sets the logger used for listener failures.
func WithLogger(log *logger.CtxZapLogger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = log
	}
}
