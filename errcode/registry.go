package errcode

import (
	"fmt"
	"sync"
)

// Registry guards against two packages claiming the same code.
type Registry struct {
	mu    sync.RWMutex
	codes map[int]string // code -> module:msgKey
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{codes: make(map[int]string)}
}

var defaultRegistry = NewRegistry()

// Register records err in the default registry and returns it, so
// sentinels can be declared as `var ErrX = errcode.Register(errcode.New(...))`.
// Panics on a conflicting code.
func Register(err *LayeredError) *LayeredError {
	return defaultRegistry.Register(err)
}

// Register records err; re-registering the same code and key is a no-op.
func (r *Registry) Register(err *LayeredError) *LayeredError {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := fmt.Sprintf("%s:%s", err.Module(), err.MsgKey())
	if existing, ok := r.codes[err.Code()]; ok && existing != key {
		panic(fmt.Sprintf(
			"error code conflict: code %d is already registered as %s, cannot register as %s",
			err.Code(), existing, key,
		))
	}
	r.codes[err.Code()] = key
	return err
}

// Lookup returns the module:msgKey registered for code.
func (r *Registry) Lookup(code int) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	key, ok := r.codes[code]
	return key, ok
}

// Count returns the number of registered codes.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.codes)
}

// RegisteredCodes returns a copy of the default registry contents.
func RegisteredCodes() map[int]string {
	defaultRegistry.mu.RLock()
	defer defaultRegistry.mu.RUnlock()
	out := make(map[int]string, len(defaultRegistry.codes))
	for k, v := range defaultRegistry.codes {
		out[k] = v
	}
	return out
}
