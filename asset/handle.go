package asset

import (
	"sync"
	"sync/atomic"
	"time"
)

// Handle is what callers receive from the cache. It references a resource
// the cache owns; callers attach it to scene nodes and never dispose it.
type Handle struct {
	key       Key
	res       Resource
	bytes     int64
	createdAt time.Time

	once     sync.Once
	disposed atomic.Bool
}

// NewHandle wraps res under key. The memory estimate is taken now, once.
func NewHandle(key Key, res Resource) *Handle {
	return &Handle{
		key:       key,
		res:       res,
		bytes:     res.Bytes(),
		createdAt: time.Now(),
	}
}

// Key returns the cache key.
func (h *Handle) Key() Key { return h.key }

// Kind returns the resource kind.
func (h *Handle) Kind() Kind { return h.res.Kind() }

// Resource returns the wrapped resource.
func (h *Handle) Resource() Resource { return h.res }

// Bytes returns the estimate taken at creation.
func (h *Handle) Bytes() int64 { return h.bytes }

// CreatedAt returns when the handle was built.
func (h *Handle) CreatedAt() time.Time { return h.createdAt }

// Model returns the model when the handle holds one.
func (h *Handle) Model() (*Model, bool) {
	m, ok := h.res.(*Model)
	return m, ok
}

// Region returns the atlas region when the handle holds one.
func (h *Handle) Region() (*AtlasRegion, bool) {
	r, ok := h.res.(*AtlasRegion)
	return r, ok
}

// Disposed reports whether Dispose has run.
func (h *Handle) Disposed() bool { return h.disposed.Load() }

// Dispose releases every owned sub-resource exactly once.
// Later calls are no-ops and return nil. Reserved for the owning cache.
func (h *Handle) Dispose() error {
	var err error
	h.once.Do(func() {
		h.disposed.Store(true)
		err = h.res.Release()
	})
	return err
}
