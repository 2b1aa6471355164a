package asset

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// UVRect normalized texture coordinates of a region.
type UVRect struct {
	U0, V0, U1, V1 float64
}

// Area returns the fraction of the surface covered by r.
func (r UVRect) Area() float64 {
	w, h := r.U1-r.U0, r.V1-r.V0
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// SharedSurface is a resource referenced by several cache keys (an atlas).
// The underlying resource is released when the last reference goes away.
type SharedSurface struct {
	id     string
	res    Resource
	refs   atomic.Int32
	issued atomic.Int32
	freed  atomic.Bool
}

// NewSharedSurface wraps res with a zero reference count.
func NewSharedSurface(res Resource) *SharedSurface {
	return &SharedSurface{id: uuid.NewString(), res: res}
}

// ID returns the surface id.
func (s *SharedSurface) ID() string { return s.id }

// Resource returns the shared resource.
func (s *SharedSurface) Resource() Resource { return s.res }

// Refs returns the live reference count.
func (s *SharedSurface) Refs() int32 { return s.refs.Load() }

// Freed reports whether the underlying resource was released.
func (s *SharedSurface) Freed() bool { return s.freed.Load() }

// Region hands out a new referencing region covering uv. Create every
// region before caching any of them: the surface bytes are split across
// all regions issued so far.
func (s *SharedSurface) Region(id string, uv UVRect) *AtlasRegion {
	s.refs.Add(1)
	idx := s.issued.Add(1) - 1
	return &AtlasRegion{surface: s, ID: id, UV: uv, index: idx}
}

// share of the surface bytes charged to region idx. Shares sum to the
// whole surface, empty atlas cells included.
func (s *SharedSurface) share(idx int32) int64 {
	n := int64(s.issued.Load())
	if n == 0 {
		return 0
	}
	total := s.res.Bytes()
	b := total / n
	if int64(idx) < total%n {
		b++
	}
	return b
}

func (s *SharedSurface) release() error {
	n := s.refs.Add(-1)
	switch {
	case n > 0:
		return nil
	case n == 0:
		s.freed.Store(true)
		return s.res.Release()
	default:
		s.refs.Store(0)
		return ErrDisposal.WithMsgf("shared surface %s released more times than referenced", s.id)
	}
}

// AtlasRegion one key's view of a shared surface.
type AtlasRegion struct {
	surface *SharedSurface
	ID      string
	UV      UVRect
	index   int32
	once    sync.Once
	done    atomic.Bool
}

func (r *AtlasRegion) Kind() Kind { return KindAtlasRegion }

// Surface returns the shared surface.
func (r *AtlasRegion) Surface() *SharedSurface { return r.surface }

// Bytes is the region's even share of the whole surface.
func (r *AtlasRegion) Bytes() int64 {
	return r.surface.share(r.index)
}

// Release drops this region's reference once.
func (r *AtlasRegion) Release() error {
	var err error
	released := false
	r.once.Do(func() {
		released = true
		r.done.Store(true)
		err = r.surface.release()
	})
	if !released {
		return ErrDisposal.WithMsgf("atlas region %q released twice", r.ID)
	}
	return err
}
