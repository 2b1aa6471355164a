package asset

import (
	"errors"
	"sync/atomic"
)

// Kind tags what a Resource holds.
type Kind int

const (
	KindModel Kind = iota + 1
	KindTexture
	KindAtlasRegion
)

func (k Kind) String() string {
	switch k {
	case KindModel:
		return "model"
	case KindTexture:
		return "texture"
	case KindAtlasRegion:
		return "atlas_region"
	default:
		return "unknown"
	}
}

// Resource is a renderer-owned object with a memory footprint.
// Release frees the underlying GPU object; calling it twice is an error the
// owner logs and swallows.
type Resource interface {
	Kind() Kind
	Bytes() int64
	Release() error
}

// ReleaseFunc frees the renderer side of a resource (buffers, programs).
type ReleaseFunc func() error

// DefaultVertexStride position + normal + uv as float32.
const DefaultVertexStride = 32

// Geometry vertex and index buffers.
type Geometry struct {
	Name     string
	Vertices int
	Indices  int
	Stride   int // bytes per vertex, DefaultVertexStride when 0

	OnRelease ReleaseFunc
	released  atomic.Bool
}

// Bytes estimates the buffer footprint: vertices × stride + indices × 4.
func (g *Geometry) Bytes() int64 {
	if g == nil {
		return 0
	}
	stride := g.Stride
	if stride <= 0 {
		stride = DefaultVertexStride
	}
	return int64(g.Vertices)*int64(stride) + int64(g.Indices)*4
}

// Release frees the buffers once.
func (g *Geometry) Release() error {
	if g == nil {
		return nil
	}
	if !g.released.CompareAndSwap(false, true) {
		return ErrDisposal.WithMsgf("geometry %q released twice", g.Name)
	}
	if g.OnRelease != nil {
		return g.OnRelease()
	}
	return nil
}

// Material shading parameters plus an optional owned texture.
type Material struct {
	Name      string
	Color     [4]float32
	Roughness float32
	Metalness float32
	Texture   Resource // owned; released with the material

	// ShaderBytes estimate for uniforms/programs held by the renderer.
	ShaderBytes int64
	OnRelease   ReleaseFunc
	released    atomic.Bool
}

// Bytes estimates the material footprint including its texture.
func (m *Material) Bytes() int64 {
	if m == nil {
		return 0
	}
	n := m.ShaderBytes
	if m.Texture != nil {
		n += m.Texture.Bytes()
	}
	return n
}

// Release frees the texture and the material once.
func (m *Material) Release() error {
	if m == nil {
		return nil
	}
	if !m.released.CompareAndSwap(false, true) {
		return ErrDisposal.WithMsgf("material %q released twice", m.Name)
	}
	var errs []error
	if m.Texture != nil {
		errs = append(errs, m.Texture.Release())
	}
	if m.OnRelease != nil {
		errs = append(errs, m.OnRelease())
	}
	return errors.Join(errs...)
}

// Model geometry + material, the unit a scene node attaches.
type Model struct {
	Geometry *Geometry
	Material *Material
}

func (m *Model) Kind() Kind { return KindModel }

// Bytes is geometry bytes plus material/texture bytes.
func (m *Model) Bytes() int64 {
	return m.Geometry.Bytes() + m.Material.Bytes()
}

// Release frees geometry then material; both are attempted.
func (m *Model) Release() error {
	return errors.Join(m.Geometry.Release(), m.Material.Release())
}

// TextureBytes estimates a raster texture: width × height × channels,
// plus a third for a full mip chain.
func TextureBytes(width, height, channels int, mipmaps bool) int64 {
	n := int64(width) * int64(height) * int64(channels)
	if mipmaps {
		n += n / 3
	}
	return n
}
