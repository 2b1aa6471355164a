package pipeline

import (
	"image"
	"sync/atomic"

	"github.com/KOMKZ/go-yogan-assets/asset"
)

// Texture one derived raster variant. It satisfies asset.Resource so the
// cache can own it directly.
type Texture struct {
	// Size requested edge length; the image may be smaller when BelowNative
	Size        int
	Image       *image.RGBA
	Mips        []*image.RGBA
	Sampling    Sampling
	BelowNative bool

	OnRelease asset.ReleaseFunc
	released  atomic.Bool
}

func (t *Texture) Kind() asset.Kind { return asset.KindTexture }

// Width of level 0
func (t *Texture) Width() int { return t.Image.Bounds().Dx() }

// Height of level 0
func (t *Texture) Height() int { return t.Image.Bounds().Dy() }

// Bytes RGBA estimate, a third more with mipmaps
func (t *Texture) Bytes() int64 {
	if t.Image == nil {
		return 0
	}
	return asset.TextureBytes(t.Width(), t.Height(), 4, len(t.Mips) > 0)
}

// Release runs the renderer hook once
func (t *Texture) Release() error {
	if !t.released.CompareAndSwap(false, true) {
		return asset.ErrDisposal.WithMsgf("texture %d released twice", t.Size)
	}
	if t.OnRelease != nil {
		return t.OnRelease()
	}
	return nil
}

// Released reports whether Release ran
func (t *Texture) Released() bool { return t.released.Load() }

func newTexture(size int, img *image.RGBA, s Sampling, belowNative bool) *Texture {
	t := &Texture{Size: size, Image: img, Sampling: s, BelowNative: belowNative}
	if s.Mipmaps {
		t.Mips = mipChain(img)
	}
	return t
}
