package pipeline

import (
	"image"

	xdraw "golang.org/x/image/draw"
)

// boxKernel averages every source pixel a destination pixel covers when
// shrinking, which keeps thin features from aliasing.
var boxKernel = &xdraw.Kernel{
	Support: 0.5,
	At:      func(float64) float64 { return 1 },
}

// resample area-averages src into a w×h image.
func resample(src image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if src.Bounds().Dx() == w && src.Bounds().Dy() == h {
		xdraw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, xdraw.Src)
		return dst
	}
	boxKernel.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return dst
}

// mipChain halves base until both sides reach 1. Level 0 is not included.
func mipChain(base *image.RGBA) []*image.RGBA {
	var chain []*image.RGBA
	w, h := base.Bounds().Dx(), base.Bounds().Dy()
	prev := base
	for w > 1 || h > 1 {
		w, h = max(1, w/2), max(1, h/2)
		next := resample(prev, w, h)
		chain = append(chain, next)
		prev = next
	}
	return chain
}

// fitDims scales a native w×h so its longer side equals size.
func fitDims(nw, nh, size int) (int, int) {
	if nw <= 0 || nh <= 0 {
		return size, size
	}
	if nw >= nh {
		return size, max(1, (size*nh+nw/2)/nw)
	}
	return max(1, (size*nw+nh/2)/nh), size
}
