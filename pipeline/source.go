package pipeline

import (
	"image"
	"image/color"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/vector"
)

// Source is anything the pipeline can turn into a raster texture.
type Source interface {
	// Native reports the source's own size. For scalable sources only the
	// aspect ratio matters.
	Native() (w, h int, scalable bool)
	// Render rasterizes the source at exactly w×h.
	Render(w, h int) (*image.RGBA, error)
}

type segmentOp uint8

const (
	opMove segmentOp = iota
	opLine
	opQuad
	opCube
	opClose
)

type segment struct {
	op  segmentOp
	pts [3][2]float32
}

// Path outline in unit coordinates: (0,0) top-left, (1,1) bottom-right.
type Path struct {
	segments []segment
}

// NewPath starts an empty path
func NewPath() *Path { return &Path{} }

func (p *Path) MoveTo(x, y float32) *Path {
	p.segments = append(p.segments, segment{op: opMove, pts: [3][2]float32{{x, y}}})
	return p
}

func (p *Path) LineTo(x, y float32) *Path {
	p.segments = append(p.segments, segment{op: opLine, pts: [3][2]float32{{x, y}}})
	return p
}

func (p *Path) QuadTo(cx, cy, x, y float32) *Path {
	p.segments = append(p.segments, segment{op: opQuad, pts: [3][2]float32{{cx, cy}, {x, y}}})
	return p
}

func (p *Path) CubeTo(c1x, c1y, c2x, c2y, x, y float32) *Path {
	p.segments = append(p.segments, segment{op: opCube, pts: [3][2]float32{{c1x, c1y}, {c2x, c2y}, {x, y}}})
	return p
}

func (p *Path) Close() *Path {
	p.segments = append(p.segments, segment{op: opClose})
	return p
}

// Circle approximates a circle with four cubic arcs.
func Circle(cx, cy, r float32) *Path {
	const k = 0.5522847498 // control distance for a quarter arc
	return NewPath().
		MoveTo(cx+r, cy).
		CubeTo(cx+r, cy+k*r, cx+k*r, cy+r, cx, cy+r).
		CubeTo(cx-k*r, cy+r, cx-r, cy+k*r, cx-r, cy).
		CubeTo(cx-r, cy-k*r, cx-k*r, cy-r, cx, cy-r).
		CubeTo(cx+k*r, cy-r, cx+r, cy-k*r, cx+r, cy).
		Close()
}

// Shape filled outline
type Shape struct {
	Path *Path
	Fill color.RGBA
}

// VectorSource resolution-independent shapes, rasterized with anti-aliased
// coverage at whatever size is asked for.
type VectorSource struct {
	Background color.RGBA
	Shapes     []Shape
	// AspectW/AspectH default to 1:1
	AspectW, AspectH int
}

func (v *VectorSource) Native() (int, int, bool) {
	if v.AspectW <= 0 || v.AspectH <= 0 {
		return 1, 1, true
	}
	return v.AspectW, v.AspectH, true
}

func (v *VectorSource) Render(w, h int) (*image.RGBA, error) {
	if w <= 0 || h <= 0 {
		return nil, ErrInvalidSize.WithMsgf("vector render size %dx%d", w, h)
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.Draw(dst, dst.Bounds(), image.NewUniform(v.Background), image.Point{}, xdraw.Src)

	fw, fh := float32(w), float32(h)
	for _, s := range v.Shapes {
		if s.Path == nil {
			continue
		}
		r := vector.NewRasterizer(w, h)
		r.DrawOp = xdraw.Over
		for _, seg := range s.Path.segments {
			switch seg.op {
			case opMove:
				r.MoveTo(seg.pts[0][0]*fw, seg.pts[0][1]*fh)
			case opLine:
				r.LineTo(seg.pts[0][0]*fw, seg.pts[0][1]*fh)
			case opQuad:
				r.QuadTo(seg.pts[0][0]*fw, seg.pts[0][1]*fh, seg.pts[1][0]*fw, seg.pts[1][1]*fh)
			case opCube:
				r.CubeTo(seg.pts[0][0]*fw, seg.pts[0][1]*fh, seg.pts[1][0]*fw, seg.pts[1][1]*fh, seg.pts[2][0]*fw, seg.pts[2][1]*fh)
			case opClose:
				r.ClosePath()
			}
		}
		r.Draw(dst, dst.Bounds(), image.NewUniform(s.Fill), image.Point{})
	}
	return dst, nil
}

// RasterSource fixed-resolution image. It renders at native size or below,
// never above.
type RasterSource struct {
	Image image.Image
}

func (r *RasterSource) Native() (int, int, bool) {
	b := r.Image.Bounds()
	return b.Dx(), b.Dy(), false
}

func (r *RasterSource) Render(w, h int) (*image.RGBA, error) {
	nw, nh, _ := r.Native()
	if w <= 0 || h <= 0 || w > nw || h > nh {
		return nil, ErrInvalidSize.WithMsgf("raster render %dx%d outside native %dx%d", w, h, nw, nh)
	}
	return resample(r.Image, w, h), nil
}
