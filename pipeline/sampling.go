package pipeline

import "github.com/KOMKZ/go-yogan-assets/quality"

// Filter texture filtering mode handed to the renderer
type Filter int

const (
	FilterNearest Filter = iota
	FilterLinear
	FilterLinearMipmapNearest
	FilterLinearMipmapLinear
)

func (f Filter) String() string {
	switch f {
	case FilterLinear:
		return "linear"
	case FilterLinearMipmapNearest:
		return "linear_mipmap_nearest"
	case FilterLinearMipmapLinear:
		return "linear_mipmap_linear"
	default:
		return "nearest"
	}
}

// Sampling filter state applied uniformly to every variant of one quality
type Sampling struct {
	MinFilter  Filter `json:"min_filter"`
	MagFilter  Filter `json:"mag_filter"`
	Mipmaps    bool   `json:"mipmaps"`
	Anisotropy int    `json:"anisotropy"`
}

// SamplingFor maps a quality level to filter cost; resolution is chosen
// by the caller, not by quality.
func SamplingFor(level quality.Level) Sampling {
	switch level {
	case quality.High:
		return Sampling{MinFilter: FilterLinearMipmapLinear, MagFilter: FilterLinear, Mipmaps: true, Anisotropy: 16}
	case quality.Medium:
		return Sampling{MinFilter: FilterLinearMipmapNearest, MagFilter: FilterLinear, Mipmaps: true, Anisotropy: 4}
	default:
		return Sampling{MinFilter: FilterLinear, MagFilter: FilterLinear, Mipmaps: false, Anisotropy: 1}
	}
}
