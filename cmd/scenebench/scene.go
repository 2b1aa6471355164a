package main

import (
	"context"
	"hash/fnv"
	"image/color"

	"github.com/KOMKZ/go-yogan-assets/asset"
	"github.com/KOMKZ/go-yogan-assets/manager"
	"github.com/KOMKZ/go-yogan-assets/pipeline"
	"github.com/KOMKZ/go-yogan-assets/quality"
)

// detail tessellation multiplier per level
var detail = map[quality.Level]int{quality.Low: 1, quality.Medium: 4, quality.High: 16}

func categorySeed(c asset.Category) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(c))
	return h.Sum32()
}

func categoryColor(c asset.Category) color.RGBA {
	s := categorySeed(c)
	return color.RGBA{R: uint8(s), G: uint8(s >> 8), B: uint8(s >> 16), A: 0xff}
}

// sceneModel a sphere-ish mesh whose vertex count grows with the level
func sceneModel(_ context.Context, c asset.Category, level quality.Level) (*asset.Model, error) {
	rings := 16 + int(categorySeed(c)%16)
	vertices := rings * rings * 2 * detail[level]
	col := categoryColor(c)
	return &asset.Model{
		Geometry: &asset.Geometry{Name: string(c), Vertices: vertices, Indices: vertices * 3},
		Material: &asset.Material{
			Name:        string(c),
			Color:       [4]float32{float32(col.R) / 255, float32(col.G) / 255, float32(col.B) / 255, 1},
			Roughness:   0.6,
			ShaderBytes: 4 << 10,
		},
	}, nil
}

// sceneTexture membrane outline plus a few inner bodies
func sceneTexture(_ context.Context, c asset.Category) (pipeline.Source, error) {
	fill := categoryColor(c)
	inner := color.RGBA{R: fill.R / 2, G: fill.G / 2, B: fill.B / 2, A: 0xff}
	shapes := []pipeline.Shape{{Path: pipeline.Circle(0.5, 0.5, 0.45), Fill: fill}}

	n := 1 + int(categorySeed(c)%4)
	for i := range n {
		off := 0.15 + 0.7*float32(i)/float32(n)
		shapes = append(shapes, pipeline.Shape{Path: pipeline.Circle(off, 0.5, 0.08), Fill: inner})
	}
	return &pipeline.VectorSource{Shapes: shapes}, nil
}

// sceneRegistry factories for every known organelle
func sceneRegistry() (*manager.Registry, error) {
	reg := manager.NewRegistry()
	for _, c := range asset.KnownCategories {
		if err := reg.RegisterModel(c, func(ctx context.Context, level quality.Level) (*asset.Model, error) {
			return sceneModel(ctx, c, level)
		}); err != nil {
			return nil, err
		}
		if err := reg.RegisterTexture(c, sceneTexture); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
