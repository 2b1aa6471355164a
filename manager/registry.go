package manager

import (
	"context"
	"sort"
	"sync"

	"github.com/KOMKZ/go-yogan-assets/asset"
	"github.com/KOMKZ/go-yogan-assets/pipeline"
	"github.com/KOMKZ/go-yogan-assets/quality"
)

// ModelFactory builds the model of one category at level. Opaque to the
// manager; typically procedural generation.
type ModelFactory func(ctx context.Context, level quality.Level) (*asset.Model, error)

// TextureFactory returns the source a category's textures are derived from.
type TextureFactory func(ctx context.Context, category asset.Category) (pipeline.Source, error)

// Registry maps categories to their factories. Open: any non-empty category
// may register.
type Registry struct {
	mu       sync.RWMutex
	models   map[asset.Category]ModelFactory
	textures map[asset.Category]TextureFactory
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		models:   make(map[asset.Category]ModelFactory),
		textures: make(map[asset.Category]TextureFactory),
	}
}

// RegisterModel sets the model factory of c, replacing any previous one.
func (r *Registry) RegisterModel(c asset.Category, f ModelFactory) error {
	if c == "" || f == nil {
		return asset.ErrUnknownCategory.WithMsg("category and model factory are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.models[c] = f
	return nil
}

// RegisterTexture sets the texture factory of c, replacing any previous one.
func (r *Registry) RegisterTexture(c asset.Category, f TextureFactory) error {
	if c == "" || f == nil {
		return asset.ErrUnknownCategory.WithMsg("category and texture factory are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.textures[c] = f
	return nil
}

// Model returns the model factory of c
func (r *Registry) Model(c asset.Category) (ModelFactory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.models[c]
	if !ok {
		return nil, asset.ErrUnknownCategory.WithMsgf("no model factory for %q", c).WithData("category", string(c))
	}
	return f, nil
}

// Texture returns the texture factory of c
func (r *Registry) Texture(c asset.Category) (TextureFactory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.textures[c]
	if !ok {
		return nil, asset.ErrUnknownCategory.WithMsgf("no texture factory for %q", c).WithData("category", string(c))
	}
	return f, nil
}

// Categories every category with at least one factory, sorted
func (r *Registry) Categories() []asset.Category {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[asset.Category]struct{}, len(r.models)+len(r.textures))
	for c := range r.models {
		seen[c] = struct{}{}
	}
	for c := range r.textures {
		seen[c] = struct{}{}
	}
	out := make([]asset.Category, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
