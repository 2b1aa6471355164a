package asset

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/KOMKZ/go-yogan-assets/quality"
)

// Key identifies a cached asset. Same content at the same quality always
// yields the same key; the quality is embedded as a "-q<n>" suffix.
//
//	model-<category>[-enhanced]-q<n>
//	texture-<category>-<size>-q<n>
type Key string

const (
	modelPrefix   = "model-"
	texturePrefix = "texture-"
	enhancedMark  = "-enhanced"
)

// ModelKey builds the key for a category's model at level.
func ModelKey(c Category, level quality.Level) Key {
	return Key(fmt.Sprintf("%s%s-q%d", modelPrefix, c, int(level)))
}

// EnhancedModelKey builds the key for the high-detail model variant.
func EnhancedModelKey(c Category, level quality.Level) Key {
	return Key(fmt.Sprintf("%s%s%s-q%d", modelPrefix, c, enhancedMark, int(level)))
}

// TextureKey builds the key for one resolution variant of a texture.
func TextureKey(c Category, size int, level quality.Level) Key {
	return Key(fmt.Sprintf("%s%s-%d-q%d", texturePrefix, c, size, int(level)))
}

// AtlasKey builds the key for one region of a packed atlas.
func AtlasKey(atlas string, id string, level quality.Level) Key {
	return Key(fmt.Sprintf("atlas-%s-%s-q%d", atlas, id, int(level)))
}

func (k Key) String() string { return string(k) }

// Quality returns the embedded quality discriminator.
func (k Key) Quality() (quality.Level, bool) {
	s := string(k)
	i := strings.LastIndex(s, "-q")
	if i < 0 {
		return 0, false
	}
	n, err := strconv.Atoi(s[i+2:])
	if err != nil {
		return 0, false
	}
	level := quality.Level(n)
	return level, level.Valid()
}

// HasQuality reports whether k was built for level.
func (k Key) HasQuality(level quality.Level) bool {
	q, ok := k.Quality()
	return ok && q == level
}

// IsTexture reports whether k names a texture variant.
func (k Key) IsTexture() bool { return strings.HasPrefix(string(k), texturePrefix) }

// IsModel reports whether k names a model.
func (k Key) IsModel() bool { return strings.HasPrefix(string(k), modelPrefix) }

// Enhanced reports whether k names the high-detail model variant.
func (k Key) Enhanced() bool {
	return k.IsModel() && strings.Contains(string(k), enhancedMark+"-q")
}

// Parts splits a model or texture key into its components.
// size is 0 for models.
func (k Key) Parts() (c Category, size int, level quality.Level, err error) {
	level, ok := k.Quality()
	if !ok {
		return "", 0, 0, ErrInvalidKey.WithMsgf("key %q has no quality suffix", k)
	}
	body := string(k)[:strings.LastIndex(string(k), "-q")]

	switch {
	case strings.HasPrefix(body, modelPrefix):
		body = strings.TrimSuffix(strings.TrimPrefix(body, modelPrefix), enhancedMark)
		if body == "" {
			return "", 0, 0, ErrInvalidKey.WithMsgf("key %q has no category", k)
		}
		return Category(body), 0, level, nil
	case strings.HasPrefix(body, texturePrefix):
		body = strings.TrimPrefix(body, texturePrefix)
		i := strings.LastIndex(body, "-")
		if i <= 0 {
			return "", 0, 0, ErrInvalidKey.WithMsgf("key %q has no size", k)
		}
		size, convErr := strconv.Atoi(body[i+1:])
		if convErr != nil || size <= 0 {
			return "", 0, 0, ErrInvalidKey.WithMsgf("key %q has an invalid size", k)
		}
		return Category(body[:i]), size, level, nil
	}
	return "", 0, 0, ErrInvalidKey.WithMsgf("key %q is neither a model nor a texture", k)
}

// Category returns the category part, or "" when k cannot be parsed.
func (k Key) Category() Category {
	c, _, _, err := k.Parts()
	if err != nil {
		return ""
	}
	return c
}
