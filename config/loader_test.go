package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSource struct {
	name     string
	priority int
	data     map[string]any
	err      error
}

func (s staticSource) Name() string                  { return s.name }
func (s staticSource) Priority() int                 { return s.priority }
func (s staticSource) Load() (map[string]any, error) { return s.data, s.err }

func TestLoader_PriorityOrder(t *testing.T) {
	l := NewLoader()
	l.AddSource(staticSource{name: "high", priority: 50, data: map[string]any{"cache.max_entries": 9}})
	l.AddSource(staticSource{name: "low", priority: 10, data: map[string]any{
		"cache.max_entries":      3,
		"cache.memory_budget_mb": 16,
	}})
	require.NoError(t, l.Load())

	assert.Equal(t, 9, l.GetInt("cache.max_entries"))
	assert.Equal(t, 16, l.GetInt("cache.memory_budget_mb"))
	assert.True(t, l.IsSet("cache.max_entries"))
	assert.False(t, l.IsSet("quality.target_fps"))
}

func TestLoader_SourceError(t *testing.T) {
	l := NewLoader()
	l.AddSource(staticSource{name: "broken", err: assert.AnError})

	err := l.Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfigLoad)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestLoader_UnmarshalKey(t *testing.T) {
	l := NewLoader()
	l.AddSource(staticSource{name: "s", data: map[string]any{"diag.addr": ":7000", "diag.enabled": "true"}})
	require.NoError(t, l.Load())

	var d struct {
		Addr    string `mapstructure:"addr"`
		Enabled bool   `mapstructure:"enabled"`
	}
	require.NoError(t, l.UnmarshalKey("diag", &d))
	assert.Equal(t, ":7000", d.Addr)
	assert.True(t, d.Enabled)
}

func TestFileSource_Missing(t *testing.T) {
	data, err := NewFileSource("testdata/nope.yaml", 10).Load()
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestFileSource_Flattens(t *testing.T) {
	data, err := NewFileSource("testdata/assets.yaml", 10).Load()
	require.NoError(t, err)
	assert.Equal(t, 64, data["cache.memory_budget_mb"])
	assert.Equal(t, "127.0.0.1:9090", data["diag.addr"])
}

func TestEnvSource(t *testing.T) {
	t.Setenv("ASSETS_CACHE_MAX_ENTRIES", "12")
	t.Setenv("ASSETS_EMPTY", "")

	s := NewEnvSource("ASSETS", 50, "cache.max_entries", "empty", "cache.memory_budget_mb")
	data, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"cache.max_entries": "12"}, data)
	assert.Equal(t, "env:ASSETS", s.Name())
}
