package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/viper"
)

// FileSource YAML (or any viper supported) file. A missing file is an
// empty layer, not an error.
type FileSource struct {
	path     string
	priority int
}

// NewFileSource creates a file layer
func NewFileSource(path string, priority int) *FileSource {
	return &FileSource{path: path, priority: priority}
}

func (s *FileSource) Name() string  { return "file:" + s.path }
func (s *FileSource) Priority() int { return s.priority }

// Load reads the file into dotted keys
func (s *FileSource) Load() (map[string]any, error) {
	_, err := os.Stat(s.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return map[string]any{}, nil
	case err != nil:
		return nil, fmt.Errorf("stat config file %s: %w", s.path, err)
	}

	v := viper.New()
	v.SetConfigFile(s.path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config file %s: %w", s.path, err)
	}
	out := make(map[string]any)
	flattenInto(out, "", v.AllSettings())
	return out, nil
}

// flattenInto writes {"cache": {"max_entries": 50}} as "cache.max_entries".
func flattenInto(dst map[string]any, prefix string, src map[string]any) {
	for k, v := range src {
		if prefix != "" {
			k = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok {
			flattenInto(dst, k, nested)
			continue
		}
		dst[k] = v
	}
}
