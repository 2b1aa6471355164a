package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/viper"
)

// Loader merges sources by priority into one viper instance
type Loader struct {
	sources      []ConfigSource
	mergedConfig map[string]any
	v            *viper.Viper
	loadedFiles  []string
}

// NewLoader creates an empty loader
func NewLoader() *Loader {
	return &Loader{
		mergedConfig: make(map[string]any),
		v:            viper.New(),
	}
}

// AddSource adds a layer
func (l *Loader) AddSource(source ConfigSource) {
	l.sources = append(l.sources, source)
}

// Load reads every source, lowest priority first, later keys win
func (l *Loader) Load() error {
	sort.SliceStable(l.sources, func(i, j int) bool {
		return l.sources[i].Priority() < l.sources[j].Priority()
	})

	l.mergedConfig = make(map[string]any)
	l.loadedFiles = l.loadedFiles[:0]
	for _, source := range l.sources {
		data, err := source.Load()
		if err != nil {
			return ErrConfigLoad.Wrap(fmt.Errorf("source %s: %w", source.Name(), err))
		}
		if fs, ok := source.(*FileSource); ok && len(data) > 0 {
			l.loadedFiles = append(l.loadedFiles, fs.path)
		}
		for key, value := range data {
			l.mergedConfig[key] = value
		}
	}

	l.v = viper.New()
	for key, value := range unflattenMap(l.mergedConfig) {
		l.v.Set(key, value)
	}
	return nil
}

// unflattenMap {"cache.max_entries": 50} -> {"cache": {"max_entries": 50}}
func unflattenMap(flat map[string]any) map[string]any {
	result := make(map[string]any)
	for key, value := range flat {
		parts := strings.Split(key, ".")
		current := result
		for _, p := range parts[:len(parts)-1] {
			next, ok := current[p].(map[string]any)
			if !ok {
				next = make(map[string]any)
				current[p] = next
			}
			current = next
		}
		current[parts[len(parts)-1]] = value
	}
	return result
}

// Unmarshal decodes everything into v. Fields absent from every source keep
// the value v already holds.
func (l *Loader) Unmarshal(v any) error {
	return l.v.Unmarshal(v)
}

// UnmarshalKey decodes one section
func (l *Loader) UnmarshalKey(key string, v any) error {
	return l.v.UnmarshalKey(key, v)
}

// Get raw value
func (l *Loader) Get(key string) any { return l.v.Get(key) }

// GetString string value
func (l *Loader) GetString(key string) string { return l.v.GetString(key) }

// GetInt int value
func (l *Loader) GetInt(key string) int { return l.v.GetInt(key) }

// IsSet reports whether any source set key
func (l *Loader) IsSet(key string) bool { return l.v.IsSet(key) }

// LoadedFiles files that contributed settings
func (l *Loader) LoadedFiles() []string { return l.loadedFiles }

// Reload reads every source again
func (l *Loader) Reload() error { return l.Load() }
