package config

import (
	"os"
	"strings"
)

// EnvSource environment variables bound to known keys.
// "cache.memory_budget_mb" reads ASSETS_CACHE_MEMORY_BUDGET_MB for prefix
// "ASSETS". Values stay strings; decoding converts them.
type EnvSource struct {
	prefix   string
	priority int
	bindings map[string]string // config key -> env name
}

// NewEnvSource binds every key in keys under prefix
func NewEnvSource(prefix string, priority int, keys ...string) *EnvSource {
	s := &EnvSource{prefix: prefix, priority: priority, bindings: make(map[string]string, len(keys))}
	for _, k := range keys {
		s.AddBinding(k, strings.ToUpper(strings.ReplaceAll(k, ".", "_")))
	}
	return s
}

// AddBinding maps key to envKey; the prefix is prepended when missing
func (s *EnvSource) AddBinding(key, envKey string) {
	if s.prefix != "" && !strings.HasPrefix(envKey, s.prefix+"_") {
		envKey = s.prefix + "_" + envKey
	}
	s.bindings[key] = envKey
}

func (s *EnvSource) Name() string  { return "env:" + s.prefix }
func (s *EnvSource) Priority() int { return s.priority }

// Load reads every bound variable that is set
func (s *EnvSource) Load() (map[string]any, error) {
	result := make(map[string]any)
	for key, envKey := range s.bindings {
		if value, ok := os.LookupEnv(envKey); ok && value != "" {
			result[key] = value
		}
	}
	return result, nil
}
