package config

// ConfigSource one layer of configuration. Layers are merged in ascending
// priority; keys are dot separated, e.g. "cache.memory_budget_mb".
//
// Suggested priorities: base file 10, environment file 20, env vars 50.
type ConfigSource interface {
	Name() string
	Priority() int
	Load() (map[string]any, error)
}
