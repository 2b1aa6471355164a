package health

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Config health check configuration
type Config struct {
	Enabled bool          `mapstructure:"enabled"`
	Timeout time.Duration `mapstructure:"timeout"`

	// CacheUtilizationPct degraded above this share of the memory budget
	CacheUtilizationPct float64 `mapstructure:"cache_utilization_pct"`

	// MinFPS degraded below this smoothed frame rate; 0 disables
	MinFPS float64 `mapstructure:"min_fps"`
}

// DefaultConfig enabled, 2s timeout, 95% cache, 15 fps
func DefaultConfig() Config {
	return Config{
		Enabled:             true,
		Timeout:             2 * time.Second,
		CacheUtilizationPct: 95,
		MinFPS:              15,
	}
}

// Validate checks the config
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
		validation.Field(&c.CacheUtilizationPct, validation.Min(0.0), validation.Max(100.0)),
		validation.Field(&c.MinFPS, validation.Min(0.0)),
	)
}
