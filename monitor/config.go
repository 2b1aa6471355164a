package monitor

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Config performance monitor configuration
type Config struct {
	// WindowSize frame-time samples kept
	WindowSize int `mapstructure:"window_size"`

	// SampleInterval wall-clock recompute period
	SampleInterval time.Duration `mapstructure:"sample_interval"`

	// MaxSubscribers fan-out bound
	MaxSubscribers int `mapstructure:"max_subscribers"`
}

// DefaultConfig 60 frames, 1s, 32 subscribers
func DefaultConfig() Config {
	return Config{
		WindowSize:     60,
		SampleInterval: time.Second,
		MaxSubscribers: 32,
	}
}

// ApplyDefaults fills zero values
func (c *Config) ApplyDefaults() {
	d := DefaultConfig()
	if c.WindowSize <= 0 {
		c.WindowSize = d.WindowSize
	}
	if c.SampleInterval <= 0 {
		c.SampleInterval = d.SampleInterval
	}
	if c.MaxSubscribers <= 0 {
		c.MaxSubscribers = d.MaxSubscribers
	}
}

// Validate checks the config
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.WindowSize, validation.Min(1), validation.Max(10000)),
		validation.Field(&c.SampleInterval, validation.Min(10*time.Millisecond)),
		validation.Field(&c.MaxSubscribers, validation.Min(1)),
	)
}
