package manager

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Config asset manager configuration
type Config struct {
	// PreloadTextureSize texture variant warmed by Preload; 0 skips textures
	PreloadTextureSize int `mapstructure:"preload_texture_size"`

	// RetryAttempts extra factory attempts after the first failure
	RetryAttempts int `mapstructure:"retry_attempts"`

	// RetryBackoff base delay between factory attempts
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`

	// OfferSiblings cache every derived texture size, not only the requested one
	OfferSiblings bool `mapstructure:"offer_siblings"`

	// RewarmOnQualityChange preload again after every level change
	RewarmOnQualityChange bool `mapstructure:"-"`
}

// DefaultConfig 512px preload textures, 2 retries 50ms apart
func DefaultConfig() Config {
	return Config{
		PreloadTextureSize:    512,
		RetryAttempts:         2,
		RetryBackoff:          50 * time.Millisecond,
		OfferSiblings:         true,
		RewarmOnQualityChange: true,
	}
}

// ApplyDefaults fills zero durations
func (c *Config) ApplyDefaults() {
	if c.RetryBackoff == 0 {
		c.RetryBackoff = DefaultConfig().RetryBackoff
	}
}

// Validate checks the config
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.PreloadTextureSize, validation.Min(0)),
		validation.Field(&c.RetryAttempts, validation.Min(0), validation.Max(10)),
		validation.Field(&c.RetryBackoff, validation.Min(time.Duration(0))),
	)
	if err != nil {
		return ErrConfigInvalid.Wrap(err)
	}
	return nil
}
