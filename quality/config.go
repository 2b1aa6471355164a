package quality

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Config adaptive quality configuration
type Config struct {
	// TargetFPS frame rate the controller defends
	TargetFPS float64 `mapstructure:"target_fps"`

	// QualityChangeCooldownMS minimum time between automatic changes
	QualityChangeCooldownMS int `mapstructure:"quality_change_cooldown_ms"`

	// ConsecutiveSamples qualifying samples needed before a step
	ConsecutiveSamples int `mapstructure:"consecutive_samples"`

	// DownMargin step down when fps < target - DownMargin
	DownMargin float64 `mapstructure:"down_margin"`

	// UpMargin step up when fps > target + UpMargin
	UpMargin float64 `mapstructure:"up_margin"`

	// Initial startup level; empty means probe the device
	Initial string `mapstructure:"initial"`

	// RewarmOnQualityChange preload again at the new level
	RewarmOnQualityChange bool `mapstructure:"rewarm_on_quality_change"`
}

// DefaultConfig 30 fps target, 5s cooldown, 3 samples, -5/+15 margins
func DefaultConfig() Config {
	return Config{
		TargetFPS:               30,
		QualityChangeCooldownMS: 5000,
		ConsecutiveSamples:      3,
		DownMargin:              5,
		UpMargin:                15,
		RewarmOnQualityChange:   true,
	}
}

// ApplyDefaults fills zero values of the fields where zero is not a valid
// setting. A zero cooldown or margin is kept as configured; start from
// DefaultConfig to get the stock values.
func (c *Config) ApplyDefaults() {
	d := DefaultConfig()
	if c.TargetFPS == 0 {
		c.TargetFPS = d.TargetFPS
	}
	if c.ConsecutiveSamples == 0 {
		c.ConsecutiveSamples = d.ConsecutiveSamples
	}
}

// Validate checks the config
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.TargetFPS, validation.Min(1.0), validation.Max(1000.0)),
		validation.Field(&c.QualityChangeCooldownMS, validation.Min(0)),
		validation.Field(&c.ConsecutiveSamples, validation.Min(1)),
		validation.Field(&c.DownMargin, validation.Min(0.0)),
		validation.Field(&c.UpMargin, validation.Min(0.0)),
		validation.Field(&c.Initial, validation.By(func(v any) error {
			if s, _ := v.(string); s != "" {
				_, err := ParseLevel(s)
				return err
			}
			return nil
		})),
	)
	if err != nil {
		return ErrConfigInvalid.Wrap(err)
	}
	return nil
}

// Cooldown as a duration
func (c Config) Cooldown() time.Duration {
	return time.Duration(c.QualityChangeCooldownMS) * time.Millisecond
}
