package pipeline

import validation "github.com/go-ozzo/ozzo-validation/v4"

// Config resolution pipeline configuration
type Config struct {
	// VariantSizes edge lengths derived per texture request
	VariantSizes []int `mapstructure:"variant_sizes"`

	// AtlasSize edge length of the packed atlas surface
	AtlasSize int `mapstructure:"atlas_size"`

	// Workers ants pool size for batch conversion
	Workers int `mapstructure:"workers"`

	// MaxTextureSize largest edge the pipeline will render
	MaxTextureSize int `mapstructure:"max_texture_size"`
}

// DefaultConfig 256..2048 variants, 2048 atlas, 4 workers
func DefaultConfig() Config {
	return Config{
		VariantSizes:   []int{256, 512, 1024, 2048},
		AtlasSize:      2048,
		Workers:        4,
		MaxTextureSize: 4096,
	}
}

// ApplyDefaults fills zero values
func (c *Config) ApplyDefaults() {
	d := DefaultConfig()
	if len(c.VariantSizes) == 0 {
		c.VariantSizes = d.VariantSizes
	}
	if c.AtlasSize <= 0 {
		c.AtlasSize = d.AtlasSize
	}
	if c.Workers <= 0 {
		c.Workers = d.Workers
	}
	if c.MaxTextureSize <= 0 {
		c.MaxTextureSize = d.MaxTextureSize
	}
}

// Validate checks sizes against the texture limit
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.VariantSizes, validation.Required,
			validation.Each(validation.Min(1), validation.Max(c.MaxTextureSize))),
		validation.Field(&c.AtlasSize, validation.Min(1), validation.Max(c.MaxTextureSize)),
		validation.Field(&c.Workers, validation.Min(1)),
	)
}
