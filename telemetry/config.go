package telemetry

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Config telemetry configuration
type Config struct {
	Enabled        bool                   `mapstructure:"enabled"`
	ServiceName    string                 `mapstructure:"service_name"`
	ServiceVersion string                 `mapstructure:"service_version"`
	Exporter       ExporterConfig         `mapstructure:"exporter"`
	Sampler        SamplerConfig          `mapstructure:"sampler"`
	Metrics        MetricsConfig          `mapstructure:"metrics"`
	Traces         TracesConfig           `mapstructure:"traces"`
	ResourceAttrs  map[string]interface{} `mapstructure:"resource_attrs"`
}

// ExporterConfig exporter configuration
type ExporterConfig struct {
	Type     string            `mapstructure:"type"`     // otlp, stdout, noop
	Endpoint string            `mapstructure:"endpoint"` // otlp collector address
	Insecure bool              `mapstructure:"insecure"`
	Timeout  time.Duration     `mapstructure:"timeout"`
	Headers  map[string]string `mapstructure:"headers"`
}

// SamplerConfig trace sampling
type SamplerConfig struct {
	Type  string  `mapstructure:"type"`  // always_on, always_off, trace_id_ratio, parent_based_always_on
	Ratio float64 `mapstructure:"ratio"` // only for trace_id_ratio
}

// MetricsConfig metric export
type MetricsConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	ExportInterval time.Duration `mapstructure:"export_interval"`
	ExportTimeout  time.Duration `mapstructure:"export_timeout"`
	Namespace      string        `mapstructure:"namespace"` // instrument name prefix
}

// TracesConfig span export for asset loads
type TracesConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// DefaultConfig telemetry off, stdout exporter when switched on
func DefaultConfig() Config {
	return Config{
		Enabled:        false,
		ServiceName:    "scene-assets",
		ServiceVersion: "dev",
		Exporter: ExporterConfig{
			Type:    "stdout",
			Timeout: 10 * time.Second,
		},
		Sampler: SamplerConfig{Type: "parent_based_always_on"},
		Metrics: MetricsConfig{
			Enabled:        true,
			ExportInterval: 15 * time.Second,
			ExportTimeout:  5 * time.Second,
			Namespace:      "assets",
		},
		Traces: TracesConfig{Enabled: true},
	}
}

// ApplyDefaults fills zero values
func (c *Config) ApplyDefaults() {
	d := DefaultConfig()
	if c.ServiceName == "" {
		c.ServiceName = d.ServiceName
	}
	if c.ServiceVersion == "" {
		c.ServiceVersion = d.ServiceVersion
	}
	if c.Exporter.Type == "" {
		c.Exporter.Type = d.Exporter.Type
	}
	if c.Exporter.Timeout <= 0 {
		c.Exporter.Timeout = d.Exporter.Timeout
	}
	if c.Sampler.Type == "" {
		c.Sampler.Type = d.Sampler.Type
	}
	if c.Metrics.ExportInterval <= 0 {
		c.Metrics.ExportInterval = d.Metrics.ExportInterval
	}
	if c.Metrics.ExportTimeout <= 0 {
		c.Metrics.ExportTimeout = d.Metrics.ExportTimeout
	}
}

// Validate checks exporter settings
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.ServiceName, validation.Required),
		validation.Field(&c.Exporter),
		validation.Field(&c.Sampler),
	)
}

// Validate exporter type and endpoint
func (e ExporterConfig) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Type, validation.Required, validation.In("otlp", "stdout", "noop")),
		validation.Field(&e.Endpoint, validation.When(e.Type == "otlp", validation.Required)),
	)
}

// Validate sampler type and ratio
func (s SamplerConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Type, validation.In("always_on", "always_off", "trace_id_ratio", "parent_based_always_on")),
		validation.Field(&s.Ratio, validation.Min(0.0), validation.Max(1.0)),
	)
}
