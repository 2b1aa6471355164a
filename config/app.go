// Package config loads the scene asset configuration: a YAML file, an
// optional per-environment overlay and ASSETS_* environment variables, merged
// in that order over the built-in defaults and validated per section.
package config

import (
	"path/filepath"
	"reflect"
	"strings"

	"github.com/KOMKZ/go-yogan-assets/cache"
	"github.com/KOMKZ/go-yogan-assets/diag"
	"github.com/KOMKZ/go-yogan-assets/health"
	"github.com/KOMKZ/go-yogan-assets/logger"
	"github.com/KOMKZ/go-yogan-assets/manager"
	"github.com/KOMKZ/go-yogan-assets/monitor"
	"github.com/KOMKZ/go-yogan-assets/pipeline"
	"github.com/KOMKZ/go-yogan-assets/quality"
	"github.com/KOMKZ/go-yogan-assets/telemetry"
)

// DefaultEnvPrefix prefix of environment overrides
const DefaultEnvPrefix = "ASSETS"

// AppConfig every section of the asset subsystem
type AppConfig struct {
	Logger    logger.ManagerConfig `mapstructure:"logger"`
	Cache     cache.Config         `mapstructure:"cache"`
	Quality   quality.Config       `mapstructure:"quality"`
	Monitor   monitor.Config       `mapstructure:"monitor"`
	Pipeline  pipeline.Config      `mapstructure:"pipeline"`
	Manager   manager.Config       `mapstructure:"manager"`
	Telemetry telemetry.Config     `mapstructure:"telemetry"`
	Health    health.Config        `mapstructure:"health"`
	Diag      diag.Config          `mapstructure:"diag"`
}

// Default built-in configuration
func Default() AppConfig {
	return AppConfig{
		Logger:    logger.DefaultManagerConfig(),
		Cache:     cache.DefaultConfig(),
		Quality:   quality.DefaultConfig(),
		Monitor:   monitor.DefaultConfig(),
		Pipeline:  pipeline.DefaultConfig(),
		Manager:   manager.DefaultConfig(),
		Telemetry: telemetry.DefaultConfig(),
		Health:    health.DefaultConfig(),
		Diag:      diag.DefaultConfig(),
	}
}

// ApplyDefaults fills zero values of every section
func (c *AppConfig) ApplyDefaults() {
	c.Logger.ApplyDefaults()
	c.Cache.ApplyDefaults()
	c.Quality.ApplyDefaults()
	c.Monitor.ApplyDefaults()
	c.Pipeline.ApplyDefaults()
	c.Manager.ApplyDefaults()
	c.Telemetry.ApplyDefaults()
}

// Validate every section; the first failure is returned as ErrConfigInvalid
func (c AppConfig) Validate() error {
	return ValidateAll(
		Section{"logger", c.Logger},
		Section{"cache", c.Cache},
		Section{"quality", c.Quality},
		Section{"monitor", c.Monitor},
		Section{"pipeline", c.Pipeline},
		Section{"manager", c.Manager},
		Section{"telemetry", c.Telemetry},
		Section{"health", c.Health},
		Section{"diag", c.Diag},
	)
}

// LoadOptions where configuration comes from
type LoadOptions struct {
	// File base YAML file; empty means defaults and env only
	File string
	// Env loads <dir of File>/<Env>.yaml over the base file
	Env string
	// EnvPrefix defaults to ASSETS
	EnvPrefix string
}

// Load builds the loader for opts and decodes a validated AppConfig.
func Load(opts LoadOptions) (*AppConfig, *Loader, error) {
	if opts.EnvPrefix == "" {
		opts.EnvPrefix = DefaultEnvPrefix
	}

	loader := NewLoader()
	if opts.File != "" {
		loader.AddSource(NewFileSource(opts.File, 10))
		if opts.Env != "" {
			loader.AddSource(NewFileSource(filepath.Join(filepath.Dir(opts.File), opts.Env+".yaml"), 20))
		}
	}
	loader.AddSource(NewEnvSource(opts.EnvPrefix, 50, Keys()...))
	if err := loader.Load(); err != nil {
		return nil, nil, err
	}

	cfg := Default()
	// decoding merges slices element-wise, so list defaults are applied after
	cfg.Pipeline.VariantSizes = nil
	if err := loader.Unmarshal(&cfg); err != nil {
		return nil, nil, ErrConfigLoad.Wrap(err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return &cfg, loader, nil
}

// Keys every leaf key of AppConfig, e.g. "cache.memory_budget_mb". Map
// valued fields are file-only.
func Keys() []string {
	return structKeys(reflect.TypeOf(AppConfig{}), "")
}

func structKeys(t reflect.Type, prefix string) []string {
	var keys []string
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name, _, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		if name == "" || name == "-" || !f.IsExported() {
			continue
		}
		if prefix != "" {
			name = prefix + "." + name
		}
		switch f.Type.Kind() {
		case reflect.Struct:
			keys = append(keys, structKeys(f.Type, name)...)
		case reflect.Map:
		default:
			keys = append(keys, name)
		}
	}
	return keys
}
