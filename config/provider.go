package config

import (
	"github.com/samber/do/v2"
)

// Provide registers a loaded AppConfig; it is the root of the graph and
// depends on nothing.
//
//	do.Provide(injector, config.Provide(config.LoadOptions{File: "configs/assets.yaml"}))
//	cfg := do.MustInvoke[*config.AppConfig](injector)
func Provide(opts LoadOptions) func(do.Injector) (*AppConfig, error) {
	return func(do.Injector) (*AppConfig, error) {
		cfg, _, err := Load(opts)
		return cfg, err
	}
}

// ProvideValue registers an already built AppConfig after validating it
func ProvideValue(cfg AppConfig) func(do.Injector) (*AppConfig, error) {
	return func(do.Injector) (*AppConfig, error) {
		cfg.ApplyDefaults()
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return &cfg, nil
	}
}
