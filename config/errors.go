package config

import "github.com/KOMKZ/go-yogan-assets/errcode"

// ModuleCode config module code
const ModuleCode = 74

const (
	ErrCodeConfigInvalid = 1
	ErrCodeConfigLoad    = 2
)

var (
	// ErrConfigInvalid a section failed validation; the cause names the field
	ErrConfigInvalid = errcode.Register(errcode.New(
		ModuleCode, ErrCodeConfigInvalid,
		"config", "error.config.invalid", "invalid configuration",
	))

	// ErrConfigLoad a source could not be read
	ErrConfigLoad = errcode.Register(errcode.New(
		ModuleCode, ErrCodeConfigLoad,
		"config", "error.config.load", "failed to load configuration",
	))
)
