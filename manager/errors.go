package manager

import (
	"net/http"

	"github.com/KOMKZ/go-yogan-assets/errcode"
)

// ModuleCode manager module code
const ModuleCode = 75

const (
	ErrCodeFactoryFailed = 1
	ErrCodeConfigInvalid = 2
	ErrCodeClosed        = 3
)

var (
	// ErrFactoryFailed a registered generator returned an error
	ErrFactoryFailed = errcode.Register(errcode.New(
		ModuleCode, ErrCodeFactoryFailed,
		"manager", "error.manager.factory_failed", "asset factory failed",
		http.StatusBadGateway,
	).WithRetryable(true))

	// ErrConfigInvalid manager configuration rejected
	ErrConfigInvalid = errcode.Register(errcode.New(
		ModuleCode, ErrCodeConfigInvalid,
		"manager", "error.manager.config_invalid", "invalid asset manager configuration",
	))

	// ErrClosed manager already shut down
	ErrClosed = errcode.Register(errcode.New(
		ModuleCode, ErrCodeClosed,
		"manager", "error.manager.closed", "asset manager closed",
		http.StatusServiceUnavailable,
	))
)
